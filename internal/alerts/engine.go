package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/faulttwin/faulttwin/internal/config"
	"github.com/faulttwin/faulttwin/internal/present"
)

const (
	defaultCooldown = 15 * time.Minute
	maxHistoryLen   = 200
	recentWindow    = time.Hour
)

// Alert states.
const (
	StateFiring   = "firing"
	StateResolved = "resolved"
)

// Alert represents a single alert event produced by the rule engine.
type Alert struct {
	ID         string     `json:"id"`
	RuleName   string     `json:"rule_name"`
	Condition  string     `json:"condition"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	Seq        uint64     `json:"seq"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"`
}

type rule struct {
	config.AlertRule
	cond condition
}

// Engine evaluates alert rules against readings and delivers webhook
// notifications when rules fire or resolve. It is safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	rules    []rule
	webhooks []config.WebhookConfig
	active   map[string]*Alert    // key: rule name
	lastFire map[string]time.Time // last fire time per rule (for cooldown)
	history  []*Alert             // recently resolved alerts
	lastSeq  uint64

	client *http.Client
	now    func() time.Time // injectable for deterministic tests
	wg     sync.WaitGroup   // in-flight deliveries
}

// New creates an Engine. Every rule condition is compiled up front; an
// Engine with no rules is valid and Evaluate becomes a no-op.
func New(cfg config.AlertsConfig) (*Engine, error) {
	e := &Engine{
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}
	if err := e.SetConfig(cfg); err != nil {
		return nil, err
	}
	return e, nil
}

// SetConfig swaps in new rules and webhooks. Firing alerts for rules that no
// longer exist are dropped. On error the previous configuration is kept.
func (e *Engine) SetConfig(cfg config.AlertsConfig) error {
	rules := make([]rule, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		c, err := parseCondition(r.Condition)
		if err != nil {
			return fmt.Errorf("alerts: rule %q: %w", r.Name, err)
		}
		rules = append(rules, rule{AlertRule: r, cond: c})
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = rules
	e.webhooks = cfg.Webhooks

	keep := make(map[string]bool, len(rules))
	for _, r := range rules {
		keep[r.Name] = true
	}
	for name := range e.active {
		if !keep[name] {
			delete(e.active, name)
		}
	}
	return nil
}

// Publish implements present.Sink. Each new reading is evaluated once;
// repeated views of the same entry are ignored.
func (e *Engine) Publish(_ context.Context, v *present.View) {
	r, ok := readingFromView(v)
	if !ok {
		return
	}
	e.mu.Lock()
	if r.Seq == e.lastSeq {
		e.mu.Unlock()
		return
	}
	e.lastSeq = r.Seq
	e.mu.Unlock()

	e.Evaluate(r)
}

// Evaluate tests all configured rules against r.
// Alerts that fire are stored and webhook delivery is triggered asynchronously.
// Alerts that were firing but whose condition is now false are resolved.
func (e *Engine) Evaluate(r Reading) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	for _, rl := range e.rules {
		fires, value := rl.cond.eval(r)

		if !fires {
			a, ok := e.active[rl.Name]
			if !ok {
				continue
			}
			resolved := now
			a.State = StateResolved
			a.ResolvedAt = &resolved
			delete(e.active, rl.Name)

			e.history = append(e.history, a)
			if len(e.history) > maxHistoryLen {
				e.history = e.history[len(e.history)-maxHistoryLen:]
			}
			slog.Info("alerts: resolved", "rule", rl.Name, "seq", r.Seq)
			e.deliverAsync(*a)
			continue
		}

		if _, firing := e.active[rl.Name]; firing {
			continue
		}
		cooldown := rl.Cooldown
		if cooldown <= 0 {
			cooldown = defaultCooldown
		}
		if last, ok := e.lastFire[rl.Name]; ok && now.Sub(last) < cooldown {
			continue
		}

		sev := rl.Severity
		if sev == "" {
			sev = "warning"
		}
		a := &Alert{
			ID:        uuid.NewString(),
			RuleName:  rl.Name,
			Condition: rl.Condition,
			Severity:  sev,
			Value:     value,
			Seq:       r.Seq,
			Message: fmt.Sprintf("[%s] %s fired: %s (value %.2f, fault %s, status %s)",
				sev, rl.Name, rl.Condition, value, r.Fault, r.Status),
			FiredAt: now,
			State:   StateFiring,
		}
		e.active[rl.Name] = a
		e.lastFire[rl.Name] = now

		slog.Warn("alerts: fired",
			"rule", rl.Name,
			"value", value,
			"severity", sev,
			"seq", r.Seq,
		)
		e.deliverAsync(*a)
	}
}

// Active returns copies of all currently firing alerts plus any alerts
// resolved within the past hour, newest first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindow)
	out := make([]*Alert, 0, len(e.active))
	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiredAt.After(out[j].FiredAt) })
	return out
}

// Wait blocks until in-flight webhook deliveries finish.
func (e *Engine) Wait() { e.wg.Wait() }

// deliverAsync must be called with e.mu held; it snapshots the webhook list.
func (e *Engine) deliverAsync(a Alert) {
	if len(e.webhooks) == 0 {
		return
	}
	hooks := append([]config.WebhookConfig(nil), e.webhooks...)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.deliver(hooks, &a)
	}()
}

func readingFromView(v *present.View) (Reading, bool) {
	if v == nil || v.Awaiting() || v.Entries == 0 || v.Health.Index == nil || v.Health.Status == nil {
		return Reading{}, false
	}
	i := v.Entries - 1
	return Reading{
		Seq:         v.Seq,
		Current:     v.Series.Current[i],
		Voltage:     v.Series.Voltage[i],
		Temperature: v.Series.Temperature[i],
		Power:       v.Series.Power[i],
		HealthIndex: *v.Health.Index,
		Fault:       v.Fault.Label,
		Status:      *v.Health.Status,
	}, true
}
