package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"

	"github.com/faulttwin/faulttwin/internal/config"
	"github.com/faulttwin/faulttwin/internal/present"
	"github.com/faulttwin/faulttwin/pkg/types"
)

const (
	sendTimeout    = 10 * time.Second
	connectTimeout = 10 * time.Second

	// StatusSuffix is appended to the configured topic prefix.
	StatusSuffix = "/status"
)

// Status is the retained payload describing the newest result.
type Status struct {
	Seq          uint64             `json:"seq"`
	GeneratedAt  time.Time          `json:"generated_at"`
	FaultLabel   string             `json:"fault_label"`
	FaultColor   string             `json:"fault_color"`
	HealthIndex  float64            `json:"health_index"`
	HealthStatus types.HealthStatus `json:"health_status"`
	Severity     string             `json:"severity"`
	Current      float64            `json:"current"`
	Voltage      float64            `json:"voltage"`
	Temperature  float64            `json:"temperature"`
	Power        float64            `json:"power"`
}

// StatusFromView extracts the status card from v. It returns false for an
// awaiting-data view.
func StatusFromView(v *present.View) (Status, bool) {
	if v == nil || v.Awaiting() || v.Health.Index == nil || v.Health.Status == nil {
		return Status{}, false
	}
	i := len(v.Series.Current) - 1
	if i < 0 {
		return Status{}, false
	}
	return Status{
		Seq:          v.Seq,
		GeneratedAt:  v.GeneratedAt,
		FaultLabel:   v.Fault.Label,
		FaultColor:   v.Fault.Color,
		HealthIndex:  *v.Health.Index,
		HealthStatus: *v.Health.Status,
		Severity:     v.Health.Severity,
		Current:      v.Series.Current[i],
		Voltage:      v.Series.Voltage[i],
		Temperature:  v.Series.Temperature[i],
		Power:        v.Series.Power[i],
	}, true
}

// Observer receives delivery counts. *metrics.Metrics implements it.
type Observer interface {
	Published()
	Dropped()
}

type nopObserver struct{}

func (nopObserver) Published() {}
func (nopObserver) Dropped()   {}

// dialFunc opens the transport connection. Injectable for tests.
type dialFunc func(ctx context.Context, addr string) (net.Conn, error)

// Option configures a Publisher.
type Option func(*Publisher)

// WithObserver sets the delivery counter sink.
func WithObserver(o Observer) Option {
	return func(p *Publisher) { p.obs = o }
}

// WithRetryInterval sets the initial reconnect delay.
func WithRetryInterval(d time.Duration) Option {
	return func(p *Publisher) { p.retry = d }
}

// Publisher buffers status messages and publishes them to the broker.
// Publish is non-blocking; Run must be called in a goroutine to drain the
// buffer and handle reconnection.
type Publisher struct {
	cfg      config.MQTTConfig
	clientID string
	topic    string
	buf      chan []byte
	dial     dialFunc
	obs      Observer
	retry    time.Duration
	lastSeq  uint64 // touched only from the poller goroutine
}

// New creates a Publisher for cfg.
func New(cfg config.MQTTConfig, opts ...Option) *Publisher {
	size := cfg.BufferSize
	if size <= 0 {
		size = config.DefaultMQTTBufferSize
	}
	id := cfg.ClientID
	if id == "" {
		id = "faulttwin-" + uuid.NewString()
	}
	p := &Publisher{
		cfg:      cfg,
		clientID: id,
		topic:    strings.TrimSuffix(cfg.Topic, "/") + StatusSuffix,
		buf:      make(chan []byte, size),
		dial:     defaultDial,
		obs:      nopObserver{},
		retry:    backoffInitial,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Topic returns the full status topic.
func (p *Publisher) Topic() string { return p.topic }

// Publish implements present.Sink. Only views with a new newest entry are
// queued.
func (p *Publisher) Publish(_ context.Context, v *present.View) {
	st, ok := StatusFromView(v)
	if !ok || st.Seq == p.lastSeq {
		return
	}
	payload, err := json.Marshal(st)
	if err != nil {
		slog.Error("publish: encode status", "err", err)
		return
	}
	p.lastSeq = st.Seq
	p.Enqueue(payload)
}

// Enqueue adds payload to the buffer. If the buffer is full the oldest entry
// is evicted to make room.
func (p *Publisher) Enqueue(payload []byte) {
	select {
	case p.buf <- payload:
	default:
		select {
		case <-p.buf:
			p.obs.Dropped()
			slog.Debug("publish: buffer full, evicted oldest status", "buffer_cap", cap(p.buf))
		default:
		}
		select {
		case p.buf <- payload:
		default:
			// Run refilled the slot in between; this payload is the one lost.
			p.obs.Dropped()
		}
	}
}

// Pending returns the number of queued messages.
func (p *Publisher) Pending() int { return len(p.buf) }

// Run drains the buffer to the broker, reconnecting with exponential
// backoff when the connection is lost. Run blocks until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	bo := newBackoff(p.retry)

	for {
		if ctx.Err() != nil {
			return nil
		}

		client, lost, err := p.connect(ctx)
		if err != nil {
			wait := bo.next()
			slog.Error("publish: connect failed, will retry",
				"broker", p.cfg.Broker, "err", err, "retry_in", wait)
			if !sleep(ctx, wait) {
				return nil
			}
			continue
		}

		slog.Info("publish: connected", "broker", p.cfg.Broker, "client_id", p.clientID, "topic", p.topic)
		bo.reset()

		err = p.drain(ctx, client, lost)
		if ctx.Err() != nil {
			_ = client.Disconnect(&paho.Disconnect{ReasonCode: 0})
			return nil
		}

		wait := bo.next()
		slog.Warn("publish: connection lost, will reconnect",
			"broker", p.cfg.Broker, "err", err, "retry_in", wait)
		if !sleep(ctx, wait) {
			return nil
		}
	}
}

func (p *Publisher) connect(ctx context.Context) (*paho.Client, <-chan error, error) {
	conn, err := p.dial(ctx, brokerAddr(p.cfg.Broker))
	if err != nil {
		return nil, nil, fmt.Errorf("dial: %w", err)
	}

	lost := make(chan error, 2)
	signal := func(err error) {
		select {
		case lost <- err:
		default:
		}
	}
	client := paho.NewClient(paho.ClientConfig{
		ClientID:      p.clientID,
		Conn:          conn,
		OnClientError: signal,
		OnServerDisconnect: func(d *paho.Disconnect) {
			signal(fmt.Errorf("server disconnect, reason code %d", d.ReasonCode))
		},
	})

	cp := &paho.Connect{
		ClientID:   p.clientID,
		KeepAlive:  uint16(p.cfg.KeepAlive / time.Second),
		CleanStart: true,
	}
	if p.cfg.Username != "" {
		cp.UsernameFlag = true
		cp.Username = p.cfg.Username
	}
	if pw := p.cfg.Password(); pw != "" {
		cp.PasswordFlag = true
		cp.Password = []byte(pw)
	}

	cctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if _, err := client.Connect(cctx, cp); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("connect: %w", err)
	}
	return client, lost, nil
}

// drain publishes queued payloads until the connection fails or ctx is
// cancelled.
func (p *Publisher) drain(ctx context.Context, client *paho.Client, lost <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-lost:
			return err

		case payload := <-p.buf:
			sctx, cancel := context.WithTimeout(ctx, sendTimeout)
			_, err := client.Publish(sctx, &paho.Publish{
				Topic:   p.topic,
				QoS:     p.cfg.QoS,
				Retain:  true,
				Payload: payload,
				Properties: &paho.PublishProperties{
					ContentType: "application/json",
				},
			})
			cancel()

			if err != nil {
				// Put it back if there is room; a newer status may already
				// have taken its place.
				select {
				case p.buf <- payload:
				default:
					p.obs.Dropped()
				}
				if errors.Is(err, context.Canceled) && ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("publish: %w", err)
			}
			p.obs.Published()
			slog.Debug("publish: status delivered", "topic", p.topic, "bytes", len(payload))
		}
	}
}

func defaultDial(ctx context.Context, addr string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", addr)
}

// brokerAddr strips an optional tcp:// or mqtt:// scheme.
func brokerAddr(broker string) string {
	for _, scheme := range []string{"tcp://", "mqtt://"} {
		if strings.HasPrefix(broker, scheme) {
			return strings.TrimPrefix(broker, scheme)
		}
	}
	return broker
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
