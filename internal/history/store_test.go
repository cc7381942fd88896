package history

import (
	"sync"
	"testing"
	"time"

	"github.com/faulttwin/faulttwin/pkg/types"
)

func sample(current float64) types.EnrichedSample {
	return types.EnrichedSample{SensorSample: types.SensorSample{Current: current, Voltage: 220, Temperature: 30}}
}

func result(label string) types.InferenceResult {
	return types.InferenceResult{FaultLabel: label, HealthIndex: 90, HealthStatus: types.Healthy}
}

// fixedClock returns a func() time.Time that always returns t.
func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func labels(entries []types.HistoryEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Result.FaultLabel
	}
	return out
}

func TestNew_DefaultCapacity(t *testing.T) {
	for _, c := range []int{0, -3} {
		if got := New(c).Cap(); got != DefaultCapacity {
			t.Errorf("New(%d).Cap() = %d, want %d", c, got, DefaultCapacity)
		}
	}
}

func TestSnapshot_Empty(t *testing.T) {
	st := New(3)
	if got := st.Snapshot(); len(got) != 0 {
		t.Fatalf("Snapshot on empty store: got %d entries", len(got))
	}
	if _, ok := st.Latest(); ok {
		t.Fatal("Latest on empty store: expected false")
	}
}

func TestAppend_EvictsOldest(t *testing.T) {
	st := New(3)
	for _, l := range []string{"A", "B", "C", "D"} {
		st.Append(sample(0.3), result(l))
	}

	got := labels(st.Snapshot())
	want := []string{"B", "C", "D"}
	if len(got) != len(want) {
		t.Fatalf("Snapshot: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Snapshot: got %v, want %v", got, want)
		}
	}

	latest, ok := st.Latest()
	if !ok || latest.Result.FaultLabel != "D" {
		t.Errorf("Latest: got %+v, %v", latest, ok)
	}
}

func TestAppend_CapacityPlusK(t *testing.T) {
	const capacity, k = 100, 37
	st := New(capacity)
	for i := 0; i < capacity+k; i++ {
		st.Append(sample(float64(i)), result("x"))
	}

	if st.Len() != capacity {
		t.Fatalf("Len: got %d, want %d", st.Len(), capacity)
	}
	snap := st.Snapshot()
	for i, e := range snap {
		if want := float64(k + i); e.Sample.Current != want {
			t.Fatalf("entry %d: current %v, want %v", i, e.Sample.Current, want)
		}
		if want := uint64(k + i + 1); e.Seq != want {
			t.Fatalf("entry %d: seq %d, want %d", i, e.Seq, want)
		}
	}
}

func TestAppend_AssignsTimestamp(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	st := New(2)
	st.now = fixedClock(at)

	e := st.Append(sample(0.1), result("x"))
	if !e.Timestamp.Equal(at) {
		t.Errorf("Timestamp: got %v, want %v", e.Timestamp, at)
	}
	if e.Seq != 1 {
		t.Errorf("Seq: got %d, want 1", e.Seq)
	}
}

func TestSnapshot_IsCopy(t *testing.T) {
	st := New(2)
	st.Append(sample(0.1), result("A"))

	snap := st.Snapshot()
	snap[0].Result.FaultLabel = "mutated"

	if got := st.Snapshot()[0].Result.FaultLabel; got != "A" {
		t.Errorf("store was mutated through snapshot: %q", got)
	}
}

// Snapshots taken while a writer appends must always be strictly increasing
// in Seq and contiguous, with no torn entries.
func TestSnapshot_ConcurrentWriter(t *testing.T) {
	st := New(50)
	const writes = 5000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < writes; i++ {
			// Current mirrors the expected Seq so readers can detect tearing.
			st.Append(sample(float64(i+1)), result("x"))
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				snap := st.Snapshot()
				for j, e := range snap {
					if e.Sample.Current != float64(e.Seq) {
						t.Errorf("torn entry: seq %d current %v", e.Seq, e.Sample.Current)
						return
					}
					if j > 0 && e.Seq != snap[j-1].Seq+1 {
						t.Errorf("non-contiguous snapshot at %d: %d after %d", j, e.Seq, snap[j-1].Seq)
						return
					}
				}
			}
		}()
	}
	wg.Wait()

	if st.Len() != 50 {
		t.Errorf("Len after writes: got %d, want 50", st.Len())
	}
}
