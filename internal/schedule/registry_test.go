package schedule

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/maptrack/maptrack/internal/store"
	"github.com/maptrack/maptrack/internal/tracking"
)

type fakeScheduler struct {
	mu   sync.Mutex
	jobs map[string]func()
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{jobs: make(map[string]func())}
}

func (f *fakeScheduler) Add(name string, day int, at string, job func()) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[name] = job
	return nil
}

func (f *fakeScheduler) RemovePrefix(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	removed := 0
	for name := range f.jobs {
		if len(name) >= len(prefix) && name[:len(prefix)] == prefix {
			delete(f.jobs, name)
			removed++
		}
	}
	return removed
}

func (f *fakeScheduler) Names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.jobs))
	for name := range f.jobs {
		names = append(names, name)
	}
	return names
}

func newTestRegistry(t *testing.T, fire FireFunc) (*Registry, *fakeScheduler) {
	t.Helper()
	subs, err := store.NewFile[tracking.Subscription](filepath.Join(t.TempDir(), "schedule.json"))
	require.NoError(t, err)
	sched := newFakeScheduler()
	if fire == nil {
		fire = func(int64, tracking.Target) {}
	}
	return NewRegistry(subs, sched, fire, zap.NewNop()), sched
}

func TestRegistry_CrossProductTimerCount(t *testing.T) {
	t.Parallel()

	reg, sched := newTestRegistry(t, nil)
	require.NoError(t, reg.SetDaysAndTimes(42, []int{1, 3}, []string{"09:00"}))
	require.NoError(t, reg.AddTarget(42, tracking.Target{Kind: tracking.KindContainer, ID: "TKRU4471976"}))
	require.NoError(t, reg.AddTarget(42, tracking.Target{Kind: tracking.KindContract, ID: "D-100"}))

	// Mon/Wed x 09:00 x two targets.
	require.Len(t, sched.Names(), 4)

	require.NoError(t, reg.RemoveTarget(42, tracking.Target{Kind: tracking.KindContract, ID: "D-100"}))
	require.Len(t, sched.Names(), 2)
}

func TestRegistry_AddTargetIsIdempotent(t *testing.T) {
	t.Parallel()

	reg, sched := newTestRegistry(t, nil)
	require.NoError(t, reg.SetDaysAndTimes(7, []int{2}, []string{"08:30", "18:00"}))
	target := tracking.Target{Kind: tracking.KindContainer, ID: "TKRU0000001"}
	require.NoError(t, reg.AddTarget(7, target))
	require.NoError(t, reg.AddTarget(7, target))
	require.Len(t, sched.Names(), 2)

	sub, err := reg.Subscription(7)
	require.NoError(t, err)
	require.Equal(t, []string{"TKRU0000001"}, sub.Containers)
}

func TestRegistry_RemoveMissingTargetIsNoop(t *testing.T) {
	t.Parallel()

	reg, sched := newTestRegistry(t, nil)
	require.NoError(t, reg.SetDaysAndTimes(7, []int{2}, []string{"08:30"}))
	require.NoError(t, reg.AddTarget(7, tracking.Target{Kind: tracking.KindContainer, ID: "TKRU0000001"}))
	require.NoError(t, reg.RemoveTarget(7, tracking.Target{Kind: tracking.KindContainer, ID: "NOPE"}))
	require.Len(t, sched.Names(), 1)
}

func TestRegistry_EmptyRecurrenceMeansNoTimers(t *testing.T) {
	t.Parallel()

	reg, sched := newTestRegistry(t, nil)
	require.NoError(t, reg.AddTarget(9, tracking.Target{Kind: tracking.KindContainer, ID: "TKRU0000002"}))
	require.Empty(t, sched.Names())

	require.NoError(t, reg.SetDaysAndTimes(9, []int{5}, nil))
	require.Empty(t, sched.Names())
}

func TestRegistry_MaterializeReplaysPersistedState(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "schedule.json")
	subs, err := store.NewFile[tracking.Subscription](path)
	require.NoError(t, err)
	first := NewRegistry(subs, newFakeScheduler(), func(int64, tracking.Target) {}, zap.NewNop())
	require.NoError(t, first.SetDaysAndTimes(11, []int{0, 6}, []string{"10:00"}))
	require.NoError(t, first.AddTarget(11, tracking.Target{Kind: tracking.KindContainer, ID: "TKRU4471976"}))

	// A fresh process: same file, empty scheduler.
	subs2, err := store.NewFile[tracking.Subscription](path)
	require.NoError(t, err)
	sched := newFakeScheduler()
	fired := make(chan tracking.Target, 1)
	second := NewRegistry(subs2, sched, func(_ int64, target tracking.Target) {
		fired <- target
	}, zap.NewNop())
	require.NoError(t, second.Materialize())
	require.Len(t, sched.Names(), 2)

	for _, job := range sched.jobs {
		job()
		break
	}
	require.Equal(t, tracking.Target{Kind: tracking.KindContainer, ID: "TKRU4471976"}, <-fired)
}

func TestRegistry_SetDaysAndTimesRejectsBadInput(t *testing.T) {
	t.Parallel()

	reg, _ := newTestRegistry(t, nil)
	require.Error(t, reg.SetDaysAndTimes(1, []int{1}, []string{"25:00"}))
	require.Error(t, reg.SetDaysAndTimes(1, []int{7}, []string{"09:00"}))
	require.Error(t, reg.SetDaysAndTimes(1, []int{1}, []string{"not-a-time"}))
}

func TestParseClock(t *testing.T) {
	t.Parallel()

	h, m, err := ParseClock("09:05")
	require.NoError(t, err)
	require.Equal(t, 9, h)
	require.Equal(t, 5, m)

	_, _, err = ParseClock("9")
	require.Error(t, err)
	_, _, err = ParseClock("12:60")
	require.Error(t, err)
}
