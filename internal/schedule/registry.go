package schedule

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/maptrack/maptrack/internal/store"
	"github.com/maptrack/maptrack/internal/tracking"
)

// FireFunc is called by a timer when a scheduled check is due.
type FireFunc func(subscriber int64, target tracking.Target)

// Registry owns the persisted subscriptions and keeps the scheduler's timers
// in sync with them. Every mutation rewrites the subscriber's timer set from
// scratch: existing timers are dropped by prefix and the full days x times x
// targets cross product is registered again. That keeps the timer set a pure
// function of the stored subscription, so a crash between the store write and
// the timer write heals on the next materialization.
type Registry struct {
	mu    sync.Mutex
	subs  *store.File[tracking.Subscription]
	sched Scheduler
	fire  FireFunc
	log   *zap.Logger
}

// NewRegistry wires the subscription store to the scheduler. fire receives
// each due check.
func NewRegistry(subs *store.File[tracking.Subscription], sched Scheduler, fire FireFunc, log *zap.Logger) *Registry {
	return &Registry{subs: subs, sched: sched, fire: fire, log: log}
}

// AddTarget appends target to the subscriber's list (idempotent) and rebuilds
// their timers.
func (r *Registry) AddTarget(subscriber int64, target tracking.Target) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var sub tracking.Subscription
	err := r.subs.Mutate(func(m map[string]tracking.Subscription) error {
		s := m[key(subscriber)]
		switch target.Kind {
		case tracking.KindContainer:
			s.Containers = appendUnique(s.Containers, target.ID)
		case tracking.KindContract:
			s.Contracts = appendUnique(s.Contracts, target.ID)
		default:
			return fmt.Errorf("unknown target kind %q", target.Kind)
		}
		m[key(subscriber)] = s
		sub = s
		return nil
	})
	if err != nil {
		return err
	}
	return r.rebuild(subscriber, sub)
}

// RemoveTarget drops target from the subscriber's list and rebuilds their
// timers. Removing a target that is not present is a no-op.
func (r *Registry) RemoveTarget(subscriber int64, target tracking.Target) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var sub tracking.Subscription
	err := r.subs.Mutate(func(m map[string]tracking.Subscription) error {
		s := m[key(subscriber)]
		switch target.Kind {
		case tracking.KindContainer:
			s.Containers = remove(s.Containers, target.ID)
		case tracking.KindContract:
			s.Contracts = remove(s.Contracts, target.ID)
		default:
			return fmt.Errorf("unknown target kind %q", target.Kind)
		}
		m[key(subscriber)] = s
		sub = s
		return nil
	})
	if err != nil {
		return err
	}
	return r.rebuild(subscriber, sub)
}

// SetDaysAndTimes replaces the subscriber's recurrence and rebuilds their
// timers. Times must be HH:MM; days use 0=Sunday..6=Saturday.
func (r *Registry) SetDaysAndTimes(subscriber int64, days []int, times []string) error {
	for _, at := range times {
		if _, _, err := ParseClock(at); err != nil {
			return err
		}
	}
	for _, d := range days {
		if d < 0 || d > 6 {
			return fmt.Errorf("day %d out of range 0..6", d)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var sub tracking.Subscription
	err := r.subs.Mutate(func(m map[string]tracking.Subscription) error {
		s := m[key(subscriber)]
		s.Days = append([]int(nil), days...)
		s.Times = append([]string(nil), times...)
		m[key(subscriber)] = s
		sub = s
		return nil
	})
	if err != nil {
		return err
	}
	return r.rebuild(subscriber, sub)
}

// Materialize rebuilds every subscriber's timers from the store. Called once
// at boot so persisted schedules survive restarts.
func (r *Registry) Materialize() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot, err := r.snapshot()
	if err != nil {
		return err
	}
	for id, sub := range snapshot {
		subscriber, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			r.log.Warn("skipping malformed subscriber key", zap.String("key", id))
			continue
		}
		if err := r.rebuild(subscriber, sub); err != nil {
			return err
		}
	}
	return nil
}

// Subscription returns the stored subscription for subscriber, which is the
// zero value when none exists.
func (r *Registry) Subscription(subscriber int64) (tracking.Subscription, error) {
	snapshot, err := r.snapshot()
	if err != nil {
		return tracking.Subscription{}, err
	}
	return snapshot[key(subscriber)], nil
}

// Snapshot returns all stored subscriptions keyed by subscriber id.
func (r *Registry) Snapshot() (map[string]tracking.Subscription, error) {
	return r.snapshot()
}

func (r *Registry) snapshot() (map[string]tracking.Subscription, error) {
	return r.subs.Load()
}

// rebuild drops the subscriber's timers and registers the full cross product
// again. Callers hold r.mu.
func (r *Registry) rebuild(subscriber int64, sub tracking.Subscription) error {
	r.sched.RemovePrefix(timerPrefix(subscriber))

	targets := make([]tracking.Target, 0, len(sub.Containers)+len(sub.Contracts))
	for _, id := range sub.Containers {
		targets = append(targets, tracking.Target{Kind: tracking.KindContainer, ID: id})
	}
	for _, id := range sub.Contracts {
		targets = append(targets, tracking.Target{Kind: tracking.KindContract, ID: id})
	}

	registered := 0
	for _, target := range targets {
		for _, day := range sub.Days {
			for _, at := range sub.Times {
				target := target
				name := timerName(subscriber, target, day, at)
				err := r.sched.Add(name, day, at, func() {
					r.fire(subscriber, target)
				})
				if err != nil {
					return fmt.Errorf("registering timer %s: %w", name, err)
				}
				registered++
			}
		}
	}
	r.log.Info("schedule rebuilt",
		zap.Int64("subscriber", subscriber),
		zap.Int("timers", registered))
	return nil
}

func key(subscriber int64) string {
	return strconv.FormatInt(subscriber, 10)
}

func timerPrefix(subscriber int64) string {
	return fmt.Sprintf("schedule_%d_", subscriber)
}

func timerName(subscriber int64, target tracking.Target, day int, at string) string {
	return fmt.Sprintf("schedule_%d_%s_%s_%d_%s", subscriber, target.Kind, target.ID, day, at)
}

func appendUnique(list []string, v string) []string {
	for _, e := range list {
		if e == v {
			return list
		}
	}
	list = append(list, v)
	sort.Strings(list)
	return list
}

func remove(list []string, v string) []string {
	out := list[:0]
	for _, e := range list {
		if e != v {
			out = append(out, e)
		}
	}
	return out
}
