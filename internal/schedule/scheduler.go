package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler registers and removes named recurring jobs. Names are unique;
// adding an existing name replaces the old job.
type Scheduler interface {
	Add(name string, day int, at string, job func()) error
	RemovePrefix(prefix string) int
	Names() []string
}

// CronScheduler runs jobs on a cron runner in a fixed timezone. Days follow
// the cron convention: 0 is Sunday, 6 is Saturday.
type CronScheduler struct {
	mu      sync.Mutex
	runner  *cron.Cron
	entries map[string]cron.EntryID
	log     *zap.Logger
}

// NewCronScheduler builds a scheduler in the given location and starts its
// runner. Call Stop when shutting down.
func NewCronScheduler(loc *time.Location, log *zap.Logger) *CronScheduler {
	runner := cron.New(cron.WithLocation(loc))
	runner.Start()
	return &CronScheduler{
		runner:  runner,
		entries: make(map[string]cron.EntryID),
		log:     log,
	}
}

// Stop halts the runner and waits for in-flight jobs to finish.
func (s *CronScheduler) Stop() {
	<-s.runner.Stop().Done()
}

// Add schedules job at the given weekday and HH:MM wall time under name.
func (s *CronScheduler) Add(name string, day int, at string, job func()) error {
	hour, minute, err := ParseClock(at)
	if err != nil {
		return err
	}
	if day < 0 || day > 6 {
		return fmt.Errorf("day %d out of range 0..6", day)
	}
	spec := fmt.Sprintf("%d %d * * %d", minute, hour, day)

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.entries[name]; ok {
		s.runner.Remove(old)
	}
	id, err := s.runner.AddFunc(spec, job)
	if err != nil {
		return fmt.Errorf("adding cron entry %s: %w", name, err)
	}
	s.entries[name] = id
	s.log.Debug("timer registered", zap.String("name", name), zap.String("spec", spec))
	return nil
}

// RemovePrefix drops every job whose name starts with prefix and reports how
// many were removed.
func (s *CronScheduler) RemovePrefix(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for name, id := range s.entries {
		if strings.HasPrefix(name, prefix) {
			s.runner.Remove(id)
			delete(s.entries, name)
			removed++
		}
	}
	if removed > 0 {
		s.log.Debug("timers removed", zap.String("prefix", prefix), zap.Int("count", removed))
	}
	return removed
}

// Names returns the registered job names in no particular order.
func (s *CronScheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	return names
}

// ParseClock splits an HH:MM wall-clock string.
func ParseClock(at string) (hour, minute int, err error) {
	parts := strings.SplitN(at, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("time %q is not HH:MM", at)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("time %q has invalid hour", at)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("time %q has invalid minute", at)
	}
	return hour, minute, nil
}
