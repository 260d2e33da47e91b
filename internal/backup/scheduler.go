package backup

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/milndr/lodestone-server-manager/internal/logging"
	"github.com/robfig/cron/v3"
)

// Cron is the subset of *cron.Cron used by Scheduler.
type Cron interface {
	AddFunc(spec string, cmd func()) (cron.EntryID, error)
	Remove(id cron.EntryID)
	Entry(id cron.EntryID) cron.Entry
	Start()
	Stop() context.Context
}

// Job performs the scheduled backup of one server.
type Job func(ctx context.Context, server string) error

// Scheduler runs a backup job per server on its cron spec.
type Scheduler struct {
	cron   Cron
	job    Job
	logger logging.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[string]scheduled
	running map[string]bool
}

type scheduled struct {
	id   cron.EntryID
	spec string
}

// NewScheduler creates a scheduler that calls job. Specs use the standard
// five-field format or descriptors like @daily.
func NewScheduler(job Job, logger logging.Logger) *Scheduler {
	return newScheduler(cron.New(), job, logger)
}

func newScheduler(c Cron, job Job, logger logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    c,
		job:     job,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]scheduled),
		running: make(map[string]bool),
	}
}

// ValidateSpec reports whether spec is a usable schedule.
func ValidateSpec(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return errors.Wrapf(err, "invalid schedule %q", spec)
	}
	return nil
}

// Set schedules server on spec, replacing any previous schedule. An empty
// spec removes the schedule.
func (s *Scheduler) Set(server, spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.entries[server]; ok {
		if old.spec == spec {
			return nil
		}
		s.cron.Remove(old.id)
		delete(s.entries, server)
	}
	if spec == "" {
		return nil
	}
	if err := ValidateSpec(spec); err != nil {
		return err
	}

	id, err := s.cron.AddFunc(spec, func() { s.run(server) })
	if err != nil {
		return errors.Wrapf(err, "schedule backup of %s", server)
	}
	s.entries[server] = scheduled{id: id, spec: spec}
	s.logger.Info("backup scheduled", logging.String("server", server), logging.String("spec", spec))
	return nil
}

// Sync makes the schedule match specs, keyed by server name.
func (s *Scheduler) Sync(specs map[string]string) error {
	var errs []error
	s.mu.Lock()
	var stale []string
	for name := range s.entries {
		if _, ok := specs[name]; !ok {
			stale = append(stale, name)
		}
	}
	s.mu.Unlock()

	for _, name := range stale {
		_ = s.Set(name, "")
	}
	for name, spec := range specs {
		if err := s.Set(name, spec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Spec returns the schedule of server, or "" when it has none.
func (s *Scheduler) Spec(server string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[server].spec
}

// Next returns the next run time of server's backup.
func (s *Scheduler) Next(server string) (time.Time, bool) {
	s.mu.Lock()
	e, ok := s.entries[server]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	next := s.cron.Entry(e.id).Next
	return next, !next.IsZero()
}

func (s *Scheduler) run(server string) {
	s.mu.Lock()
	if s.running[server] {
		s.mu.Unlock()
		s.logger.Warn("previous backup still running, skipping", logging.String("server", server))
		return
	}
	s.running[server] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, server)
		s.mu.Unlock()
	}()

	if err := s.job(s.ctx, server); err != nil {
		s.logger.Error("scheduled backup failed", err, logging.String("server", server))
		return
	}
	s.logger.Info("scheduled backup finished", logging.String("server", server))
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}
