// Package scheduler runs the periodic sweeps that keep the challenge
// lifecycle moving: expiring stale challenges, auto-starting ready ones,
// refreshing the trending cache, and sending end-of-window reminders.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB CONTRACT
// ══════════════════════════════════════════════════════════════════════════════

// Job is a unit of periodic work.
type Job interface {
	// Name identifies the job in logs, metrics, and lock keys.
	Name() string

	// Run executes one sweep. The context carries the per-run timeout.
	Run(ctx context.Context) error
}

// Locker serializes a job across worker instances. Acquisition is
// best-effort: when the lock backend is down the job runs anyway, since
// every sweep is idempotent at the repository layer.
type Locker interface {
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
}

// ErrAlreadyRunning is returned when Start is called twice.
var ErrAlreadyRunning = errors.New("scheduler already running")

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// Metrics holds the Prometheus collectors for job execution.
type Metrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates and registers the scheduler collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_job_runs_total",
			Help: "Completed scheduler job runs by outcome.",
		}, []string{"job", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scheduler_job_duration_seconds",
			Help:    "Scheduler job run duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
	}
	if reg != nil {
		reg.MustRegister(m.runs, m.duration)
	}
	return m
}

func (m *Metrics) record(job string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.runs.WithLabelValues(job, status).Inc()
	m.duration.WithLabelValues(job).Observe(elapsed.Seconds())
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// Config holds scheduler configuration.
type Config struct {
	// RunTimeout bounds a single job run. Zero means 2 minutes.
	RunTimeout time.Duration

	// LockTTL is how long a job lock is held. Zero means 30 seconds.
	LockTTL time.Duration

	// Locks serializes jobs across instances; nil disables locking.
	Locks Locker

	// Log is the base logger; nil uses the standard logger.
	Log *logrus.Entry

	// Metrics records job runs; nil disables metrics.
	Metrics *Metrics
}

// Scheduler drives registered jobs on cron expressions.
type Scheduler struct {
	cron    *cron.Cron
	config  Config
	log     *logrus.Entry

	mu      sync.Mutex
	running bool
}

// New creates a Scheduler. Jobs are registered with Register before Start.
func New(cfg Config) *Scheduler {
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 2 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	log := cfg.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cron.DiscardLogger),
			cron.WithChain(cron.Recover(cron.DiscardLogger)),
		),
		config: cfg,
		log:    log.WithField("component", "scheduler"),
	}
}

// Register schedules a job on a standard 5-field cron expression.
func (s *Scheduler) Register(spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() { s.runJob(job) })
	if err != nil {
		return fmt.Errorf("register job %s: %w", job.Name(), err)
	}

	s.log.WithFields(logrus.Fields{
		"job":  job.Name(),
		"spec": spec,
	}).Info("job registered")
	return nil
}

// Start begins dispatching jobs.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}
	s.running = true
	s.cron.Start()
	s.log.Info("scheduler started")
	return nil
}

// Stop halts dispatching and waits for in-flight jobs, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runJob(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.RunTimeout)
	defer cancel()

	if !s.acquireLock(ctx, job.Name()) {
		s.log.WithField("job", job.Name()).Debug("another instance holds the lock, skipping")
		return
	}

	start := time.Now()
	err := job.Run(ctx)
	elapsed := time.Since(start)

	s.config.Metrics.record(job.Name(), err, elapsed)

	entry := s.log.WithFields(logrus.Fields{
		"job":      job.Name(),
		"duration": elapsed.String(),
	})
	if err != nil {
		entry.WithError(err).Error("job failed")
		return
	}
	entry.Debug("job completed")
}

// acquireLock claims the distributed job lock. Lock backend failures allow
// the run: sweeps are idempotent, duplicate work beats no work.
func (s *Scheduler) acquireLock(ctx context.Context, jobName string) bool {
	if s.config.Locks == nil {
		return true
	}

	ok, err := s.config.Locks.SetNX(ctx, "lock:job:"+jobName, "1", s.config.LockTTL)
	if err != nil {
		s.log.WithError(err).WithField("job", jobName).Warn("job lock unavailable, running anyway")
		return true
	}
	return ok
}
