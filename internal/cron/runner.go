// Package cron drives the time-based triggers: the periodic day refresh and
// the per-minute reminder check.
package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	robfig "github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a unit of scheduled work
type Job interface {
	Name() string
	Run(ctx context.Context)
}

// Config holds cron runner configuration
type Config struct {
	Location   *time.Location
	JobTimeout time.Duration
}

// Runner manages scheduled job execution
type Runner struct {
	config  Config
	cron    *robfig.Cron
	logger  *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
	mu      sync.RWMutex
	names   map[robfig.EntryID]string
}

// NewRunner creates a new cron runner
func NewRunner(config Config, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = 50 * time.Second
	}

	cl := cronLogger{logger: logger.Sugar()}
	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		config: config,
		cron: robfig.New(
			robfig.WithLocation(config.Location),
			robfig.WithLogger(cl),
			robfig.WithChain(robfig.Recover(cl), robfig.SkipIfStillRunning(cl)),
		),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		names:  make(map[robfig.EntryID]string),
	}
}

// AddJob schedules job on a standard five-field spec or a descriptor such
// as "@every 1m".
func (r *Runner) AddJob(spec string, job Job) (robfig.EntryID, error) {
	id, err := r.cron.AddFunc(spec, func() {
		r.execute(job)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to schedule %s: %w", job.Name(), err)
	}

	r.mu.Lock()
	r.names[id] = job.Name()
	r.mu.Unlock()

	r.logger.Info("Scheduled job", zap.String("job", job.Name()), zap.String("spec", spec))
	return id, nil
}

// RunNow executes job once on the caller's goroutine
func (r *Runner) RunNow(job Job) {
	r.execute(job)
}

func (r *Runner) execute(job Job) {
	ctx, cancel := context.WithTimeout(r.ctx, r.config.JobTimeout)
	defer cancel()

	start := time.Now()
	job.Run(ctx)
	r.logger.Debug("Job finished", zap.String("job", job.Name()), zap.Duration("took", time.Since(start)))
}

// Start starts the cron runner
func (r *Runner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return fmt.Errorf("cron runner already running")
	}

	r.running = true
	r.cron.Start()
	r.logger.Info("Cron runner started", zap.Int("jobs", len(r.names)))
	return nil
}

// Stop stops the cron runner and waits for running jobs
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	r.cancel()
	<-r.cron.Stop().Done()
	r.logger.Info("Cron runner stopped")
}

// IsRunning returns whether the runner is active
func (r *Runner) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// Entry describes a scheduled job
type Entry struct {
	Name string    `json:"name"`
	Next time.Time `json:"next"`
	Prev time.Time `json:"prev"`
}

// Entries lists scheduled jobs with their next and previous run times
func (r *Runner) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Entry
	for _, e := range r.cron.Entries() {
		out = append(out, Entry{Name: r.names[e.ID], Next: e.Next, Prev: e.Prev})
	}
	return out
}

// cronLogger adapts zap to robfig's logger interface
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
