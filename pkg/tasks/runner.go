package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adjust/Rex/pkg/cmdb"
	"github.com/adjust/Rex/pkg/inventory"
	"github.com/adjust/Rex/pkg/telemetry"
	"github.com/adjust/Rex/pkg/transports"
	"github.com/adjust/Rex/pkg/transports/local"
	sshtransport "github.com/adjust/Rex/pkg/transports/ssh"
)

// HostStatus is the outcome of a task on one host.
type HostStatus string

const (
	StatusSuccess HostStatus = "success"
	StatusFailed  HostStatus = "failed"
	StatusSkipped HostStatus = "skipped"
)

// HostResult is the per-host record of a run.
type HostResult struct {
	Host     inventory.Host
	Status   HostStatus
	Err      error
	Duration time.Duration
}

// Run is one execution of a task over a host set.
type Run struct {
	ID       string
	Task     string
	Started  time.Time
	Finished time.Time
	Results  []HostResult
}

// Failed reports whether any host failed.
func (r *Run) Failed() bool {
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			return true
		}
	}
	return false
}

// TransportFactory builds a transport for one host.
type TransportFactory func(host inventory.Host) (transports.Transport, error)

// DefaultTransportFactory returns local transports for local hosts and
// key-authenticated SSH transports for everything else.
func DefaultTransportFactory(host inventory.Host) (transports.Transport, error) {
	if host.IsLocal() {
		return local.New(), nil
	}
	user := host.User
	if user == "" {
		user = "root"
	}
	cfg := sshtransport.DefaultConfig(host.Name, user)
	if host.Port != 0 {
		cfg.Port = host.Port
	}
	return sshtransport.New(cfg)
}

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	// Registry provides the runnable tasks. Required for RunTask.
	Registry *Registry

	// CMDB is handed to every task context. Optional.
	CMDB *cmdb.CMDB

	// Transport builds per-host connections. Nil means
	// DefaultTransportFactory.
	Transport TransportFactory

	// Parallelism bounds concurrent host executions when the task does
	// not set its own. Zero means sequential.
	Parallelism int

	// Logger receives run progress. Nil means a default stderr logger.
	Logger *telemetry.Logger

	// Metrics receives run counters. Optional.
	Metrics *telemetry.Metrics
}

// Runner executes tasks across hosts.
type Runner struct {
	registry    *Registry
	cmdb        *cmdb.CMDB
	transport   TransportFactory
	parallelism int
	logger      *telemetry.Logger
	metrics     *telemetry.Metrics

	// Last cache stats reported to metrics, so repeated runs on one
	// runner emit deltas rather than re-counting the whole history.
	lastStats cmdb.Stats
}

// NewRunner creates a runner from opts.
func NewRunner(opts RunnerOptions) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger, _ = telemetry.NewLogger(telemetry.DefaultLoggingConfig())
	}
	transport := opts.Transport
	if transport == nil {
		transport = DefaultTransportFactory
	}
	return &Runner{
		registry:    opts.Registry,
		cmdb:        opts.CMDB,
		transport:   transport,
		parallelism: opts.Parallelism,
		logger:      logger.NewComponentLogger("tasks"),
		metrics:     opts.Metrics,
	}
}

// RunTask executes a registered task on every host, bounded by the
// task's (or runner's) parallelism. The returned Run always carries one
// result per host, in host order; per-host failures are recorded, not
// returned as the error. The error is reserved for conditions that
// prevent the run entirely, such as an unknown task.
func (r *Runner) RunTask(ctx context.Context, name string, hosts []inventory.Host, params map[string]string) (*Run, error) {
	task, ok := r.registry.Get(name)
	if !ok {
		return nil, NewPermanentError("unknown task", nil).WithTask(name)
	}
	return r.execute(ctx, task, hosts, params), nil
}

// RunCommand executes an ad-hoc shell command on every host, as an
// anonymous task.
func (r *Runner) RunCommand(ctx context.Context, cmd string, hosts []inventory.Host) *Run {
	task := &Task{
		Name: "adhoc",
		Run: func(ctx context.Context, tc *Context) error {
			res, err := tc.Exec(ctx, cmd)
			if err != nil {
				return err
			}
			if !res.Success() {
				return NewPermanentError("command exited non-zero", nil).WithHost(tc.Host.Name)
			}
			tc.Logger.WithField("stdout", res.Stdout).Info("command output")
			return nil
		},
	}
	return r.execute(ctx, task, hosts, nil)
}

func (r *Runner) execute(ctx context.Context, task *Task, hosts []inventory.Host, params map[string]string) *Run {
	run := &Run{
		ID:      uuid.New().String(),
		Task:    task.Name,
		Started: time.Now(),
		Results: make([]HostResult, len(hosts)),
	}

	logger := r.logger.WithRunID(run.ID).WithTask(task.Name)
	logger.Infof("running on %d host(s)", len(hosts))

	parallelism := task.Parallelism
	if parallelism == 0 {
		parallelism = r.parallelism
	}
	if parallelism < 1 {
		parallelism = 1
	}

	sem := make(chan struct{}, parallelism)
	var wg sync.WaitGroup
	for i, host := range hosts {
		wg.Add(1)
		go func(i int, host inventory.Host) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			run.Results[i] = r.executeOnHost(ctx, task, host, params, logger)
		}(i, host)
	}
	wg.Wait()

	run.Finished = time.Now()
	if r.metrics != nil {
		for _, res := range run.Results {
			r.metrics.RecordTaskExecution(task.Name, string(res.Status), res.Duration)
		}
		if r.cmdb != nil {
			stats := r.cmdb.Stats()
			r.metrics.RecordCMDBCache(stats.CacheHits-r.lastStats.CacheHits, stats.CacheMisses-r.lastStats.CacheMisses)
			r.lastStats = stats
		}
	}
	return run
}

func (r *Runner) executeOnHost(ctx context.Context, task *Task, host inventory.Host, params map[string]string, logger *telemetry.Logger) HostResult {
	start := time.Now()
	hostLogger := logger.WithHost(host.Name)

	if err := ctx.Err(); err != nil {
		return HostResult{Host: host, Status: StatusSkipped, Err: err}
	}

	transport, err := r.transport(host)
	if err != nil {
		hostLogger.WithError(err).Error("transport setup failed")
		return HostResult{
			Host:     host,
			Status:   StatusFailed,
			Err:      NewPermanentError("transport setup failed", err).WithTask(task.Name).WithHost(host.Name),
			Duration: time.Since(start),
		}
	}
	defer transport.Close()

	if err := transport.Connect(ctx); err != nil {
		if r.metrics != nil {
			r.metrics.RecordConnection(transport.Name(), "error")
		}
		hostLogger.WithError(err).Error("connect failed")
		return HostResult{
			Host:     host,
			Status:   StatusFailed,
			Err:      NewTransientError("connect failed", err).WithTask(task.Name).WithHost(host.Name),
			Duration: time.Since(start),
		}
	}
	if r.metrics != nil {
		r.metrics.RecordConnection(transport.Name(), "ok")
	}

	tc := &Context{
		Host:      host,
		Transport: transport,
		CMDB:      r.cmdb,
		Params:    params,
		Logger:    hostLogger,
		metrics:   r.metrics,
	}

	if err := task.Run(ctx, tc); err != nil {
		hostLogger.WithError(err).Error("task failed")
		return HostResult{Host: host, Status: StatusFailed, Err: err, Duration: time.Since(start)}
	}

	hostLogger.Debug("task finished")
	return HostResult{Host: host, Status: StatusSuccess, Duration: time.Since(start)}
}
