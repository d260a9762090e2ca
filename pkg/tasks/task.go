package tasks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/adjust/Rex/pkg/cmdb"
	"github.com/adjust/Rex/pkg/inventory"
	"github.com/adjust/Rex/pkg/telemetry"
	"github.com/adjust/Rex/pkg/transports"
)

// Func is the body of a task, executed once per host.
type Func func(ctx context.Context, tc *Context) error

// Task is a named unit of automation.
type Task struct {
	// Name identifies the task in the registry and in reports.
	Name string

	// Description is shown in task listings.
	Description string

	// Run is the task body.
	Run Func

	// Parallelism bounds concurrent host executions for this task.
	// Zero falls back to the runner default.
	Parallelism int
}

// Context is what a task body gets to work with on one host.
type Context struct {
	// Host is the execution target.
	Host inventory.Host

	// Transport is the established connection to the host.
	Transport transports.Transport

	// CMDB resolves configuration data. Nil when the runner has none.
	CMDB *cmdb.CMDB

	// Params are caller-supplied task parameters.
	Params map[string]string

	// Logger carries run and host fields.
	Logger *telemetry.Logger

	metrics *telemetry.Metrics
}

// Exec runs a command on the task's host.
func (tc *Context) Exec(ctx context.Context, cmd string) (*transports.ExecResult, error) {
	if tc.metrics != nil {
		tc.metrics.RecordCommand(tc.Transport.Name())
	}
	return tc.Transport.Exec(ctx, cmd)
}

// Lookup resolves a CMDB item for the task's host.
func (tc *Context) Lookup(item string) (any, bool, error) {
	if tc.CMDB == nil {
		return nil, false, fmt.Errorf("no cmdb configured")
	}
	v, ok, err := tc.CMDB.Get(item, tc.Host.Name)
	if tc.metrics != nil {
		status := "resolved"
		switch {
		case err != nil:
			status = "error"
		case !ok:
			status = "miss"
		}
		tc.metrics.RecordCMDBLookup(status)
	}
	return v, ok, err
}

// Param returns a task parameter with a fallback.
func (tc *Context) Param(name, fallback string) string {
	if v, ok := tc.Params[name]; ok {
		return v
	}
	return fallback
}

// Registry holds the registered tasks.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewRegistry creates an empty task registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]*Task)}
}

// Register adds a task. Registering an existing name is an error; tasks
// are declared once, at startup.
func (r *Registry) Register(task *Task) error {
	if task.Name == "" {
		return NewPermanentError("task name is required", nil)
	}
	if task.Run == nil {
		return NewPermanentError("task has no body", nil).WithTask(task.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tasks[task.Name]; exists {
		return NewPermanentError("task already registered", nil).WithTask(task.Name)
	}
	r.tasks[task.Name] = task
	return nil
}

// Get returns a task by name.
func (r *Registry) Get(name string) (*Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[name]
	return t, ok
}

// List returns all tasks sorted by name.
func (r *Registry) List() []*Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
