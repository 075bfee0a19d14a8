package migration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mattstruble/portainer-swarm-migrate/internal/portainer"
)

// API is the slice of the Portainer client the runner drives. Satisfied by
// *portainer.Client; faked in tests.
type API interface {
	ListEndpoints(ctx context.Context) ([]portainer.Endpoint, error)
	EndpointClusterID(ctx context.Context, endpointID int) (string, error)
	ListStacks(ctx context.Context) ([]portainer.Stack, error)
	GetStack(ctx context.Context, stackID int) (portainer.Stack, error)
	StopStack(ctx context.Context, st portainer.Stack) error
	StartStack(ctx context.Context, st portainer.Stack, targetEndpointID int, targetClusterID string) error
}

// Phase tracks how far a migration task has progressed.
type Phase int

const (
	PhaseDiscovered Phase = iota
	PhaseStopped
	PhaseRetargeted
	PhaseStarted
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseDiscovered:
		return "discovered"
	case PhaseStopped:
		return "stopped"
	case PhaseRetargeted:
		return "retargeted"
	case PhaseStarted:
		return "started"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	}
	return "unknown"
}

// Task is the per-orphan migration state, created at the start of a run and
// discarded at the end.
type Task struct {
	ID     string
	Orphan Orphan
	Phase  Phase
	Target portainer.Endpoint
}

// Options configures a Runner.
type Options struct {
	// TargetClusterID is the swarm cluster stacks should end up on.
	TargetClusterID string
	// Workers bounds concurrent per-stack migrations. Defaults to 4.
	Workers int
	// StopWait bounds how long a stack may take to settle into inactive
	// after a stop call. Defaults to 10s.
	StopWait time.Duration
	// PollInterval is the stop-settle polling cadence. Defaults to 1s.
	PollInterval time.Duration
	// Policy selects the target endpoint per stack. Defaults to LeastLoaded.
	Policy SelectionPolicy
	Logger *zap.Logger
}

// Runner drives orphaned stacks through stop, retarget, start. Each stack is
// processed independently: one failure never blocks the rest of the batch.
type Runner struct {
	api  API
	opts Options
	log  *zap.Logger
}

// NewRunner creates a Runner.
func NewRunner(api API, opts Options) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.StopWait <= 0 {
		opts.StopWait = 10 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{api: api, opts: opts, log: log}
}

// Inventory is the discovery snapshot a run works from.
type Inventory struct {
	Endpoints         []portainer.Endpoint
	ClusterByEndpoint map[int]string
	Stacks            []portainer.Stack
	Orphans           []Orphan
	TargetEndpoints   []portainer.Endpoint
}

// Discover reads the current state from the dashboard: endpoints, their
// cluster membership, the stack inventory, and the orphans among them. It
// mutates nothing, so it also backs the dry-run surface.
func (r *Runner) Discover(ctx context.Context) (*Inventory, error) {
	endpoints, err := r.api.ListEndpoints(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing endpoints: %w", err)
	}

	clusterByEndpoint := make(map[int]string, len(endpoints))
	for _, ep := range endpoints {
		clusterID, err := r.api.EndpointClusterID(ctx, ep.ID)
		if err != nil {
			r.log.Warn("endpoint cluster unresolved",
				zap.Int("endpoint", ep.ID),
				zap.String("name", ep.Name),
				zap.Error(err))
			continue
		}
		clusterByEndpoint[ep.ID] = clusterID
	}

	stacks, err := r.api.ListStacks(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing stacks: %w", err)
	}

	inv := &Inventory{
		Endpoints:         endpoints,
		ClusterByEndpoint: clusterByEndpoint,
		Stacks:            stacks,
		Orphans:           FindOrphans(stacks, clusterByEndpoint, r.opts.TargetClusterID),
	}
	for _, ep := range endpoints {
		if clusterByEndpoint[ep.ID] == r.opts.TargetClusterID {
			inv.TargetEndpoints = append(inv.TargetEndpoints, ep)
		}
	}
	return inv, nil
}

// Run performs one migration pass and returns the per-stack report. The
// returned error is non-nil only when the run could not start at all;
// per-stack failures land in the report instead.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	inv, err := r.Discover(ctx)
	if err != nil {
		return nil, err
	}

	report := NewReport()
	r.log.Info("run starting",
		zap.String("run", report.RunID),
		zap.String("cluster", r.opts.TargetClusterID),
		zap.Int("stacks", len(inv.Stacks)),
		zap.Int("orphans", len(inv.Orphans)))

	orphaned := make(map[int]bool, len(inv.Orphans))
	for _, o := range inv.Orphans {
		orphaned[o.Stack.ID] = true
	}
	for _, st := range inv.Stacks {
		if !orphaned[st.ID] {
			report.Add(Record{
				StackName: st.Name,
				Outcome:   OutcomeSkipped,
				Reason:    "already on target cluster",
			})
		}
	}

	if len(inv.Orphans) == 0 {
		r.log.Info("no orphaned stacks found")
		return report, nil
	}

	if len(inv.TargetEndpoints) == 0 {
		return nil, fmt.Errorf("no endpoints belong to target cluster %s", r.opts.TargetClusterID)
	}

	// Load snapshot for target selection, taken once before the batch.
	loads := make(map[int]int, len(inv.TargetEndpoints))
	for _, st := range inv.Stacks {
		loads[st.EndpointID]++
	}
	planner := NewPlanner(inv.TargetEndpoints, loads, r.opts.Policy)

	tasks := make(chan *Task)
	var wg sync.WaitGroup
	for i := 0; i < r.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range tasks {
				r.migrate(ctx, task, planner, report)
			}
		}()
	}
	for _, o := range inv.Orphans {
		tasks <- &Task{ID: uuid.New().String(), Orphan: o, Phase: PhaseDiscovered}
	}
	close(tasks)
	wg.Wait()

	r.log.Info("run finished", zap.String("run", report.RunID))
	return report, nil
}

// migrate drives one task through stop, retarget, start. Failures are
// recorded against this stack only; there is no rollback, because the source
// cluster is assumed retired.
func (r *Runner) migrate(ctx context.Context, task *Task, planner *Planner, report *Report) {
	st := task.Orphan.Stack
	log := r.log.With(
		zap.String("task", task.ID),
		zap.String("stack", st.Name),
		zap.Int("endpoint", st.EndpointID))
	log.Info("migrating stack")

	if err := r.stopAndSettle(ctx, st, log); err != nil {
		task.Phase = PhaseFailed
		report.Add(Record{
			StackName: st.Name,
			Outcome:   OutcomeFailed,
			Reason:    fmt.Sprintf("stop failed: %v", err),
		})
		log.Error("stop failed", zap.Error(err))
		return
	}
	task.Phase = PhaseStopped

	target, err := planner.Next()
	if err != nil {
		task.Phase = PhaseFailed
		report.Add(Record{
			StackName:         st.Name,
			Outcome:           OutcomeFailed,
			Reason:            fmt.Sprintf("start failed: %v", err),
			StoppedNotStarted: true,
		})
		log.Error("no target endpoint", zap.Error(err))
		return
	}
	task.Target = target
	task.Phase = PhaseRetargeted

	if err := r.api.StartStack(ctx, st, target.ID, r.opts.TargetClusterID); err != nil {
		task.Phase = PhaseFailed
		report.Add(Record{
			StackName:         st.Name,
			Outcome:           OutcomeFailed,
			Reason:            fmt.Sprintf("start failed: %v", err),
			StoppedNotStarted: true,
		})
		log.Error("start failed", zap.Int("target", target.ID), zap.Error(err))
		return
	}
	task.Phase = PhaseDone

	report.Add(Record{StackName: st.Name, Outcome: OutcomeDone})
	log.Info("stack migrated", zap.Int("target", target.ID))
}

// stopAndSettle stops the stack and waits until the dashboard reports it
// inactive, re-issuing the stop on each poll. Stacks can take a few seconds
// to wind down; a stack still active after the window is a stop failure.
func (r *Runner) stopAndSettle(ctx context.Context, st portainer.Stack, log *zap.Logger) error {
	if err := r.api.StopStack(ctx, st); err != nil {
		return err
	}

	deadline := time.Now().Add(r.opts.StopWait)
	for {
		current, err := r.api.GetStack(ctx, st.ID)
		if err != nil {
			log.Warn("could not read stack status", zap.Error(err))
		} else if !current.Active() {
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("stack still active after %s", r.opts.StopWait)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.opts.PollInterval):
		}

		if err := r.api.StopStack(ctx, st); err != nil {
			log.Warn("re-issuing stop failed", zap.Error(err))
		}
	}
}
