// Package tasks triggers the materializer and the execution engine on a cadence.
package tasks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/eddiefleurent/seasonal_trader/internal/execution"
	"github.com/eddiefleurent/seasonal_trader/internal/metrics"
	"github.com/eddiefleurent/seasonal_trader/internal/schedule"
	"github.com/eddiefleurent/seasonal_trader/internal/status"
)

const shutdownTimeout = 10 * time.Second

// Materializer reconciles windows against rules.
type Materializer interface {
	Reconcile(ctx context.Context, now time.Time) (schedule.Result, error)
}

// Executor runs one execution pass.
type Executor interface {
	RunPass(ctx context.Context) (execution.PassResult, error)
}

// Server is a background HTTP server.
type Server interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// Intervals sets the cadence of each pass.
type Intervals struct {
	Materialize time.Duration
	Execute     time.Duration
}

// Runner owns the pass loops and remembers the latest outcome of each pass.
type Runner struct {
	materializer Materializer
	executor     Executor
	server       Server
	intervals    Intervals
	logger       logrus.FieldLogger
	now          func() time.Time

	mu      sync.Mutex
	reports map[string]status.PassReport
}

// NewRunner creates a runner. server may be nil.
func NewRunner(m Materializer, e Executor, server Server, intervals Intervals, logger logrus.FieldLogger) *Runner {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Runner{
		materializer: m,
		executor:     e,
		server:       server,
		intervals:    intervals,
		logger:       logger,
		now:          time.Now,
		reports:      make(map[string]status.PassReport),
	}
}

// SetServer attaches a server that Run starts and shuts down with the loops.
func (r *Runner) SetServer(s Server) {
	r.server = s
}

// Materialize runs one materialization pass at the current wall-clock time.
func (r *Runner) Materialize(ctx context.Context) (schedule.Result, error) {
	started := r.now()
	res, err := r.materializer.Reconcile(ctx, started.UTC())
	r.record(metrics.PassMaterialize, started, res, err)
	if err != nil {
		r.logger.WithError(err).Error("Materialization pass failed")
	}
	return res, err
}

// Execute runs one execution pass.
func (r *Runner) Execute(ctx context.Context) (execution.PassResult, error) {
	started := r.now()
	res, err := r.executor.RunPass(ctx)
	r.record(metrics.PassExecute, started, res, err)
	if err != nil {
		r.logger.WithError(err).Error("Execution pass failed")
	}
	return res, err
}

func (r *Runner) record(pass string, started time.Time, result interface{}, err error) {
	report := status.PassReport{
		Pass:       pass,
		StartedAt:  started.UTC(),
		FinishedAt: r.now().UTC(),
		Result:     result,
	}
	if err != nil {
		report.Error = err.Error()
	}
	r.mu.Lock()
	r.reports[pass] = report
	r.mu.Unlock()
}

// LastPasses returns the latest report per pass, ordered by pass name
func (r *Runner) LastPasses() []status.PassReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]status.PassReport, 0, len(r.reports))
	for _, rep := range r.reports {
		out = append(out, rep)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pass < out[j].Pass })
	return out
}

// Run materializes once, then runs both pass loops (and the server, if any)
// until ctx is canceled. A pass already underway when ctx is canceled runs to
// completion.
func (r *Runner) Run(ctx context.Context) error {
	passCtx := context.WithoutCancel(ctx)

	// Windows exist before the first execution pass looks for them.
	_, _ = r.Materialize(passCtx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r.loop(gctx, "materialize", r.intervals.Materialize, false, func() {
			_, _ = r.Materialize(passCtx)
		})
		return nil
	})
	g.Go(func() error {
		r.loop(gctx, "execute", r.intervals.Execute, true, func() {
			_, _ = r.Execute(passCtx)
		})
		return nil
	})

	if r.server != nil {
		g.Go(r.server.Start)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return r.server.Shutdown(shutdownCtx)
		})
	}

	err := g.Wait()
	r.logger.Info("Runner stopped")
	return err
}

func (r *Runner) loop(ctx context.Context, name string, every time.Duration, runFirst bool, pass func()) {
	log := r.logger.WithField("pass", name)
	log.WithField("interval", every).Info("Starting pass loop")

	// Run immediately on start
	if runFirst {
		pass()
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pass()
		}
	}
}
