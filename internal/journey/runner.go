package journey

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/shopflow/internal/browser"
	"github.com/xkilldash9x/shopflow/internal/config"
	"github.com/xkilldash9x/shopflow/internal/observability"
	"github.com/xkilldash9x/shopflow/internal/results"
)

// ScenarioPurchase is the scenario name reported for a full run.
const ScenarioPurchase = "purchase"

// postTimeout bounds each result publication, also after the run context ended.
const postTimeout = 5 * time.Second

// Session is the browser chain a run borrows. *browser.Manager implements it.
type Session interface {
	PageSource
	Release(ctx context.Context)
}

// Report is the outcome of one run.
type Report struct {
	RunID  string
	Status results.Status
	Steps  []results.StepResult
}

// Runner executes the purchase journey end to end and publishes one event per step.
type Runner struct {
	cfg       *config.Config
	session   Session
	publisher results.Publisher
	fixtures  Fixtures
	logger    *zap.Logger
	opts      []Option
}

// NewRunner creates a runner using the configured fixtures.
func NewRunner(cfg *config.Config, session Session, publisher results.Publisher, logger *zap.Logger, opts ...Option) *Runner {
	return &Runner{
		cfg:       cfg,
		session:   session,
		publisher: publisher,
		fixtures:  FixturesFromConfig(cfg.Fixtures),
		logger:    logger,
		opts:      opts,
	}
}

type plannedStep struct {
	step Step
	exec func(context.Context) error
}

func (r *Runner) plan(d *Driver) []plannedStep {
	fx := r.fixtures
	var steps []plannedStep
	if r.cfg.Target.CatalogFragment != "" {
		steps = append(steps, plannedStep{StepValidateCatalog, func(ctx context.Context) error {
			_, err := d.ValidateCatalog(ctx, fx.MinProducts)
			return err
		}})
	}
	return append(steps,
		plannedStep{StepAuthenticate, func(ctx context.Context) error { return d.Authenticate(ctx, fx.Credentials) }},
		plannedStep{StepSelectProduct, func(ctx context.Context) error { return d.SelectProduct(ctx, fx.Product) }},
		plannedStep{StepAddToCart, func(ctx context.Context) error { return d.AddToCart(ctx, fx.AddedMessage) }},
		plannedStep{StepFillCheckout, func(ctx context.Context) error { return d.FillCheckout(ctx, fx.Checkout) }},
		plannedStep{StepSubmitOrder, d.SubmitOrder},
		plannedStep{StepConfirmOrder, func(ctx context.Context) error { return d.Confirm(ctx, fx.ConfirmationTitle) }},
	)
}

// Run executes every step in order. After the first failure the remaining
// steps are reported as skipped and the failure is returned. The browser
// session is released before Run returns, even when ctx was cancelled.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	runID := uuid.New().String()
	logger := r.logger.With(observability.RunID(runID))
	driver := NewDriver(r.cfg, r.session, logger, append([]Option{WithArtifactPrefix(runID)}, r.opts...)...)
	defer r.session.Release(context.WithoutCancel(ctx))

	logger.Info("Starting purchase journey.", zap.String("base_url", r.cfg.Target.BaseURL))
	r.post(ctx, results.KindRunStarted, results.RunStarted{
		RunID:    runID,
		Scenario: ScenarioPurchase,
		BaseURL:  r.cfg.Target.BaseURL,
		Browser:  r.cfg.Browser.Channel,
		Started:  time.Now().UTC(),
	})

	report := &Report{RunID: runID, Status: results.StatusPassed}
	var firstErr error
	for i, ps := range r.plan(driver) {
		res := results.StepResult{RunID: runID, Index: i, Step: string(ps.step), Started: time.Now().UTC()}
		switch {
		case firstErr != nil:
			res.Status = results.StatusSkipped
		default:
			err := ps.exec(ctx)
			res.Duration = time.Since(res.Started)
			if err != nil {
				firstErr = err
				report.Status = results.StatusFailed
				res.Status = results.StatusFailed
				res.Error = err.Error()
				var sf *StepFailure
				if errors.As(err, &sf) {
					res.Expectation = sf.Expectation
					res.Screenshot = sf.Screenshot
				}
			} else {
				res.Status = results.StatusPassed
			}
		}
		report.Steps = append(report.Steps, res)
		r.post(ctx, results.KindStepFinished, res)
	}

	r.post(ctx, results.KindRunFinished, results.RunFinished{RunID: runID, Status: report.Status, Finished: time.Now().UTC()})
	switch {
	case browser.IsLifecycleFailure(firstErr):
		logger.Error("Browser session could not be acquired, run aborted.", zap.Error(firstErr))
	case firstErr != nil:
		logger.Error("Purchase journey failed.", zap.Error(firstErr))
	default:
		logger.Info("Purchase journey completed.")
	}
	return report, firstErr
}

// post publishes a result. Failures are logged; they never fail the run.
func (r *Runner) post(ctx context.Context, kind results.Kind, payload any) {
	if r.publisher == nil {
		return
	}
	postCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), postTimeout)
	defer cancel()
	if err := r.publisher.Post(postCtx, kind, payload); err != nil {
		r.logger.Warn("Failed to publish result.", zap.String("kind", string(kind)), zap.Error(err))
	}
}
