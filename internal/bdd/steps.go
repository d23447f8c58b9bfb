package bdd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cucumber/godog"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/shopflow/internal/journey"
	"github.com/xkilldash9x/shopflow/internal/observability"
	"github.com/xkilldash9x/shopflow/internal/results"
)

// Phrase budgets. Navigation-heavy phrases get the longer one.
const (
	stepBudget       = 30 * time.Second
	navigationBudget = 60 * time.Second
)

const postTimeout = 5 * time.Second

type scenarioKey struct{}

// scenario is the per-scenario state carried in the step context.
type scenario struct {
	runID    string
	pickle   *godog.Scenario
	driver   *journey.Driver
	started  time.Time
	finished time.Time
	err      error

	stepStarted time.Time
	// recorded holds step outcomes by pickle step id.
	recorded map[string]results.StepResult
}

func scenarioFrom(ctx context.Context) (*scenario, error) {
	sc, ok := ctx.Value(scenarioKey{}).(*scenario)
	if !ok {
		return nil, errors.New("no scenario state in step context")
	}
	return sc, nil
}

// InitializeScenario registers the phrases and hooks of one scenario.
func (s *Suite) InitializeScenario(sc *godog.ScenarioContext) {
	sc.Before(s.beforeScenario)
	sc.After(s.afterScenario)
	sc.StepContext().Before(s.beforeStep)
	sc.StepContext().After(s.afterStep)

	sc.Step(`^the store catalog lists at least (\d+) products$`, s.catalogListsAtLeast)
	sc.Step(`^I log in as "([^"]*)" with password "([^"]*)"$`, s.logIn)
	sc.Step(`^logging in as "([^"]*)" with password "([^"]*)" is rejected with "([^"]*)"$`, s.logInRejected)
	sc.Step(`^I open the product "([^"]*)"$`, s.openProduct)
	sc.Step(`^I add it to the cart and the store confirms with "([^"]*)"$`, s.addToCart)
	sc.Step(`^I check out with:$`, s.checkOut)
	sc.Step(`^I place the order$`, s.placeOrder)
	sc.Step(`^I see the confirmation "([^"]*)"$`, s.seeConfirmation)
}

func (s *Suite) beforeScenario(ctx context.Context, gs *godog.Scenario) (context.Context, error) {
	runID := uuid.New().String()
	state := &scenario{
		runID:    runID,
		pickle:   gs,
		started:  time.Now().UTC(),
		recorded: make(map[string]results.StepResult),
		driver: journey.NewDriver(s.cfg, s.session, s.logger.With(observability.RunID(runID)),
			append([]journey.Option{journey.WithArtifactPrefix(runID)}, s.opts...)...),
	}

	s.mu.Lock()
	s.scenarios = append(s.scenarios, state)
	s.mu.Unlock()

	s.logger.Info("Scenario started.", zap.String("scenario", gs.Name), observability.RunID(runID))
	return context.WithValue(ctx, scenarioKey{}, state), nil
}

func (s *Suite) afterScenario(ctx context.Context, gs *godog.Scenario, err error) (context.Context, error) {
	s.session.Release(context.WithoutCancel(ctx))

	if state, stateErr := scenarioFrom(ctx); stateErr == nil {
		state.err = err
		state.finished = time.Now().UTC()
	}
	s.logger.Info("Scenario finished.", zap.String("scenario", gs.Name), zap.Error(err))
	return ctx, nil
}

func (s *Suite) beforeStep(ctx context.Context, _ *godog.Step) (context.Context, error) {
	if state, err := scenarioFrom(ctx); err == nil {
		state.stepStarted = time.Now()
	}
	return ctx, nil
}

func (s *Suite) afterStep(ctx context.Context, st *godog.Step, status godog.StepResultStatus, err error) (context.Context, error) {
	state, stateErr := scenarioFrom(ctx)
	if stateErr != nil {
		return ctx, nil
	}

	res := results.StepResult{
		RunID:   state.runID,
		Step:    st.Text,
		Started: state.stepStarted.UTC(),
	}
	switch status {
	case godog.StepPassed:
		res.Status = results.StatusPassed
		res.Duration = time.Since(state.stepStarted)
	case godog.StepFailed:
		res.Status = results.StatusFailed
		res.Duration = time.Since(state.stepStarted)
		if err != nil {
			res.Error = err.Error()
		}
		var sf *journey.StepFailure
		if errors.As(err, &sf) {
			res.Expectation = sf.Expectation
			res.Screenshot = sf.Screenshot
		}
	default:
		res.Status = results.StatusSkipped
	}
	state.recorded[st.Id] = res
	return ctx, nil
}

// publish posts every scenario of the last run as one result run, steps in
// feature order. Steps godog never reported, or that followed a failure, are skipped.
func (s *Suite) publish(ctx context.Context) {
	s.mu.Lock()
	scenarios := s.scenarios
	s.scenarios = nil
	s.mu.Unlock()

	for _, sc := range scenarios {
		s.post(ctx, results.KindRunStarted, results.RunStarted{
			RunID:    sc.runID,
			Scenario: sc.pickle.Name,
			BaseURL:  s.cfg.Target.BaseURL,
			Browser:  s.cfg.Browser.Channel,
			Started:  sc.started,
		})

		status := results.StatusPassed
		if sc.err != nil {
			status = results.StatusFailed
		}
		failed := false
		for i, step := range sc.pickle.Steps {
			res, ok := sc.recorded[step.Id]
			if !ok || (failed && res.Status != results.StatusFailed) {
				res = results.StepResult{RunID: sc.runID, Step: step.Text, Status: results.StatusSkipped}
			}
			res.Index = i
			if res.Status == results.StatusFailed {
				failed = true
				status = results.StatusFailed
			}
			s.post(ctx, results.KindStepFinished, res)
		}

		finished := sc.finished
		if finished.IsZero() {
			finished = time.Now().UTC()
		}
		s.post(ctx, results.KindRunFinished, results.RunFinished{RunID: sc.runID, Status: status, Finished: finished})
	}
}

// withDriver runs fn against the scenario's driver within budget.
func withDriver(ctx context.Context, budget time.Duration, fn func(context.Context, *journey.Driver) error) error {
	state, err := scenarioFrom(ctx)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()
	return fn(ctx, state.driver)
}

func (s *Suite) catalogListsAtLeast(ctx context.Context, min int) error {
	return withDriver(ctx, navigationBudget, func(ctx context.Context, d *journey.Driver) error {
		_, err := d.ValidateCatalog(ctx, min)
		return err
	})
}

func (s *Suite) logIn(ctx context.Context, username, password string) error {
	return withDriver(ctx, navigationBudget, func(ctx context.Context, d *journey.Driver) error {
		return d.Authenticate(ctx, journey.Credentials{Username: username, Password: password})
	})
}

func (s *Suite) logInRejected(ctx context.Context, username, password, message string) error {
	return withDriver(ctx, navigationBudget, func(ctx context.Context, d *journey.Driver) error {
		err := d.Authenticate(ctx, journey.Credentials{Username: username, Password: password})
		switch {
		case err == nil:
			return fmt.Errorf("login as %q was accepted", username)
		case !errors.Is(err, journey.ErrLoginRejected):
			return err
		case !strings.Contains(strings.ToLower(err.Error()), strings.ToLower(message)):
			return fmt.Errorf("login was rejected for another reason: %w", err)
		}
		return nil
	})
}

func (s *Suite) openProduct(ctx context.Context, product string) error {
	return withDriver(ctx, stepBudget, func(ctx context.Context, d *journey.Driver) error {
		return d.SelectProduct(ctx, product)
	})
}

func (s *Suite) addToCart(ctx context.Context, message string) error {
	return withDriver(ctx, stepBudget, func(ctx context.Context, d *journey.Driver) error {
		return d.AddToCart(ctx, message)
	})
}

func (s *Suite) checkOut(ctx context.Context, table *godog.Table) error {
	details, err := checkoutFromTable(table)
	if err != nil {
		return err
	}
	return withDriver(ctx, stepBudget, func(ctx context.Context, d *journey.Driver) error {
		return d.FillCheckout(ctx, details)
	})
}

func (s *Suite) placeOrder(ctx context.Context) error {
	return withDriver(ctx, stepBudget, func(ctx context.Context, d *journey.Driver) error {
		return d.SubmitOrder(ctx)
	})
}

func (s *Suite) seeConfirmation(ctx context.Context, title string) error {
	return withDriver(ctx, stepBudget, func(ctx context.Context, d *journey.Driver) error {
		return d.Confirm(ctx, title)
	})
}

// checkoutFromTable reads a two-column field/value table.
func checkoutFromTable(table *godog.Table) (journey.CheckoutDetails, error) {
	var details journey.CheckoutDetails
	if table == nil {
		return details, errors.New("checkout table is missing")
	}
	fields := map[string]*string{
		"name":    &details.Name,
		"country": &details.Country,
		"city":    &details.City,
		"card":    &details.Card,
		"month":   &details.Month,
		"year":    &details.Year,
	}
	for i, row := range table.Rows {
		if len(row.Cells) != 2 {
			return details, fmt.Errorf("checkout table row %d has %d cells, want 2", i+1, len(row.Cells))
		}
		key := strings.ToLower(strings.TrimSpace(row.Cells[0].Value))
		dst, ok := fields[key]
		if !ok {
			return details, fmt.Errorf("unknown checkout field %q", key)
		}
		*dst = strings.TrimSpace(row.Cells[1].Value)
	}
	return details, nil
}

func (s *Suite) post(ctx context.Context, kind results.Kind, payload any) {
	if s.publisher == nil {
		return
	}
	postCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), postTimeout)
	defer cancel()
	if err := s.publisher.Post(postCtx, kind, payload); err != nil {
		s.logger.Warn("Failed to publish result.", zap.String("kind", string(kind)), zap.Error(err))
	}
}
