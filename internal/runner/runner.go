// File: internal/runner/runner.go
// Description: Schedules feature scenarios. Each scenario gets its own page,
// its own view of the selector cache file, and runs its steps strictly in
// order, aborting on the first failure. Scenarios themselves fan out through
// an errgroup bounded by the configured parallelism.
package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kestrelqa/kestrel/internal/browser"
	"github.com/kestrelqa/kestrel/internal/config"
	"github.com/kestrelqa/kestrel/internal/executor"
	"github.com/kestrelqa/kestrel/internal/feature"
	"github.com/kestrelqa/kestrel/internal/locator"
	"github.com/kestrelqa/kestrel/internal/selectorcache"
	"github.com/kestrelqa/kestrel/internal/steps"
)

// Browser creates fresh pages for scenarios.
type Browser interface {
	NewPage(ctx context.Context) (browser.Page, error)
}

// StepError identifies exactly which step of which scenario failed.
type StepError struct {
	Scenario string
	Step     string
	Line     int
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("scenario %q: step %q (line %d) failed: %v", e.Scenario, e.Step, e.Line, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// ScenarioResult is the outcome of one scenario.
type ScenarioResult struct {
	Name string
	// Completed counts the steps that succeeded before the scenario
	// finished or aborted.
	Completed int
	Duration  time.Duration
	Err       error
}

// Result is the outcome of a whole feature run.
type Result struct {
	RunID     string
	Feature   string
	Scenarios []ScenarioResult
}

// Failed reports whether any scenario ended in an error.
func (r Result) Failed() bool {
	for _, s := range r.Scenarios {
		if s.Err != nil {
			return true
		}
	}
	return false
}

// Runner executes feature files.
type Runner struct {
	browser  Browser
	resolver selectorcache.Resolver
	cfg      *config.Config
	logger   *zap.Logger
}

func New(b Browser, res selectorcache.Resolver, cfg *config.Config, logger *zap.Logger) *Runner {
	return &Runner{
		browser:  b,
		resolver: res,
		cfg:      cfg,
		logger:   logger.Named("runner"),
	}
}

// Run parses the feature file and executes every scenario in it. The
// returned Result always covers all scenarios; the error is non-nil when at
// least one of them failed.
func (r *Runner) Run(ctx context.Context, featurePath string) (Result, error) {
	scenarios, err := feature.ParseFile(featurePath)
	if err != nil {
		return Result{}, err
	}

	cacheDir, err := r.cfg.CacheDir()
	if err != nil {
		return Result{}, err
	}
	cachePath := selectorcache.PathFor(cacheDir, featurePath)

	res := Result{
		RunID:     uuid.NewString(),
		Feature:   featurePath,
		Scenarios: make([]ScenarioResult, len(scenarios)),
	}
	r.logger.Info("Starting feature run",
		zap.String("run_id", res.RunID),
		zap.String("feature", featurePath),
		zap.Int("scenarios", len(scenarios)),
		zap.Int("parallelism", r.cfg.Runner.Parallelism),
	)

	var g errgroup.Group
	g.SetLimit(r.cfg.Runner.Parallelism)
	for i, sc := range scenarios {
		g.Go(func() error {
			start := time.Now()
			completed, scErr := r.runScenario(ctx, sc, cachePath)
			res.Scenarios[i] = ScenarioResult{
				Name:      sc.Name,
				Completed: completed,
				Duration:  time.Since(start),
				Err:       scErr,
			}
			// A failed scenario never stops its siblings.
			return nil
		})
	}
	_ = g.Wait()

	var failed []string
	for _, s := range res.Scenarios {
		if s.Err != nil {
			failed = append(failed, s.Name)
		}
	}
	if len(failed) > 0 {
		return res, fmt.Errorf("%d of %d scenarios failed: %s",
			len(failed), len(res.Scenarios), strings.Join(failed, ", "))
	}
	return res, nil
}

// runScenario drives one scenario on a fresh page. Steps run in order; the
// first failure aborts the rest.
func (r *Runner) runScenario(ctx context.Context, sc feature.Scenario, cachePath string) (int, error) {
	logger := r.logger.With(zap.String("scenario", sc.Name))

	page, err := r.browser.NewPage(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to open a page for scenario %q: %w", sc.Name, err)
	}
	defer func() {
		if err := page.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("Failed to close page", zap.Error(err))
		}
	}()

	cache := selectorcache.New(cachePath, r.resolver, page.Snapshot, logger)
	exec := executor.New(page, r.cfg.Browser, logger)

	for i, step := range sc.Steps {
		if err := r.runStep(ctx, page, cache, exec, sc.Name, step); err != nil {
			logger.Error("Step failed, aborting scenario",
				zap.String("step", step.Text),
				zap.Int("line", step.Line),
				zap.Error(err),
			)
			return i, &StepError{Scenario: sc.Name, Step: step.Text, Line: step.Line, Err: err}
		}
		logger.Debug("Step completed", zap.String("step", step.Text))
	}
	return len(sc.Steps), nil
}

func (r *Runner) runStep(ctx context.Context, page browser.Page, cache *selectorcache.Cache, exec *executor.Executor, scenario string, step feature.Step) error {
	action, err := steps.Classify(step.Text)
	if err != nil {
		return err
	}

	var target locator.Target
	if action.Kind != steps.KindNavigate {
		raw, err := r.resolveLocator(ctx, page, cache, scenario, step.Text, action)
		if err != nil {
			return err
		}
		target = locator.Parse(raw)
	}

	if err := exec.Execute(ctx, target, action); err != nil {
		return err
	}
	return r.settle(ctx)
}

// resolveLocator obtains the step's locator, through the cache unless it is
// disabled, with the live-page check appropriate for the action kind.
func (r *Runner) resolveLocator(ctx context.Context, page browser.Page, cache *selectorcache.Cache, scenario, task string, action steps.Action) (string, error) {
	validate := r.validator(page, action)
	if !r.cfg.Cache.Disabled {
		return cache.Resolve(ctx, scenario, task, validate)
	}

	snapshot, err := page.Snapshot(ctx)
	if err != nil {
		return "", &selectorcache.ResolutionError{Task: task, Err: fmt.Errorf("failed to snapshot page: %w", err)}
	}
	raw, err := r.resolver.Resolve(ctx, task, snapshot)
	if err != nil {
		return "", &selectorcache.ResolutionError{Task: task, Err: err}
	}
	if err := validate(ctx, raw); err != nil {
		return "", &selectorcache.ResolutionError{Task: task, Err: err}
	}
	return raw, nil
}

// validator checks a locator against the live page: it must match at least
// one element in its frame, and for select steps the match must actually be
// a dropdown.
func (r *Runner) validator(page browser.Page, action steps.Action) selectorcache.Validator {
	return func(ctx context.Context, raw string) error {
		target := locator.Parse(raw)
		frame, err := page.Frame(ctx, target.Frames)
		if err != nil {
			return &selectorcache.ValidationError{Locator: raw, Reason: err.Error()}
		}
		n, err := frame.Count(ctx, target.Query)
		if err != nil {
			return &selectorcache.ValidationError{Locator: raw, Reason: err.Error()}
		}
		if n == 0 {
			return &selectorcache.ValidationError{Locator: raw, Reason: "matches no element on the page"}
		}

		if action.Kind != steps.KindSelect {
			return nil
		}
		el, err := frame.Element(ctx, target.Query)
		if err != nil {
			return &selectorcache.ValidationError{Locator: raw, Reason: err.Error()}
		}
		ok, err := executor.IsSelectable(ctx, el)
		if err != nil {
			return &selectorcache.ValidationError{Locator: raw, Reason: err.Error()}
		}
		if !ok {
			return &selectorcache.ValidationError{Locator: raw, Reason: "element is not a selectable control"}
		}
		return nil
	}
}

func (r *Runner) settle(ctx context.Context) error {
	d := r.cfg.Browser.SettleDelay
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
