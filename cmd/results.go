package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/shopflow/internal/browser"
	"github.com/xkilldash9x/shopflow/internal/browser/pwadapter"
	"github.com/xkilldash9x/shopflow/internal/config"
	"github.com/xkilldash9x/shopflow/internal/reporting"
	"github.com/xkilldash9x/shopflow/internal/results"
	"github.com/xkilldash9x/shopflow/internal/store"
)

// Injection points for tests.
var (
	newLauncher = func(logger *zap.Logger) browser.Launcher {
		return pwadapter.New(logger)
	}
	openPool = func(ctx context.Context, url string) (store.DBPool, func(), error) {
		pool, err := pgxpool.New(ctx, url)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return pool, pool.Close, nil
	}
	installBrowsers = pwadapter.Install
)

// withResults starts the results pipeline with the configured sinks, hands its
// bus to fn and drains everything once fn returns.
func withResults(ctx context.Context, cfg *config.Config, logger *zap.Logger, fn func(results.Publisher) error) (err error) {
	reporter, err := reporting.New(cfg.Results.Format, cfg.Results.Output, Version)
	if err != nil {
		return err
	}
	sinks := []results.Sink{reporter}

	closePool := func() {}
	if cfg.Results.DatabaseURL != "" {
		pool, cleanup, err := openPool(ctx, cfg.Results.DatabaseURL)
		if err != nil {
			reporter.Close()
			return err
		}
		closePool = cleanup

		st, err := store.New(ctx, pool, logger)
		if err == nil {
			err = st.EnsureSchema(ctx)
		}
		if err != nil {
			closePool()
			reporter.Close()
			return err
		}
		sinks = append(sinks, st)
	}

	bus := results.NewBus(logger, cfg.Results.BufferSize)
	pipeline := results.NewPipeline(bus, logger, sinks...)
	pipeline.Start(context.WithoutCancel(ctx))

	runErr := fn(bus)

	bus.Shutdown()
	sinkErr := pipeline.Wait()
	closeErr := reporter.Close()
	closePool()

	if sinkErr != nil || closeErr != nil {
		logger.Error("Failed to record results", zap.Error(errors.Join(sinkErr, closeErr)))
	}
	return errors.Join(runErr, sinkErr, closeErr)
}
