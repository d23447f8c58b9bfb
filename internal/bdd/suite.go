// Package bdd maps the Gherkin phrases of the purchase feature onto journey
// steps and runs them with godog. Every scenario gets a fresh driver and
// releases the browser session when it ends.
package bdd

import (
	"context"
	"embed"
	"io"
	"sync"
	"testing"

	"github.com/cucumber/godog"
	"go.uber.org/zap"

	"github.com/xkilldash9x/shopflow/internal/config"
	"github.com/xkilldash9x/shopflow/internal/journey"
	"github.com/xkilldash9x/shopflow/internal/observability"
	"github.com/xkilldash9x/shopflow/internal/results"
)

// Features holds the bundled feature files.
//
//go:embed features/*.feature
var Features embed.FS

// Options selects what the suite runs and how it reports.
type Options struct {
	// Paths are feature files or directories on disk. Empty runs the bundled features.
	Paths  []string
	Format string
	Tags   string
	Output io.Writer
	// TestingT runs every scenario as a subtest of t.
	TestingT *testing.T
}

// Suite runs feature files against the store.
type Suite struct {
	cfg       *config.Config
	session   journey.Session
	publisher results.Publisher
	logger    *zap.Logger
	opts      []journey.Option

	mu        sync.Mutex
	scenarios []*scenario
}

// NewSuite creates a suite. publisher may be nil.
func NewSuite(cfg *config.Config, session journey.Session, publisher results.Publisher, logger *zap.Logger, opts ...journey.Option) *Suite {
	return &Suite{
		cfg:       cfg,
		session:   session,
		publisher: publisher,
		logger:    logger.Named(observability.ComponentBDD),
		opts:      opts,
	}
}

// Run executes the features and returns godog's exit status: 0 when every
// scenario passed. Each scenario is published as one result run afterwards.
func (s *Suite) Run(ctx context.Context, opts Options) int {
	format := opts.Format
	if format == "" {
		format = "pretty"
	}
	godogOpts := &godog.Options{
		Format:         format,
		Tags:           opts.Tags,
		Output:         opts.Output,
		TestingT:       opts.TestingT,
		Strict:         true,
		Concurrency:    1,
		DefaultContext: ctx,
	}
	if len(opts.Paths) == 0 {
		godogOpts.FS = Features
		godogOpts.Paths = []string{"features"}
	} else {
		godogOpts.Paths = opts.Paths
	}

	suite := godog.TestSuite{
		Name:                "shopflow",
		ScenarioInitializer: s.InitializeScenario,
		Options:             godogOpts,
	}
	status := suite.Run()
	s.publish(ctx)
	s.logger.Info("Feature run finished.", zap.Int("status", status), zap.Strings("paths", godogOpts.Paths))
	return status
}
