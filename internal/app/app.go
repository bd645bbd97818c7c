// Package app wires configuration into a running engine: storage,
// pricing, rules, the evaluator, the orchestrator, and the collector
// factory the CLI and server share.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/cloudvigil/cloudvigil/pkg/catalog"
	"github.com/cloudvigil/cloudvigil/pkg/collect"
	"github.com/cloudvigil/cloudvigil/pkg/config"
	"github.com/cloudvigil/cloudvigil/pkg/detect"
	"github.com/cloudvigil/cloudvigil/pkg/findings"
	"github.com/cloudvigil/cloudvigil/pkg/inventory"
	"github.com/cloudvigil/cloudvigil/pkg/policy"
	"github.com/cloudvigil/cloudvigil/pkg/pricing"
	"github.com/cloudvigil/cloudvigil/pkg/rules"
	"github.com/cloudvigil/cloudvigil/pkg/scan"
	"github.com/cloudvigil/cloudvigil/pkg/storage"
	"github.com/cloudvigil/cloudvigil/pkg/telemetry"
	"github.com/cloudvigil/cloudvigil/pkg/version"

	awsadapter "github.com/cloudvigil/cloudvigil/pkg/adapters/aws"
)

// App is the assembled engine.
type App struct {
	Config       config.Config
	Logger       *slog.Logger
	Catalog      *catalog.Catalog
	Rules        *rules.Store
	Findings     *findings.Store
	Orchestrator *scan.Orchestrator

	shutdownTracing func(context.Context) error
}

// New builds the engine from configuration.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	level := slog.LevelInfo
	logger := telemetry.NewLogger(os.Stderr, level)
	slog.SetDefault(logger)

	var shutdown func(context.Context) error
	if !cfg.Telemetry.Disabled {
		var err error
		shutdown, err = telemetry.Init(ctx, version.AppName, version.Current, cfg.Telemetry.OTLPEndpoint)
		if err != nil {
			logger.Warn("telemetry init failed", "error", err)
		}
	}

	blobs, err := newBlobStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	cat := catalog.Builtin()
	if cfg.Policies.File != "" {
		if err := registerPolicies(cat, cfg.Policies.File, logger); err != nil {
			return nil, err
		}
	}
	ruleStore := rules.NewStore(cat.Defaults(), blobs)
	findingStore := findings.NewStore(blobs, logger)

	prices, err := newPriceSource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	eval := detect.NewEvaluator(cat, prices, logger)
	orch := scan.NewOrchestrator(cat, ruleStore, eval, findingStore, logger,
		scan.WithConcurrency(cfg.Scan.Concurrency))

	return &App{
		Config:          cfg,
		Logger:          logger,
		Catalog:         cat,
		Rules:           ruleStore,
		Findings:        findingStore,
		Orchestrator:    orch,
		shutdownTracing: shutdown,
	}, nil
}

// Close flushes telemetry.
func (a *App) Close(ctx context.Context) {
	if a.shutdownTracing != nil {
		if err := a.shutdownTracing(ctx); err != nil {
			a.Logger.Warn("telemetry shutdown failed", "error", err)
		}
	}
}

// Account derives the scan target from configuration.
func (a *App) Account() scan.CloudAccount {
	return scan.CloudAccount{
		ID:       a.Config.Account.ID,
		TenantID: a.Config.Account.TenantID,
		Provider: inventory.Provider(a.Config.Account.Provider),
		Regions:  a.Config.Account.Regions,
	}
}

// Collectors builds the collector set for an account. Mock mode replaces
// the cloud adapters with the fabricated demo fleet.
func (a *App) Collectors(ctx context.Context, account scan.CloudAccount) ([]collect.Collector, error) {
	if a.Config.Scan.Mock {
		return collect.MockFleet(a.Config.Scan.MockSeed), nil
	}

	switch account.Provider {
	case inventory.ProviderAWS:
		// Collection-time thresholds come from the tenant's effective
		// rules, same as evaluation-time ones.
		bucketRule, err := a.Rules.EffectiveRule(ctx, account.TenantID, inventory.FamilyObjectBucket)
		if err != nil {
			return nil, err
		}
		opts := awsadapter.Options{
			RetryBudget:     a.Config.Scan.RetryBudget,
			StaleUploadDays: bucketRule.StaleUploadDays,
		}

		var out []collect.Collector
		regions := account.Regions
		if len(regions) == 0 {
			regions = []string{"us-east-1"}
		}
		for _, region := range regions {
			session, err := awsadapter.NewSession(ctx, region)
			if err != nil {
				return nil, err
			}
			out = append(out, awsadapter.Collectors(session, opts)...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("no collector adapter for provider %s", account.Provider)
	}
}

// registerPolicies compiles the custom scenario file and adds its
// scenarios to the catalog, after the built-ins of their families.
func registerPolicies(cat *catalog.Catalog, path string, logger *slog.Logger) error {
	specs, err := policy.LoadFile(path)
	if err != nil {
		return err
	}
	engine, err := policy.NewEngine()
	if err != nil {
		return err
	}
	scenarios, err := engine.CompileAll(specs)
	if err != nil {
		return fmt.Errorf("compiling policies from %s: %w", path, err)
	}

	// Register panics on programmer errors; tenant input gets checked
	// here so a bad policy file fails startup with an error instead.
	families := cat.Defaults()
	for _, s := range scenarios {
		if _, ok := families[s.Family()]; !ok {
			return fmt.Errorf("policy %s targets unknown family %q", s.Name(), s.Family())
		}
		if _, ok := cat.Scenario(s.Name()); ok {
			return fmt.Errorf("policy %s collides with an existing scenario name", s.Name())
		}
		cat.Register(s)
	}
	logger.Info("custom policies registered", "count", len(scenarios), "file", path)
	return nil
}

func newBlobStore(ctx context.Context, cfg config.StorageConfig) (storage.BlobStore, error) {
	switch cfg.Backend {
	case "s3":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading AWS config for s3 storage: %w", err)
		}
		return storage.NewS3Store(awsCfg, cfg.Bucket, cfg.Prefix), nil
	default:
		return storage.NewLocalStore(cfg.Dir), nil
	}
}

func newPriceSource(ctx context.Context, cfg config.Config) (pricing.Source, error) {
	if cfg.Pricing.Static || cfg.Scan.Mock {
		return pricing.NewCachedSource(pricing.DefaultStaticSource(), cfg.Pricing.CacheDir), nil
	}
	aws, err := pricing.NewAWSSource(ctx)
	if err != nil {
		return nil, err
	}
	return pricing.NewCachedSource(aws, cfg.Pricing.CacheDir), nil
}
