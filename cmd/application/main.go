package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/developkariyer/IWApim/config"
	"github.com/developkariyer/IWApim/internal/core"
	"github.com/developkariyer/IWApim/internal/core/models"
	"github.com/developkariyer/IWApim/internal/currency"
	"github.com/developkariyer/IWApim/internal/importer"
	"github.com/developkariyer/IWApim/internal/marketplaces"
	"github.com/developkariyer/IWApim/internal/marketplaces/connector"
	"github.com/developkariyer/IWApim/internal/media"
	"github.com/developkariyer/IWApim/internal/runner"
	"github.com/developkariyer/IWApim/internal/storage"
	"github.com/developkariyer/IWApim/internal/wisersell"
	"github.com/developkariyer/IWApim/metrics"
	"github.com/developkariyer/IWApim/migrations/infrastructure"
	"github.com/developkariyer/IWApim/pkg/clock"
	"github.com/developkariyer/IWApim/pkg/dbconnect/postgres"
	"github.com/developkariyer/IWApim/pkg/filecache"
	"github.com/developkariyer/IWApim/pkg/logger"
	"github.com/developkariyer/IWApim/pkg/pacing"
	"github.com/developkariyer/IWApim/pkg/report"
)

type options struct {
	configPath   string
	envFile      string
	marketplaces string
	wisersell    string
	workers      int
	stages       runner.Stages
}

func parseFlags(args []string) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("iwapim", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "config/config.yaml", "path to the YAML config")
	fs.StringVar(&opts.envFile, "env", ".env", "optional .env file")
	fs.StringVar(&opts.marketplaces, "marketplaces", "", "comma separated marketplace keys, empty for all published")
	fs.BoolVar(&opts.stages.Download, "download", false, "download listings")
	fs.BoolVar(&opts.stages.Force, "force", false, "ignore cached listings")
	fs.BoolVar(&opts.stages.Import, "import", false, "create new variants")
	fs.BoolVar(&opts.stages.Update, "update", false, "update existing variants")
	fs.BoolVar(&opts.stages.Orders, "orders", false, "download orders")
	fs.BoolVar(&opts.stages.Inventory, "inventory", false, "download inventory")
	fs.StringVar(&opts.wisersell, "wisersell", "", "wisersell stages: categories,products,control,listings")
	fs.IntVar(&opts.workers, "workers", 0, "concurrent marketplace passes (config default when 0)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.workers < 0 {
		return nil, fmt.Errorf("%w: workers must not be negative", core.ErrConfig)
	}
	return opts, nil
}

func splitKeys(list string) []string {
	var keys []string
	for _, k := range strings.Split(list, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// baseURLs maps the configured overrides onto marketplace types, case-insensitively.
func baseURLs(in map[string]string) (map[models.MarketplaceType]string, error) {
	out := make(map[models.MarketplaceType]string, len(in))
	for name, url := range in {
		found := false
		for _, t := range models.AllMarketplaceTypes() {
			if strings.EqualFold(name, t.String()) {
				out[t] = url
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: base_urls: unknown marketplace type %q", core.ErrConfig, name)
		}
	}
	return out, nil
}

func policy(v config.AppConfig) pacing.Policy {
	return pacing.Policy{
		BackoffStep:  v.Sync.BackoffStep,
		MaxBackoff:   v.Sync.MaxBackoff,
		MaxRetries:   v.Sync.MaxRetries,
		PollInterval: v.Sync.PollInterval,
	}
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	log := logger.NewLogger(os.Stdout, "[iwapim]")

	opts, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		log.Error("%v", err)
		return 2
	}
	wisersellStages, err := wisersell.ParseStages(opts.wisersell)
	if err != nil {
		log.Error("%v", err)
		return 2
	}
	if !opts.stages.Any() && len(wisersellStages) == 0 {
		log.Warn("nothing to do: select at least one of -download, -import, -update, -orders, -inventory, -wisersell")
		return 2
	}

	if err := config.LoadEnv(opts.envFile); err != nil {
		log.Error("%v", err)
		return 1
	}
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		log.Error("failed to load config: %v", err)
		return 1
	}
	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		log.Error("%v", err)
		return 1
	}
	if len(cfg.Report.Encodings) > 0 {
		report.DefaultEncodings = cfg.Report.Encodings
	}
	urls, err := baseURLs(cfg.Sync.BaseURLs)
	if err != nil {
		log.Error("%v", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg := postgres.NewPgConnector(&cfg.Postgres, log.WithPrefix("[postgres]"))
	db, err := pg.Connect(ctx)
	if err != nil {
		log.Error("%v", err)
		return 1
	}
	defer pg.Close()

	if err := infrastructure.Up(db); err != nil {
		log.Error("migrations failed: %v", err)
		return 1
	}
	gdb, err := postgres.OpenGorm(db)
	if err != nil {
		log.Error("%v", err)
		return 1
	}

	clk := clock.Real()
	cache := filecache.New(cfg.Cache.Dir, clk)
	timeout := cfg.Sync.HTTPTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	httpClient := &http.Client{Timeout: timeout}

	var objects media.ObjectStore
	if cfg.Media.Bucket != "" {
		s3Client, err := media.NewS3Client(ctx, cfg.Media)
		if err != nil {
			log.Error("%v", err)
			return 1
		}
		objects = s3Client
	}
	mirror := media.NewMirror(objects, cfg.Media, httpClient, log.WithPrefix("[media]"))

	catalog := storage.NewCatalogRepository(gdb)
	variants := storage.NewVariantRepository(gdb)
	mpRepo := storage.NewMarketplaceRepository(gdb)

	deps := connector.Deps{
		Cache:       cache,
		Importer:    importer.New(variants, mirror, log.WithPrefix("[import]")),
		Converter:   currency.NewConverter(storage.NewCurrencyRepository(db), clk, *cfg.Currency.Precision),
		Orders:      storage.NewOrderRepository(db),
		Inventory:   storage.NewInventoryRepository(db),
		Registry:    storage.NewRegistryRepository(db),
		Mirror:      mirror,
		Clock:       clk,
		Logger:      log,
		Client:      httpClient,
		Policy:      policy(*cfg),
		ListingsTTL: cfg.Cache.ListingsTTL,
		BaseURLs:    urls,
	}

	var locker runner.Locker
	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Error("redis unreachable: %v", err)
			return 1
		}
		locker = runner.NewRedisLocker(rdb)
	} else {
		log.Warn("redis is not configured, marketplace locks are local to this process")
		locker = runner.NewLocalLocker()
	}

	workers := cfg.Sync.Workers
	if opts.workers > 0 {
		workers = opts.workers
	}
	r := runner.New(marketplaces.New, deps, locker, runner.Config{Workers: workers, LockTTL: cfg.Sync.LockTTL})

	srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: metrics.MetricsHandler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	exit := 0
	if opts.stages.Any() {
		var mps []models.Marketplace
		if keys := splitKeys(opts.marketplaces); len(keys) > 0 {
			mps, err = mpRepo.FindByKeys(ctx, keys)
		} else {
			mps, err = mpRepo.ListPublished(ctx)
		}
		if err != nil {
			log.Error("failed to load marketplaces: %v", err)
			return 1
		}
		if len(mps) == 0 {
			log.Warn("no marketplaces selected")
		}
		for _, res := range r.Run(ctx, mps, opts.stages) {
			summarize(log, res)
			if res.Failed() {
				exit = 1
			}
		}
		log.Log("passes: %s", r.Metrics())
	}

	if len(wisersellStages) > 0 {
		if !cfg.Wisersell.Enabled() {
			log.Error("%v: wisersell credentials are not configured", core.ErrConfig)
			return 1
		}
		store := cache.Namespace("wisersell")
		api := wisersell.NewClient(cfg.Wisersell, store, policy(*cfg), clk, httpClient, log.WithPrefix("[wisersell]"))
		rec := wisersell.NewReconciler(api, catalog, variants, mpRepo, store, wisersell.NewQuarantine(store, clk), log.WithPrefix("[wisersell]"))
		_, err := rec.Run(ctx, wisersellStages)
		switch {
		case err == nil:
		case core.IsFatal(err):
			log.Error("wisersell stopped: %v", err)
			exit = 1
		default:
			log.Warn("wisersell finished with errors: %v", err)
		}
	}
	return exit
}

func summarize(log *logger.BaseLogger, res runner.PassResult) {
	fields := map[string]interface{}{
		"marketplace": res.Marketplace,
		"downloaded":  res.Downloaded,
		"created":     res.Import.Created,
		"updated":     res.Import.Updated,
		"unchanged":   res.Import.Unchanged,
		"skipped":     res.Import.Skipped,
		"unpublished": res.Import.Unpublished,
		"orders":      res.Orders,
		"inventory":   res.Inventory,
		"errors":      len(res.Errors),
		"duration":    res.Duration.Round(time.Millisecond).String(),
	}
	switch {
	case res.Locked:
		fields["status"] = "locked"
	case res.Failed():
		fields["status"] = "failed"
		fields["fatal"] = res.Fatal.Error()
	default:
		fields["status"] = "ok"
	}
	log.WithFields(fields, "pass summary")
}
