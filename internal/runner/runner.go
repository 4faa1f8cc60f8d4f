package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"

	"github.com/developkariyer/IWApim/internal/core"
	"github.com/developkariyer/IWApim/internal/core/models"
	"github.com/developkariyer/IWApim/internal/core/services"
	"github.com/developkariyer/IWApim/internal/marketplaces/connector"
	"github.com/developkariyer/IWApim/metrics"
	"github.com/developkariyer/IWApim/pkg/clock"
	"github.com/developkariyer/IWApim/pkg/logger"
)

const (
	DefaultWorkers = 4
	DefaultLockTTL = 10 * time.Minute

	StageConnect   = "connect"
	StageDownload  = "download"
	StageImport    = "import"
	StageOrders    = "orders"
	StageInventory = "inventory"
)

// Factory builds the connector of one marketplace; marketplaces.New in production.
type Factory func(mp *models.Marketplace, deps connector.Deps) (services.Connector, error)

// Stages selects the work of a pass. Selected stages always run in the order
// download, import, orders, inventory.
type Stages struct {
	Download  bool
	Force     bool
	Import    bool
	Update    bool
	Orders    bool
	Inventory bool
}

func (s Stages) Any() bool {
	return s.Download || s.Import || s.Update || s.Orders || s.Inventory
}

type Config struct {
	Workers int
	LockTTL time.Duration
}

// PassResult is the outcome of one marketplace pass.
type PassResult struct {
	Marketplace string
	// Locked is set when another process held the marketplace.
	Locked     bool
	Downloaded int
	Import     services.ImportStats
	Orders     int
	Inventory  int
	// Errors are recoverable failures; the pass went on.
	Errors []error
	// Fatal stopped the pass.
	Fatal    error
	Duration time.Duration
}

func (r PassResult) Failed() bool {
	return r.Fatal != nil
}

type Runner struct {
	factory Factory
	deps    connector.Deps
	locker  Locker
	cfg     Config
	clock   clock.Clock
	log     *logger.BaseLogger
	metrics *metrics.PassMetrics
}

func New(factory Factory, deps connector.Deps, locker Locker, cfg Config) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultLockTTL
	}
	if locker == nil {
		locker = NewLocalLocker()
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	log := deps.Logger
	if log == nil {
		log = logger.Discard()
	}
	return &Runner{
		factory: factory,
		deps:    deps,
		locker:  locker,
		cfg:     cfg,
		clock:   clk,
		log:     log.WithPrefix("[runner]"),
		metrics: &metrics.PassMetrics{},
	}
}

func (r *Runner) Metrics() *metrics.PassMetrics {
	return r.metrics
}

// Run executes at most cfg.Workers marketplace passes at a time. Results keep
// the order of mps.
func (r *Runner) Run(ctx context.Context, mps []models.Marketplace, stages Stages) []PassResult {
	runID := uuid.NewString()
	r.log.Log("run %s: %d marketplaces, %d workers", runID, len(mps), r.cfg.Workers)
	results := make([]PassResult, len(mps))
	sem := make(chan struct{}, r.cfg.Workers)
	var wg sync.WaitGroup

	for i := range mps {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
			}
			if err := ctx.Err(); err != nil {
				results[i] = PassResult{Marketplace: mps[i].Key, Fatal: err}
				r.metrics.FailedPasses.Add(1)
				return
			}
			results[i] = r.pass(ctx, &mps[i], stages)
		}(i)
	}
	wg.Wait()

	r.log.Log("run %s finished: %s", runID, r.metrics)
	return results
}

func lockKey(key string) string {
	return "lock:marketplace:" + key
}

func (r *Runner) pass(ctx context.Context, mp *models.Marketplace, stages Stages) PassResult {
	start := r.clock.Now()
	res := PassResult{Marketplace: mp.Key}
	log := r.log.WithPrefix(mp.Key)
	defer func() {
		res.Duration = r.clock.Now().Sub(start)
		r.metrics.Passes.Add(1)
		if res.Failed() {
			r.metrics.FailedPasses.Add(1)
			log.Error("pass failed after %s: %v", res.Duration, res.Fatal)
		}
	}()

	lock, err := r.locker.Obtain(ctx, lockKey(mp.Key), r.cfg.LockTTL)
	if errors.Is(err, redislock.ErrNotObtained) {
		log.Warn("marketplace is locked by another run, skipped")
		res.Locked = true
		r.metrics.LockedPasses.Add(1)
		metrics.RecordPass(mp.Key, "lock", "locked")
		return res
	}
	if err != nil {
		res.Fatal = fmt.Errorf("obtain lock: %w", err)
		return res
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			log.Warn("release lock: %v", err)
		}
	}()

	passCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	go r.keepAlive(passCtx, lock, cancel)

	// новый коннектор на каждый проход: счётчик ошибок начинается с нуля
	conn, err := r.factory(mp, r.deps)
	if err != nil {
		metrics.RecordPass(mp.Key, StageConnect, "fatal")
		res.Fatal = err
		return res
	}

	if stages.Download {
		ok := r.stage(passCtx, mp.Key, StageDownload, &res, func(ctx context.Context) (err error) {
			res.Downloaded, err = conn.Download(ctx, stages.Force)
			return err
		})
		if !ok {
			return res
		}
	}
	if stages.Import || stages.Update {
		opts := services.ImportOptions{CreateNew: stages.Import, UpdateExisting: stages.Update}
		ok := r.stage(passCtx, mp.Key, StageImport, &res, func(ctx context.Context) (err error) {
			res.Import, err = conn.Import(ctx, opts)
			s := res.Import
			r.metrics.AddImport(s.Created, s.Updated, s.Unchanged, s.Skipped, s.Unpublished)
			return err
		})
		if !ok {
			return res
		}
	}
	if stages.Orders {
		ok := r.stage(passCtx, mp.Key, StageOrders, &res, func(ctx context.Context) (err error) {
			res.Orders, err = conn.DownloadOrders(ctx)
			r.metrics.Orders.Add(int32(res.Orders))
			return err
		})
		if !ok {
			return res
		}
	}
	if stages.Inventory {
		r.stage(passCtx, mp.Key, StageInventory, &res, func(ctx context.Context) (err error) {
			res.Inventory, err = conn.DownloadInventory(ctx)
			r.metrics.Inventory.Add(int32(res.Inventory))
			return err
		})
	}
	if cause := context.Cause(passCtx); res.Fatal == nil && cause != nil && ctx.Err() == nil {
		res.Fatal = cause
	}
	return res
}

// stage runs one step and reports whether the pass may continue.
func (r *Runner) stage(ctx context.Context, key, name string, res *PassResult, fn func(ctx context.Context) error) bool {
	err := fn(ctx)
	if err != nil && ctx.Err() != nil {
		if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, ctx.Err()) {
			err = fmt.Errorf("%w: %w", err, cause)
		}
	}
	switch {
	case err == nil:
		metrics.RecordPass(key, name, "ok")
		return true
	case errors.Is(err, core.ErrNotSupported):
		metrics.RecordPass(key, name, "unsupported")
		r.log.WithPrefix(key).Log("%s: not supported", name)
		return true
	case core.IsFatal(err):
		metrics.RecordPass(key, name, "fatal")
		res.Fatal = fmt.Errorf("%s: %w", name, err)
		return false
	default:
		metrics.RecordPass(key, name, "error")
		r.log.WithPrefix(key).Warn("%s: %v", name, err)
		res.Errors = append(res.Errors, fmt.Errorf("%s: %w", name, err))
		return true
	}
}

var errLockLost = errors.New("marketplace lock lost")

// keepAlive refreshes the lock every half TTL; losing it cancels the pass.
func (r *Runner) keepAlive(ctx context.Context, lock Lock, cancel context.CancelCauseFunc) {
	ticker := time.NewTicker(r.cfg.LockTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := lock.Refresh(ctx, r.cfg.LockTTL); err != nil {
				if ctx.Err() != nil {
					return
				}
				cancel(fmt.Errorf("%w: %v", errLockLost, err))
				return
			}
		}
	}
}
