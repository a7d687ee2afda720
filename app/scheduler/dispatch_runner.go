package scheduler

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"

	"github.com/kingsmedia/herald/config"
	"github.com/kingsmedia/herald/models"
	"github.com/kingsmedia/herald/repository"
	"github.com/kingsmedia/herald/utils"
)

// DispatchRunner periodically advances the oldest runnable dispatch of one
// channel: it claims the dispatch, tops up in-flight recipient tasks to the
// concurrency ceiling, and marks the dispatch completed when nothing remains.
type DispatchRunner struct {
	store    ChannelStore
	executor *Executor
	db       *gorm.DB
	cache    *redis.Client
	logger   *log.Logger

	interval time.Duration
	ceiling  int
	leaseTTL time.Duration
	leaseKey string
	instance string

	runInTx func(ctx context.Context, fn func(context.Context) error) error
}

func NewDispatchRunner(
	store ChannelStore,
	executor *Executor,
	db *gorm.DB,
	cache *redis.Client,
	cfg config.DispatchConfig,
	logCfg config.LoggingConfig,
	cachePrefix string,
) *DispatchRunner {
	interval := cfg.TickInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ceiling := cfg.ConcurrencyCeiling
	if ceiling <= 0 {
		ceiling = 100
	}
	leaseTTL := cfg.LeaseTTL
	if leaseTTL <= 0 {
		leaseTTL = 5 * time.Minute
	}

	r := &DispatchRunner{
		store:    store,
		executor: executor,
		db:       db,
		cache:    cache,
		interval: interval,
		ceiling:  ceiling,
		leaseTTL: leaseTTL,
		leaseKey: cachePrefix + "dispatch:lease:" + store.Name(),
		instance: uuid.New().String(),
	}
	r.runInTx = func(ctx context.Context, fn func(context.Context) error) error {
		if r.db == nil {
			return fn(ctx)
		}
		return repository.WithTransaction(ctx, r.db, fn)
	}

	if err := r.initRunnerLogger(logCfg); err != nil {
		r.logger = log.Default()
		r.logger.Printf("%s runner: failed to initialize file logger: %v", store.Name(), err)
	}

	return r
}

// initRunnerLogger configures a logger that writes to both stdout and a rotated persistent file
func (r *DispatchRunner) initRunnerLogger(cfg config.LoggingConfig) error {
	path := cfg.SchedulerLogPath
	if path == "" {
		path = "data/dispatch.log"
	}
	rotor := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	mw := io.MultiWriter(os.Stdout, rotor)
	// log.Logger is goroutine-safe; include timestamps with microseconds and UTC
	r.logger = log.New(mw, r.store.Name()+" ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
	return nil
}

// Start launches the runner loop in a background goroutine and returns a stop function
func (r *DispatchRunner) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.runOnce(ctx)
			}
		}
	}()

	return cancel
}

func (r *DispatchRunner) runOnce(ctx context.Context) {
	release, ok := r.acquireLease(ctx)
	if !ok {
		return
	}
	defer release()

	var (
		job   *Job
		tasks []Task
	)

	err := r.runInTx(ctx, func(txCtx context.Context) error {
		var err error
		job, err = r.store.NextRunnable(txCtx)
		if err != nil {
			return err
		}
		if job == nil {
			return nil
		}

		now := utils.UTCNow()
		if job.Status == models.DispatchStatusPending {
			if err := r.store.MarkProcessing(txCtx, job.ID, now); err != nil {
				return err
			}
		}

		inFlight, err := r.store.CountInFlight(txCtx, job.ID)
		if err != nil {
			return err
		}
		remaining, err := r.store.CountRemaining(txCtx, job)
		if err != nil {
			return err
		}

		if remaining == 0 && inFlight == 0 {
			if err := r.store.MarkCompleted(txCtx, job.ID, now); err != nil {
				return err
			}
			r.logger.Printf("dispatch id=%d completed", job.ID)
			dispatchesCompleted.WithLabelValues(r.store.Name()).Inc()
			return nil
		}

		batch := r.ceiling - int(inFlight)
		if batch <= 0 {
			return nil
		}

		tasks, err = r.store.CreateTasks(txCtx, job, batch)
		if err != nil {
			return fmt.Errorf("create tasks: %w", err)
		}
		return nil
	})

	if err != nil {
		r.logger.Printf("tick failed: %v", err)
		if job != nil {
			if markErr := r.store.MarkFailed(ctx, job.ID, utils.UTCNow(), err.Error()); markErr != nil {
				r.logger.Printf("dispatch id=%d mark failed: %v", job.ID, markErr)
			}
			dispatchesFailed.WithLabelValues(r.store.Name()).Inc()
		}
		return
	}

	if len(tasks) > 0 {
		r.logger.Printf("dispatch id=%d queued %d recipient tasks", job.ID, len(tasks))
		tasksQueued.WithLabelValues(r.store.Name()).Add(float64(len(tasks)))
		r.executor.Submit(ctx, job, tasks)
	}
}

// releaseLeaseScript deletes the lease only while this instance still owns
// it, so a release racing a lease expiry cannot drop another instance's lease.
var releaseLeaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// acquireLease takes the per-channel tick lease so only one instance advances
// a channel at a time. Without a cache the lease is a no-op.
func (r *DispatchRunner) acquireLease(ctx context.Context) (func(), bool) {
	if r.cache == nil {
		return func() {}, true
	}
	ok, err := r.cache.SetNX(ctx, r.leaseKey, r.instance, r.leaseTTL).Result()
	if err != nil {
		r.logger.Printf("lease acquire failed: %v", err)
		return func() {}, false
	}
	if !ok {
		return func() {}, false
	}
	return func() {
		if err := releaseLeaseScript.Run(ctx, r.cache, []string{r.leaseKey}, r.instance).Err(); err != nil && err != redis.Nil {
			r.logger.Printf("lease release failed: %v", err)
		}
	}, true
}
