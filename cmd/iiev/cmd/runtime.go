package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/SHDeniz/IIEV-Ultra/internal/business"
	"github.com/SHDeniz/IIEV-Ultra/internal/erp"
	"github.com/SHDeniz/IIEV-Ultra/internal/metastore"
	"github.com/SHDeniz/IIEV-Ultra/internal/queue"
	"github.com/SHDeniz/IIEV-Ultra/internal/storage"
	"github.com/SHDeniz/IIEV-Ultra/internal/validate"
	"github.com/SHDeniz/IIEV-Ultra/internal/worker"
)

// runtime bundles the wired backends of one process.
type runtime struct {
	store     metastore.Store
	blobs     storage.BlobStore
	queue     queue.Queue
	processor *worker.Processor

	metaPool *pgxpool.Pool
	erpPool  *pgxpool.Pool
	redis    *redis.Client
}

// newRuntime connects the stores and assembles the processor. An empty ERP
// DSN reuses the metadata database, which is the single-instance deployment.
func newRuntime(ctx context.Context) (*runtime, error) {
	if cfg.MetadataDSN == "" {
		return nil, fmt.Errorf("metadata-dsn is not configured")
	}

	metaPool, err := pgxpool.New(ctx, cfg.MetadataDSN)
	if err != nil {
		return nil, fmt.Errorf("connect metadata store: %w", err)
	}

	erpPool := metaPool
	if cfg.ERPDSN != "" && cfg.ERPDSN != cfg.MetadataDSN {
		erpPool, err = pgxpool.New(ctx, cfg.ERPDSN)
		if err != nil {
			metaPool.Close()
			return nil, fmt.Errorf("connect ERP store: %w", err)
		}
	}

	blobs, err := storage.NewMinioStore(storage.Config{
		Endpoint:  cfg.Blob.Endpoint,
		AccessKey: cfg.Blob.AccessKey,
		SecretKey: cfg.Blob.SecretKey,
		UseSSL:    cfg.Blob.UseSSL,
	})
	if err != nil {
		metaPool.Close()
		if erpPool != metaPool {
			erpPool.Close()
		}
		return nil, fmt.Errorf("connect blob store: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Queue.RedisAddr,
		Password: cfg.Queue.RedisPassword,
	})
	taskQueue := queue.NewRedisQueue(redisClient, cfg.Queue.Name)

	store := metastore.NewPgStore(metaPool)
	assets := validate.NewAssets(cfg.AssetsDir)

	rt := &runtime{
		store:    store,
		blobs:    blobs,
		queue:    taskQueue,
		metaPool: metaPool,
		erpPool:  erpPool,
		redis:    redisClient,
	}
	rt.processor = &worker.Processor{
		Store:     store,
		Blobs:     blobs,
		Queue:     taskQueue,
		XSD:       validate.NewXSDValidator(assets),
		Kosit:     validate.NewKositValidator(assets, cfg.KositTimeout()),
		Business:  business.NewValidator(erp.NewPostgresAdapter(erpPool), cfg.Tolerance()),
		Tolerance: cfg.Tolerance(),
		Backoff: queue.Backoff{
			Base:        time.Duration(cfg.RetryBaseSeconds) * time.Second,
			Factor:      2,
			Cap:         time.Duration(cfg.RetryCapSeconds) * time.Second,
			MaxAttempts: cfg.RetryMaxAttempts,
		},
		ProcessedBucket: cfg.Blob.ProcessedBucket,
		Log:             log,
	}
	return rt, nil
}

func (rt *runtime) Close() {
	if rt.redis != nil {
		_ = rt.redis.Close()
	}
	if rt.erpPool != nil && rt.erpPool != rt.metaPool {
		rt.erpPool.Close()
	}
	if rt.metaPool != nil {
		rt.metaPool.Close()
	}
}
