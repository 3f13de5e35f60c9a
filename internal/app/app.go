// Package app wires configuration into the services both processes share.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"collection-service/internal/config"
	"collection-service/internal/events"
	"collection-service/internal/repository/memory"
	"collection-service/internal/repository/postgresql"
	"collection-service/internal/repository/redisstore"
	"collection-service/internal/service"
	"collection-service/internal/storage"
)

type App struct {
	Jobs       *service.JobService
	Ledger     *service.ItemLedger
	Audit      *service.AuditLog
	Compliance *service.Compliance
	Documents  *service.Documents
	Signatures *storage.SignatureStore
	Files      storage.FileStore

	// Queue is nil without Redis.
	Queue service.DocumentQueue

	closers []func()
}

type repositories struct {
	tx    service.TxManager
	jobs  service.JobRepository
	items service.ItemRepository
	audit service.AuditRepository
	refs  redisstore.ReferenceSource
}

// New connects every configured backend. Redis, GCS and Pub/Sub are
// optional; without them drafts stay in process, files in memory and no
// events are sent.
func New(ctx context.Context, cfg config.Config, log *logrus.Logger) (*App, error) {
	a := &App{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	repos, err := a.openStorage(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	var (
		refs   service.ReferenceData = repos.refs
		drafts service.DraftStore    = memory.NewDraftStore()
		locker service.Locker
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })

		locker = redisstore.NewLocker(rdb, cfg.JobLockTTL)
		drafts = redisstore.NewDraftStore(rdb, cfg.DraftTTL)
		refs = redisstore.NewReferenceCache(rdb, repos.refs, cfg.ReferenceCacheTTL)

		low, normal, high := service.Lanes(cfg.RedisQueueKey, cfg.RedisProcessingKey)
		a.Queue = service.NewRedisPriorityQueue(rdb, cfg.RedisProcessingMapKey, low, normal, high)
		log.WithField("redis_addr", cfg.RedisAddr).Info("redis connected")
	} else {
		log.Warn("REDIS_ADDR not set: in-process drafts and locks, document queue disabled")
	}

	if cfg.GCSBucket != "" {
		gcs, err := storage.NewGCSStore(ctx, cfg.GCSBucket, cfg.GCSCredentialsJSON)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = gcs.Close() })
		a.Files = gcs
	} else {
		log.Warn("GCS_BUCKET not set: files are kept in memory")
		a.Files = storage.NewMemoryStore()
	}
	a.Signatures = storage.NewSignatureStore(a.Files)

	var publisher service.EventPublisher
	if cfg.PubSubTopic != "" {
		p, err := events.NewPublisher(ctx, cfg.PubSubProjectID, cfg.PubSubTopic, cfg.PubSubCredentialsJSON)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = p.Close() })
		publisher = p
	}

	a.Ledger = service.NewItemLedger(repos.tx, repos.jobs, repos.items, refs, drafts, locker)
	a.Audit = service.NewAuditLog(repos.audit)
	a.Compliance = service.NewCompliance(repos.jobs, repos.items, refs)

	var enqueuer service.DocumentEnqueuer
	if a.Queue != nil {
		enqueuer = a.Queue
	}
	a.Documents = service.NewDocuments(repos.jobs, repos.items, a.Compliance, enqueuer)
	a.Jobs = service.NewJobService(service.JobServiceDeps{
		Tx:          repos.tx,
		Jobs:        repos.jobs,
		Items:       repos.items,
		Ledger:      a.Ledger,
		Audit:       a.Audit,
		Documents:   a.Documents,
		Events:      publisher,
		Locker:      locker,
		Log:         log,
		PhoneRegion: cfg.PhoneRegion,
	})

	ok = true
	return a, nil
}

func (a *App) openStorage(ctx context.Context, cfg config.Config, log *logrus.Logger) (repositories, error) {
	if cfg.Storage == config.StorageMemory {
		log.Warn("STORAGE=memory: nothing survives a restart")
		s := memory.NewStore()
		return repositories{tx: s, jobs: s.Jobs(), items: s.Items(), audit: s.Audit(), refs: s.References()}, nil
	}

	pool, err := postgresql.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return repositories{}, fmt.Errorf("pg: %w", err)
	}
	a.closers = append(a.closers, pool.Close)
	if err := postgresql.Migrate(ctx, pool); err != nil {
		return repositories{}, fmt.Errorf("migrate: %w", err)
	}
	log.WithField("postgres_dsn", cfg.RedactedDSN()).Info("postgres connected")

	db := postgresql.NewDB(pool)
	return repositories{
		tx:    db,
		jobs:  postgresql.NewJobRepository(db),
		items: postgresql.NewItemRepository(db),
		audit: postgresql.NewAuditRepository(db),
		refs:  postgresql.NewReferenceRepository(db),
	}, nil
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
