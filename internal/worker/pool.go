package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"collection-service/internal/entity"
	"collection-service/internal/service"
)

// DocumentProcessor handles one claimed request.
type DocumentProcessor interface {
	Process(ctx context.Context, req entity.DocumentRequest) error
}

type Pool struct {
	queue      service.DocumentQueue
	processor  DocumentProcessor
	workers    int
	claimDelay time.Duration
	log        logrus.FieldLogger
}

func NewPool(queue service.DocumentQueue, processor DocumentProcessor, workers int, log logrus.FieldLogger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	return &Pool{
		queue:      queue,
		processor:  processor,
		workers:    workers,
		claimDelay: 5 * time.Second,
		log:        log,
	}
}

// Run claims until ctx is done and returns once in-flight requests finish.
func (p *Pool) Run(ctx context.Context) {
	p.log.WithField("workers", p.workers).Info("worker pool started")

	claims := make(chan service.Claim)
	var wg sync.WaitGroup

	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			log := p.log.WithField("worker", n)
			for c := range claims {
				if err := p.processor.Process(ctx, c.Request); err != nil {
					log.WithError(err).WithField("doc_id", c.Request.ID).Error("process document")
				}

				// ack either way: a failed render is recorded, a crash before
				// this point is picked up again by the reaper
				if err := p.queue.Ack(ctx, c); err != nil {
					log.WithError(err).WithField("doc_id", c.Request.ID).Error("ack document")
				}
			}
		}(i + 1)
	}

	defer func() {
		close(claims)
		wg.Wait()
		p.log.Info("worker pool stopped")
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		c, err := p.queue.ClaimBlocking(ctx, p.claimDelay)
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				p.log.WithError(err).Warn("claim document")
				select {
				case <-time.After(time.Second):
				case <-ctx.Done():
				}
			}
			continue
		}
		select {
		case claims <- c:
		case <-ctx.Done():
			return
		}
	}
}

// Reap requeues processing entries claimed more than staleAfter ago, every
// interval until ctx is done.
func Reap(ctx context.Context, queue service.DocumentQueue, interval, staleAfter time.Duration, log logrus.FieldLogger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := queue.RequeueStale(ctx, staleAfter, 100)
			if err != nil {
				log.WithError(err).Warn("requeue stale documents")
				continue
			}
			if n > 0 {
				log.WithField("count", n).Info("requeued documents from processing")
			}
		}
	}
}
