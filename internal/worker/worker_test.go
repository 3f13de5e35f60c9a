package worker_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"collection-service/internal/entity"
	"collection-service/internal/repository/memory"
	"collection-service/internal/service"
	"collection-service/internal/storage"
	"collection-service/internal/worker"
)

func quiet() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// ---- processor ----

func TestProcessor_RendersUploadsAndAudits(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	refs := store.References()
	refs.PutCategory(entity.Category{ID: 1, Name: "Laptop", DefaultWeight: decimal.RequireFromString("2.5"), EWCCode: "16 02 14"})

	files := storage.NewMemoryStore()
	var sig bytes.Buffer
	if err := png.Encode(&sig, image.NewRGBA(image.Rect(0, 0, 60, 24))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := files.Put(ctx, "signatures/J25007/driver.png", sig.Bytes(), "image/png"); err != nil {
		t.Fatalf("put: %v", err)
	}

	collected := time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)
	job := &entity.Job{
		ID:          uuid.New(),
		Code:        "J25007",
		Status:      entity.StatusCollected,
		CustomerID:  uuid.New(),
		CollectedAt: &collected,
		Signatures: entity.Signatures{
			DriverImage:   "signatures/J25007/driver.png",
			DriverName:    "Sam",
			CustomerImage: "signatures/J25007/missing.png",
		},
	}
	if err := store.Jobs().Create(ctx, job); err != nil {
		t.Fatalf("seed job: %v", err)
	}
	it := &entity.JobItem{JobID: job.ID, ItemNumber: "J25007-01", Quantity: 2, Added: entity.StageCollection, CategoryID: 1,
		DefaultWeight: decimal.RequireFromString("2.5"), Collection: &entity.CollectionDetails{}}
	if err := store.Items().Insert(ctx, it); err != nil {
		t.Fatalf("seed item: %v", err)
	}

	compliance := service.NewCompliance(store.Jobs(), store.Items(), refs)
	docs := service.NewDocuments(store.Jobs(), store.Items(), compliance, nil)
	audit := service.NewAuditLog(store.Audit())
	p := worker.NewProcessor(docs, files, audit, quiet())

	req := entity.DocumentRequest{ID: uuid.New(), JobID: job.ID, Kind: entity.DocWasteTransferNote}
	if err := p.Process(ctx, req); err != nil {
		t.Fatalf("process: %v", err)
	}

	name := worker.DocumentPath("J25007", entity.DocWasteTransferNote)
	b, err := files.Get(ctx, name)
	if err != nil {
		t.Fatalf("workbook not uploaded: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	if v, _ := f.GetCellValue("Weights", "F2"); v != "5" {
		t.Fatalf("weight cell = %q", v)
	}

	entries, err := audit.List(ctx, job.ID)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if len(entries) != 1 || !entries[0].System || !strings.Contains(entries[0].Content, name) {
		t.Fatalf("unexpected audit entries %#v", entries)
	}
}

func TestProcessor_UnavailableDocumentFails(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	job := &entity.Job{ID: uuid.New(), Code: "J25008", Status: entity.StatusScheduled, CustomerID: uuid.New()}
	if err := store.Jobs().Create(ctx, job); err != nil {
		t.Fatalf("seed job: %v", err)
	}

	compliance := service.NewCompliance(store.Jobs(), store.Items(), store.References())
	docs := service.NewDocuments(store.Jobs(), store.Items(), compliance, nil)
	files := storage.NewMemoryStore()
	p := worker.NewProcessor(docs, files, service.NewAuditLog(store.Audit()), quiet())

	err := p.Process(ctx, entity.DocumentRequest{ID: uuid.New(), JobID: job.ID, Kind: entity.DocDestructionCertificate})
	if !errors.Is(err, entity.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if _, err := files.Get(ctx, worker.DocumentPath("J25008", entity.DocDestructionCertificate)); !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("nothing should be uploaded, got %v", err)
	}
}

// ---- pool ----

type chanQueue struct {
	ch chan service.Claim

	mu    sync.Mutex
	acked []uuid.UUID
}

func (q *chanQueue) Enqueue(context.Context, entity.DocumentRequest, service.Priority) error {
	return nil
}

func (q *chanQueue) ClaimBlocking(ctx context.Context, timeout time.Duration) (service.Claim, error) {
	select {
	case c := <-q.ch:
		return c, nil
	case <-ctx.Done():
		return service.Claim{}, ctx.Err()
	case <-time.After(10 * time.Millisecond):
		return service.Claim{}, redis.Nil
	}
}

func (q *chanQueue) Ack(_ context.Context, c service.Claim) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.acked = append(q.acked, c.Request.ID)
	return nil
}

func (q *chanQueue) RequeueStale(context.Context, time.Duration, int64) (int64, error) {
	return 0, nil
}

func (q *chanQueue) ackedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.acked)
}

type countingProcessor struct {
	mu   sync.Mutex
	seen map[uuid.UUID]bool
	fail uuid.UUID
}

func (p *countingProcessor) Process(_ context.Context, req entity.DocumentRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen[req.ID] = true
	if req.ID == p.fail {
		return errors.New("render failed")
	}
	return nil
}

func TestPool_ProcessesAndAcksEveryClaim(t *testing.T) {
	q := &chanQueue{ch: make(chan service.Claim, 3)}
	reqs := []entity.DocumentRequest{{ID: uuid.New()}, {ID: uuid.New()}, {ID: uuid.New()}}
	for _, r := range reqs {
		q.ch <- service.Claim{Request: r}
	}
	proc := &countingProcessor{seen: map[uuid.UUID]bool{}, fail: reqs[1].ID}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.NewPool(q, proc, 2, quiet()).Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for q.ackedCount() < len(reqs) {
		select {
		case <-deadline:
			t.Fatalf("expected %d acks, got %d", len(reqs), q.ackedCount())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	for _, r := range reqs {
		if !proc.seen[r.ID] {
			t.Fatalf("request %s was not processed", r.ID)
		}
	}
}
