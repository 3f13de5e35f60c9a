package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"collection-service/internal/entity"
	"collection-service/internal/render"
	"collection-service/internal/storage"
)

type SnapshotSource interface {
	Snapshot(ctx context.Context, jobID uuid.UUID, kind entity.DocumentKind) (*entity.DocumentSnapshot, error)
}

type AuditWriter interface {
	AppendSystem(ctx context.Context, jobID uuid.UUID, content string) (*entity.AuditEntry, error)
}

// Processor renders a document request into an xlsx in the file store.
// A request may be delivered more than once; every run overwrites the same
// object at DocumentPath.
type Processor struct {
	docs  SnapshotSource
	files storage.FileStore
	audit AuditWriter
	log   logrus.FieldLogger
}

func NewProcessor(docs SnapshotSource, files storage.FileStore, audit AuditWriter, log logrus.FieldLogger) *Processor {
	return &Processor{docs: docs, files: files, audit: audit, log: log}
}

// DocumentPath is where the rendered workbook of kind is stored.
func DocumentPath(jobCode string, kind entity.DocumentKind) string {
	return fmt.Sprintf("documents/%s/%s.xlsx", jobCode, kind)
}

var documentTitles = map[entity.DocumentKind]string{
	entity.DocWasteTransferNote:      "Waste transfer note",
	entity.DocDestructionCertificate: "Data destruction certificate",
}

func (p *Processor) Process(ctx context.Context, req entity.DocumentRequest) error {
	start := time.Now()
	log := p.log.WithFields(logrus.Fields{
		"doc_id": req.ID,
		"job_id": req.JobID,
		"kind":   req.Kind,
	})

	snap, err := p.docs.Snapshot(ctx, req.JobID, req.Kind)
	if err != nil {
		log.WithError(err).WithField("status", "error").Warn("snapshot")
		return err
	}

	b, err := render.Workbook(snap, p.signatures(ctx, log, snap.Job.Signatures))
	if err != nil {
		log.WithError(err).WithField("status", "error").Error("render")
		return err
	}

	name := DocumentPath(snap.Job.Code, req.Kind)
	if err := p.files.Put(ctx, name, b, render.XLSXContentType); err != nil {
		log.WithError(err).WithField("status", "error").Error("upload")
		return err
	}

	note := fmt.Sprintf("%s generated: %s", documentTitles[req.Kind], name)
	if _, err := p.audit.AppendSystem(ctx, req.JobID, note); err != nil {
		log.WithError(err).Warn("audit document")
	}

	log.WithFields(logrus.Fields{
		"status":      "done",
		"object":      name,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("document rendered")
	return nil
}

// signatures loads whatever images are stored. A missing image leaves a gap
// in the workbook instead of failing it.
func (p *Processor) signatures(ctx context.Context, log logrus.FieldLogger, s entity.Signatures) render.Signatures {
	out := render.Signatures{}
	refs := map[entity.SignatureRole]string{
		entity.SignatureCustomer: s.CustomerImage,
		entity.SignatureDriver:   s.DriverImage,
		entity.SignatureStaff:    s.StaffImage,
	}
	for role, ref := range refs {
		if ref == "" {
			continue
		}
		img, err := p.files.Get(ctx, ref)
		if err != nil {
			log.WithError(err).WithField("role", role).Warn("signature image")
			continue
		}
		out[role] = img
	}
	return out
}
