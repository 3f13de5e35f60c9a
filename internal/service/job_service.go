package service

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/ttacon/libphonenumber"

	"collection-service/internal/entity"
)

// JobServiceDeps groups the collaborators of JobService. Locker, Documents
// and Events may be nil.
type JobServiceDeps struct {
	Tx        TxManager
	Jobs      JobRepository
	Items     ItemRepository
	Ledger    *ItemLedger
	Audit     *AuditLog
	Gate      *Gate
	Documents *Documents
	Events    EventPublisher
	Locker    Locker
	Log       logrus.FieldLogger

	// PhoneRegion is the default region for contact phone numbers.
	PhoneRegion string
}

// JobService is the job lifecycle: creation, edits and the status machine.
type JobService struct {
	tx     TxManager
	jobs   JobRepository
	items  ItemRepository
	ledger *ItemLedger
	audit  *AuditLog
	gate   *Gate
	docs   *Documents
	events EventPublisher
	locker Locker
	log    logrus.FieldLogger

	region   string
	validate *validator.Validate
	now      func() time.Time
}

func NewJobService(d JobServiceDeps) *JobService {
	s := &JobService{
		tx:       d.Tx,
		jobs:     d.Jobs,
		items:    d.Items,
		ledger:   d.Ledger,
		audit:    d.Audit,
		gate:     d.Gate,
		docs:     d.Documents,
		events:   d.Events,
		locker:   d.Locker,
		log:      d.Log,
		region:   d.PhoneRegion,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	if s.locker == nil {
		s.locker = noopLocker{}
	}
	if s.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		s.log = l
	}
	if s.gate == nil {
		s.gate = NewGate()
	}
	if s.region == "" {
		s.region = "GB"
	}
	return s
}

func (s *JobService) SetClock(now func() time.Time) {
	s.now = now
	s.gate.SetClock(now)
}

type CreateJobRequest struct {
	Kind       entity.JobKind        `json:"kind"`
	CustomerID uuid.UUID             `json:"customer_id"`
	Site       entity.CollectionSite `json:"site"`
}

// CreateJob allocates the next J<YY><NNN> code and stores the job in its
// draft status.
func (s *JobService) CreateJob(ctx context.Context, actor entity.Actor, req CreateJobRequest) (*entity.Job, error) {
	var status entity.JobStatus
	switch req.Kind {
	case entity.KindQuote:
		status = entity.StatusQuoteDraft
	case entity.KindCollection:
		status = entity.StatusRequestDraft
	default:
		return nil, entity.NewFieldError(entity.ErrValidation, "kind", fmt.Sprintf("unknown kind %q", req.Kind))
	}

	customerID := req.CustomerID
	if !actor.IsStaff() {
		if actor.Role != entity.RoleCustomer || actor.CustomerID == uuid.Nil {
			return nil, entity.NewFieldError(entity.ErrForbidden, "role", "unknown caller")
		}
		if customerID != uuid.Nil && customerID != actor.CustomerID {
			return nil, entity.NewFieldError(entity.ErrForbidden, "customer_id", "customers create jobs for themselves only")
		}
		customerID = actor.CustomerID
	}
	if customerID == uuid.Nil {
		return nil, entity.NewFieldError(entity.ErrValidation, "customer_id", "required")
	}

	site, err := s.cleanSite(req.Site)
	if err != nil {
		return nil, err
	}

	now := s.now()
	job := &entity.Job{
		ID:         uuid.New(),
		Status:     status,
		CustomerID: customerID,
		Site:       site,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.jobs.LockCodeSequence(ctx); err != nil {
			return err
		}
		code, err := s.nextJobCode(ctx, now.Year())
		if err != nil {
			return err
		}
		job.Code = code
		if err := s.jobs.Create(ctx, job); err != nil {
			return err
		}
		_, err = s.audit.AppendSystem(ctx, job.ID, fmt.Sprintf("Job %s created as %s by %s", job.Code, job.Status, actorLabel(actor)))
		return err
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// nextJobCode must run under LockCodeSequence.
func (s *JobService) nextJobCode(ctx context.Context, year int) (string, error) {
	prefix := entity.JobCodePrefix(year)
	last, err := s.jobs.LastCodeWithPrefix(ctx, prefix)
	if err != nil {
		return "", err
	}
	seq := 0
	if last != "" {
		seq, err = strconv.Atoi(strings.TrimPrefix(last, prefix))
		if err != nil {
			return "", fmt.Errorf("job code %q: %w", last, err)
		}
	}
	return fmt.Sprintf("%s%03d", prefix, seq+1), nil
}

// GetJob hides jobs the actor may not see behind NotFound.
func (s *JobService) GetJob(ctx context.Context, actor entity.Actor, id uuid.UUID) (*entity.Job, error) {
	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanSee(job) {
		return nil, entity.NewFieldError(entity.ErrNotFound, "job_id", id.String())
	}
	return job, nil
}

func (s *JobService) ListJobs(ctx context.Context, actor entity.Actor, f entity.JobFilter) ([]entity.Job, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, entity.NewFieldError(entity.ErrValidation, "status", string(f.Status))
	}
	if !actor.IsStaff() {
		if actor.CustomerID == uuid.Nil {
			return []entity.Job{}, nil
		}
		f.CustomerID = actor.CustomerID
	}
	return s.jobs.List(ctx, f)
}

// JobPatch holds the staff-editable job fields. Nil fields are left alone.
type JobPatch struct {
	Address      *string    `json:"address,omitempty"`
	ContactName  *string    `json:"contact_name,omitempty"`
	ContactPhone *string    `json:"contact_phone,omitempty"`
	ContactEmail *string    `json:"contact_email,omitempty"`
	Instructions *string    `json:"instructions,omitempty"`
	CollectorID  *string    `json:"collector_id,omitempty"`
	VehicleReg   *string    `json:"vehicle_reg,omitempty"`
	DriverName   *string    `json:"driver_name,omitempty"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
}

func (s *JobService) UpdateJob(ctx context.Context, actor entity.Actor, id uuid.UUID, p JobPatch) (*entity.Job, error) {
	if !actor.IsStaff() {
		return nil, entity.NewFieldError(entity.ErrForbidden, "role", "staff only")
	}

	unlock, err := s.locker.Lock(ctx, jobLockKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var out *entity.Job
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		job, err := s.jobs.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !job.Editable() {
			return entity.NewFieldError(entity.ErrJobNotEditable, "status", fmt.Sprintf("job is %s", job.Status))
		}

		site := job.Site
		set := func(dst *string, v *string) {
			if v != nil {
				*dst = *v
			}
		}
		set(&site.Address, p.Address)
		set(&site.ContactName, p.ContactName)
		set(&site.ContactPhone, p.ContactPhone)
		set(&site.ContactEmail, p.ContactEmail)
		set(&site.Instructions, p.Instructions)
		if site, err = s.cleanSite(site); err != nil {
			return err
		}
		job.Site = site
		set(&job.CollectorID, p.CollectorID)
		set(&job.VehicleReg, p.VehicleReg)
		set(&job.DriverName, p.DriverName)
		if p.ScheduledFor != nil {
			t := p.ScheduledFor.UTC()
			job.ScheduledFor = &t
		}
		job.UpdatedAt = s.now()

		if err := s.jobs.Update(ctx, job); err != nil {
			return err
		}
		if _, err := s.audit.AppendSystem(ctx, job.ID, "Job details updated by "+actorLabel(actor)); err != nil {
			return err
		}
		out = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteJob soft-deletes so the code stays reserved.
func (s *JobService) DeleteJob(ctx context.Context, actor entity.Actor, id uuid.UUID) error {
	if !actor.IsStaff() {
		return entity.NewFieldError(entity.ErrForbidden, "role", "staff only")
	}
	unlock, err := s.locker.Lock(ctx, jobLockKey(id))
	if err != nil {
		return err
	}
	defer unlock()

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		job, err := s.jobs.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.jobs.SoftDelete(ctx, job.ID, s.now()); err != nil {
			return err
		}
		_, err = s.audit.AppendSystem(ctx, job.ID, fmt.Sprintf("Job %s deleted by %s", job.Code, actorLabel(actor)))
		return err
	})
}

// Transition moves a job to req.To. Checks run in this order: visibility,
// reachability, role, unsaved edits, proof. Nothing is written unless
// every check passes.
func (s *JobService) Transition(ctx context.Context, actor entity.Actor, id uuid.UUID, req TransitionRequest) (*entity.Job, error) {
	unlock, err := s.locker.Lock(ctx, jobLockKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	job, err := s.GetJob(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	from := job.Status
	if err := s.precheck(ctx, actor, job, req); err != nil {
		return nil, err
	}

	var receivedAt time.Time
	if req.To == entity.StatusReceived {
		receivedAt, err = s.gate.ValidateReceiptProof(*req.Receipt, job.CollectedAt)
		if err != nil {
			return nil, err
		}
	}

	var out *entity.Job
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		job, err := s.jobs.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if job.Status != from {
			return entity.NewFieldError(entity.ErrInvalidTransition, "status", fmt.Sprintf("job moved to %s meanwhile", job.Status))
		}

		if needsItems(from, req.To) {
			live, err := s.items.ListByJob(ctx, job.ID, false)
			if err != nil {
				return err
			}
			if len(live) == 0 {
				return entity.NewFieldError(entity.ErrInvalidTransition, "items", "job has no items")
			}
		}

		note, err := s.apply(ctx, job, req, receivedAt)
		if err != nil {
			return err
		}
		job.Status = req.To
		job.UpdatedAt = s.now()
		if err := s.jobs.Update(ctx, job); err != nil {
			return err
		}

		msg := fmt.Sprintf("Status changed from %s to %s by %s", from, req.To, actorLabel(actor))
		if note != "" {
			msg += ". " + note
		}
		if _, err := s.audit.AppendSystem(ctx, job.ID, msg); err != nil {
			return err
		}
		out = job
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, actor, out, from)
	return out, nil
}

func (s *JobService) precheck(ctx context.Context, actor entity.Actor, job *entity.Job, req TransitionRequest) error {
	from, to := job.Status, req.To
	if !to.Valid() {
		return entity.NewFieldError(entity.ErrInvalidTransition, "to", fmt.Sprintf("unknown status %q", to))
	}
	if !Reachable(from, to) {
		return entity.NewFieldError(entity.ErrInvalidTransition, "to", fmt.Sprintf("%s cannot follow %s", to, from))
	}
	if !Allowed(actor, from, to) {
		return entity.NewFieldError(entity.ErrForbidden, "to", fmt.Sprintf("%s may not move a job to %s", actor.Role, to))
	}

	dirty, err := s.ledger.HasUnsavedChanges(ctx, job.ID)
	if err != nil {
		return err
	}
	if dirty {
		return entity.NewFieldError(entity.ErrJobNotEditable, "items", "unsaved item changes")
	}

	switch to {
	case entity.StatusQuoteProvided:
		if !req.QuoteAmount.Valid || !req.QuoteAmount.Decimal.IsPositive() {
			return entity.NewFieldError(entity.ErrIncompleteProof, "quote_amount", "must be above zero")
		}
	case entity.StatusQuoteRejected:
		if from == entity.StatusQuoteRequested && strings.TrimSpace(req.Reason) == "" {
			return entity.NewFieldError(entity.ErrIncompleteProof, "reason", "required")
		}
	case entity.StatusScheduled:
		if req.ScheduledFor == nil {
			return entity.NewFieldError(entity.ErrIncompleteProof, "scheduled_for", "required")
		}
	case entity.StatusCollected:
		if req.Collection == nil {
			return entity.NewFieldError(entity.ErrIncompleteProof, "customer_signature", "no collection proof")
		}
		return s.gate.ValidateCollectionProof(*req.Collection)
	case entity.StatusReceived:
		if req.Receipt == nil {
			return entity.NewFieldError(entity.ErrIncompleteProof, "staff_signature", "no receipt proof")
		}
	}
	return nil
}

// apply writes the side effects of the target status onto job and returns
// extra audit text. Runs inside the transition transaction.
func (s *JobService) apply(ctx context.Context, job *entity.Job, req TransitionRequest, receivedAt time.Time) (string, error) {
	now := s.now()
	reason := strings.TrimSpace(req.Reason)

	switch req.To {
	case entity.StatusQuoteProvided:
		job.QuoteAmount = req.QuoteAmount
		job.QuoteNarrative = strings.TrimSpace(req.QuoteNarrative)
		job.RejectionReason = ""
		return "Quoted " + req.QuoteAmount.Decimal.StringFixed(2), nil

	case entity.StatusQuoteRejected:
		job.RejectionReason = reason

	case entity.StatusQuoteRequested:
		job.RejectionReason = ""

	case entity.StatusNeedsScheduling:
		if job.Status == entity.StatusQuoteProvided {
			n, err := s.ledger.expandAllInTx(ctx, job)
			if err != nil {
				return "", err
			}
			if n > 0 {
				return fmt.Sprintf("Expanded %d item batch(es)", n), nil
			}
		}
		if job.Status == entity.StatusScheduled || job.Status == entity.StatusPostponed {
			job.ScheduledFor = nil
		}

	case entity.StatusScheduled:
		t := req.ScheduledFor.UTC()
		job.ScheduledFor = &t
		return "Scheduled for " + t.Format("2006-01-02"), nil

	case entity.StatusCollected:
		p := req.Collection
		job.CollectedAt = &now
		job.Signatures.CustomerImage = strings.TrimSpace(p.CustomerSignature)
		job.Signatures.CustomerName = strings.TrimSpace(p.CustomerName)
		job.Signatures.DriverImage = strings.TrimSpace(p.DriverSignature)
		job.Signatures.DriverName = strings.TrimSpace(p.DriverName)
		job.DriverName = job.Signatures.DriverName
		job.VehicleReg = strings.TrimSpace(p.VehicleRegistration)
		return fmt.Sprintf("Signed by %s (customer) and %s (driver), vehicle %s",
			job.Signatures.CustomerName, job.Signatures.DriverName, job.VehicleReg), nil

	case entity.StatusReceived:
		p := req.Receipt
		job.ReceivedAt = &receivedAt
		job.Signatures.StaffImage = strings.TrimSpace(p.StaffSignature)
		job.Signatures.StaffName = strings.TrimSpace(p.StaffName)
		return "Received by " + job.Signatures.StaffName, nil

	case entity.StatusProcessing:
		job.ProcessedAt = &now

	case entity.StatusComplete:
		job.CompletedAt = &now
	}

	if reason != "" {
		return "Reason: " + reason, nil
	}
	return "", nil
}

// afterTransition runs outside the transaction. Failures are logged only.
func (s *JobService) afterTransition(ctx context.Context, actor entity.Actor, job *entity.Job, from entity.JobStatus) {
	log := s.log.WithFields(logrus.Fields{
		"job_id": job.ID.String(),
		"code":   job.Code,
		"from":   string(from),
		"to":     string(job.Status),
	})

	var kind entity.DocumentKind
	switch job.Status {
	case entity.StatusCollected:
		kind = entity.DocWasteTransferNote
	case entity.StatusComplete:
		kind = entity.DocDestructionCertificate
	}
	if kind != "" && s.docs != nil {
		if _, err := s.docs.enqueue(ctx, job.ID, kind, entity.SystemAuthor); err != nil {
			log.WithError(err).WithField("kind", string(kind)).Warn("document enqueue failed")
		}
	}

	if s.events != nil {
		ev := StatusChanged{
			JobID:      job.ID,
			JobCode:    job.Code,
			CustomerID: job.CustomerID,
			From:       from,
			To:         job.Status,
			ActorID:    actor.ID,
			At:         job.UpdatedAt,
		}
		if err := s.events.PublishStatusChanged(ctx, ev); err != nil {
			log.WithError(err).Warn("status event publish failed")
		}
	}
}

func (s *JobService) cleanSite(site entity.CollectionSite) (entity.CollectionSite, error) {
	site.Address = strings.TrimSpace(site.Address)
	site.ContactName = strings.TrimSpace(site.ContactName)
	site.ContactEmail = strings.TrimSpace(site.ContactEmail)
	site.Instructions = strings.TrimSpace(site.Instructions)

	if phone := strings.TrimSpace(site.ContactPhone); phone != "" {
		formatted, err := normalizePhone(phone, s.region)
		if err != nil {
			return site, entity.NewFieldError(entity.ErrValidation, "contact_phone", err.Error())
		}
		site.ContactPhone = formatted
	} else {
		site.ContactPhone = ""
	}

	if site.ContactEmail != "" {
		if err := s.validate.Var(site.ContactEmail, "email"); err != nil {
			return site, entity.NewFieldError(entity.ErrValidation, "contact_email", "not an email address")
		}
	}
	return site, nil
}

// normalizePhone parses number for region and renders it in E.164.
func normalizePhone(number, region string) (string, error) {
	p, err := libphonenumber.Parse(number, region)
	if err != nil {
		return "", err
	}
	if !libphonenumber.IsValidNumber(p) {
		return "", fmt.Errorf("phone number is not valid")
	}
	return libphonenumber.Format(p, libphonenumber.E164), nil
}

func actorLabel(a entity.Actor) string {
	if a.Name != "" {
		return a.Name
	}
	if a.ID != "" {
		return a.ID
	}
	return string(a.Role)
}
