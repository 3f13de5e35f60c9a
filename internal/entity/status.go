package entity

type JobStatus string

const (
	StatusQuoteDraft      JobStatus = "Quote Draft"
	StatusQuoteRequested  JobStatus = "Quote Requested"
	StatusQuoteProvided   JobStatus = "Quote Provided"
	StatusQuoteRejected   JobStatus = "Quote Rejected"
	StatusRequestDraft    JobStatus = "Request Draft"
	StatusRequestPending  JobStatus = "Request Pending"
	StatusNeedsScheduling JobStatus = "Needs Scheduling"
	StatusScheduled       JobStatus = "Scheduled"
	StatusPostponed       JobStatus = "Postponed"
	StatusCollected       JobStatus = "Collected"
	StatusReceived        JobStatus = "Received at Facility"
	StatusProcessing      JobStatus = "Processing"
	StatusComplete        JobStatus = "Complete"
	StatusCanceled        JobStatus = "Canceled"
)

// AllStatuses is ordered by business stage.
var AllStatuses = []JobStatus{
	StatusQuoteDraft,
	StatusQuoteRequested,
	StatusQuoteProvided,
	StatusQuoteRejected,
	StatusRequestDraft,
	StatusRequestPending,
	StatusNeedsScheduling,
	StatusScheduled,
	StatusPostponed,
	StatusCollected,
	StatusReceived,
	StatusProcessing,
	StatusComplete,
	StatusCanceled,
}

type StatusGroup string

const (
	GroupQuotes      StatusGroup = "quotes"
	GroupCollections StatusGroup = "collections"
	GroupProcessing  StatusGroup = "processing"
	GroupCompleted   StatusGroup = "completed"
)

func (s JobStatus) Valid() bool {
	return s.Group() != ""
}

// Group places a status in its access-control/reporting group.
// Request Draft sits with the collections: nothing has been picked up yet.
func (s JobStatus) Group() StatusGroup {
	switch s {
	case StatusQuoteDraft, StatusQuoteRequested, StatusQuoteProvided, StatusQuoteRejected:
		return GroupQuotes
	case StatusRequestDraft, StatusRequestPending, StatusNeedsScheduling, StatusScheduled, StatusPostponed:
		return GroupCollections
	case StatusCollected, StatusReceived, StatusProcessing:
		return GroupProcessing
	case StatusComplete, StatusCanceled:
		return GroupCompleted
	default:
		return ""
	}
}

func (s JobStatus) Terminal() bool {
	return s == StatusComplete || s == StatusCanceled
}

// Stage names which field set on a JobItem is in play.
type Stage string

const (
	StageCollection Stage = "Collection"
	StageProcessing Stage = "Processing"
)

func (s Stage) Valid() bool {
	return s == StageCollection || s == StageProcessing
}

// StageEditable is the single editability rule shared by the ledger write
// path and the transport layer.
func StageEditable(status JobStatus, stage Stage) bool {
	if status.Terminal() {
		return false
	}
	switch stage {
	case StageCollection:
		return status.Group() == GroupCollections ||
			status == StatusQuoteDraft ||
			status == StatusQuoteRequested
	case StageProcessing:
		return status.Group() == GroupProcessing
	default:
		return false
	}
}
