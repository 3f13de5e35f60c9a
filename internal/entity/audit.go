package entity

import (
	"time"

	"github.com/google/uuid"
)

const SystemAuthor = "system"

// AuditEntry is a note on a job. System entries can never be changed.
type AuditEntry struct {
	ID         uuid.UUID `json:"id"`
	JobID      uuid.UUID `json:"job_id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	System     bool      `json:"system"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
