package model

import "time"

// AuditAction is the kind of action recorded in the sync history.
type AuditAction string

const (
	ActionValidate AuditAction = "VALIDATE"
	ActionSync     AuditAction = "SYNC"
)

// AuditEntry is one append-only sync-history record. Entries are never
// updated or deleted.
type AuditEntry struct {
	ID               string                `json:"id"`
	UserID           string                `json:"user_id"`
	Action           AuditAction           `json:"action"`
	Country          Country               `json:"country"`
	Identifier       string                `json:"identifier"`
	CorrectnessScore *int                  `json:"correctness_score,omitempty"`
	FieldScores      map[string]FieldScore `json:"field_scores,omitempty"`
	Notes            string                `json:"notes,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
}
