package models

import (
	"time"

	"github.com/google/uuid"
)

// DispatchStatus is the terminal result of one dispatched query
type DispatchStatus string

const (
	DispatchStatusDelivered DispatchStatus = "delivered"
	DispatchStatusFailed    DispatchStatus = "failed"
)

// DispatchRecord is the audit trail entry for one query.
// Only lengths are kept; query and response text are never stored.
type DispatchRecord struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	RequestID      string         `json:"request_id" db:"request_id"`
	Provider       string         `json:"provider" db:"provider"`
	Model          string         `json:"model" db:"model"`
	Status         DispatchStatus `json:"status" db:"status"`
	ErrorKind      *string        `json:"error_kind,omitempty" db:"error_kind"`
	DeliveryForm   *string        `json:"delivery_form,omitempty" db:"delivery_form"`
	QueryLength    int            `json:"query_length" db:"query_length"`
	ResponseLength int            `json:"response_length" db:"response_length"`
	LatencyMs      int            `json:"latency_ms" db:"latency_ms"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the DispatchRecord model
func (DispatchRecord) TableName() string {
	return "dispatch_records"
}

// NewDispatchRecord creates a new DispatchRecord instance
func NewDispatchRecord(requestID, provider, model string, status DispatchStatus) *DispatchRecord {
	return &DispatchRecord{
		ID:        uuid.New(),
		RequestID: requestID,
		Provider:  provider,
		Model:     model,
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}
}

// WithError sets the failure kind
func (r *DispatchRecord) WithError(kind string) *DispatchRecord {
	r.ErrorKind = &kind
	return r
}

// WithDelivery sets the delivery form and response size
func (r *DispatchRecord) WithDelivery(form string, responseLength int) *DispatchRecord {
	r.DeliveryForm = &form
	r.ResponseLength = responseLength
	return r
}

// WithLatency sets the call latency
func (r *DispatchRecord) WithLatency(d time.Duration) *DispatchRecord {
	r.LatencyMs = int(d.Milliseconds())
	return r
}
