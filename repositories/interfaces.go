package repositories

import (
	"context"

	"github.com/upb/ai-dispatcher/models"
)

// DispatchRecordRepository handles dispatch audit data operations
type DispatchRecordRepository interface {
	// Insert inserts a new dispatch record
	Insert(ctx context.Context, record *models.DispatchRecord) error

	// ListRecent retrieves the newest records first, at most limit of them
	ListRecent(ctx context.Context, limit int) ([]*models.DispatchRecord, error)

	// CountByStatus returns the number of records per status
	CountByStatus(ctx context.Context) (map[models.DispatchStatus]int64, error)
}
