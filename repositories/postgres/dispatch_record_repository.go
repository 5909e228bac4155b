package postgres

import (
	"context"
	"fmt"

	"github.com/upb/ai-dispatcher/models"
	"github.com/upb/ai-dispatcher/repositories"
	"go.uber.org/zap"
)

// MaxListLimit caps ListRecent
const MaxListLimit = 500

// DispatchRecordRepository implements the repositories.DispatchRecordRepository interface
type DispatchRecordRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewDispatchRecordRepository creates a new dispatch record repository
func NewDispatchRecordRepository(db *DB, logger *zap.Logger) repositories.DispatchRecordRepository {
	return &DispatchRecordRepository{
		db:     db,
		logger: logger,
	}
}

// Insert inserts a new dispatch record
func (r *DispatchRecordRepository) Insert(ctx context.Context, record *models.DispatchRecord) error {
	query := `
		INSERT INTO dispatch_records (
			id, request_id, provider, model, status, error_kind, delivery_form,
			query_length, response_length, latency_ms, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.RequestID,
		record.Provider,
		record.Model,
		record.Status,
		record.ErrorKind,
		record.DeliveryForm,
		record.QueryLength,
		record.ResponseLength,
		record.LatencyMs,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert dispatch record: %w", err)
	}

	r.logger.Debug("dispatch record inserted",
		zap.String("id", record.ID.String()),
		zap.String("status", string(record.Status)))
	return nil
}

// ListRecent retrieves the newest dispatch records
func (r *DispatchRecordRepository) ListRecent(ctx context.Context, limit int) ([]*models.DispatchRecord, error) {
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}

	query := `
		SELECT id, request_id, provider, model, status, error_kind, delivery_form,
		       query_length, response_length, latency_ms, created_at
		FROM dispatch_records
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list dispatch records: %w", err)
	}
	defer rows.Close()

	records := make([]*models.DispatchRecord, 0, limit)
	for rows.Next() {
		record := &models.DispatchRecord{}
		if err := rows.Scan(
			&record.ID,
			&record.RequestID,
			&record.Provider,
			&record.Model,
			&record.Status,
			&record.ErrorKind,
			&record.DeliveryForm,
			&record.QueryLength,
			&record.ResponseLength,
			&record.LatencyMs,
			&record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan dispatch record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dispatch records: %w", err)
	}

	return records, nil
}

// CountByStatus returns the number of records per status
func (r *DispatchRecordRepository) CountByStatus(ctx context.Context) (map[models.DispatchStatus]int64, error) {
	query := `SELECT status, COUNT(*) FROM dispatch_records GROUP BY status`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count dispatch records: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.DispatchStatus]int64)
	for rows.Next() {
		var status models.DispatchStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan dispatch count: %w", err)
		}
		counts[status] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dispatch counts: %w", err)
	}

	return counts, nil
}
