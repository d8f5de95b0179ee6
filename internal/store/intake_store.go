package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/showbot/internal/model"
)

// RecordIntake inserts the outcome of processing one message.
// If the record has no ID, a new UUID is generated.
func (s *SQLiteStore) RecordIntake(ctx context.Context, rec model.IntakeRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now()
	}
	rec.ReceivedAt = rec.ReceivedAt.UTC()

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO intakes (
			id, message_id, fingerprint, sender, subject, promo_code,
			recipients, comment, status, error, task_id, received_at
		) VALUES (
			:id, :message_id, :fingerprint, :sender, :subject, :promo_code,
			:recipients, :comment, :status, :error, :task_id, :received_at
		)`, rec)
	if err != nil {
		return fmt.Errorf("recording intake %s: %w", rec.ID, err)
	}

	return nil
}

// GetIntakes retrieves intake records, newest first.
func (s *SQLiteStore) GetIntakes(
	ctx context.Context,
	filter IntakeFilter,
) ([]model.IntakeRecord, error) {
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *filter.Status)
	}
	if filter.MessageID != nil {
		conditions = append(conditions, "message_id = ?")
		args = append(args, *filter.MessageID)
	}
	if filter.Fingerprint != nil {
		conditions = append(conditions, "fingerprint = ?")
		args = append(args, *filter.Fingerprint)
	}

	query := "SELECT * FROM intakes"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY received_at DESC, rowid DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	var records []model.IntakeRecord
	if err := s.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("querying intakes: %w", err)
	}

	return records, nil
}
