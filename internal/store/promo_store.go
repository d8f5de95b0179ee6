package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/showbot/internal/model"
)

// CreatePromo records an issued promo code. It returns ErrDuplicateCode
// when the code is already taken.
func (s *SQLiteStore) CreatePromo(ctx context.Context, p model.Promo) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	p.CreatedAt = p.CreatedAt.UTC()

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO promos (
			id, code, project_id, member_id, task_id, comment_id, created_at
		) VALUES (
			:id, :code, :project_id, :member_id, :task_id, :comment_id, :created_at
		)`, p)
	if isUniqueViolation(err) {
		return fmt.Errorf("creating promo %s: %w", p.Code, ErrDuplicateCode)
	}
	if err != nil {
		return fmt.Errorf("creating promo %s: %w", p.Code, err)
	}

	return nil
}

// GetPromoByCode retrieves a promo by its code.
func (s *SQLiteStore) GetPromoByCode(ctx context.Context, code string) (*model.Promo, error) {
	var p model.Promo
	err := s.db.GetContext(ctx, &p, "SELECT * FROM promos WHERE code = ?", code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("getting promo %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting promo %s: %w", code, err)
	}
	return &p, nil
}

// GetPromos retrieves the promos issued for a project, oldest first.
func (s *SQLiteStore) GetPromos(ctx context.Context, projectID int64) ([]model.Promo, error) {
	var promos []model.Promo
	err := s.db.SelectContext(ctx, &promos,
		"SELECT * FROM promos WHERE project_id = ? ORDER BY created_at", projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying promos for project %d: %w", projectID, err)
	}
	return promos, nil
}
