package store

import (
	"context"
	"errors"
	"time"

	"github.com/nhle/showbot/internal/model"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateCode is returned when a promo code is already issued.
	ErrDuplicateCode = errors.New("promo code already issued")
)

// IntakeFilter controls filtering and pagination for intake queries.
type IntakeFilter struct {
	Status      *string
	MessageID   *string
	Fingerprint *string
	Limit       int
	Offset      int
}

// Store defines the persistence interface for processed messages, issued
// promo codes and pending OAuth request tokens.
type Store interface {
	// === Intakes ===

	RecordIntake(ctx context.Context, rec model.IntakeRecord) error
	GetIntakes(ctx context.Context, filter IntakeFilter) ([]model.IntakeRecord, error)

	// === Promos ===

	CreatePromo(ctx context.Context, p model.Promo) error
	GetPromoByCode(ctx context.Context, code string) (*model.Promo, error)
	GetPromos(ctx context.Context, projectID int64) ([]model.Promo, error)

	// === OAuth request tokens ===

	SavePendingToken(ctx context.Context, t model.PendingToken) error
	TakePendingToken(ctx context.Context, token string) (*model.PendingToken, error)
	PurgePendingTokens(ctx context.Context, olderThan time.Time) (int64, error)
}
