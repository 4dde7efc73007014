package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/foldmarket/foldmarket/internal/domain"
)

// PayoutStore implements domain.PayoutStore using PostgreSQL.
type PayoutStore struct {
	db querier
}

var _ domain.PayoutStore = (*PayoutStore)(nil)

// NewPayoutStore creates a PayoutStore backed by the given pool.
func NewPayoutStore(db querier) *PayoutStore {
	return &PayoutStore{db: db}
}

// CreateBatch records settlement line items for a contract.
func (s *PayoutStore) CreateBatch(ctx context.Context, contractID string, payouts []domain.Payout) error {
	if len(payouts) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO payouts (contract_id, user_id, payout)
		VALUES ($1, $2, $3)`
	for _, p := range payouts {
		batch.Queue(query, contractID, p.UserID, p.Payout)
	}

	br := s.db.SendBatch(ctx, batch)
	defer br.Close()

	for i := range payouts {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: create payout batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListByContract returns a contract's settlement line items.
func (s *PayoutStore) ListByContract(ctx context.Context, contractID string) ([]domain.Payout, error) {
	rows, err := s.db.Query(ctx,
		`SELECT user_id, payout FROM payouts
		 WHERE contract_id = $1 ORDER BY id ASC`, contractID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list payouts: %w", err)
	}
	defer rows.Close()

	var payouts []domain.Payout
	for rows.Next() {
		var p domain.Payout
		if err := rows.Scan(&p.UserID, &p.Payout); err != nil {
			return nil, fmt.Errorf("postgres: scan payout: %w", err)
		}
		payouts = append(payouts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list payouts rows: %w", err)
	}
	return payouts, nil
}
