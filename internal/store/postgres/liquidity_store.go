package postgres

import (
	"context"
	"fmt"

	"github.com/foldmarket/foldmarket/internal/domain"
)

// LiquidityStore implements domain.LiquidityStore using PostgreSQL.
type LiquidityStore struct {
	db querier
}

var _ domain.LiquidityStore = (*LiquidityStore)(nil)

// NewLiquidityStore creates a LiquidityStore backed by the given pool.
func NewLiquidityStore(db querier) *LiquidityStore {
	return &LiquidityStore{db: db}
}

const liquidityCols = `id, user_id, contract_id, amount, liquidity, p, pool,
	is_ante, created_at`

// Create inserts a liquidity provision record.
func (s *LiquidityStore) Create(ctx context.Context, lp domain.LiquidityProvision) error {
	const query = `
		INSERT INTO liquidity_provisions (` + liquidityCols + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.db.Exec(ctx, query,
		lp.ID, lp.UserID, lp.ContractID, lp.Amount, lp.Liquidity, lp.P, lp.Pool,
		lp.IsAnte, lp.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("postgres: create liquidity %s: %w", lp.ID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: create liquidity %s: %w", lp.ID, err)
	}
	return nil
}

// ListByContract returns all provisions for a contract in creation order.
func (s *LiquidityStore) ListByContract(ctx context.Context, contractID string) ([]domain.LiquidityProvision, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+liquidityCols+` FROM liquidity_provisions
		 WHERE contract_id = $1 ORDER BY created_at ASC`, contractID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list liquidity: %w", err)
	}
	defer rows.Close()

	var provisions []domain.LiquidityProvision
	for rows.Next() {
		var lp domain.LiquidityProvision
		if err := rows.Scan(
			&lp.ID, &lp.UserID, &lp.ContractID, &lp.Amount, &lp.Liquidity, &lp.P, &lp.Pool,
			&lp.IsAnte, &lp.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan liquidity: %w", err)
		}
		provisions = append(provisions, lp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list liquidity rows: %w", err)
	}
	return provisions, nil
}
