package postgres

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/foldmarket/foldmarket/internal/domain"
)

// UserStore implements domain.UserStore using PostgreSQL.
type UserStore struct {
	db querier
}

var _ domain.UserStore = (*UserStore)(nil)

// NewUserStore creates a UserStore backed by the given pool.
func NewUserStore(db querier) *UserStore {
	return &UserStore{db: db}
}

// GetBalance returns a user's balance, or ErrNotFound for unknown users.
func (s *UserStore) GetBalance(ctx context.Context, userID string) (float64, error) {
	var balance float64
	err := s.db.QueryRow(ctx,
		`SELECT balance FROM users WHERE id = $1`, userID).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("postgres: get balance %s: %w", userID, err)
	}
	return balance, nil
}

// GetBalances returns balances for the given users. Unknown users are
// omitted from the result rather than failing the whole call.
func (s *UserStore) GetBalances(ctx context.Context, userIDs []string) (map[string]float64, error) {
	if len(userIDs) == 0 {
		return map[string]float64{}, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, balance FROM users WHERE id = ANY($1)`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("postgres: get balances: %w", err)
	}
	defer rows.Close()

	balances := make(map[string]float64, len(userIDs))
	for rows.Next() {
		var id string
		var balance float64
		if err := rows.Scan(&id, &balance); err != nil {
			return nil, fmt.Errorf("postgres: scan balance: %w", err)
		}
		balances[id] = balance
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: get balances rows: %w", err)
	}
	return balances, nil
}

// AddToBalance adjusts a user's balance by delta, creating the row on first
// touch.
func (s *UserStore) AddToBalance(ctx context.Context, userID string, delta float64) error {
	const query = `
		INSERT INTO users (id, balance) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET
			balance    = users.balance + EXCLUDED.balance,
			updated_at = NOW()`

	if _, err := s.db.Exec(ctx, query, userID, delta); err != nil {
		return fmt.Errorf("postgres: add to balance %s: %w", userID, err)
	}
	return nil
}

// AddToBalances applies many balance deltas in one batch, in deterministic
// user order to avoid deadlocks between concurrent settlements.
func (s *UserStore) AddToBalances(ctx context.Context, deltas map[string]float64) error {
	if len(deltas) == 0 {
		return nil
	}

	userIDs := make([]string, 0, len(deltas))
	for userID := range deltas {
		userIDs = append(userIDs, userID)
	}
	sort.Strings(userIDs)

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO users (id, balance) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET
			balance    = users.balance + EXCLUDED.balance,
			updated_at = NOW()`
	for _, userID := range userIDs {
		batch.Queue(query, userID, deltas[userID])
	}

	br := s.db.SendBatch(ctx, batch)
	defer br.Close()

	for i := range userIDs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: add to balances item %d: %w", i, err)
		}
	}
	return nil
}
