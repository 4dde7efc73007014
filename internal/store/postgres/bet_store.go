package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/foldmarket/foldmarket/internal/domain"
)

// BetStore implements domain.BetStore using PostgreSQL.
type BetStore struct {
	db querier
}

var _ domain.BetStore = (*BetStore)(nil)

// NewBetStore creates a BetStore backed by the given pool.
func NewBetStore(db querier) *BetStore {
	return &BetStore{db: db}
}

const betCols = `id, user_id, contract_id, outcome, amount, shares,
	prob_before, prob_after, fees, loan_amount,
	limit_prob, order_amount, is_filled, is_cancelled, fills,
	all_outcome_shares, all_bet_amounts,
	is_sold, sale, is_ante, is_liquidity_provision, is_redemption,
	created_at`

const betInsert = `
	INSERT INTO bets (` + betCols + `)
	VALUES ($1, $2, $3, $4, $5, $6,
		$7, $8, $9, $10,
		$11, $12, $13, $14, $15,
		$16, $17,
		$18, $19, $20, $21, $22,
		$23)`

// Create inserts a single bet.
func (s *BetStore) Create(ctx context.Context, b domain.Bet) error {
	_, err := s.db.Exec(ctx, betInsert, betArgs(b)...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("postgres: create bet %s: %w", b.ID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: create bet %s: %w", b.ID, err)
	}
	return nil
}

// CreateBatch inserts multiple bets in a single batch operation.
func (s *BetStore) CreateBatch(ctx context.Context, bets []domain.Bet) error {
	if len(bets) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, b := range bets {
		batch.Queue(betInsert, betArgs(b)...)
	}

	br := s.db.SendBatch(ctx, batch)
	defer br.Close()

	for i := range bets {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: create bet batch item %d: %w", i, err)
		}
	}
	return nil
}

// GetByID retrieves a bet by its primary key.
func (s *BetStore) GetByID(ctx context.Context, id string) (domain.Bet, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+betCols+` FROM bets WHERE id = $1`, id)
	b, err := scanBet(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Bet{}, domain.ErrNotFound
		}
		return domain.Bet{}, fmt.Errorf("postgres: get bet %s: %w", id, err)
	}
	return b, nil
}

// ListByContract returns all bets on a contract in creation order.
func (s *BetStore) ListByContract(ctx context.Context, contractID string) ([]domain.Bet, error) {
	return s.list(ctx, "list bets",
		`SELECT `+betCols+` FROM bets WHERE contract_id = $1 ORDER BY created_at ASC`,
		contractID)
}

// ListByUser returns a user's bets on a contract in creation order.
func (s *BetStore) ListByUser(ctx context.Context, contractID, userID string) ([]domain.Bet, error) {
	return s.list(ctx, "list user bets",
		`SELECT `+betCols+` FROM bets
		 WHERE contract_id = $1 AND user_id = $2 ORDER BY created_at ASC`,
		contractID, userID)
}

// ListUnfilled returns open limit orders: not fully filled, not cancelled.
func (s *BetStore) ListUnfilled(ctx context.Context, contractID string) ([]domain.Bet, error) {
	return s.list(ctx, "list unfilled bets",
		`SELECT `+betCols+` FROM bets
		 WHERE contract_id = $1 AND limit_prob IS NOT NULL
		   AND NOT is_filled AND NOT is_cancelled
		 ORDER BY created_at ASC`,
		contractID)
}

func (s *BetStore) list(ctx context.Context, op, query string, args ...any) ([]domain.Bet, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", op, err)
	}
	defer rows.Close()

	var bets []domain.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: %s: scan: %w", op, err)
		}
		bets = append(bets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: %s: rows: %w", op, err)
	}
	return bets, nil
}

// ApplyFill appends a fill to a resting order and advances its filled amount
// and share total.
func (s *BetStore) ApplyFill(ctx context.Context, betID string, fill domain.Fill, isFilled bool) error {
	const query = `
		UPDATE bets SET
			amount    = amount + $2,
			shares    = shares + $3,
			fills     = COALESCE(fills, '[]'::jsonb) || $4::jsonb,
			is_filled = $5
		WHERE id = $1 AND NOT is_cancelled`

	tag, err := s.db.Exec(ctx, query,
		betID, fill.Amount, fill.Shares, []domain.Fill{fill}, isFilled)
	if err != nil {
		return fmt.Errorf("postgres: apply fill to bet %s: %w", betID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: apply fill to bet %s: %w", betID, domain.ErrNotFound)
	}
	return nil
}

// Cancel marks a resting limit order as cancelled.
func (s *BetStore) Cancel(ctx context.Context, betID string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE bets SET is_cancelled = TRUE WHERE id = $1`, betID)
	if err != nil {
		return fmt.Errorf("postgres: cancel bet %s: %w", betID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: cancel bet %s: %w", betID, domain.ErrNotFound)
	}
	return nil
}

// MarkSold flags a bet whose shares were sold back.
func (s *BetStore) MarkSold(ctx context.Context, betID string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE bets SET is_sold = TRUE WHERE id = $1`, betID)
	if err != nil {
		return fmt.Errorf("postgres: mark bet %s sold: %w", betID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: mark bet %s sold: %w", betID, domain.ErrNotFound)
	}
	return nil
}

func betArgs(b domain.Bet) []any {
	return []any{
		b.ID, b.UserID, b.ContractID, b.Outcome, b.Amount, b.Shares,
		b.ProbBefore, b.ProbAfter, b.Fees, b.LoanAmount,
		b.LimitProb, b.OrderAmount, b.IsFilled, b.IsCancelled, b.Fills,
		b.AllOutcomeShares, b.AllBetAmounts,
		b.IsSold, b.Sale, b.IsAnte, b.IsLiquidityProvision, b.IsRedemption,
		b.CreatedAt,
	}
}

// scanBet scans a single bet row into a domain.Bet.
func scanBet(row pgx.Row) (domain.Bet, error) {
	var b domain.Bet
	err := row.Scan(
		&b.ID, &b.UserID, &b.ContractID, &b.Outcome, &b.Amount, &b.Shares,
		&b.ProbBefore, &b.ProbAfter, &b.Fees, &b.LoanAmount,
		&b.LimitProb, &b.OrderAmount, &b.IsFilled, &b.IsCancelled, &b.Fills,
		&b.AllOutcomeShares, &b.AllBetAmounts,
		&b.IsSold, &b.Sale, &b.IsAnte, &b.IsLiquidityProvision, &b.IsRedemption,
		&b.CreatedAt,
	)
	if err != nil {
		return domain.Bet{}, err
	}
	return b, nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
