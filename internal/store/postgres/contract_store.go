package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/foldmarket/foldmarket/internal/domain"
)

// ContractStore implements domain.ContractStore using PostgreSQL.
type ContractStore struct {
	db querier
}

var _ domain.ContractStore = (*ContractStore)(nil)

// NewContractStore creates a ContractStore backed by the given pool.
func NewContractStore(db querier) *ContractStore {
	return &ContractStore{db: db}
}

const contractCols = `id, creator_id, question, mechanism, outcome_type,
	pool, p, total_shares, total_bets, phantom_shares,
	total_liquidity, subsidy_pool, collected_fees,
	bucket_count, min_value, max_value,
	created_at, close_time,
	is_resolved, resolution, resolution_probability, resolutions,
	resolution_value, resolution_time`

// Create inserts a new contract.
func (s *ContractStore) Create(ctx context.Context, c domain.Contract) error {
	const query = `
		INSERT INTO contracts (` + contractCols + `)
		VALUES ($1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13,
			$14, $15, $16,
			$17, $18,
			$19, $20, $21, $22,
			$23, $24)`

	_, err := s.db.Exec(ctx, query, contractArgs(c)...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("postgres: create contract %s: %w", c.ID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: create contract %s: %w", c.ID, err)
	}
	return nil
}

// Update overwrites the contract's mutable pricing and resolution state.
func (s *ContractStore) Update(ctx context.Context, c domain.Contract) error {
	const query = `
		UPDATE contracts SET
			pool                   = $2,
			p                      = $3,
			total_shares           = $4,
			total_bets             = $5,
			phantom_shares         = $6,
			total_liquidity        = $7,
			subsidy_pool           = $8,
			collected_fees         = $9,
			close_time             = $10,
			is_resolved            = $11,
			resolution             = $12,
			resolution_probability = $13,
			resolutions            = $14,
			resolution_value       = $15,
			resolution_time        = $16,
			updated_at             = NOW()
		WHERE id = $1`

	tag, err := s.db.Exec(ctx, query,
		c.ID,
		c.Pool, c.P, c.TotalShares, c.TotalBets, c.PhantomShares,
		c.TotalLiquidity, c.SubsidyPool, c.CollectedFees,
		c.CloseTime,
		c.IsResolved, nullStr(c.Resolution), c.ResolutionProbability, c.Resolutions,
		c.ResolutionValue, c.ResolutionTime,
	)
	if err != nil {
		return fmt.Errorf("postgres: update contract %s: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update contract %s: %w", c.ID, domain.ErrNotFound)
	}
	return nil
}

// GetByID retrieves a contract by its primary key.
func (s *ContractStore) GetByID(ctx context.Context, id string) (domain.Contract, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+contractCols+` FROM contracts WHERE id = $1`, id)
	c, err := scanContract(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Contract{}, domain.ErrNotFound
		}
		return domain.Contract{}, fmt.Errorf("postgres: get contract %s: %w", id, err)
	}
	return c, nil
}

// ListOpen returns unresolved contracts with pagination and optional time
// filtering.
func (s *ContractStore) ListOpen(ctx context.Context, opts domain.ListOpts) ([]domain.Contract, error) {
	query := `SELECT ` + contractCols + ` FROM contracts WHERE NOT is_resolved`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open contracts: %w", err)
	}
	defer rows.Close()

	var contracts []domain.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan open contract: %w", err)
		}
		contracts = append(contracts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list open contracts rows: %w", err)
	}
	return contracts, nil
}

// ListResolvedBefore returns contracts resolved earlier than the cutoff,
// oldest first, for the settlement archiver.
func (s *ContractStore) ListResolvedBefore(ctx context.Context, before time.Time) ([]domain.Contract, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+contractCols+` FROM contracts
		 WHERE is_resolved AND resolution_time < $1
		 ORDER BY resolution_time ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list resolved contracts: %w", err)
	}
	defer rows.Close()

	var contracts []domain.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan resolved contract: %w", err)
		}
		contracts = append(contracts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list resolved contracts rows: %w", err)
	}
	return contracts, nil
}

func contractArgs(c domain.Contract) []any {
	return []any{
		c.ID, c.CreatorID, c.Question, string(c.Mechanism), string(c.OutcomeType),
		c.Pool, c.P, c.TotalShares, c.TotalBets, c.PhantomShares,
		c.TotalLiquidity, c.SubsidyPool, c.CollectedFees,
		c.BucketCount, c.Min, c.Max,
		c.CreatedAt, c.CloseTime,
		c.IsResolved, nullStr(c.Resolution), c.ResolutionProbability, c.Resolutions,
		c.ResolutionValue, c.ResolutionTime,
	}
}

// scanContract scans a single contract row into a domain.Contract.
func scanContract(row pgx.Row) (domain.Contract, error) {
	var c domain.Contract
	var mechanism, outcomeType string
	var resolution *string
	err := row.Scan(
		&c.ID, &c.CreatorID, &c.Question, &mechanism, &outcomeType,
		&c.Pool, &c.P, &c.TotalShares, &c.TotalBets, &c.PhantomShares,
		&c.TotalLiquidity, &c.SubsidyPool, &c.CollectedFees,
		&c.BucketCount, &c.Min, &c.Max,
		&c.CreatedAt, &c.CloseTime,
		&c.IsResolved, &resolution, &c.ResolutionProbability, &c.Resolutions,
		&c.ResolutionValue, &c.ResolutionTime,
	)
	if err != nil {
		return domain.Contract{}, err
	}
	c.Mechanism = domain.Mechanism(mechanism)
	c.OutcomeType = domain.OutcomeType(outcomeType)
	if resolution != nil {
		c.Resolution = *resolution
	}
	return c, nil
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
