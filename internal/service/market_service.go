package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/foldmarket/foldmarket/internal/calc"
	"github.com/foldmarket/foldmarket/internal/domain"
	"github.com/foldmarket/foldmarket/internal/dpm"
	"github.com/foldmarket/foldmarket/internal/numeric"
)

// MarketService creates contracts and serves read paths.
type MarketService struct {
	tx          domain.TxRunner
	probs       domain.ProbCache
	defaultAnte float64
	logger      *slog.Logger
}

// NewMarketService creates a MarketService.
func NewMarketService(tx domain.TxRunner, probs domain.ProbCache, defaultAnte float64, logger *slog.Logger) *MarketService {
	return &MarketService{
		tx:          tx,
		probs:       probs,
		defaultAnte: defaultAnte,
		logger:      logger,
	}
}

// CreateContractRequest describes a new contract.
type CreateContractRequest struct {
	CreatorID   string
	Question    string
	Mechanism   domain.Mechanism
	OutcomeType domain.OutcomeType
	// InitialProbPercent seeds binary contracts, as a whole percentage.
	InitialProbPercent int
	// Ante is the creator's subsidy; zero uses the configured default.
	Ante      float64
	CloseTime *time.Time
	// Numeric contracts only.
	BucketCount int
	Min         float64
	Max         float64
}

// CreateContract seeds and persists a new contract, funding the initial
// pool from the creator's balance.
func (s *MarketService) CreateContract(ctx context.Context, req CreateContractRequest) (domain.Contract, error) {
	ante := req.Ante
	if ante <= 0 {
		ante = s.defaultAnte
	}

	isBinary := req.OutcomeType == domain.OutcomeTypeBinary ||
		req.OutcomeType == domain.OutcomeTypePseudoNumeric
	if isBinary && (req.InitialProbPercent <= 0 || req.InitialProbPercent >= 100) {
		return domain.Contract{}, fmt.Errorf("market_service: initial prob %d%%: %w",
			req.InitialProbPercent, domain.ErrInvalidProbability)
	}
	if req.OutcomeType == domain.OutcomeTypeNumeric {
		if req.BucketCount <= 0 {
			req.BucketCount = dpm.DefaultBucketCount
		}
		if !(req.Min < req.Max) {
			return domain.Contract{}, fmt.Errorf("market_service: range [%v, %v): %w",
				req.Min, req.Max, domain.ErrInvalidAmount)
		}
	}

	now := time.Now().UTC()
	contract := domain.Contract{
		ID:          uuid.NewString(),
		CreatorID:   req.CreatorID,
		Question:    req.Question,
		Mechanism:   req.Mechanism,
		OutcomeType: req.OutcomeType,
		BucketCount: req.BucketCount,
		Min:         req.Min,
		Max:         req.Max,
		CreatedAt:   now,
		CloseTime:   req.CloseTime,
	}

	var anteBets []domain.Bet
	var anteProvision *domain.LiquidityProvision

	switch req.Mechanism {
	case domain.MechanismCPMM:
		if !isBinary {
			return domain.Contract{}, fmt.Errorf("market_service: cpmm %s: %w",
				req.OutcomeType, domain.ErrUnsupportedMechanism)
		}
		contract.Pool = map[string]float64{
			domain.OutcomeYes: ante,
			domain.OutcomeNo:  ante,
		}
		contract.P = float64(req.InitialProbPercent) / 100
		contract.TotalLiquidity = ante
		anteProvision = &domain.LiquidityProvision{
			ID:         uuid.NewString(),
			UserID:     req.CreatorID,
			ContractID: contract.ID,
			Amount:     ante,
			Liquidity:  ante,
			P:          contract.P,
			Pool: map[string]float64{
				domain.OutcomeYes: 0,
				domain.OutcomeNo:  0,
			},
			IsAnte:    true,
			CreatedAt: now,
		}

	case domain.MechanismDPM:
		if isBinary {
			seed := dpm.NewInitialPool(req.InitialProbPercent, ante, 0)
			contract.Pool = map[string]float64{
				domain.OutcomeYes: seed.PoolYes,
				domain.OutcomeNo:  seed.PoolNo,
			}
			contract.TotalShares = map[string]float64{
				domain.OutcomeYes: seed.SharesYes,
				domain.OutcomeNo:  seed.SharesNo,
			}
			contract.TotalBets = map[string]float64{
				domain.OutcomeYes: seed.PoolYes,
				domain.OutcomeNo:  seed.PoolNo,
			}
			contract.PhantomShares = map[string]float64{
				domain.OutcomeYes: seed.PhantomYes,
				domain.OutcomeNo:  seed.PhantomNo,
			}
			prob := dpm.Probability(contract.TotalShares)
			anteBets = []domain.Bet{
				anteBet(&contract, domain.OutcomeYes, seed.PoolYes, seed.SharesYes, prob, now),
				anteBet(&contract, domain.OutcomeNo, seed.PoolNo, seed.SharesNo, prob, now),
			}
		} else {
			contract.Pool = map[string]float64{}
			contract.TotalShares = map[string]float64{}
			contract.TotalBets = map[string]float64{}
		}

	default:
		return domain.Contract{}, fmt.Errorf("market_service: mechanism %q: %w",
			req.Mechanism, domain.ErrUnsupportedMechanism)
	}

	err := s.tx.RunInTx(ctx, func(stores domain.Stores) error {
		balance, err := stores.Users.GetBalance(ctx, req.CreatorID)
		if err != nil {
			return fmt.Errorf("market_service: load creator balance: %w", err)
		}
		if !numeric.GreaterEqual(balance, ante) {
			return fmt.Errorf("market_service: ante %v with balance %v: %w",
				ante, balance, domain.ErrInsufficientBalance)
		}

		if err := stores.Contracts.Create(ctx, contract); err != nil {
			return fmt.Errorf("market_service: create contract: %w", err)
		}
		if anteProvision != nil {
			if err := stores.Liquidity.Create(ctx, *anteProvision); err != nil {
				return fmt.Errorf("market_service: create ante provision: %w", err)
			}
		}
		if err := stores.Bets.CreateBatch(ctx, anteBets); err != nil {
			return fmt.Errorf("market_service: create ante bets: %w", err)
		}
		if err := stores.Users.AddToBalance(ctx, req.CreatorID, -ante); err != nil {
			return fmt.Errorf("market_service: debit creator: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Contract{}, err
	}

	s.logger.InfoContext(ctx, "market_service: contract created",
		slog.String("contract_id", contract.ID),
		slog.String("mechanism", string(contract.Mechanism)),
		slog.String("outcome_type", string(contract.OutcomeType)),
		slog.Float64("ante", ante),
	)
	return contract, nil
}

func anteBet(contract *domain.Contract, outcome string, amount, shares, prob float64, now time.Time) domain.Bet {
	return domain.Bet{
		ID:         uuid.NewString(),
		UserID:     contract.CreatorID,
		ContractID: contract.ID,
		Outcome:    outcome,
		Amount:     amount,
		Shares:     shares,
		ProbBefore: prob,
		ProbAfter:  prob,
		Fees:       domain.NoFees,
		IsAnte:     true,
		CreatedAt:  now,
	}
}

// GetContract loads one contract.
func (s *MarketService) GetContract(ctx context.Context, contractID string) (domain.Contract, error) {
	var contract domain.Contract
	err := s.tx.RunInTx(ctx, func(stores domain.Stores) error {
		var err error
		contract, err = stores.Contracts.GetByID(ctx, contractID)
		return err
	})
	if err != nil {
		return domain.Contract{}, fmt.Errorf("market_service: get contract %s: %w", contractID, err)
	}
	return contract, nil
}

// ListOpenContracts lists unresolved contracts.
func (s *MarketService) ListOpenContracts(ctx context.Context, opts domain.ListOpts) ([]domain.Contract, error) {
	var contracts []domain.Contract
	err := s.tx.RunInTx(ctx, func(stores domain.Stores) error {
		var err error
		contracts, err = stores.Contracts.ListOpen(ctx, opts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("market_service: list open contracts: %w", err)
	}
	return contracts, nil
}

// Probability returns the contract's current probability, served from cache
// when fresh and recomputed from the store otherwise.
func (s *MarketService) Probability(ctx context.Context, contractID string) (float64, error) {
	if s.probs != nil {
		if prob, _, err := s.probs.GetProbability(ctx, contractID); err == nil {
			return prob, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "market_service: probability cache read failed",
				slog.String("contract_id", contractID),
				slog.String("error", err.Error()),
			)
		}
	}

	contract, err := s.GetContract(ctx, contractID)
	if err != nil {
		return 0, err
	}
	prob, err := calc.Probability(&contract)
	if err != nil {
		return 0, err
	}

	if s.probs != nil {
		if err := s.probs.SetProbability(ctx, contractID, prob, time.Now().UTC()); err != nil {
			s.logger.WarnContext(ctx, "market_service: probability cache update failed",
				slog.String("contract_id", contractID),
				slog.String("error", err.Error()),
			)
		}
	}
	return prob, nil
}
