package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/foldmarket/foldmarket/internal/domain"
	"github.com/foldmarket/foldmarket/internal/fees"
	"github.com/foldmarket/foldmarket/internal/payouts"
)

// ResolutionService settles contracts: it computes payouts for the chosen
// outcome, nets outstanding loans, credits balances, freezes the contract,
// and archives the settlement report.
type ResolutionService struct {
	tx       domain.TxRunner
	locks    domain.LockManager
	probs    domain.ProbCache
	archiver domain.Archiver
	sched    fees.Schedule
	lockTTL  time.Duration
	logger   *slog.Logger
}

// NewResolutionService creates a ResolutionService. archiver may be nil to
// disable settlement archival.
func NewResolutionService(
	tx domain.TxRunner,
	locks domain.LockManager,
	probs domain.ProbCache,
	archiver domain.Archiver,
	sched fees.Schedule,
	lockTTL time.Duration,
	logger *slog.Logger,
) *ResolutionService {
	return &ResolutionService{
		tx:       tx,
		locks:    locks,
		probs:    probs,
		archiver: archiver,
		sched:    sched,
		lockTTL:  lockTTL,
		logger:   logger,
	}
}

// ResolveRequest describes one resolution.
type ResolveRequest struct {
	ContractID string
	// Outcome is YES/NO/MKT/CANCEL, an answer id, or a bucket index.
	Outcome string
	// Probability is the settlement probability for MKT resolutions of
	// binary contracts.
	Probability *float64
	// Resolutions holds weighted multi-outcome percentages for MKT
	// resolutions of free-response and multiple-choice contracts.
	Resolutions map[string]float64
	// Value is the resolved numeric value, recorded for reporting.
	Value *float64
}

// Resolve settles the contract once. Resolving an already-resolved contract
// returns ErrContractResolved; all state changes commit atomically.
func (s *ResolutionService) Resolve(ctx context.Context, req ResolveRequest) (payouts.Info, error) {
	unlock, err := s.locks.Acquire(ctx, req.ContractID, s.lockTTL)
	if err != nil {
		return payouts.Info{}, fmt.Errorf("resolution_service: resolve: %w", err)
	}
	defer unlock()

	now := time.Now().UTC()
	var info payouts.Info
	var resolved domain.Contract
	var lineItems []domain.Payout

	err = s.tx.RunInTx(ctx, func(stores domain.Stores) error {
		contract, err := stores.Contracts.GetByID(ctx, req.ContractID)
		if err != nil {
			return fmt.Errorf("resolution_service: load contract: %w", err)
		}
		if contract.IsResolved {
			return fmt.Errorf("resolution_service: contract %s: %w",
				req.ContractID, domain.ErrContractResolved)
		}

		bets, err := stores.Bets.ListByContract(ctx, req.ContractID)
		if err != nil {
			return fmt.Errorf("resolution_service: load bets: %w", err)
		}
		liquidities, err := stores.Liquidity.ListByContract(ctx, req.ContractID)
		if err != nil {
			return fmt.Errorf("resolution_service: load liquidity: %w", err)
		}

		info, err = payouts.Compute(req.Outcome, &contract, bets, liquidities,
			req.Resolutions, req.Probability, s.sched)
		if err != nil {
			return err
		}
		loans := payouts.LoanPayouts(openOnly(bets))

		// One ledger of balance deltas: winners, the creator's fee, the
		// liquidity providers' pool claims, and loan clawbacks.
		lineItems = make([]domain.Payout, 0, len(info.Payouts)+len(info.LiquidityPayouts)+len(loans)+1)
		lineItems = append(lineItems, info.Payouts...)
		lineItems = append(lineItems, info.LiquidityPayouts...)
		lineItems = append(lineItems, loans...)
		if info.CreatorPayout != 0 {
			lineItems = append(lineItems, domain.Payout{
				UserID: contract.CreatorID,
				Payout: info.CreatorPayout,
			})
		}

		if err := stores.Payouts.CreateBatch(ctx, req.ContractID, lineItems); err != nil {
			return fmt.Errorf("resolution_service: persist payouts: %w", err)
		}
		if err := stores.Users.AddToBalances(ctx, payouts.GroupByUser(lineItems)); err != nil {
			return fmt.Errorf("resolution_service: credit payouts: %w", err)
		}

		contract.IsResolved = true
		contract.Resolution = req.Outcome
		contract.ResolutionProbability = req.Probability
		contract.Resolutions = req.Resolutions
		contract.ResolutionValue = req.Value
		contract.ResolutionTime = &now
		contract.CollectedFees = info.CollectedFees
		if err := stores.Contracts.Update(ctx, contract); err != nil {
			return fmt.Errorf("resolution_service: freeze contract: %w", err)
		}

		resolved = contract
		return nil
	})
	if err != nil {
		return payouts.Info{}, err
	}

	if s.probs != nil {
		if err := s.probs.Invalidate(ctx, req.ContractID); err != nil {
			s.logger.WarnContext(ctx, "resolution_service: probability cache invalidate failed",
				slog.String("contract_id", req.ContractID),
				slog.String("error", err.Error()),
			)
		}
	}

	// Archival is best effort: the resolution already committed, and the
	// background sweep will pick up anything missed here.
	if s.archiver != nil {
		path, err := s.archiver.ArchiveSettlement(ctx, resolved, lineItems)
		if err != nil {
			s.logger.WarnContext(ctx, "resolution_service: settlement archive failed",
				slog.String("contract_id", req.ContractID),
				slog.String("error", err.Error()),
			)
		} else {
			s.logger.InfoContext(ctx, "resolution_service: settlement archived",
				slog.String("contract_id", req.ContractID),
				slog.String("path", path),
			)
		}
	}

	s.logger.InfoContext(ctx, "resolution_service: contract resolved",
		slog.String("contract_id", req.ContractID),
		slog.String("outcome", req.Outcome),
		slog.Int("payout_count", len(lineItems)),
	)
	return info, nil
}
