// Package service hosts the transactional use cases around the pricing
// engines: placing and selling bets, providing liquidity, and resolving
// contracts. Every mutating call takes the contract's distributed lock and
// runs inside a single database transaction, so at most one pricing
// mutation is in flight per contract and its pool, bet, and balance deltas
// land atomically.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/foldmarket/foldmarket/internal/cpmm"
	"github.com/foldmarket/foldmarket/internal/domain"
	"github.com/foldmarket/foldmarket/internal/fees"
	"github.com/foldmarket/foldmarket/internal/numeric"
	"github.com/foldmarket/foldmarket/internal/redeem"
	"github.com/foldmarket/foldmarket/internal/trade"
)

// TradeService handles bet placement and sales.
type TradeService struct {
	tx      domain.TxRunner
	locks   domain.LockManager
	probs   domain.ProbCache
	sched   fees.Schedule
	lockTTL time.Duration
	logger  *slog.Logger
}

// NewTradeService creates a TradeService with all required dependencies.
func NewTradeService(
	tx domain.TxRunner,
	locks domain.LockManager,
	probs domain.ProbCache,
	sched fees.Schedule,
	lockTTL time.Duration,
	logger *slog.Logger,
) *TradeService {
	return &TradeService{
		tx:      tx,
		locks:   locks,
		probs:   probs,
		sched:   sched,
		lockTTL: lockTTL,
		logger:  logger,
	}
}

// PlaceBetRequest describes one incoming bet.
type PlaceBetRequest struct {
	ContractID string
	UserID     string
	// Outcome is YES/NO for binary contracts, an answer id for multi-outcome
	// contracts, or a bucket index for numeric contracts.
	Outcome string
	Amount  float64
	// LimitProb turns a CPMM bet into a limit order resting at that
	// probability.
	LimitProb *float64
}

// PlaceBet prices and commits a bet: it debits the bettor, applies maker
// fills and cancellations, writes the bet, updates the contract's pool
// state, and nets any offsetting YES/NO pairs the bettor now holds.
func (s *TradeService) PlaceBet(ctx context.Context, req PlaceBetRequest) (domain.Bet, error) {
	unlock, err := s.locks.Acquire(ctx, req.ContractID, s.lockTTL)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("trade_service: place bet: %w", err)
	}
	defer unlock()

	now := time.Now().UTC()
	var placed domain.Bet
	var probAfter float64

	err = s.tx.RunInTx(ctx, func(stores domain.Stores) error {
		contract, err := stores.Contracts.GetByID(ctx, req.ContractID)
		if err != nil {
			return fmt.Errorf("trade_service: load contract: %w", err)
		}
		if err := tradeable(&contract, now); err != nil {
			return err
		}

		balance, err := stores.Users.GetBalance(ctx, req.UserID)
		if err != nil {
			return fmt.Errorf("trade_service: load balance: %w", err)
		}
		if !numeric.GreaterEqual(balance, req.Amount) {
			return fmt.Errorf("trade_service: bet %v with balance %v: %w",
				req.Amount, balance, domain.ErrInsufficientBalance)
		}

		switch {
		case contract.IsBinaryCPMM():
			placed, probAfter, err = s.placeBinaryCPMMBet(ctx, stores, &contract, req, now)
		case contract.Mechanism == domain.MechanismDPM:
			placed, probAfter, err = s.placeDPMBet(ctx, stores, &contract, req, now)
		default:
			err = fmt.Errorf("trade_service: %s/%s: %w",
				contract.Mechanism, contract.OutcomeType, domain.ErrUnsupportedMechanism)
		}
		if err != nil {
			return err
		}

		// The bettor pays the filled amount; an unfilled limit remainder
		// stays reserved against the order, not the balance.
		if err := stores.Users.AddToBalance(ctx, req.UserID, -placed.Amount); err != nil {
			return fmt.Errorf("trade_service: debit bettor: %w", err)
		}

		if contract.IsBinaryCPMM() {
			if err := s.redeemPairs(ctx, stores, &contract, req.UserID, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Bet{}, err
	}

	s.cacheProb(ctx, req.ContractID, probAfter, now)
	s.logger.InfoContext(ctx, "trade_service: bet placed",
		slog.String("contract_id", req.ContractID),
		slog.String("bet_id", placed.ID),
		slog.String("outcome", placed.Outcome),
		slog.Float64("amount", placed.Amount),
		slog.Float64("shares", placed.Shares),
	)
	return placed, nil
}

func (s *TradeService) placeBinaryCPMMBet(ctx context.Context, stores domain.Stores, contract *domain.Contract, req PlaceBetRequest, now time.Time) (domain.Bet, float64, error) {
	unfilled, err := stores.Bets.ListUnfilled(ctx, req.ContractID)
	if err != nil {
		return domain.Bet{}, 0, fmt.Errorf("trade_service: load order book: %w", err)
	}
	balances, err := makerBalances(ctx, stores, unfilled)
	if err != nil {
		return domain.Bet{}, 0, err
	}

	res, err := trade.NewBinaryCPMMBet(contract, req.UserID, req.Outcome, req.Amount,
		req.LimitProb, unfilled, balances, s.sched, now)
	if err != nil {
		return domain.Bet{}, 0, err
	}

	if err := stores.Bets.Create(ctx, res.Bet); err != nil {
		return domain.Bet{}, 0, fmt.Errorf("trade_service: create bet: %w", err)
	}
	if err := applyMakers(ctx, stores, res.Bet.ID, res.Makers, now); err != nil {
		return domain.Bet{}, 0, err
	}
	if err := cancelOrders(ctx, stores, res.OrdersToCancel); err != nil {
		return domain.Bet{}, 0, err
	}

	contract.Pool = res.NewPool
	contract.P = res.NewP
	contract.TotalLiquidity = res.NewTotalLiquidity
	contract.CollectedFees = contract.CollectedFees.Add(res.Bet.Fees)
	if err := stores.Contracts.Update(ctx, *contract); err != nil {
		return domain.Bet{}, 0, fmt.Errorf("trade_service: update contract: %w", err)
	}
	return res.Bet, res.Bet.ProbAfter, nil
}

func (s *TradeService) placeDPMBet(ctx context.Context, stores domain.Stores, contract *domain.Contract, req PlaceBetRequest, now time.Time) (domain.Bet, float64, error) {
	var res trade.DPMResult
	var err error
	switch contract.OutcomeType {
	case domain.OutcomeTypeBinary:
		res, err = trade.NewBinaryDPMBet(contract, req.UserID, req.Outcome, req.Amount, now)
	case domain.OutcomeTypeFreeResponse, domain.OutcomeTypeMultipleChoice:
		res, err = trade.NewMultiDPMBet(contract, req.UserID, req.Outcome, req.Amount, now)
	case domain.OutcomeTypeNumeric:
		res, err = trade.NewNumericDPMBet(contract, req.UserID, req.Outcome, req.Amount, now)
	default:
		err = fmt.Errorf("trade_service: dpm %s: %w", contract.OutcomeType, domain.ErrUnsupportedMechanism)
	}
	if err != nil {
		return domain.Bet{}, 0, err
	}

	if err := stores.Bets.Create(ctx, res.Bet); err != nil {
		return domain.Bet{}, 0, fmt.Errorf("trade_service: create bet: %w", err)
	}

	contract.Pool = res.NewPool
	contract.TotalShares = res.NewTotalShares
	contract.TotalBets = res.NewTotalBets
	if err := stores.Contracts.Update(ctx, *contract); err != nil {
		return domain.Bet{}, 0, fmt.Errorf("trade_service: update contract: %w", err)
	}
	return res.Bet, res.Bet.ProbAfter, nil
}

// SellSharesRequest sells part of a user's binary CPMM position.
type SellSharesRequest struct {
	ContractID string
	UserID     string
	Outcome    string
	// Shares is how many shares to sell; zero or negative sells the whole
	// position.
	Shares float64
}

// SellShares sells shares back to a binary CPMM market and credits the
// proceeds, repaying outstanding loans in proportion to the fraction sold.
func (s *TradeService) SellShares(ctx context.Context, req SellSharesRequest) (domain.Bet, error) {
	unlock, err := s.locks.Acquire(ctx, req.ContractID, s.lockTTL)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("trade_service: sell shares: %w", err)
	}
	defer unlock()

	now := time.Now().UTC()
	var saleBet domain.Bet
	var probAfter float64

	err = s.tx.RunInTx(ctx, func(stores domain.Stores) error {
		contract, err := stores.Contracts.GetByID(ctx, req.ContractID)
		if err != nil {
			return fmt.Errorf("trade_service: load contract: %w", err)
		}
		if err := tradeable(&contract, now); err != nil {
			return err
		}
		if !contract.IsBinaryCPMM() {
			return fmt.Errorf("trade_service: sell shares on %s/%s: %w",
				contract.Mechanism, contract.OutcomeType, domain.ErrUnsupportedMechanism)
		}

		userBets, err := stores.Bets.ListByUser(ctx, req.ContractID, req.UserID)
		if err != nil {
			return fmt.Errorf("trade_service: load position: %w", err)
		}
		held, loanAmount := position(userBets, req.Outcome)

		shares := req.Shares
		if shares <= 0 {
			shares = held
		}
		if !numeric.GreaterEqual(held, shares) || shares <= 0 {
			return fmt.Errorf("trade_service: sell %v of %v held: %w",
				shares, held, domain.ErrInsufficientShares)
		}

		// Loans are repaid pro rata with the fraction of the position sold.
		loanPaid := 0.0
		if held > 0 {
			loanPaid = loanAmount * (shares / held)
		}

		unfilled, err := stores.Bets.ListUnfilled(ctx, req.ContractID)
		if err != nil {
			return fmt.Errorf("trade_service: load order book: %w", err)
		}
		balances, err := makerBalances(ctx, stores, unfilled)
		if err != nil {
			return err
		}

		res, err := trade.NewCPMMSellBet(&contract, req.UserID, req.Outcome, shares, loanPaid,
			unfilled, balances, s.sched, now)
		if err != nil {
			return err
		}

		if err := stores.Bets.Create(ctx, res.Bet); err != nil {
			return fmt.Errorf("trade_service: create sale bet: %w", err)
		}
		if err := applyMakers(ctx, stores, res.Bet.ID, res.Makers, now); err != nil {
			return err
		}
		if err := cancelOrders(ctx, stores, res.OrdersToCancel); err != nil {
			return err
		}

		contract.Pool = res.NewPool
		contract.P = res.NewP
		contract.TotalLiquidity += res.Bet.Fees.LiquidityFee
		contract.CollectedFees = contract.CollectedFees.Add(res.Bet.Fees)
		if err := stores.Contracts.Update(ctx, contract); err != nil {
			return fmt.Errorf("trade_service: update contract: %w", err)
		}

		if err := stores.Users.AddToBalance(ctx, req.UserID, res.SaleValue-loanPaid); err != nil {
			return fmt.Errorf("trade_service: credit seller: %w", err)
		}

		saleBet = res.Bet
		probAfter = res.Bet.ProbAfter
		return nil
	})
	if err != nil {
		return domain.Bet{}, err
	}

	s.cacheProb(ctx, req.ContractID, probAfter, now)
	s.logger.InfoContext(ctx, "trade_service: shares sold",
		slog.String("contract_id", req.ContractID),
		slog.String("bet_id", saleBet.ID),
		slog.Float64("shares", -saleBet.Shares),
	)
	return saleBet, nil
}

// SellBet unwinds a whole DPM bet at its solvency-clamped share value.
func (s *TradeService) SellBet(ctx context.Context, contractID, userID, betID string) (domain.Bet, error) {
	unlock, err := s.locks.Acquire(ctx, contractID, s.lockTTL)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("trade_service: sell bet: %w", err)
	}
	defer unlock()

	now := time.Now().UTC()
	var saleBet domain.Bet
	var probAfter float64

	err = s.tx.RunInTx(ctx, func(stores domain.Stores) error {
		contract, err := stores.Contracts.GetByID(ctx, contractID)
		if err != nil {
			return fmt.Errorf("trade_service: load contract: %w", err)
		}
		if err := tradeable(&contract, now); err != nil {
			return err
		}
		if contract.Mechanism != domain.MechanismDPM {
			return fmt.Errorf("trade_service: sell bet on %s: %w",
				contract.Mechanism, domain.ErrUnsupportedMechanism)
		}

		bet, err := stores.Bets.GetByID(ctx, betID)
		if err != nil {
			return fmt.Errorf("trade_service: load bet: %w", err)
		}
		if bet.UserID != userID || bet.ContractID != contractID {
			return fmt.Errorf("trade_service: bet %s: %w", betID, domain.ErrNotFound)
		}

		res, err := trade.NewDPMSellBet(&contract, &bet, s.sched, now)
		if err != nil {
			return err
		}

		if err := stores.Bets.Create(ctx, res.Bet); err != nil {
			return fmt.Errorf("trade_service: create sale bet: %w", err)
		}
		if err := stores.Bets.MarkSold(ctx, betID); err != nil {
			return fmt.Errorf("trade_service: mark sold: %w", err)
		}

		contract.Pool = res.NewPool
		contract.TotalShares = res.NewTotalShares
		contract.TotalBets = res.NewTotalBets
		contract.CollectedFees = contract.CollectedFees.Add(res.Fees)
		if err := stores.Contracts.Update(ctx, contract); err != nil {
			return fmt.Errorf("trade_service: update contract: %w", err)
		}

		if err := stores.Users.AddToBalance(ctx, userID, res.SaleValue); err != nil {
			return fmt.Errorf("trade_service: credit seller: %w", err)
		}

		saleBet = res.Bet
		probAfter = res.Bet.ProbAfter
		return nil
	})
	if err != nil {
		return domain.Bet{}, err
	}

	s.cacheProb(ctx, contractID, probAfter, now)
	return saleBet, nil
}

// CancelOrder cancels a user's resting limit order.
func (s *TradeService) CancelOrder(ctx context.Context, contractID, userID, betID string) error {
	unlock, err := s.locks.Acquire(ctx, contractID, s.lockTTL)
	if err != nil {
		return fmt.Errorf("trade_service: cancel order: %w", err)
	}
	defer unlock()

	return s.tx.RunInTx(ctx, func(stores domain.Stores) error {
		bet, err := stores.Bets.GetByID(ctx, betID)
		if err != nil {
			return fmt.Errorf("trade_service: load order: %w", err)
		}
		if bet.UserID != userID || bet.ContractID != contractID || bet.LimitProb == nil {
			return fmt.Errorf("trade_service: order %s: %w", betID, domain.ErrNotFound)
		}
		if err := stores.Bets.Cancel(ctx, betID); err != nil {
			return fmt.Errorf("trade_service: cancel order: %w", err)
		}
		return nil
	})
}

// redeemPairs nets any matched YES/NO share pairs the user holds after a
// trade: matched pairs are worth exactly one unit each, so they convert to
// balance without touching the pool.
func (s *TradeService) redeemPairs(ctx context.Context, stores domain.Stores, contract *domain.Contract, userID string, now time.Time) error {
	userBets, err := stores.Bets.ListByUser(ctx, contract.ID, userID)
	if err != nil {
		return fmt.Errorf("trade_service: load position for redemption: %w", err)
	}

	amount := redeem.RedeemableAmount(openOnly(userBets))
	if numeric.ApproxEqual(amount.Shares, 0) {
		return nil
	}

	bets := redeem.RedemptionBets(contract, userID, amount.Shares, amount.LoanPayment, now)
	if err := stores.Bets.CreateBatch(ctx, bets); err != nil {
		return fmt.Errorf("trade_service: create redemption bets: %w", err)
	}
	if err := stores.Users.AddToBalance(ctx, userID, amount.NetAmount); err != nil {
		return fmt.Errorf("trade_service: credit redemption: %w", err)
	}
	return nil
}

func (s *TradeService) cacheProb(ctx context.Context, contractID string, prob float64, ts time.Time) {
	if s.probs == nil {
		return
	}
	if err := s.probs.SetProbability(ctx, contractID, prob, ts); err != nil {
		s.logger.WarnContext(ctx, "trade_service: probability cache update failed",
			slog.String("contract_id", contractID),
			slog.String("error", err.Error()),
		)
	}
}

// tradeable rejects mutations on resolved or closed contracts.
func tradeable(contract *domain.Contract, now time.Time) error {
	if contract.IsResolved {
		return fmt.Errorf("trade_service: contract %s: %w", contract.ID, domain.ErrContractResolved)
	}
	if contract.IsClosed(now) {
		return fmt.Errorf("trade_service: contract %s: %w", contract.ID, domain.ErrContractClosed)
	}
	return nil
}

// makerBalances loads the balances of every resting order's owner so the
// matching engine can skip makers who cannot cover a fill.
func makerBalances(ctx context.Context, stores domain.Stores, unfilled []domain.Bet) (map[string]float64, error) {
	if len(unfilled) == 0 {
		return nil, nil
	}
	seen := make(map[string]bool, len(unfilled))
	userIDs := make([]string, 0, len(unfilled))
	for _, bet := range unfilled {
		if !seen[bet.UserID] {
			seen[bet.UserID] = true
			userIDs = append(userIDs, bet.UserID)
		}
	}
	balances, err := stores.Users.GetBalances(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("trade_service: load maker balances: %w", err)
	}
	return balances, nil
}

// applyMakers records each maker fill: the resting order gains a fill entry
// and its owner pays the matched amount.
func applyMakers(ctx context.Context, stores domain.Stores, takerBetID string, makers []cpmm.Maker, now time.Time) error {
	for _, maker := range makers {
		filled := maker.Bet.Amount + maker.Amount
		isFilled := numeric.ApproxEqual(maker.Bet.OrderAmount, filled)

		fill := domain.Fill{
			MatchedBetID: takerBetID,
			Amount:       maker.Amount,
			Shares:       maker.Shares,
			Timestamp:    now,
		}
		if err := stores.Bets.ApplyFill(ctx, maker.Bet.ID, fill, isFilled); err != nil {
			return fmt.Errorf("trade_service: apply maker fill: %w", err)
		}
		if err := stores.Users.AddToBalance(ctx, maker.Bet.UserID, -maker.Amount); err != nil {
			return fmt.Errorf("trade_service: debit maker: %w", err)
		}
	}
	return nil
}

func cancelOrders(ctx context.Context, stores domain.Stores, orders []domain.Bet) error {
	for _, order := range orders {
		if err := stores.Bets.Cancel(ctx, order.ID); err != nil {
			return fmt.Errorf("trade_service: cancel underfunded order: %w", err)
		}
	}
	return nil
}

// position sums a user's open shares on one outcome and their outstanding
// loan across the contract.
func position(bets []domain.Bet, outcome string) (shares, loanAmount float64) {
	for _, bet := range bets {
		if !bet.IsOpen() {
			continue
		}
		if bet.Outcome == outcome {
			shares += bet.Shares
		}
		loanAmount += bet.LoanAmount
	}
	return shares, loanAmount
}

func openOnly(bets []domain.Bet) []domain.Bet {
	open := make([]domain.Bet, 0, len(bets))
	for _, bet := range bets {
		if bet.IsOpen() {
			open = append(open, bet)
		}
	}
	return open
}
