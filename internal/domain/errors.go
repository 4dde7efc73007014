package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrAlreadyExists        = errors.New("already exists")
	ErrLockHeld             = errors.New("lock already held")
	ErrInvalidAmount        = errors.New("invalid bet amount")
	ErrInvalidShares        = errors.New("invalid share count")
	ErrInvalidOutcome       = errors.New("invalid outcome")
	ErrInvalidProbability   = errors.New("invalid probability")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrInsufficientShares   = errors.New("insufficient shares to sell")
	ErrTradeTooLarge        = errors.New("trade too large for current liquidity pool")
	ErrLiquidityTooLow      = errors.New("not enough liquidity to withdraw")
	ErrContractClosed       = errors.New("contract is closed for trading")
	ErrContractResolved     = errors.New("contract already resolved")
	ErrContractNotResolved  = errors.New("contract not resolved")
	ErrUnsupportedMechanism = errors.New("unsupported mechanism for operation")
)
