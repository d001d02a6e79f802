// Package economy presents a synchronous facade over the asynchronous ledger
// for external collaborators whose interface contract requires blocking calls.
// This is the single permitted blocking boundary in the system; no other
// caller should wait on ledger handles from a latency-sensitive path.
package economy

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Sismei/CreamCurrency/internal/audit"
	"github.com/Sismei/CreamCurrency/internal/currency"
	"github.com/Sismei/CreamCurrency/internal/ledger"
	"github.com/Sismei/CreamCurrency/internal/logger"
)

var (
	// ErrInvalidAmount reports a non-positive transaction amount
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrPaymentsDisabled reports that the receiver has opted out of payments
	ErrPaymentsDisabled = errors.New("receiver has payments disabled")
	// ErrNotPayable reports a currency whose definition forbids player payments
	ErrNotPayable = errors.New("currency is not payable")
	// ErrNoPrimaryCurrency reports that no primary currency is configured
	ErrNoPrimaryCurrency = errors.New("no primary currency configured")
)

// Service is the blocking bridge. All methods wait for the underlying ledger
// handle to resolve before returning.
type Service struct {
	ledger     *ledger.Ledger
	currencies *currency.Manager
	sink       audit.Sink
}

// NewService creates the facade over the given ledger
func NewService(l *ledger.Ledger, currencies *currency.Manager, sink audit.Sink) *Service {
	return &Service{ledger: l, currencies: currencies, sink: sink}
}

// Balance returns the player's primary-currency balance. A store fault
// degrades to zero, favoring availability: the external contract has no error
// channel for reads.
func (s *Service) Balance(ctx context.Context, playerID uuid.UUID) float64 {
	primary := s.currencies.Primary()
	if primary == nil {
		return 0
	}
	balance, err := s.ledger.GetBalance(ctx, playerID, primary.ID).Wait(ctx)
	if err != nil {
		logger.Warn("Economy balance read failed", "player", playerID, "error", err)
		return 0
	}
	return balance
}

// Has reports whether the player holds at least amount of the primary currency
func (s *Service) Has(ctx context.Context, playerID uuid.UUID, amount float64) bool {
	return s.Balance(ctx, playerID) >= amount
}

// Deposit adds amount to the player's primary-currency balance and returns the
// new balance
func (s *Service) Deposit(ctx context.Context, playerID uuid.UUID, playerName string, amount float64) (float64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	primary := s.currencies.Primary()
	if primary == nil {
		return 0, ErrNoPrimaryCurrency
	}

	newBalance, err := s.ledger.AddBalance(ctx, playerID, playerName, primary.ID, amount).Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("deposit failed: %w", err)
	}
	s.sink.Transaction("DEPOSIT", playerID, playerName, amount, newBalance)
	return newBalance, nil
}

// Withdraw removes amount from the player's primary-currency balance and
// returns the new balance. Resolves with ledger.ErrInsufficientFunds when the
// balance is too low.
func (s *Service) Withdraw(ctx context.Context, playerID uuid.UUID, playerName string, amount float64) (float64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	primary := s.currencies.Primary()
	if primary == nil {
		return 0, ErrNoPrimaryCurrency
	}

	newBalance, err := s.ledger.Withdraw(ctx, playerID, playerName, primary.ID, amount).Wait(ctx)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			return newBalance, err
		}
		return 0, fmt.Errorf("withdraw failed: %w", err)
	}
	s.sink.Transaction("WITHDRAW", playerID, playerName, amount, newBalance)
	return newBalance, nil
}

// Pay transfers amount of a currency from sender to receiver: withdraw from
// the sender, deposit to the receiver, then notify the audit sink. The
// currency must be payable and the receiver must not have payments disabled.
func (s *Service) Pay(ctx context.Context, sender uuid.UUID, senderName string, receiver uuid.UUID, receiverName, currencyID string, amount float64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	cur := s.currencies.Get(currencyID)
	if cur == nil {
		return fmt.Errorf("unknown currency %q", currencyID)
	}
	if !cur.Payable {
		return ErrNotPayable
	}

	disabled, err := s.ledger.PaymentsDisabled(ctx, receiver).Wait(ctx)
	if err != nil {
		return fmt.Errorf("could not check receiver settings: %w", err)
	}
	if disabled {
		return ErrPaymentsDisabled
	}

	if _, err := s.ledger.Withdraw(ctx, sender, senderName, currencyID, amount).Wait(ctx); err != nil {
		return err
	}
	if _, err := s.ledger.AddBalance(ctx, receiver, receiverName, currencyID, amount).Wait(ctx); err != nil {
		return fmt.Errorf("deposit to receiver failed: %w", err)
	}

	s.sink.Payment(sender, senderName, receiver, receiverName, currencyID, amount)
	return nil
}

// Format renders an amount in the primary currency's display format
func (s *Service) Format(amount float64) string {
	primary := s.currencies.Primary()
	if primary == nil {
		return fmt.Sprintf("%.2f", amount)
	}
	return primary.Format(amount)
}
