// Package audit records ledger mutations for operational review. Events are
// fire-and-forget: recording never blocks or fails the triggering operation.
package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Sismei/CreamCurrency/internal/logger"
)

// Sink receives structured event records from ledger callers
type Sink interface {
	Payment(sender uuid.UUID, senderName string, receiver uuid.UUID, receiverName, currencyID string, amount float64)
	AdminGive(adminName string, target uuid.UUID, targetName, currencyID string, amount, newBalance float64)
	AdminSet(adminName string, target uuid.UUID, targetName, currencyID string, oldBalance, newBalance float64)
	AdminRemove(adminName string, target uuid.UUID, targetName, currencyID string, amount, newBalance float64)
	Transaction(kind string, player uuid.UUID, playerName string, amount, newBalance float64)
	Close()
}

type event struct {
	category string
	message  string
}

// FileSink appends events to per-category daily log files under a base
// directory (logs/pay, logs/admin, logs/api). A single worker drains the
// queue; a full queue drops the event with a warning.
type FileSink struct {
	dir    string
	events chan event
	done   chan struct{}
}

// NewFileSink creates the sink and starts its worker
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create audit log directory: %w", err)
	}
	s := &FileSink{
		dir:    dir,
		events: make(chan event, 256),
		done:   make(chan struct{}),
	}
	go s.worker()
	return s, nil
}

func (s *FileSink) worker() {
	defer close(s.done)
	for ev := range s.events {
		s.write(ev)
	}
}

func (s *FileSink) write(ev event) {
	now := time.Now()
	categoryDir := filepath.Join(s.dir, ev.category)
	if err := os.MkdirAll(categoryDir, 0o755); err != nil {
		logger.Warn("Failed to create audit log directory", "category", ev.category, "error", err)
		return
	}

	fileName := fmt.Sprintf("%s-%s.log", ev.category, now.Format("2006-01-02"))
	line := fmt.Sprintf("[%s] %s\n", now.Format("15:04:05"), ev.message)

	f, err := os.OpenFile(filepath.Join(categoryDir, fileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		logger.Warn("Failed to open audit log", "category", ev.category, "error", err)
		return
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		logger.Warn("Failed to write audit log", "category", ev.category, "error", err)
	}
}

func (s *FileSink) submit(category, message string) {
	select {
	case s.events <- event{category: category, message: message}:
	default:
		// Queue saturated; drop rather than block the ledger path.
		logger.Warn("Audit event dropped", "category", category)
	}
}

// Payment records a transfer between two players
func (s *FileSink) Payment(sender uuid.UUID, senderName string, receiver uuid.UUID, receiverName, currencyID string, amount float64) {
	s.submit("pay", fmt.Sprintf("[PAY] %s (%s) -> %s (%s) | Currency: %s | Amount: %.2f",
		senderName, sender, receiverName, receiver, currencyID, amount))
}

// AdminGive records an administrative deposit
func (s *FileSink) AdminGive(adminName string, target uuid.UUID, targetName, currencyID string, amount, newBalance float64) {
	s.submit("admin", fmt.Sprintf("[ADMIN-GIVE] %s gave %.2f %s to %s (%s) | New Balance: %.2f",
		adminName, amount, currencyID, targetName, target, newBalance))
}

// AdminSet records an administrative absolute set
func (s *FileSink) AdminSet(adminName string, target uuid.UUID, targetName, currencyID string, oldBalance, newBalance float64) {
	s.submit("admin", fmt.Sprintf("[ADMIN-SET] %s set %s's (%s) %s balance from %.2f to %.2f",
		adminName, targetName, target, currencyID, oldBalance, newBalance))
}

// AdminRemove records an administrative withdrawal
func (s *FileSink) AdminRemove(adminName string, target uuid.UUID, targetName, currencyID string, amount, newBalance float64) {
	s.submit("admin", fmt.Sprintf("[ADMIN-REMOVE] %s removed %.2f %s from %s (%s) | New Balance: %.2f",
		adminName, amount, currencyID, targetName, target, newBalance))
}

// Transaction records a transaction issued through the economy facade
func (s *FileSink) Transaction(kind string, player uuid.UUID, playerName string, amount, newBalance float64) {
	s.submit("api", fmt.Sprintf("[%s] %s (%s) | Amount: %.2f | New Balance: %.2f",
		kind, playerName, player, amount, newBalance))
}

// Close stops accepting events and waits for queued events to be written
func (s *FileSink) Close() {
	close(s.events)
	<-s.done
}

// NopSink discards all events. Used when auditing is disabled.
type NopSink struct{}

func (NopSink) Payment(uuid.UUID, string, uuid.UUID, string, string, float64)   {}
func (NopSink) AdminGive(string, uuid.UUID, string, string, float64, float64)   {}
func (NopSink) AdminSet(string, uuid.UUID, string, string, float64, float64)    {}
func (NopSink) AdminRemove(string, uuid.UUID, string, string, float64, float64) {}
func (NopSink) Transaction(string, uuid.UUID, string, float64, float64)         {}
func (NopSink) Close()                                                          {}
