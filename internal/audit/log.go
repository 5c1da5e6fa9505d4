package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/nurpe/artmarket-contracts/internal/model"
)

type Store interface {
	Append(ctx context.Context, entry model.AuditEntry) error
	ListByContract(ctx context.Context, contractID int64) ([]model.AuditEntry, error)
}

// Log writes audit entries in their own scope. A failed business transaction
// never removes an entry that was already appended, and vice versa.
type Log struct {
	store Store
	now   func() time.Time
	log   zerolog.Logger
}

func NewLog(store Store, log zerolog.Logger) *Log {
	return &Log{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		log:   log.With().Str("component", "audit").Logger(),
	}
}

func (l *Log) Record(ctx context.Context, entry model.AuditEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = l.now()
	}
	if err := l.store.Append(ctx, entry); err != nil {
		return err
	}
	l.log.Debug().
		Int64("contract_id", entry.ContractID).
		Int64("actor_id", entry.ActorID).
		Str("action", string(entry.Action)).
		Str("to", string(entry.ToStatus)).
		Msg("audit entry appended")
	return nil
}

func (l *Log) History(ctx context.Context, contractID int64) ([]model.AuditEntry, error) {
	return l.store.ListByContract(ctx, contractID)
}
