package stock

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/go-spares/internal/core"
)

func NewService(repo Repository, q Queue) *service {
	return &service{
		repo:  repo,
		queue: q,
		subs:  make(map[SubscriptionID]chan<- Record),
	}
}

type Service interface {
	ReplaceAll(ctx context.Context, records []Record) (int, error)
	AddStock(ctx context.Context, record Record) (Record, error)

	GetStock(ctx context.Context, id int64) (Record, error)
	ListStock(ctx context.Context, limit, offset int) ([]Record, error)
	ListByCompanyName(ctx context.Context, name string) ([]Record, error)
	ListByCategory(ctx context.Context, category Category) ([]Record, error)

	DeleteStock(ctx context.Context, id int64) error

	Announce(ctx context.Context, records ...Record)
	SubscribeStock(ch chan<- Record) (id SubscriptionID)
	UnsubscribeStock(id SubscriptionID)
}

type SubscriptionID string

type service struct {
	repo  Repository
	queue Queue

	mu   sync.RWMutex
	subs map[SubscriptionID]chan<- Record
}

// ReplaceAll swaps the whole catalogue for records. The clear and the inserts
// share one transaction so readers never see a half-loaded table.
func (s *service) ReplaceAll(ctx context.Context, records []Record) (int, error) {
	const funcName = "ReplaceAll"

	if err := ValidateEntries(records); err != nil {
		return 0, err
	}

	log.Info().
		Str("func", funcName).
		Int("entries", len(records)).
		Msg("replacing stock")

	tx, err := s.repo.BeginTransaction(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	defer func() {
		if err != nil {
			core.Rollback(ctx, tx, err)
		}
	}()

	removed, err := s.repo.DeleteAllStock(ctx, core.UpdateOptions{Tx: tx})
	if err != nil {
		return 0, errors.WithMessage(err, "failed to clear stock")
	}

	saved := make([]Record, 0, len(records))
	for i := range records {
		rec := records[i]
		if err = s.repo.SaveStock(ctx, &rec, core.UpdateOptions{Tx: tx}); err != nil {
			return 0, errors.WithMessagef(err, "failed to save stock entry %d", rec.ID)
		}
		saved = append(saved, rec)
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, errors.WithMessage(err, "failed to commit stock import")
	}

	log.Debug().
		Str("func", funcName).
		Int64("removed", removed).
		Int("inserted", len(saved)).
		Msg("stock replaced")

	s.Announce(ctx, saved...)

	return len(saved), nil
}

func (s *service) AddStock(ctx context.Context, record Record) (Record, error) {
	const funcName = "AddStock"

	if err := record.Validate(); err != nil {
		return Record{}, err
	}

	log.Info().
		Str("func", funcName).
		Int64("id", record.ID).
		Str("companyName", record.CompanyName).
		Msg("saving stock entry")

	if err := s.repo.SaveStock(ctx, &record); err != nil {
		return Record{}, errors.WithStack(err)
	}

	s.Announce(ctx, record)
	return record, nil
}

func (s *service) GetStock(ctx context.Context, id int64) (Record, error) {
	rec, err := s.repo.GetStock(ctx, id)
	if err != nil {
		return rec, errors.WithStack(err)
	}
	return rec, nil
}

func (s *service) ListStock(ctx context.Context, limit, offset int) ([]Record, error) {
	return s.repo.GetAllStock(ctx, limit, offset)
}

func (s *service) ListByCompanyName(ctx context.Context, name string) ([]Record, error) {
	return s.repo.GetStockByCompanyName(ctx, name)
}

func (s *service) ListByCategory(ctx context.Context, category Category) ([]Record, error) {
	return s.repo.GetStockByCategory(ctx, category)
}

func (s *service) DeleteStock(ctx context.Context, id int64) error {
	const funcName = "DeleteStock"

	log.Info().
		Str("func", funcName).
		Int64("id", id).
		Msg("deleting stock entry")

	if err := s.repo.DeleteStock(ctx, id); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// Announce publishes records to the queue and pushes them to live
// subscribers. Failures are logged; the write that produced the record has
// already been committed.
func (s *service) Announce(ctx context.Context, records ...Record) {
	for _, rec := range records {
		if err := s.queue.PublishStock(ctx, rec); err != nil {
			log.Error().Err(err).Int64("id", rec.ID).Msg("failed to publish stock update")
		}
		s.notifySubscribers(rec)
	}
}

func (s *service) SubscribeStock(ch chan<- Record) (id SubscriptionID) {
	id = SubscriptionID(uuid.NewString())
	s.mu.Lock()
	s.subs[id] = ch
	s.mu.Unlock()
	log.Debug().Interface("clientId", id).Msg("subscribing to stock")
	return id
}

func (s *service) UnsubscribeStock(id SubscriptionID) {
	log.Debug().Interface("clientId", id).Msg("unsubscribing from stock")
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subs[id]; ok {
		close(ch)
		delete(s.subs, id)
	}
}

func (s *service) notifySubscribers(rec Record) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, ch := range s.subs {
		select {
		case ch <- rec:
			log.Debug().Interface("clientId", id).Int64("id", rec.ID).Msg("notified subscriber of stock update")
		default:
			log.Warn().Interface("clientId", id).Int64("id", rec.ID).Msg("subscriber is not keeping up, dropping stock update")
		}
	}
}
