package order

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/go-spares/internal/core"
	"github.com/sksmith/go-spares/internal/core/stock"
)

func NewService(repo Repository, stockRepo stock.Repository, gate Gate, announcer StockAnnouncer, q Queue) *service {
	return &service{
		repo:      repo,
		stockRepo: stockRepo,
		gate:      gate,
		announcer: announcer,
		queue:     q,
		now:       time.Now,
	}
}

type Service interface {
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (Order, error)
	PlaceGatedOrder(ctx context.Context, scanToken string, req PlaceOrderRequest) (Order, error)
	CancelOrder(ctx context.Context, id int64) (Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status string) (Order, error)

	GetOrder(ctx context.Context, id int64) (Order, error)
	ListOrders(ctx context.Context, limit, offset int) ([]Order, error)

	PurgeOrder(ctx context.Context, id int64) error
}

type service struct {
	repo      Repository
	stockRepo stock.Repository
	gate      Gate
	announcer StockAnnouncer
	queue     Queue
	now       func() time.Time
}

func (s *service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (Order, error) {
	if err := req.Validate(); err != nil {
		ordersRejected.WithLabelValues("validation").Inc()
		return Order{}, err
	}
	return s.place(ctx, req)
}

// PlaceGatedOrder is the storefront path. The scan token is claimed before
// either store is touched and released again if the order cannot be placed,
// so the customer can fix the form without scanning a second time.
func (s *service) PlaceGatedOrder(ctx context.Context, scanToken string, req PlaceOrderRequest) (Order, error) {
	const funcName = "PlaceGatedOrder"

	if err := req.ValidateStorefront(); err != nil {
		ordersRejected.WithLabelValues("validation").Inc()
		return Order{}, err
	}
	if scanToken == "" {
		ordersRejected.WithLabelValues("validation").Inc()
		return Order{}, core.NewValidationError("scanToken", "is required")
	}

	if err := s.gate.Claim(scanToken); err != nil {
		log.Debug().Str("func", funcName).Str("scanToken", scanToken).Err(err).Msg("scan gate not satisfied")
		ordersRejected.WithLabelValues("gate").Inc()
		return Order{}, err
	}

	o, err := s.place(ctx, req)
	if err != nil {
		s.gate.Release(scanToken)
		return Order{}, err
	}

	s.gate.Reset(scanToken)
	return o, nil
}

func (s *service) place(ctx context.Context, req PlaceOrderRequest) (o Order, err error) {
	const funcName = "place"

	log.Info().
		Str("func", funcName).
		Int64("productId", req.ProductID).
		Int64("quantity", req.Quantity).
		Str("requestId", req.RequestID).
		Msg("placing order")

	if req.RequestID != "" {
		var existing Order
		existing, err = s.repo.GetOrderByRequestID(ctx, req.RequestID)
		if err == nil {
			log.Debug().Str("func", funcName).Str("requestId", req.RequestID).Msg("order already exists, returning it")
			return existing, nil
		}
		if !errors.Is(err, core.ErrNotFound) {
			return Order{}, errors.WithStack(err)
		}
	}

	tx, err := s.repo.BeginTransaction(ctx)
	if err != nil {
		return Order{}, errors.WithStack(err)
	}

	defer func() {
		if err != nil {
			core.Rollback(ctx, tx, err)
			s.countRejection(err)
		}
	}()

	rec, err := s.stockRepo.GetStock(ctx, req.ProductID, core.QueryOptions{Tx: tx, ForUpdate: true})
	if err != nil {
		return Order{}, errors.WithMessagef(err, "failed to get stock entry %d", req.ProductID)
	}

	if rec.Spares < req.Quantity {
		return Order{}, &core.InsufficientStockError{Available: rec.Spares, Requested: req.Quantity}
	}

	snapshot := NewSnapshot(rec)

	updated, err := s.stockRepo.DecrementSpares(ctx, rec.ID, req.Quantity, core.UpdateOptions{Tx: tx})
	if err != nil {
		return Order{}, errors.WithMessage(err, "failed to decrement stock")
	}

	o = Order{
		RequestID:       req.RequestID,
		StockID:         rec.ID,
		ProductSnapshot: snapshot,
		QuantityOrdered: req.Quantity,
		OrderTotal:      Total(snapshot.Price, req.Quantity),
		OrderDate:       s.now(),
		CustomerDetails: req.CustomerDetails,
		Status:          Pending,
	}

	if err = s.repo.SaveOrder(ctx, &o, core.UpdateOptions{Tx: tx}); err != nil {
		if req.RequestID != "" && errors.Is(err, core.ErrDuplicateRequest) {
			// a concurrent request with the same id committed first
			core.Rollback(ctx, tx, err)
			tx = nil
			return s.existingOrder(ctx, req.RequestID)
		}
		return Order{}, errors.WithMessage(err, "failed to save order")
	}

	if err = tx.Commit(ctx); err != nil {
		return Order{}, errors.WithMessage(err, "failed to commit order")
	}

	ordersPlaced.Inc()
	log.Info().
		Str("func", funcName).
		Int64("orderId", o.ID).
		Int64("stockId", updated.ID).
		Int64("spares", updated.Spares).
		Msg("order placed")

	s.announcer.Announce(ctx, updated)
	s.publishOrder(ctx, o)

	return o, nil
}

func (s *service) CancelOrder(ctx context.Context, id int64) (o Order, err error) {
	const funcName = "CancelOrder"

	log.Info().
		Str("func", funcName).
		Int64("id", id).
		Msg("cancelling order")

	tx, err := s.repo.BeginTransaction(ctx)
	if err != nil {
		return Order{}, errors.WithStack(err)
	}

	defer func() {
		if err != nil {
			core.Rollback(ctx, tx, err)
		}
	}()

	o, err = s.repo.GetOrder(ctx, id, core.QueryOptions{Tx: tx, ForUpdate: true})
	if err != nil {
		return Order{}, errors.WithStack(err)
	}

	if !o.Status.Cancellable() {
		return Order{}, errors.WithMessagef(core.ErrInvalidTransition, "order %d is already %s", id, o.Status)
	}

	rec, restocked, err := s.restock(ctx, tx, o)
	if err != nil {
		return Order{}, err
	}

	if err = s.repo.UpdateOrderStatus(ctx, id, Cancelled, core.UpdateOptions{Tx: tx}); err != nil {
		return Order{}, errors.WithMessage(err, "failed to update order status")
	}
	o.Status = Cancelled

	if err = tx.Commit(ctx); err != nil {
		return Order{}, errors.WithMessage(err, "failed to commit cancellation")
	}

	ordersCancelled.Inc()
	if restocked {
		s.announcer.Announce(ctx, rec)
	}
	s.publishOrder(ctx, o)

	return o, nil
}

// restock returns the ordered quantity to the originating part. The stored
// stock id is tried first; orders without one, or whose part was re-imported
// under a new id, fall back to the first part with the same name and part
// number. A part that no longer exists is skipped.
func (s *service) restock(ctx context.Context, tx core.Transaction, o Order) (stock.Record, bool, error) {
	const funcName = "restock"

	if o.StockID != 0 {
		rec, err := s.stockRepo.IncrementSpares(ctx, o.StockID, o.QuantityOrdered, core.UpdateOptions{Tx: tx})
		if err == nil {
			return rec, true, nil
		}
		if !errors.Is(err, core.ErrNotFound) {
			return stock.Record{}, false, errors.WithMessage(err, "failed to restock")
		}
	}

	rec, err := s.stockRepo.GetStockByNameAndPartNumber(ctx, o.ProductSnapshot.Name, o.ProductSnapshot.PartNumber, core.QueryOptions{Tx: tx, ForUpdate: true})
	if errors.Is(err, core.ErrNotFound) {
		log.Warn().
			Str("func", funcName).
			Int64("orderId", o.ID).
			Str("name", o.ProductSnapshot.Name).
			Str("partNumber", o.ProductSnapshot.PartNumber).
			Msg("originating part no longer exists, skipping restock")
		return stock.Record{}, false, nil
	}
	if err != nil {
		return stock.Record{}, false, errors.WithMessage(err, "failed to find originating part")
	}

	rec, err = s.stockRepo.IncrementSpares(ctx, rec.ID, o.QuantityOrdered, core.UpdateOptions{Tx: tx})
	if err != nil {
		return stock.Record{}, false, errors.WithMessage(err, "failed to restock")
	}
	return rec, true, nil
}

func (s *service) UpdateOrderStatus(ctx context.Context, id int64, status string) (o Order, err error) {
	const funcName = "UpdateOrderStatus"

	if status == "" {
		return Order{}, core.NewValidationError("status", "is required")
	}
	next, err := ParseStatus(status)
	if err != nil {
		return Order{}, err
	}
	if next == Cancelled {
		return s.CancelOrder(ctx, id)
	}

	log.Info().
		Str("func", funcName).
		Int64("id", id).
		Str("status", string(next)).
		Msg("updating order status")

	tx, err := s.repo.BeginTransaction(ctx)
	if err != nil {
		return Order{}, errors.WithStack(err)
	}

	defer func() {
		if err != nil {
			core.Rollback(ctx, tx, err)
		}
	}()

	o, err = s.repo.GetOrder(ctx, id, core.QueryOptions{Tx: tx, ForUpdate: true})
	if err != nil {
		return Order{}, errors.WithStack(err)
	}

	if !o.Status.CanTransitionTo(next) {
		return Order{}, errors.WithMessagef(core.ErrInvalidTransition, "order %d cannot move from %s to %s", id, o.Status, next)
	}

	if err = s.repo.UpdateOrderStatus(ctx, id, next, core.UpdateOptions{Tx: tx}); err != nil {
		return Order{}, errors.WithStack(err)
	}
	o.Status = next

	if err = tx.Commit(ctx); err != nil {
		return Order{}, errors.WithStack(err)
	}

	s.publishOrder(ctx, o)
	return o, nil
}

func (s *service) GetOrder(ctx context.Context, id int64) (Order, error) {
	o, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return o, errors.WithStack(err)
	}
	return o, nil
}

func (s *service) ListOrders(ctx context.Context, limit, offset int) ([]Order, error) {
	return s.repo.GetOrders(ctx, limit, offset)
}

// PurgeOrder physically removes an order without touching stock. It exists for
// administrative clean up only; customers cancel.
func (s *service) PurgeOrder(ctx context.Context, id int64) error {
	const funcName = "PurgeOrder"

	log.Warn().
		Str("func", funcName).
		Int64("id", id).
		Msg("purging order")

	if err := s.repo.DeleteOrder(ctx, id); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

func (s *service) existingOrder(ctx context.Context, requestID string) (Order, error) {
	o, err := s.repo.GetOrderByRequestID(ctx, requestID)
	if err != nil {
		return Order{}, errors.WithMessagef(err, "failed to read order for request id %s", requestID)
	}
	log.Debug().Str("requestId", requestID).Int64("orderId", o.ID).Msg("order already exists, returning it")
	return o, nil
}

func (s *service) publishOrder(ctx context.Context, o Order) {
	if err := s.queue.PublishOrder(ctx, o); err != nil {
		log.Error().Err(err).Int64("orderId", o.ID).Msg("failed to publish order")
	}
}

func (s *service) countRejection(err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		ordersRejected.WithLabelValues("not_found").Inc()
	case isInsufficient(err):
		ordersRejected.WithLabelValues("insufficient_stock").Inc()
	default:
		ordersRejected.WithLabelValues("store_failure").Inc()
	}
}

func isInsufficient(err error) bool {
	_, ok := core.AsInsufficientStock(err)
	return ok
}
