package order

import (
	"context"

	"github.com/sksmith/go-spares/internal/core"
	"github.com/sksmith/go-spares/internal/core/stock"
	"github.com/sksmith/go-spares/internal/testutil"
)

type MockRepo struct {
	GetOrderFunc            func(ctx context.Context, id int64, options ...core.QueryOptions) (Order, error)
	GetOrderByRequestIDFunc func(ctx context.Context, requestID string, options ...core.QueryOptions) (Order, error)
	GetOrdersFunc           func(ctx context.Context, limit, offset int, options ...core.QueryOptions) ([]Order, error)
	SaveOrderFunc           func(ctx context.Context, order *Order, options ...core.UpdateOptions) error
	UpdateOrderStatusFunc   func(ctx context.Context, id int64, status Status, options ...core.UpdateOptions) error
	DeleteOrderFunc         func(ctx context.Context, id int64, options ...core.UpdateOptions) error
	BeginTransactionFunc    func(ctx context.Context) (core.Transaction, error)
	*testutil.CallWatcher
}

func NewMockRepo() *MockRepo {
	return &MockRepo{
		GetOrderFunc: func(ctx context.Context, id int64, options ...core.QueryOptions) (Order, error) {
			return Order{ID: id, Status: Pending}, nil
		},
		GetOrderByRequestIDFunc: func(ctx context.Context, requestID string, options ...core.QueryOptions) (Order, error) {
			return Order{}, core.ErrNotFound
		},
		GetOrdersFunc: func(ctx context.Context, limit, offset int, options ...core.QueryOptions) ([]Order, error) {
			return []Order{}, nil
		},
		SaveOrderFunc: func(ctx context.Context, order *Order, options ...core.UpdateOptions) error {
			order.ID = 1
			return nil
		},
		UpdateOrderStatusFunc: func(ctx context.Context, id int64, status Status, options ...core.UpdateOptions) error { return nil },
		DeleteOrderFunc:       func(ctx context.Context, id int64, options ...core.UpdateOptions) error { return nil },
		BeginTransactionFunc:  func(ctx context.Context) (core.Transaction, error) { return core.NewMockTransaction(), nil },
		CallWatcher:           testutil.NewCallWatcher(),
	}
}

func (r *MockRepo) GetOrder(ctx context.Context, id int64, options ...core.QueryOptions) (Order, error) {
	r.AddCall(ctx, id, options)
	return r.GetOrderFunc(ctx, id, options...)
}

func (r *MockRepo) GetOrderByRequestID(ctx context.Context, requestID string, options ...core.QueryOptions) (Order, error) {
	r.AddCall(ctx, requestID, options)
	return r.GetOrderByRequestIDFunc(ctx, requestID, options...)
}

func (r *MockRepo) GetOrders(ctx context.Context, limit, offset int, options ...core.QueryOptions) ([]Order, error) {
	r.AddCall(ctx, limit, offset, options)
	return r.GetOrdersFunc(ctx, limit, offset, options...)
}

func (r *MockRepo) SaveOrder(ctx context.Context, order *Order, options ...core.UpdateOptions) error {
	r.AddCall(ctx, order, options)
	return r.SaveOrderFunc(ctx, order, options...)
}

func (r *MockRepo) UpdateOrderStatus(ctx context.Context, id int64, status Status, options ...core.UpdateOptions) error {
	r.AddCall(ctx, id, status, options)
	return r.UpdateOrderStatusFunc(ctx, id, status, options...)
}

func (r *MockRepo) DeleteOrder(ctx context.Context, id int64, options ...core.UpdateOptions) error {
	r.AddCall(ctx, id, options)
	return r.DeleteOrderFunc(ctx, id, options...)
}

func (r *MockRepo) BeginTransaction(ctx context.Context) (core.Transaction, error) {
	r.AddCall(ctx)
	return r.BeginTransactionFunc(ctx)
}

type MockQueue struct {
	PublishOrderFunc func(ctx context.Context, order Order) error
	*testutil.CallWatcher
}

func NewMockQueue() *MockQueue {
	return &MockQueue{
		PublishOrderFunc: func(ctx context.Context, order Order) error { return nil },
		CallWatcher:      testutil.NewCallWatcher(),
	}
}

func (q *MockQueue) PublishOrder(ctx context.Context, order Order) error {
	q.AddCall(ctx, order)
	return q.PublishOrderFunc(ctx, order)
}

type MockGate struct {
	ClaimFunc   func(token string) error
	ReleaseFunc func(token string)
	ResetFunc   func(token string)
	*testutil.CallWatcher
}

func NewMockGate() *MockGate {
	return &MockGate{
		ClaimFunc:   func(token string) error { return nil },
		ReleaseFunc: func(token string) {},
		ResetFunc:   func(token string) {},
		CallWatcher: testutil.NewCallWatcher(),
	}
}

func (g *MockGate) Claim(token string) error {
	g.AddCall(token)
	return g.ClaimFunc(token)
}

func (g *MockGate) Release(token string) {
	g.AddCall(token)
	g.ReleaseFunc(token)
}

func (g *MockGate) Reset(token string) {
	g.AddCall(token)
	g.ResetFunc(token)
}

type MockAnnouncer struct {
	AnnounceFunc func(ctx context.Context, records ...stock.Record)
	*testutil.CallWatcher
}

func NewMockAnnouncer() *MockAnnouncer {
	return &MockAnnouncer{
		AnnounceFunc: func(ctx context.Context, records ...stock.Record) {},
		CallWatcher:  testutil.NewCallWatcher(),
	}
}

func (a *MockAnnouncer) Announce(ctx context.Context, records ...stock.Record) {
	a.AddCall(ctx, records)
	a.AnnounceFunc(ctx, records...)
}

type MockService struct {
	PlaceOrderFunc        func(ctx context.Context, req PlaceOrderRequest) (Order, error)
	PlaceGatedOrderFunc   func(ctx context.Context, scanToken string, req PlaceOrderRequest) (Order, error)
	CancelOrderFunc       func(ctx context.Context, id int64) (Order, error)
	UpdateOrderStatusFunc func(ctx context.Context, id int64, status string) (Order, error)
	GetOrderFunc          func(ctx context.Context, id int64) (Order, error)
	ListOrdersFunc        func(ctx context.Context, limit, offset int) ([]Order, error)
	PurgeOrderFunc        func(ctx context.Context, id int64) error
	*testutil.CallWatcher
}

func NewMockService() *MockService {
	return &MockService{
		PlaceOrderFunc: func(ctx context.Context, req PlaceOrderRequest) (Order, error) {
			return Order{ID: 1, StockID: req.ProductID, QuantityOrdered: req.Quantity, Status: Pending}, nil
		},
		PlaceGatedOrderFunc: func(ctx context.Context, scanToken string, req PlaceOrderRequest) (Order, error) {
			return Order{ID: 1, StockID: req.ProductID, QuantityOrdered: req.Quantity, Status: Pending}, nil
		},
		CancelOrderFunc: func(ctx context.Context, id int64) (Order, error) {
			return Order{ID: id, Status: Cancelled}, nil
		},
		UpdateOrderStatusFunc: func(ctx context.Context, id int64, status string) (Order, error) {
			return Order{ID: id, Status: Status(status)}, nil
		},
		GetOrderFunc:   func(ctx context.Context, id int64) (Order, error) { return Order{ID: id, Status: Pending}, nil },
		ListOrdersFunc: func(ctx context.Context, limit, offset int) ([]Order, error) { return []Order{}, nil },
		PurgeOrderFunc: func(ctx context.Context, id int64) error { return nil },
		CallWatcher:    testutil.NewCallWatcher(),
	}
}

func (s *MockService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (Order, error) {
	s.AddCall(ctx, req)
	return s.PlaceOrderFunc(ctx, req)
}

func (s *MockService) PlaceGatedOrder(ctx context.Context, scanToken string, req PlaceOrderRequest) (Order, error) {
	s.AddCall(ctx, scanToken, req)
	return s.PlaceGatedOrderFunc(ctx, scanToken, req)
}

func (s *MockService) CancelOrder(ctx context.Context, id int64) (Order, error) {
	s.AddCall(ctx, id)
	return s.CancelOrderFunc(ctx, id)
}

func (s *MockService) UpdateOrderStatus(ctx context.Context, id int64, status string) (Order, error) {
	s.AddCall(ctx, id, status)
	return s.UpdateOrderStatusFunc(ctx, id, status)
}

func (s *MockService) GetOrder(ctx context.Context, id int64) (Order, error) {
	s.AddCall(ctx, id)
	return s.GetOrderFunc(ctx, id)
}

func (s *MockService) ListOrders(ctx context.Context, limit, offset int) ([]Order, error) {
	s.AddCall(ctx, limit, offset)
	return s.ListOrdersFunc(ctx, limit, offset)
}

func (s *MockService) PurgeOrder(ctx context.Context, id int64) error {
	s.AddCall(ctx, id)
	return s.PurgeOrderFunc(ctx, id)
}
