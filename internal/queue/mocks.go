package queue

import (
	"context"

	"github.com/sksmith/go-spares/internal/core/order"
	"github.com/sksmith/go-spares/internal/core/stock"
	"github.com/sksmith/go-spares/internal/testutil"
)

type MockQueue struct {
	PublishStockFunc func(ctx context.Context, record stock.Record) error
	PublishOrderFunc func(ctx context.Context, o order.Order) error
	*testutil.CallWatcher
}

func NewMockQueue() *MockQueue {
	return &MockQueue{
		PublishStockFunc: func(ctx context.Context, record stock.Record) error { return nil },
		PublishOrderFunc: func(ctx context.Context, o order.Order) error { return nil },
		CallWatcher:      testutil.NewCallWatcher(),
	}
}

func (m *MockQueue) PublishStock(ctx context.Context, record stock.Record) error {
	m.AddCall(ctx, record)
	return m.PublishStockFunc(ctx, record)
}

func (m *MockQueue) PublishOrder(ctx context.Context, o order.Order) error {
	m.AddCall(ctx, o)
	return m.PublishOrderFunc(ctx, o)
}
