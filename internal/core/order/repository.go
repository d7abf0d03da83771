package order

import (
	"context"

	"github.com/sksmith/go-spares/internal/core"
	"github.com/sksmith/go-spares/internal/core/stock"
)

type Repository interface {
	core.Transactional

	GetOrder(ctx context.Context, id int64, options ...core.QueryOptions) (Order, error)
	GetOrderByRequestID(ctx context.Context, requestID string, options ...core.QueryOptions) (Order, error)
	GetOrders(ctx context.Context, limit, offset int, options ...core.QueryOptions) ([]Order, error)

	SaveOrder(ctx context.Context, order *Order, options ...core.UpdateOptions) error
	UpdateOrderStatus(ctx context.Context, id int64, status Status, options ...core.UpdateOptions) error
	DeleteOrder(ctx context.Context, id int64, options ...core.UpdateOptions) error
}

type Queue interface {
	PublishOrder(ctx context.Context, order Order) error
}

// Gate confirms that the customer scanned the order's QR code.
type Gate interface {
	Claim(token string) error
	Release(token string)
	Reset(token string)
}

type StockAnnouncer interface {
	Announce(ctx context.Context, records ...stock.Record)
}
