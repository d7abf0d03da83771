package stock

import (
	"context"

	"github.com/sksmith/go-spares/internal/core"
)

type Repository interface {
	core.Transactional

	GetStock(ctx context.Context, id int64, options ...core.QueryOptions) (Record, error)
	GetStockByNameAndPartNumber(ctx context.Context, name, partNumber string, options ...core.QueryOptions) (Record, error)
	GetAllStock(ctx context.Context, limit, offset int, options ...core.QueryOptions) ([]Record, error)
	GetStockByCompanyName(ctx context.Context, name string, options ...core.QueryOptions) ([]Record, error)
	GetStockByCategory(ctx context.Context, category Category, options ...core.QueryOptions) ([]Record, error)

	SaveStock(ctx context.Context, record *Record, options ...core.UpdateOptions) error
	DecrementSpares(ctx context.Context, id, amount int64, options ...core.UpdateOptions) (Record, error)
	IncrementSpares(ctx context.Context, id, amount int64, options ...core.UpdateOptions) (Record, error)
	DeleteStock(ctx context.Context, id int64, options ...core.UpdateOptions) error
	DeleteAllStock(ctx context.Context, options ...core.UpdateOptions) (int64, error)
}

type Queue interface {
	PublishStock(ctx context.Context, record Record) error
}
