// Package report aggregates stock and orders for the admin dashboards.
package report

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sksmith/go-spares/internal/core/order"
	"github.com/sksmith/go-spares/internal/core/stock"
)

const (
	Uncategorized = "Uncategorized"
	pageSize      = 500
)

type StockSource interface {
	ListStock(ctx context.Context, limit, offset int) ([]stock.Record, error)
}

type OrderSource interface {
	ListOrders(ctx context.Context, limit, offset int) ([]order.Order, error)
}

// Bucket is a value object. Totals for one month or one category.
type Bucket struct {
	Key    string          `json:"key"`
	Spares int64           `json:"spares"`
	Cost   decimal.Decimal `json:"cost"`
}

type StatusSummary struct {
	Status  order.Status    `json:"status"`
	Orders  int64           `json:"orders"`
	Units   int64           `json:"units"`
	Revenue decimal.Decimal `json:"revenue"`
}

type OrderSummary struct {
	Orders   int64           `json:"orders"`
	Revenue  decimal.Decimal `json:"revenue"`
	ByStatus []StatusSummary `json:"byStatus"`
}

type Service struct {
	stock  StockSource
	orders OrderSource
}

func NewService(s StockSource, o OrderSource) *Service {
	return &Service{stock: s, orders: o}
}

// Monthly buckets stock by the year and month of the record date, oldest first.
func (s *Service) Monthly(ctx context.Context) ([]Bucket, error) {
	records, err := s.allStock(ctx)
	if err != nil {
		return nil, err
	}
	buckets := aggregate(records, func(r stock.Record) string {
		if len(r.Date) < 7 {
			return r.Date
		}
		return r.Date[:7]
	})
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Key < buckets[j].Key })
	return buckets, nil
}

// ByCategory buckets stock by category, largest cost first.
func (s *Service) ByCategory(ctx context.Context) ([]Bucket, error) {
	records, err := s.allStock(ctx)
	if err != nil {
		return nil, err
	}
	buckets := aggregate(records, func(r stock.Record) string {
		if r.Category == stock.None {
			return Uncategorized
		}
		return string(r.Category)
	})
	sort.Slice(buckets, func(i, j int) bool {
		if c := buckets[i].Cost.Cmp(buckets[j].Cost); c != 0 {
			return c > 0
		}
		return buckets[i].Key < buckets[j].Key
	})
	return buckets, nil
}

// Orders counts orders per status. Cancelled orders do not contribute revenue.
func (s *Service) Orders(ctx context.Context) (OrderSummary, error) {
	summary := OrderSummary{Revenue: decimal.Zero, ByStatus: []StatusSummary{}}
	byStatus := map[order.Status]*StatusSummary{}

	for offset := 0; ; offset += pageSize {
		page, err := s.orders.ListOrders(ctx, pageSize, offset)
		if err != nil {
			return OrderSummary{}, errors.WithStack(err)
		}
		for _, o := range page {
			st, ok := byStatus[o.Status]
			if !ok {
				st = &StatusSummary{Status: o.Status, Revenue: decimal.Zero}
				byStatus[o.Status] = st
			}
			st.Orders++
			st.Units += o.QuantityOrdered
			summary.Orders++
			if o.Status != order.Cancelled {
				st.Revenue = st.Revenue.Add(o.OrderTotal)
				summary.Revenue = summary.Revenue.Add(o.OrderTotal)
			}
		}
		if len(page) < pageSize {
			break
		}
	}

	for _, status := range []order.Status{order.Pending, order.Processing, order.Shipped, order.Delivered, order.Cancelled} {
		if st, ok := byStatus[status]; ok {
			summary.ByStatus = append(summary.ByStatus, *st)
		}
	}
	return summary, nil
}

func (s *Service) allStock(ctx context.Context) ([]stock.Record, error) {
	all := make([]stock.Record, 0)
	for offset := 0; ; offset += pageSize {
		page, err := s.stock.ListStock(ctx, pageSize, offset)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}

func aggregate(records []stock.Record, key func(stock.Record) string) []Bucket {
	index := map[string]int{}
	buckets := make([]Bucket, 0)
	for _, r := range records {
		k := key(r)
		i, ok := index[k]
		if !ok {
			i = len(buckets)
			index[k] = i
			buckets = append(buckets, Bucket{Key: k, Cost: decimal.Zero})
		}
		buckets[i].Spares += r.Spares
		buckets[i].Cost = buckets[i].Cost.Add(r.TotalCost)
	}
	return buckets
}
