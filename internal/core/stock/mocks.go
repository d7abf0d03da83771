package stock

import (
	"context"

	"github.com/sksmith/go-spares/internal/core"
	"github.com/sksmith/go-spares/internal/testutil"
)

type MockRepo struct {
	GetStockFunc                    func(ctx context.Context, id int64, options ...core.QueryOptions) (Record, error)
	GetStockByNameAndPartNumberFunc func(ctx context.Context, name, partNumber string, options ...core.QueryOptions) (Record, error)
	GetAllStockFunc                 func(ctx context.Context, limit, offset int, options ...core.QueryOptions) ([]Record, error)
	GetStockByCompanyNameFunc       func(ctx context.Context, name string, options ...core.QueryOptions) ([]Record, error)
	GetStockByCategoryFunc          func(ctx context.Context, category Category, options ...core.QueryOptions) ([]Record, error)
	SaveStockFunc                   func(ctx context.Context, record *Record, options ...core.UpdateOptions) error
	DecrementSparesFunc             func(ctx context.Context, id, amount int64, options ...core.UpdateOptions) (Record, error)
	IncrementSparesFunc             func(ctx context.Context, id, amount int64, options ...core.UpdateOptions) (Record, error)
	DeleteStockFunc                 func(ctx context.Context, id int64, options ...core.UpdateOptions) error
	DeleteAllStockFunc              func(ctx context.Context, options ...core.UpdateOptions) (int64, error)
	BeginTransactionFunc            func(ctx context.Context) (core.Transaction, error)
	*testutil.CallWatcher
}

func NewMockRepo() *MockRepo {
	return &MockRepo{
		GetStockFunc: func(ctx context.Context, id int64, options ...core.QueryOptions) (Record, error) {
			return Record{}, nil
		},
		GetStockByNameAndPartNumberFunc: func(ctx context.Context, name, partNumber string, options ...core.QueryOptions) (Record, error) {
			return Record{}, nil
		},
		GetAllStockFunc: func(ctx context.Context, limit, offset int, options ...core.QueryOptions) ([]Record, error) {
			return []Record{}, nil
		},
		GetStockByCompanyNameFunc: func(ctx context.Context, name string, options ...core.QueryOptions) ([]Record, error) {
			return []Record{}, nil
		},
		GetStockByCategoryFunc: func(ctx context.Context, category Category, options ...core.QueryOptions) ([]Record, error) {
			return []Record{}, nil
		},
		SaveStockFunc: func(ctx context.Context, record *Record, options ...core.UpdateOptions) error {
			record.Normalize()
			return nil
		},
		DecrementSparesFunc: func(ctx context.Context, id, amount int64, options ...core.UpdateOptions) (Record, error) {
			return Record{ID: id}, nil
		},
		IncrementSparesFunc: func(ctx context.Context, id, amount int64, options ...core.UpdateOptions) (Record, error) {
			return Record{ID: id}, nil
		},
		DeleteStockFunc:      func(ctx context.Context, id int64, options ...core.UpdateOptions) error { return nil },
		DeleteAllStockFunc:   func(ctx context.Context, options ...core.UpdateOptions) (int64, error) { return 0, nil },
		BeginTransactionFunc: func(ctx context.Context) (core.Transaction, error) { return core.NewMockTransaction(), nil },
		CallWatcher:          testutil.NewCallWatcher(),
	}
}

func (r *MockRepo) GetStock(ctx context.Context, id int64, options ...core.QueryOptions) (Record, error) {
	r.AddCall(ctx, id, options)
	return r.GetStockFunc(ctx, id, options...)
}

func (r *MockRepo) GetStockByNameAndPartNumber(ctx context.Context, name, partNumber string, options ...core.QueryOptions) (Record, error) {
	r.AddCall(ctx, name, partNumber, options)
	return r.GetStockByNameAndPartNumberFunc(ctx, name, partNumber, options...)
}

func (r *MockRepo) GetAllStock(ctx context.Context, limit, offset int, options ...core.QueryOptions) ([]Record, error) {
	r.AddCall(ctx, limit, offset, options)
	return r.GetAllStockFunc(ctx, limit, offset, options...)
}

func (r *MockRepo) GetStockByCompanyName(ctx context.Context, name string, options ...core.QueryOptions) ([]Record, error) {
	r.AddCall(ctx, name, options)
	return r.GetStockByCompanyNameFunc(ctx, name, options...)
}

func (r *MockRepo) GetStockByCategory(ctx context.Context, category Category, options ...core.QueryOptions) ([]Record, error) {
	r.AddCall(ctx, category, options)
	return r.GetStockByCategoryFunc(ctx, category, options...)
}

func (r *MockRepo) SaveStock(ctx context.Context, record *Record, options ...core.UpdateOptions) error {
	r.AddCall(ctx, record, options)
	return r.SaveStockFunc(ctx, record, options...)
}

func (r *MockRepo) DecrementSpares(ctx context.Context, id, amount int64, options ...core.UpdateOptions) (Record, error) {
	r.AddCall(ctx, id, amount, options)
	return r.DecrementSparesFunc(ctx, id, amount, options...)
}

func (r *MockRepo) IncrementSpares(ctx context.Context, id, amount int64, options ...core.UpdateOptions) (Record, error) {
	r.AddCall(ctx, id, amount, options)
	return r.IncrementSparesFunc(ctx, id, amount, options...)
}

func (r *MockRepo) DeleteStock(ctx context.Context, id int64, options ...core.UpdateOptions) error {
	r.AddCall(ctx, id, options)
	return r.DeleteStockFunc(ctx, id, options...)
}

func (r *MockRepo) DeleteAllStock(ctx context.Context, options ...core.UpdateOptions) (int64, error) {
	r.AddCall(ctx, options)
	return r.DeleteAllStockFunc(ctx, options...)
}

func (r *MockRepo) BeginTransaction(ctx context.Context) (core.Transaction, error) {
	r.AddCall(ctx)
	return r.BeginTransactionFunc(ctx)
}

type MockQueue struct {
	PublishStockFunc func(ctx context.Context, record Record) error
	*testutil.CallWatcher
}

func NewMockQueue() *MockQueue {
	return &MockQueue{
		PublishStockFunc: func(ctx context.Context, record Record) error { return nil },
		CallWatcher:      testutil.NewCallWatcher(),
	}
}

func (q *MockQueue) PublishStock(ctx context.Context, record Record) error {
	q.AddCall(ctx, record)
	return q.PublishStockFunc(ctx, record)
}

type MockService struct {
	ReplaceAllFunc        func(ctx context.Context, records []Record) (int, error)
	AddStockFunc          func(ctx context.Context, record Record) (Record, error)
	GetStockFunc          func(ctx context.Context, id int64) (Record, error)
	ListStockFunc         func(ctx context.Context, limit, offset int) ([]Record, error)
	ListByCompanyNameFunc func(ctx context.Context, name string) ([]Record, error)
	ListByCategoryFunc    func(ctx context.Context, category Category) ([]Record, error)
	DeleteStockFunc       func(ctx context.Context, id int64) error
	AnnounceFunc          func(ctx context.Context, records ...Record)
	SubscribeStockFunc    func(ch chan<- Record) SubscriptionID
	UnsubscribeStockFunc  func(id SubscriptionID)
	*testutil.CallWatcher
}

func NewMockService() *MockService {
	return &MockService{
		ReplaceAllFunc:        func(ctx context.Context, records []Record) (int, error) { return len(records), nil },
		AddStockFunc:          func(ctx context.Context, record Record) (Record, error) { return record, nil },
		GetStockFunc:          func(ctx context.Context, id int64) (Record, error) { return Record{ID: id}, nil },
		ListStockFunc:         func(ctx context.Context, limit, offset int) ([]Record, error) { return []Record{}, nil },
		ListByCompanyNameFunc: func(ctx context.Context, name string) ([]Record, error) { return []Record{}, nil },
		ListByCategoryFunc:    func(ctx context.Context, category Category) ([]Record, error) { return []Record{}, nil },
		DeleteStockFunc:       func(ctx context.Context, id int64) error { return nil },
		AnnounceFunc:          func(ctx context.Context, records ...Record) {},
		SubscribeStockFunc:    func(ch chan<- Record) SubscriptionID { return "" },
		UnsubscribeStockFunc:  func(id SubscriptionID) {},
		CallWatcher:           testutil.NewCallWatcher(),
	}
}

func (s *MockService) ReplaceAll(ctx context.Context, records []Record) (int, error) {
	s.AddCall(ctx, records)
	return s.ReplaceAllFunc(ctx, records)
}

func (s *MockService) AddStock(ctx context.Context, record Record) (Record, error) {
	s.AddCall(ctx, record)
	return s.AddStockFunc(ctx, record)
}

func (s *MockService) GetStock(ctx context.Context, id int64) (Record, error) {
	s.AddCall(ctx, id)
	return s.GetStockFunc(ctx, id)
}

func (s *MockService) ListStock(ctx context.Context, limit, offset int) ([]Record, error) {
	s.AddCall(ctx, limit, offset)
	return s.ListStockFunc(ctx, limit, offset)
}

func (s *MockService) ListByCompanyName(ctx context.Context, name string) ([]Record, error) {
	s.AddCall(ctx, name)
	return s.ListByCompanyNameFunc(ctx, name)
}

func (s *MockService) ListByCategory(ctx context.Context, category Category) ([]Record, error) {
	s.AddCall(ctx, category)
	return s.ListByCategoryFunc(ctx, category)
}

func (s *MockService) DeleteStock(ctx context.Context, id int64) error {
	s.AddCall(ctx, id)
	return s.DeleteStockFunc(ctx, id)
}

func (s *MockService) Announce(ctx context.Context, records ...Record) {
	s.AddCall(ctx, records)
	s.AnnounceFunc(ctx, records...)
}

func (s *MockService) SubscribeStock(ch chan<- Record) SubscriptionID {
	s.AddCall(ch)
	return s.SubscribeStockFunc(ch)
}

func (s *MockService) UnsubscribeStock(id SubscriptionID) {
	s.AddCall(id)
	s.UnsubscribeStockFunc(id)
}
