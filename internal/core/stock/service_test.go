package stock_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sksmith/go-spares/internal/core"
	"github.com/sksmith/go-spares/internal/core/stock"
	"github.com/sksmith/go-spares/internal/testutil"
)

func TestMain(m *testing.M) {
	testutil.ConfigLogging()
	os.Exit(m.Run())
}

func TestReplaceAll(t *testing.T) {
	second := validRecord()
	second.ID = 2
	invalid := validRecord()
	invalid.Date = ""

	tests := []struct {
		name    string
		records []stock.Record

		deleteAllFunc func(ctx context.Context, options ...core.UpdateOptions) (int64, error)
		saveFunc      func(ctx context.Context, record *stock.Record, options ...core.UpdateOptions) error
		beginFunc     func(ctx context.Context) (core.Transaction, error)

		wantCount        int
		wantRepoCallCnt  map[string]int
		wantTxCallCnt    map[string]int
		wantQueueCallCnt map[string]int
		wantErr          bool
	}{
		{
			name:    "records are replaced",
			records: []stock.Record{validRecord(), second},

			wantCount:        2,
			wantRepoCallCnt:  map[string]int{"DeleteAllStock": 1, "SaveStock": 2},
			wantTxCallCnt:    map[string]int{"Commit": 1, "Rollback": 0},
			wantQueueCallCnt: map[string]int{"PublishStock": 2},
		},
		{
			name:    "empty import clears the stock",
			records: []stock.Record{},

			wantRepoCallCnt:  map[string]int{"DeleteAllStock": 1, "SaveStock": 0},
			wantTxCallCnt:    map[string]int{"Commit": 1, "Rollback": 0},
			wantQueueCallCnt: map[string]int{"PublishStock": 0},
		},
		{
			name:    "invalid entry touches nothing",
			records: []stock.Record{validRecord(), invalid},

			wantRepoCallCnt:  map[string]int{"BeginTransaction": 0, "DeleteAllStock": 0, "SaveStock": 0},
			wantTxCallCnt:    map[string]int{"Commit": 0, "Rollback": 0},
			wantQueueCallCnt: map[string]int{"PublishStock": 0},
			wantErr:          true,
		},
		{
			name:    "save failure rolls back",
			records: []stock.Record{validRecord(), second},

			saveFunc: func(ctx context.Context, record *stock.Record, options ...core.UpdateOptions) error {
				if record.ID == 2 {
					return errors.New("some unexpected error")
				}
				return nil
			},

			wantRepoCallCnt:  map[string]int{"DeleteAllStock": 1, "SaveStock": 2},
			wantTxCallCnt:    map[string]int{"Commit": 0, "Rollback": 1},
			wantQueueCallCnt: map[string]int{"PublishStock": 0},
			wantErr:          true,
		},
		{
			name:    "clear failure rolls back",
			records: []stock.Record{validRecord()},

			deleteAllFunc: func(ctx context.Context, options ...core.UpdateOptions) (int64, error) {
				return 0, errors.New("some unexpected error")
			},

			wantRepoCallCnt:  map[string]int{"DeleteAllStock": 1, "SaveStock": 0},
			wantTxCallCnt:    map[string]int{"Commit": 0, "Rollback": 1},
			wantQueueCallCnt: map[string]int{"PublishStock": 0},
			wantErr:          true,
		},
		{
			name:    "begin failure",
			records: []stock.Record{validRecord()},

			beginFunc: func(ctx context.Context) (core.Transaction, error) {
				return nil, errors.New("some unexpected error")
			},

			wantRepoCallCnt:  map[string]int{"DeleteAllStock": 0, "SaveStock": 0},
			wantTxCallCnt:    map[string]int{"Commit": 0, "Rollback": 0},
			wantQueueCallCnt: map[string]int{"PublishStock": 0},
			wantErr:          true,
		},
	}

	for _, test := range tests {
		mockTx := core.NewMockTransaction()
		mockRepo := stock.NewMockRepo()
		mockRepo.BeginTransactionFunc = func(ctx context.Context) (core.Transaction, error) { return mockTx, nil }
		if test.beginFunc != nil {
			mockRepo.BeginTransactionFunc = test.beginFunc
		}
		if test.deleteAllFunc != nil {
			mockRepo.DeleteAllStockFunc = test.deleteAllFunc
		}
		if test.saveFunc != nil {
			mockRepo.SaveStockFunc = test.saveFunc
		}
		mockQueue := stock.NewMockQueue()

		service := stock.NewService(mockRepo, mockQueue)

		t.Run(test.name, func(t *testing.T) {
			got, err := service.ReplaceAll(context.Background(), test.records)
			if test.wantErr && err == nil {
				t.Errorf("expected error, got none")
			} else if !test.wantErr && err != nil {
				t.Errorf("did not want error, got=%v", err)
			}

			if got != test.wantCount {
				t.Errorf("unexpected count got=%v want=%v", got, test.wantCount)
			}

			for f, c := range test.wantRepoCallCnt {
				mockRepo.VerifyCount(f, c, t)
			}
			for f, c := range test.wantTxCallCnt {
				mockTx.VerifyCount(f, c, t)
			}
			for f, c := range test.wantQueueCallCnt {
				mockQueue.VerifyCount(f, c, t)
			}
		})
	}
}

func TestAddStock(t *testing.T) {
	invalid := validRecord()
	invalid.CompanyName = ""

	tests := []struct {
		name   string
		record stock.Record

		saveFunc    func(ctx context.Context, record *stock.Record, options ...core.UpdateOptions) error
		publishFunc func(ctx context.Context, record stock.Record) error

		wantTotal        decimal.Decimal
		wantRepoCallCnt  map[string]int
		wantQueueCallCnt map[string]int
		wantErr          bool
	}{
		{
			name:   "stock is saved and published",
			record: validRecord(),

			wantTotal:        decimal.RequireFromString("183.96"),
			wantRepoCallCnt:  map[string]int{"SaveStock": 1},
			wantQueueCallCnt: map[string]int{"PublishStock": 1},
		},
		{
			name:   "publish failure is not returned",
			record: validRecord(),

			publishFunc: func(ctx context.Context, record stock.Record) error {
				return errors.New("some unexpected error")
			},

			wantTotal:        decimal.RequireFromString("183.96"),
			wantRepoCallCnt:  map[string]int{"SaveStock": 1},
			wantQueueCallCnt: map[string]int{"PublishStock": 1},
		},
		{
			name:   "invalid record",
			record: invalid,

			wantRepoCallCnt:  map[string]int{"SaveStock": 0},
			wantQueueCallCnt: map[string]int{"PublishStock": 0},
			wantErr:          true,
		},
		{
			name:   "repository failure",
			record: validRecord(),

			saveFunc: func(ctx context.Context, record *stock.Record, options ...core.UpdateOptions) error {
				return errors.New("some unexpected error")
			},

			wantRepoCallCnt:  map[string]int{"SaveStock": 1},
			wantQueueCallCnt: map[string]int{"PublishStock": 0},
			wantErr:          true,
		},
	}

	for _, test := range tests {
		mockRepo := stock.NewMockRepo()
		if test.saveFunc != nil {
			mockRepo.SaveStockFunc = test.saveFunc
		}
		mockQueue := stock.NewMockQueue()
		if test.publishFunc != nil {
			mockQueue.PublishStockFunc = test.publishFunc
		}

		service := stock.NewService(mockRepo, mockQueue)

		t.Run(test.name, func(t *testing.T) {
			got, err := service.AddStock(context.Background(), test.record)
			if test.wantErr && err == nil {
				t.Errorf("expected error, got none")
			} else if !test.wantErr && err != nil {
				t.Errorf("did not want error, got=%v", err)
			}

			if !got.TotalCost.Equal(test.wantTotal) {
				t.Errorf("unexpected total cost got=%v want=%v", got.TotalCost, test.wantTotal)
			}

			for f, c := range test.wantRepoCallCnt {
				mockRepo.VerifyCount(f, c, t)
			}
			for f, c := range test.wantQueueCallCnt {
				mockQueue.VerifyCount(f, c, t)
			}
		})
	}
}

func TestDeleteStock(t *testing.T) {
	mockRepo := stock.NewMockRepo()
	mockRepo.DeleteStockFunc = func(ctx context.Context, id int64, options ...core.UpdateOptions) error {
		return core.ErrNotFound
	}
	service := stock.NewService(mockRepo, stock.NewMockQueue())

	err := service.DeleteStock(context.Background(), 7)
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("unexpected error got=%v want=%v", err, core.ErrNotFound)
	}
	mockRepo.VerifyCount("DeleteStock", 1, t)
}

func TestSubscribe(t *testing.T) {
	service := stock.NewService(stock.NewMockRepo(), stock.NewMockQueue())

	ch := make(chan stock.Record, 1)
	id := service.SubscribeStock(ch)

	rec := validRecord()
	service.Announce(context.Background(), rec)

	select {
	case got := <-ch:
		if got.ID != rec.ID {
			t.Errorf("unexpected record got=%v want=%v", got.ID, rec.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber was not notified")
	}

	// A full channel must not block the announcer.
	service.Announce(context.Background(), rec, rec)

	service.UnsubscribeStock(id)
	<-ch
	if _, ok := <-ch; ok {
		t.Errorf("expected channel to be closed after unsubscribing")
	}

	service.Announce(context.Background(), rec)
}
