package order_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sksmith/go-spares/internal/core"
	"github.com/sksmith/go-spares/internal/core/order"
	"github.com/sksmith/go-spares/internal/core/scan"
	"github.com/sksmith/go-spares/internal/core/stock"
	"github.com/sksmith/go-spares/internal/db/memrepo"
	"github.com/sksmith/go-spares/internal/queue"
	"github.com/sksmith/go-spares/internal/testutil"
)

func TestMain(m *testing.M) {
	testutil.ConfigLogging()
	os.Exit(m.Run())
}

func brakePad(spares int64) stock.Record {
	return stock.Record{
		ID:          1,
		Date:        "2024-01-15",
		Price:       decimal.RequireFromString("45.99"),
		Spares:      spares,
		CompanyName: "Acme",
		PartNumber:  "BP-100",
		Category:    stock.Brakes,
		Description: "Front brake pad",
	}
}

func customer() order.CustomerDetails {
	return order.CustomerDetails{Name: "Jane", Address: "1 Main St", Phone: "5551234567"}
}

// sequence answers request id lookups in order. A zero Order means not found.
func sequence(orders ...order.Order) func(ctx context.Context, requestID string, options ...core.QueryOptions) (order.Order, error) {
	return func(ctx context.Context, requestID string, options ...core.QueryOptions) (order.Order, error) {
		o := orders[0]
		if len(orders) > 1 {
			orders = orders[1:]
		}
		if o.ID == 0 {
			return order.Order{}, core.ErrNotFound
		}
		return o, nil
	}
}

func TestPlaceOrder(t *testing.T) {
	tests := []struct {
		name string
		req  order.PlaceOrderRequest

		getStockFunc  func(ctx context.Context, id int64, options ...core.QueryOptions) (stock.Record, error)
		saveOrderFunc func(ctx context.Context, o *order.Order, options ...core.UpdateOptions) error
		byRequestFunc func(ctx context.Context, requestID string, options ...core.QueryOptions) (order.Order, error)

		wantTotal        decimal.Decimal
		wantRepoCallCnt  map[string]int
		wantStockCallCnt map[string]int
		wantTxCallCnt    map[string]int
		wantQueueCallCnt map[string]int
		wantAnnounceCnt  int
		wantErr          bool
	}{
		{
			name: "order is placed",
			req:  order.PlaceOrderRequest{ProductID: 1, Quantity: 2, CustomerDetails: customer()},

			wantTotal:        decimal.RequireFromString("91.98"),
			wantRepoCallCnt:  map[string]int{"GetOrderByRequestID": 0, "SaveOrder": 1},
			wantStockCallCnt: map[string]int{"GetStock": 1, "DecrementSpares": 1},
			wantTxCallCnt:    map[string]int{"Commit": 1, "Rollback": 0},
			wantQueueCallCnt: map[string]int{"PublishOrder": 1},
			wantAnnounceCnt:  1,
		},
		{
			name: "insufficient stock",
			req:  order.PlaceOrderRequest{ProductID: 1, Quantity: 5, CustomerDetails: customer()},

			getStockFunc: func(ctx context.Context, id int64, options ...core.QueryOptions) (stock.Record, error) {
				return brakePad(1), nil
			},

			wantTotal:        decimal.Zero,
			wantRepoCallCnt:  map[string]int{"SaveOrder": 0},
			wantStockCallCnt: map[string]int{"GetStock": 1, "DecrementSpares": 0},
			wantTxCallCnt:    map[string]int{"Commit": 0, "Rollback": 1},
			wantQueueCallCnt: map[string]int{"PublishOrder": 0},
			wantErr:          true,
		},
		{
			name: "unknown product",
			req:  order.PlaceOrderRequest{ProductID: 9, Quantity: 1, CustomerDetails: customer()},

			getStockFunc: func(ctx context.Context, id int64, options ...core.QueryOptions) (stock.Record, error) {
				return stock.Record{}, core.ErrNotFound
			},

			wantTotal:        decimal.Zero,
			wantRepoCallCnt:  map[string]int{"SaveOrder": 0},
			wantStockCallCnt: map[string]int{"GetStock": 1, "DecrementSpares": 0},
			wantTxCallCnt:    map[string]int{"Commit": 0, "Rollback": 1},
			wantQueueCallCnt: map[string]int{"PublishOrder": 0},
			wantErr:          true,
		},
		{
			name: "save failure rolls back",
			req:  order.PlaceOrderRequest{ProductID: 1, Quantity: 1, CustomerDetails: customer()},

			saveOrderFunc: func(ctx context.Context, o *order.Order, options ...core.UpdateOptions) error {
				return errors.New("some unexpected error")
			},

			wantTotal:        decimal.Zero,
			wantRepoCallCnt:  map[string]int{"SaveOrder": 1},
			wantStockCallCnt: map[string]int{"GetStock": 1, "DecrementSpares": 1},
			wantTxCallCnt:    map[string]int{"Commit": 0, "Rollback": 1},
			wantQueueCallCnt: map[string]int{"PublishOrder": 0},
			wantErr:          true,
		},
		{
			name: "invalid request",
			req:  order.PlaceOrderRequest{ProductID: 1, Quantity: 0, CustomerDetails: customer()},

			wantTotal:        decimal.Zero,
			wantRepoCallCnt:  map[string]int{"BeginTransaction": 0, "SaveOrder": 0},
			wantStockCallCnt: map[string]int{"GetStock": 0},
			wantTxCallCnt:    map[string]int{"Commit": 0, "Rollback": 0},
			wantQueueCallCnt: map[string]int{"PublishOrder": 0},
			wantErr:          true,
		},
		{
			name: "repeated request id returns the first order",
			req:  order.PlaceOrderRequest{ProductID: 1, Quantity: 2, CustomerDetails: customer(), RequestID: "abc"},

			byRequestFunc: func(ctx context.Context, requestID string, options ...core.QueryOptions) (order.Order, error) {
				return order.Order{ID: 4, RequestID: requestID, OrderTotal: decimal.RequireFromString("91.98")}, nil
			},

			wantTotal:        decimal.RequireFromString("91.98"),
			wantRepoCallCnt:  map[string]int{"GetOrderByRequestID": 1, "BeginTransaction": 0, "SaveOrder": 0},
			wantStockCallCnt: map[string]int{"GetStock": 0, "DecrementSpares": 0},
			wantTxCallCnt:    map[string]int{"Commit": 0, "Rollback": 0},
			wantQueueCallCnt: map[string]int{"PublishOrder": 0},
		},
		{
			name: "request id committed concurrently returns that order",
			req:  order.PlaceOrderRequest{ProductID: 1, Quantity: 2, CustomerDetails: customer(), RequestID: "abc"},

			byRequestFunc: sequence(
				order.Order{},
				order.Order{ID: 5, RequestID: "abc", OrderTotal: decimal.RequireFromString("91.98")},
			),
			saveOrderFunc: func(ctx context.Context, o *order.Order, options ...core.UpdateOptions) error {
				return fmt.Errorf("insert failed: %w", core.ErrDuplicateRequest)
			},

			wantTotal:        decimal.RequireFromString("91.98"),
			wantRepoCallCnt:  map[string]int{"GetOrderByRequestID": 2, "SaveOrder": 1},
			wantStockCallCnt: map[string]int{"GetStock": 1, "DecrementSpares": 1},
			wantTxCallCnt:    map[string]int{"Commit": 0, "Rollback": 1},
			wantQueueCallCnt: map[string]int{"PublishOrder": 0},
		},
	}

	for _, test := range tests {
		mockTx := core.NewMockTransaction()
		mockRepo := order.NewMockRepo()
		mockRepo.BeginTransactionFunc = func(ctx context.Context) (core.Transaction, error) { return mockTx, nil }
		if test.saveOrderFunc != nil {
			mockRepo.SaveOrderFunc = test.saveOrderFunc
		}
		if test.byRequestFunc != nil {
			mockRepo.GetOrderByRequestIDFunc = test.byRequestFunc
		}
		mockStock := stock.NewMockRepo()
		mockStock.GetStockFunc = func(ctx context.Context, id int64, options ...core.QueryOptions) (stock.Record, error) {
			return brakePad(4), nil
		}
		if test.getStockFunc != nil {
			mockStock.GetStockFunc = test.getStockFunc
		}
		mockAnnouncer := order.NewMockAnnouncer()
		mockQueue := order.NewMockQueue()

		service := order.NewService(mockRepo, mockStock, order.NewMockGate(), mockAnnouncer, mockQueue)

		t.Run(test.name, func(t *testing.T) {
			got, err := service.PlaceOrder(context.Background(), test.req)
			if test.wantErr && err == nil {
				t.Errorf("expected error, got none")
			} else if !test.wantErr && err != nil {
				t.Errorf("did not want error, got=%v", err)
			}

			if !got.OrderTotal.Equal(test.wantTotal) {
				t.Errorf("unexpected total got=%v want=%v", got.OrderTotal, test.wantTotal)
			}

			for f, c := range test.wantRepoCallCnt {
				mockRepo.VerifyCount(f, c, t)
			}
			for f, c := range test.wantStockCallCnt {
				mockStock.VerifyCount(f, c, t)
			}
			for f, c := range test.wantTxCallCnt {
				mockTx.VerifyCount(f, c, t)
			}
			for f, c := range test.wantQueueCallCnt {
				mockQueue.VerifyCount(f, c, t)
			}
			mockAnnouncer.VerifyCount("Announce", test.wantAnnounceCnt, t)
		})
	}
}

func TestPlaceGatedOrder(t *testing.T) {
	tests := []struct {
		name  string
		token string

		claimFunc    func(token string) error
		getStockFunc func(ctx context.Context, id int64, options ...core.QueryOptions) (stock.Record, error)

		wantGateCallCnt map[string]int
		wantErr         error
	}{
		{
			name:  "scanned order is placed",
			token: "tok",

			wantGateCallCnt: map[string]int{"Claim": 1, "Release": 0, "Reset": 1},
		},
		{
			name:  "unscanned order is rejected",
			token: "tok",

			claimFunc: func(token string) error { return core.ErrGateNotSatisfied },

			wantGateCallCnt: map[string]int{"Claim": 1, "Release": 0, "Reset": 0},
			wantErr:         core.ErrGateNotSatisfied,
		},
		{
			name:  "failed order releases the scan",
			token: "tok",

			getStockFunc: func(ctx context.Context, id int64, options ...core.QueryOptions) (stock.Record, error) {
				return stock.Record{}, core.ErrNotFound
			},

			wantGateCallCnt: map[string]int{"Claim": 1, "Release": 1, "Reset": 0},
			wantErr:         core.ErrNotFound,
		},
		{
			name: "missing token",

			wantGateCallCnt: map[string]int{"Claim": 0},
		},
	}

	for _, test := range tests {
		mockGate := order.NewMockGate()
		if test.claimFunc != nil {
			mockGate.ClaimFunc = test.claimFunc
		}
		mockStock := stock.NewMockRepo()
		mockStock.GetStockFunc = func(ctx context.Context, id int64, options ...core.QueryOptions) (stock.Record, error) {
			return brakePad(4), nil
		}
		if test.getStockFunc != nil {
			mockStock.GetStockFunc = test.getStockFunc
		}

		service := order.NewService(order.NewMockRepo(), mockStock, mockGate, order.NewMockAnnouncer(), order.NewMockQueue())

		t.Run(test.name, func(t *testing.T) {
			req := order.PlaceOrderRequest{ProductID: 1, Quantity: 1, CustomerDetails: customer()}
			_, err := service.PlaceGatedOrder(context.Background(), test.token, req)

			switch {
			case test.token == "":
				if !core.IsValidation(err) {
					t.Errorf("expected a validation error, got=%v", err)
				}
			case !errors.Is(err, test.wantErr):
				t.Errorf("unexpected error got=%v want=%v", err, test.wantErr)
			}

			for f, c := range test.wantGateCallCnt {
				mockGate.VerifyCount(f, c, t)
			}
		})
	}
}

func TestUpdateOrderStatus(t *testing.T) {
	tests := []struct {
		name    string
		current order.Status
		next    string

		wantStatus    order.Status
		wantTxCallCnt map[string]int
		wantErr       error
		wantInvalid   bool
	}{
		{
			name:    "pending to processing",
			current: order.Pending,
			next:    "processing",

			wantStatus:    order.Processing,
			wantTxCallCnt: map[string]int{"Commit": 1, "Rollback": 0},
		},
		{
			name:    "skipping a step is rejected",
			current: order.Pending,
			next:    "delivered",

			wantTxCallCnt: map[string]int{"Commit": 0, "Rollback": 1},
			wantErr:       core.ErrInvalidTransition,
		},
		{
			name:    "delivered is final",
			current: order.Delivered,
			next:    "cancelled",

			wantTxCallCnt: map[string]int{"Commit": 0, "Rollback": 1},
			wantErr:       core.ErrInvalidTransition,
		},
		{
			name:    "unknown status",
			current: order.Pending,
			next:    "lost",

			wantTxCallCnt: map[string]int{"Commit": 0, "Rollback": 0},
			wantInvalid:   true,
		},
		{
			name:    "missing status",
			current: order.Pending,

			wantTxCallCnt: map[string]int{"Commit": 0, "Rollback": 0},
			wantInvalid:   true,
		},
	}

	for _, test := range tests {
		mockTx := core.NewMockTransaction()
		mockRepo := order.NewMockRepo()
		mockRepo.BeginTransactionFunc = func(ctx context.Context) (core.Transaction, error) { return mockTx, nil }
		current := test.current
		mockRepo.GetOrderFunc = func(ctx context.Context, id int64, options ...core.QueryOptions) (order.Order, error) {
			return order.Order{ID: id, Status: current}, nil
		}

		service := order.NewService(mockRepo, stock.NewMockRepo(), order.NewMockGate(), order.NewMockAnnouncer(), order.NewMockQueue())

		t.Run(test.name, func(t *testing.T) {
			got, err := service.UpdateOrderStatus(context.Background(), 1, test.next)
			if test.wantInvalid {
				if !core.IsValidation(err) {
					t.Errorf("expected a validation error, got=%v", err)
				}
			} else if !errors.Is(err, test.wantErr) {
				t.Errorf("unexpected error got=%v want=%v", err, test.wantErr)
			}

			if got.Status != test.wantStatus {
				t.Errorf("unexpected status got=%v want=%v", got.Status, test.wantStatus)
			}

			for f, c := range test.wantTxCallCnt {
				mockTx.VerifyCount(f, c, t)
			}
		})
	}
}

func TestCancelOrderFallsBackToPartNumber(t *testing.T) {
	mockRepo := order.NewMockRepo()
	mockRepo.GetOrderFunc = func(ctx context.Context, id int64, options ...core.QueryOptions) (order.Order, error) {
		return order.Order{
			ID:              id,
			StockID:         7,
			QuantityOrdered: 2,
			ProductSnapshot: order.NewSnapshot(brakePad(0)),
			Status:          order.Shipped,
		}, nil
	}

	mockStock := stock.NewMockRepo()
	mockStock.IncrementSparesFunc = func(ctx context.Context, id, amount int64, options ...core.UpdateOptions) (stock.Record, error) {
		if id == 7 {
			return stock.Record{}, core.ErrNotFound
		}
		return brakePad(amount), nil
	}
	mockStock.GetStockByNameAndPartNumberFunc = func(ctx context.Context, name, partNumber string, options ...core.QueryOptions) (stock.Record, error) {
		return brakePad(0), nil
	}
	mockAnnouncer := order.NewMockAnnouncer()

	service := order.NewService(mockRepo, mockStock, order.NewMockGate(), mockAnnouncer, order.NewMockQueue())

	got, err := service.CancelOrder(context.Background(), 3)
	if err != nil {
		t.Fatalf("did not want error, got=%v", err)
	}
	if got.Status != order.Cancelled {
		t.Errorf("unexpected status got=%v want=%v", got.Status, order.Cancelled)
	}

	mockStock.VerifyCount("IncrementSpares", 2, t)
	mockStock.VerifyCount("GetStockByNameAndPartNumber", 1, t)
	mockRepo.VerifyCount("UpdateOrderStatus", 1, t)
	mockAnnouncer.VerifyCount("Announce", 1, t)
}

func TestCancelOrderWithoutPart(t *testing.T) {
	mockRepo := order.NewMockRepo()
	mockStock := stock.NewMockRepo()
	mockStock.GetStockByNameAndPartNumberFunc = func(ctx context.Context, name, partNumber string, options ...core.QueryOptions) (stock.Record, error) {
		return stock.Record{}, core.ErrNotFound
	}
	mockAnnouncer := order.NewMockAnnouncer()

	service := order.NewService(mockRepo, mockStock, order.NewMockGate(), mockAnnouncer, order.NewMockQueue())

	got, err := service.CancelOrder(context.Background(), 3)
	if err != nil {
		t.Fatalf("did not want error, got=%v", err)
	}
	if got.Status != order.Cancelled {
		t.Errorf("unexpected status got=%v want=%v", got.Status, order.Cancelled)
	}
	mockStock.VerifyCount("IncrementSpares", 0, t)
	mockAnnouncer.VerifyCount("Announce", 0, t)
}

type scenario struct {
	store   *memrepo.Store
	gate    *scan.Gate
	queue   *queue.MockQueue
	service order.Service
}

func newScenario(t *testing.T, records ...stock.Record) scenario {
	t.Helper()
	store := memrepo.New()
	for i := range records {
		if err := store.SaveStock(context.Background(), &records[i]); err != nil {
			t.Fatal(err)
		}
	}
	gate, err := scan.NewGate()
	if err != nil {
		t.Fatal(err)
	}
	q := queue.NewMockQueue()
	stockService := stock.NewService(store, q)
	return scenario{
		store:   store,
		gate:    gate,
		queue:   q,
		service: order.NewService(store, store, gate, stockService, q),
	}
}

func (s scenario) spares(t *testing.T, id int64) int64 {
	t.Helper()
	rec, err := s.store.GetStock(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return rec.Spares
}

func TestOrderLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newScenario(t, brakePad(4))

	o, err := s.service.PlaceOrder(ctx, order.PlaceOrderRequest{ProductID: 1, Quantity: 2, CustomerDetails: customer()})
	if err != nil {
		t.Fatalf("did not want error, got=%v", err)
	}
	if o.Status != order.Pending {
		t.Errorf("unexpected status got=%v want=%v", o.Status, order.Pending)
	}
	if want := decimal.RequireFromString("91.98"); !o.OrderTotal.Equal(want) {
		t.Errorf("unexpected total got=%v want=%v", o.OrderTotal, want)
	}
	if got := s.spares(t, 1); got != 2 {
		t.Errorf("unexpected spares got=%v want=%v", got, 2)
	}
	rec, _ := s.store.GetStock(ctx, 1)
	if want := decimal.RequireFromString("91.98"); !rec.TotalCost.Equal(want) {
		t.Errorf("unexpected stock total cost got=%v want=%v", rec.TotalCost, want)
	}

	_, err = s.service.PlaceOrder(ctx, order.PlaceOrderRequest{ProductID: 1, Quantity: 5, CustomerDetails: customer()})
	ise, ok := core.AsInsufficientStock(err)
	if !ok {
		t.Fatalf("expected insufficient stock, got=%v", err)
	}
	if ise.Available != 2 || ise.Requested != 5 {
		t.Errorf("unexpected shortfall got=%+v", ise)
	}
	if got := s.spares(t, 1); got != 2 {
		t.Errorf("stock changed after a rejected order got=%v want=%v", got, 2)
	}

	cancelled, err := s.service.CancelOrder(ctx, o.ID)
	if err != nil {
		t.Fatalf("did not want error, got=%v", err)
	}
	if cancelled.Status != order.Cancelled {
		t.Errorf("unexpected status got=%v want=%v", cancelled.Status, order.Cancelled)
	}
	if got := s.spares(t, 1); got != 4 {
		t.Errorf("cancel did not restock got=%v want=%v", got, 4)
	}

	if _, err = s.service.CancelOrder(ctx, o.ID); !errors.Is(err, core.ErrInvalidTransition) {
		t.Errorf("unexpected error got=%v want=%v", err, core.ErrInvalidTransition)
	}
	if got := s.spares(t, 1); got != 4 {
		t.Errorf("second cancel restocked again got=%v want=%v", got, 4)
	}

	s.queue.VerifyCount("PublishOrder", 2, t)
	s.queue.VerifyCount("PublishStock", 2, t)
}

func TestDeliveredOrderCannotBeCancelled(t *testing.T) {
	ctx := context.Background()
	s := newScenario(t, brakePad(4))

	o, err := s.service.PlaceOrder(ctx, order.PlaceOrderRequest{ProductID: 1, Quantity: 1, CustomerDetails: customer()})
	if err != nil {
		t.Fatal(err)
	}
	for _, next := range []string{"processing", "shipped", "delivered"} {
		if _, err = s.service.UpdateOrderStatus(ctx, o.ID, next); err != nil {
			t.Fatalf("failed to move to %s: %v", next, err)
		}
	}

	if _, err = s.service.CancelOrder(ctx, o.ID); !errors.Is(err, core.ErrInvalidTransition) {
		t.Errorf("unexpected error got=%v want=%v", err, core.ErrInvalidTransition)
	}
	if got := s.spares(t, 1); got != 3 {
		t.Errorf("unexpected spares got=%v want=%v", got, 3)
	}
}

func TestIdempotentOrders(t *testing.T) {
	ctx := context.Background()
	s := newScenario(t, brakePad(4))

	req := order.PlaceOrderRequest{ProductID: 1, Quantity: 1, CustomerDetails: customer(), RequestID: "form-1"}
	first, err := s.service.PlaceOrder(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.service.PlaceOrder(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Errorf("expected the same order got=%v want=%v", second.ID, first.ID)
	}
	if got := s.spares(t, 1); got != 3 {
		t.Errorf("unexpected spares got=%v want=%v", got, 3)
	}

	req.RequestID = ""
	a, _ := s.service.PlaceOrder(ctx, req)
	b, _ := s.service.PlaceOrder(ctx, req)
	if a.ID == b.ID {
		t.Errorf("orders without a request id must be distinct")
	}
	if got := s.spares(t, 1); got != 1 {
		t.Errorf("unexpected spares got=%v want=%v", got, 1)
	}
}

func TestScanGatedOrder(t *testing.T) {
	ctx := context.Background()
	s := newScenario(t, brakePad(4))
	req := order.PlaceOrderRequest{ProductID: 1, Quantity: 1, CustomerDetails: customer()}

	c := s.gate.Issue()
	if _, err := s.service.PlaceGatedOrder(ctx, c.Token, req); !errors.Is(err, core.ErrGateNotSatisfied) {
		t.Fatalf("unexpected error got=%v want=%v", err, core.ErrGateNotSatisfied)
	}

	if err := s.gate.Trigger(c.Token); err != nil {
		t.Fatal(err)
	}

	bad := req
	bad.Quantity = 10
	if _, err := s.service.PlaceGatedOrder(ctx, c.Token, bad); err == nil {
		t.Fatal("expected insufficient stock")
	}
	if !s.gate.Check(c.Token) {
		t.Fatal("failed order must leave the scan usable")
	}

	if _, err := s.service.PlaceGatedOrder(ctx, c.Token, req); err != nil {
		t.Fatalf("did not want error, got=%v", err)
	}
	if s.gate.Check(c.Token) {
		t.Error("scan must be reset after the order")
	}
	if _, err := s.service.PlaceGatedOrder(ctx, c.Token, req); !errors.Is(err, core.ErrGateNotSatisfied) {
		t.Errorf("a scan must not be reused got=%v", err)
	}
}

func TestDeletedStockKeepsOrder(t *testing.T) {
	ctx := context.Background()
	s := newScenario(t, brakePad(4))

	o, err := s.service.PlaceOrder(ctx, order.PlaceOrderRequest{ProductID: 1, Quantity: 1, CustomerDetails: customer()})
	if err != nil {
		t.Fatal(err)
	}
	if err = s.store.DeleteStock(ctx, 1); err != nil {
		t.Fatal(err)
	}

	got, err := s.service.GetOrder(ctx, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.StockID != 0 {
		t.Errorf("expected stock reference to be cleared got=%v", got.StockID)
	}
	if got.ProductSnapshot.Name != "Acme" {
		t.Errorf("snapshot was lost got=%+v", got.ProductSnapshot)
	}

	// Re-imported under a new id, the part is found by name and part number.
	readded := brakePad(0)
	readded.ID = 20
	if err = s.store.SaveStock(ctx, &readded); err != nil {
		t.Fatal(err)
	}
	if _, err = s.service.CancelOrder(ctx, o.ID); err != nil {
		t.Fatal(err)
	}
	if got := s.spares(t, 20); got != 1 {
		t.Errorf("unexpected spares got=%v want=%v", got, 1)
	}
}

func TestConcurrentOrdersDoNotOversell(t *testing.T) {
	const (
		spares = 5
		buyers = 20
	)
	s := newScenario(t, brakePad(spares))

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		placed       int
		insufficient int
		other        []error
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.PlaceOrder(context.Background(), order.PlaceOrderRequest{ProductID: 1, Quantity: 1, CustomerDetails: customer()})

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				placed++
			} else if _, ok := core.AsInsufficientStock(err); ok {
				insufficient++
			} else {
				other = append(other, err)
			}
		}()
	}
	wg.Wait()

	if len(other) > 0 {
		t.Fatalf("unexpected errors %v", other)
	}
	if placed != spares {
		t.Errorf("unexpected placed orders got=%v want=%v", placed, spares)
	}
	if insufficient != buyers-spares {
		t.Errorf("unexpected rejections got=%v want=%v", insufficient, buyers-spares)
	}
	if got := s.spares(t, 1); got != 0 {
		t.Errorf("unexpected spares got=%v want=%v", got, 0)
	}
	orders, err := s.service.ListOrders(context.Background(), buyers, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(orders) != spares {
		t.Errorf("unexpected stored orders got=%v want=%v", len(orders), spares)
	}
}

func TestConcurrentRepeatsOfOneRequest(t *testing.T) {
	const repeats = 10
	s := newScenario(t, brakePad(4))

	var (
		wg   sync.WaitGroup
		ids  = make([]int64, repeats)
		errs = make([]error, repeats)
	)
	for i := 0; i < repeats; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			o, err := s.service.PlaceOrder(context.Background(), order.PlaceOrderRequest{
				ProductID: 1, Quantity: 2, CustomerDetails: customer(), RequestID: "checkout-1",
			})
			ids[i], errs[i] = o.ID, err
		}(i)
	}
	wg.Wait()

	for i := range ids {
		if errs[i] != nil {
			t.Fatalf("did not want error, got=%v", errs[i])
		}
		if ids[i] != ids[0] {
			t.Errorf("repeat %d got order %v want=%v", i, ids[i], ids[0])
		}
	}
	if got := s.spares(t, 1); got != 2 {
		t.Errorf("stock decremented more than once got=%v want=%v", got, 2)
	}
}
