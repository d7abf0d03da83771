package orderrepo_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/shopspring/decimal"
	"github.com/sksmith/go-spares/internal/core"
	"github.com/sksmith/go-spares/internal/core/order"
	"github.com/sksmith/go-spares/internal/db"
	"github.com/sksmith/go-spares/internal/db/orderrepo"
)

var orderDate = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func orderRow(stockID *int64) pgx.Row {
	return &db.MockRow{ScanFunc: func(dest ...interface{}) error {
		*dest[0].(*int64) = 7
		*dest[2].(**int64) = stockID
		*dest[3].(*[]byte) = []byte(`{"name":"Acme","partNumber":"BP-1","price":"45.99","description":"brake pad"}`)
		*dest[4].(*int64) = 2
		*dest[5].(*decimal.Decimal) = decimal.RequireFromString("91.98")
		*dest[6].(*time.Time) = orderDate
		*dest[7].(*[]byte) = []byte(`{"name":"Jo Bloggs","phone":"+44 1234 567890"}`)
		*dest[8].(*string) = "shipped"
		return nil
	}}
}

func TestGetOrder(t *testing.T) {
	stockID := int64(3)
	tests := []struct {
		name string
		row  pgx.Row

		wantStockID int64
		wantErr     error
	}{
		{name: "found", row: orderRow(&stockID), wantStockID: 3},
		{name: "stock removed", row: orderRow(nil), wantStockID: 0},
		{
			name:    "not found",
			row:     &db.MockRow{ScanFunc: func(dest ...interface{}) error { return pgx.ErrNoRows }},
			wantErr: core.ErrNotFound,
		},
		{
			name: "malformed snapshot",
			row: &db.MockRow{ScanFunc: func(dest ...interface{}) error {
				*dest[3].(*[]byte) = []byte(`{`)
				return nil
			}},
			wantErr: errAny,
		},
	}

	for _, test := range tests {
		conn := db.NewMockConn()
		row := test.row
		conn.QueryRowFunc = func(ctx context.Context, sql string, args ...interface{}) pgx.Row { return row }
		repo := orderrepo.NewPostgresRepo(&conn)

		t.Run(test.name, func(t *testing.T) {
			got, err := repo.GetOrder(context.Background(), 7)
			switch {
			case test.wantErr == errAny:
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			case !errors.Is(err, test.wantErr):
				t.Fatalf("unexpected error got=%v want=%v", err, test.wantErr)
			case err != nil:
				return
			}

			if got.StockID != test.wantStockID {
				t.Errorf("unexpected stock id got=%v want=%v", got.StockID, test.wantStockID)
			}
			if got.Status != order.Shipped {
				t.Errorf("unexpected status got=%v want=%v", got.Status, order.Shipped)
			}
			if got.ProductSnapshot.PartNumber != "BP-1" {
				t.Errorf("unexpected snapshot got=%+v", got.ProductSnapshot)
			}
			if got.CustomerDetails.Name != "Jo Bloggs" {
				t.Errorf("unexpected customer got=%+v", got.CustomerDetails)
			}
			if !got.OrderDate.Equal(orderDate) {
				t.Errorf("unexpected order date got=%v want=%v", got.OrderDate, orderDate)
			}
		})
	}
}

var errAny = errors.New("any error")

func TestSaveOrder(t *testing.T) {
	tx := db.NewMockTransaction()
	var gotArgs []interface{}
	tx.QueryRowFunc = func(ctx context.Context, sql string, args ...interface{}) pgx.Row {
		gotArgs = args
		return &db.MockRow{ScanFunc: func(dest ...interface{}) error {
			*dest[0].(*int64) = 11
			return nil
		}}
	}
	conn := db.NewMockConn()
	repo := orderrepo.NewPostgresRepo(&conn)

	o := order.Order{
		QuantityOrdered: 1,
		OrderTotal:      decimal.RequireFromString("45.99"),
		OrderDate:       orderDate,
		CustomerDetails: order.CustomerDetails{Name: "Jo Bloggs"},
		Status:          order.Pending,
	}
	if err := repo.SaveOrder(context.Background(), &o, core.UpdateOptions{Tx: tx}); err != nil {
		t.Fatal(err)
	}
	if o.ID != 11 {
		t.Errorf("id was not assigned got=%v want=%v", o.ID, 11)
	}
	if got := gotArgs[0].(*string); got != nil {
		t.Errorf("empty request id should be stored as null got=%v", *got)
	}
	if got := gotArgs[1].(*int64); got != nil {
		t.Errorf("zero stock id should be stored as null got=%v", *got)
	}
	tx.MockConn.VerifyCount("QueryRow", 1, t)
	conn.VerifyCount("QueryRow", 0, t)
}

func TestUpdateOrderStatus(t *testing.T) {
	tests := []struct {
		name string
		tag  pgconn.CommandTag
		err  error

		wantErr error
	}{
		{name: "updated", tag: pgconn.CommandTag("UPDATE 1")},
		{name: "missing", tag: pgconn.CommandTag("UPDATE 0"), wantErr: core.ErrNotFound},
		{name: "failed", err: errSomeDB, wantErr: errSomeDB},
	}

	for _, test := range tests {
		conn := db.NewMockConn()
		tag, execErr := test.tag, test.err
		conn.ExecFunc = func(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
			return tag, execErr
		}
		repo := orderrepo.NewPostgresRepo(&conn)

		t.Run(test.name, func(t *testing.T) {
			err := repo.UpdateOrderStatus(context.Background(), 1, order.Delivered)
			if !errors.Is(err, test.wantErr) {
				t.Errorf("unexpected error got=%v want=%v", err, test.wantErr)
			}
			conn.VerifyCount("Exec", 1, t)
		})
	}
}

var errSomeDB = errors.New("connection reset")

func TestSaveOrderDuplicateRequestID(t *testing.T) {
	tests := []struct {
		name string
		err  error

		wantErr error
	}{
		{
			name:    "request id taken",
			err:     &pgconn.PgError{Code: "23505", ConstraintName: "orders_request_id_key"},
			wantErr: core.ErrDuplicateRequest,
		},
		{
			name:    "other unique violation",
			err:     &pgconn.PgError{Code: "23505", ConstraintName: "orders_pkey"},
			wantErr: nil,
		},
	}

	for _, test := range tests {
		conn := db.NewMockConn()
		scanErr := test.err
		conn.QueryRowFunc = func(ctx context.Context, sql string, args ...interface{}) pgx.Row {
			return &db.MockRow{ScanFunc: func(dest ...interface{}) error { return scanErr }}
		}
		repo := orderrepo.NewPostgresRepo(&conn)

		t.Run(test.name, func(t *testing.T) {
			err := repo.SaveOrder(context.Background(), &order.Order{RequestID: "abc", Status: order.Pending})
			if err == nil {
				t.Fatal("expected an error")
			}
			isDup := errors.Is(err, core.ErrDuplicateRequest)
			if isDup != (test.wantErr != nil) {
				t.Errorf("unexpected error got=%v want=%v", err, test.wantErr)
			}
		})
	}
}
