package orderrepo

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/pkg/errors"
	"github.com/sksmith/go-spares/internal/core"
	"github.com/sksmith/go-spares/internal/core/order"
	"github.com/sksmith/go-spares/internal/db"
)

const (
	uniqueViolation     = "23505"
	requestIDConstraint = "orders_request_id_key"
)

const columns = `id, request_id, stock_id, product_snapshot, quantity_ordered, order_total, order_date, customer_details, status`

type dbRepo struct {
	conn core.Conn
}

func NewPostgresRepo(conn core.Conn) order.Repository {
	return &dbRepo{
		conn: conn,
	}
}

func (d *dbRepo) BeginTransaction(ctx context.Context) (core.Transaction, error) {
	return db.BeginTransaction(ctx, d.conn)
}

func (d *dbRepo) GetOrder(ctx context.Context, id int64, options ...core.QueryOptions) (order.Order, error) {
	m := db.StartMetric("GetOrder")
	tx, forUpdate := db.GetQueryOptions(d.conn, options...)

	o, err := scanOrder(tx.QueryRow(ctx, `SELECT `+columns+` FROM orders WHERE id = $1 `+forUpdate, id))
	m.Complete(ignoreNotFound(err))
	return o, err
}

func (d *dbRepo) GetOrderByRequestID(ctx context.Context, requestID string, options ...core.QueryOptions) (order.Order, error) {
	m := db.StartMetric("GetOrderByRequestID")
	tx, forUpdate := db.GetQueryOptions(d.conn, options...)

	o, err := scanOrder(tx.QueryRow(ctx, `SELECT `+columns+` FROM orders WHERE request_id = $1 `+forUpdate, requestID))
	m.Complete(ignoreNotFound(err))
	return o, err
}

// GetOrders returns the newest orders first.
func (d *dbRepo) GetOrders(ctx context.Context, limit, offset int, options ...core.QueryOptions) ([]order.Order, error) {
	m := db.StartMetric("GetOrders")
	tx, forUpdate := db.GetQueryOptions(d.conn, options...)

	orders := make([]order.Order, 0)
	rows, err := tx.Query(ctx, `
		SELECT `+columns+`
		  FROM orders
		 ORDER BY order_date DESC, id DESC
		 LIMIT $1 OFFSET $2 `+forUpdate, limit, offset)
	if err != nil {
		m.Complete(err)
		return orders, errors.WithStack(err)
	}
	defer rows.Close()

	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			m.Complete(err)
			return orders, err
		}
		orders = append(orders, o)
	}
	if err = rows.Err(); err != nil {
		m.Complete(err)
		return orders, errors.WithStack(err)
	}

	m.Complete(nil)
	return orders, nil
}

func (d *dbRepo) SaveOrder(ctx context.Context, o *order.Order, options ...core.UpdateOptions) error {
	m := db.StartMetric("SaveOrder")
	tx := db.GetUpdateOptions(d.conn, options...)

	snapshot, err := json.Marshal(o.ProductSnapshot)
	if err != nil {
		m.Complete(err)
		return errors.WithStack(err)
	}
	customer, err := json.Marshal(o.CustomerDetails)
	if err != nil {
		m.Complete(err)
		return errors.WithStack(err)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO orders (request_id, stock_id, product_snapshot, quantity_ordered, order_total, order_date, customer_details, status)
		     VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		  RETURNING id;`,
		nullString(o.RequestID), nullID(o.StockID), snapshot, o.QuantityOrdered, o.OrderTotal,
		o.OrderDate, customer, string(o.Status)).
		Scan(&o.ID)
	m.Complete(err)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == requestIDConstraint {
			return errors.WithMessagef(core.ErrDuplicateRequest, "request id %q", o.RequestID)
		}
		return errors.WithStack(err)
	}
	return nil
}

func (d *dbRepo) UpdateOrderStatus(ctx context.Context, id int64, status order.Status, options ...core.UpdateOptions) error {
	m := db.StartMetric("UpdateOrderStatus")
	tx := db.GetUpdateOptions(d.conn, options...)

	ct, err := tx.Exec(ctx, `UPDATE orders SET status = $2 WHERE id = $1`, id, string(status))
	m.Complete(err)
	if err != nil {
		return errors.WithStack(err)
	}
	if ct.RowsAffected() == 0 {
		return errors.WithStack(core.ErrNotFound)
	}
	return nil
}

func (d *dbRepo) DeleteOrder(ctx context.Context, id int64, options ...core.UpdateOptions) error {
	m := db.StartMetric("DeleteOrder")
	tx := db.GetUpdateOptions(d.conn, options...)

	ct, err := tx.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	m.Complete(err)
	if err != nil {
		return errors.WithStack(err)
	}
	if ct.RowsAffected() == 0 {
		return errors.WithStack(core.ErrNotFound)
	}
	return nil
}

func scanOrder(row pgx.Row) (order.Order, error) {
	o := order.Order{}
	var (
		requestID *string
		stockID   *int64
		status    string
		snapshot  []byte
		customer  []byte
	)

	err := row.Scan(&o.ID, &requestID, &stockID, &snapshot, &o.QuantityOrdered, &o.OrderTotal,
		&o.OrderDate, &customer, &status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return order.Order{}, errors.WithStack(core.ErrNotFound)
		}
		return order.Order{}, errors.WithStack(err)
	}

	if requestID != nil {
		o.RequestID = *requestID
	}
	if stockID != nil {
		o.StockID = *stockID
	}
	o.Status = order.Status(status)
	if err = json.Unmarshal(snapshot, &o.ProductSnapshot); err != nil {
		return order.Order{}, errors.WithMessage(err, "malformed product snapshot")
	}
	if err = json.Unmarshal(customer, &o.CustomerDetails); err != nil {
		return order.Order{}, errors.WithMessage(err, "malformed customer details")
	}
	return o, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullID maps the zero id to NULL. The stock row an order points at may have
// been removed, in which case the snapshot is all that remains.
func nullID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

func ignoreNotFound(err error) error {
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	return err
}
