package stockrepo

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/pkg/errors"
	"github.com/sksmith/go-spares/internal/core"
	"github.com/sksmith/go-spares/internal/core/stock"
	"github.com/sksmith/go-spares/internal/db"
)

const columns = `id, date, price, spares, company_name, part_number, category, description, total_cost`

type dbRepo struct {
	conn core.Conn
}

func NewPostgresRepo(conn core.Conn) stock.Repository {
	return &dbRepo{
		conn: conn,
	}
}

func (d *dbRepo) BeginTransaction(ctx context.Context) (core.Transaction, error) {
	return db.BeginTransaction(ctx, d.conn)
}

func (d *dbRepo) GetStock(ctx context.Context, id int64, options ...core.QueryOptions) (stock.Record, error) {
	m := db.StartMetric("GetStock")
	tx, forUpdate := db.GetQueryOptions(d.conn, options...)

	record, err := scanRecord(tx.QueryRow(ctx, `SELECT `+columns+` FROM stock WHERE id = $1 `+forUpdate, id))
	m.Complete(ignoreNotFound(err))
	return record, err
}

// GetStockByNameAndPartNumber returns the lowest id when more than one row
// shares a company name and part number.
func (d *dbRepo) GetStockByNameAndPartNumber(ctx context.Context, name, partNumber string, options ...core.QueryOptions) (stock.Record, error) {
	m := db.StartMetric("GetStockByNameAndPartNumber")
	tx, forUpdate := db.GetQueryOptions(d.conn, options...)

	record, err := scanRecord(tx.QueryRow(ctx, `
		SELECT `+columns+`
		  FROM stock
		 WHERE company_name = $1 AND part_number = $2
		 ORDER BY id
		 LIMIT 1 `+forUpdate, name, partNumber))
	m.Complete(ignoreNotFound(err))
	return record, err
}

func (d *dbRepo) GetAllStock(ctx context.Context, limit, offset int, options ...core.QueryOptions) ([]stock.Record, error) {
	m := db.StartMetric("GetAllStock")
	tx, forUpdate := db.GetQueryOptions(d.conn, options...)

	records, err := queryRecords(ctx, tx,
		`SELECT `+columns+` FROM stock ORDER BY id LIMIT $1 OFFSET $2 `+forUpdate, limit, offset)
	m.Complete(err)
	return records, err
}

func (d *dbRepo) GetStockByCompanyName(ctx context.Context, name string, options ...core.QueryOptions) ([]stock.Record, error) {
	m := db.StartMetric("GetStockByCompanyName")
	tx, forUpdate := db.GetQueryOptions(d.conn, options...)

	records, err := queryRecords(ctx, tx,
		`SELECT `+columns+` FROM stock WHERE company_name = $1 ORDER BY id `+forUpdate, name)
	m.Complete(err)
	return records, err
}

func (d *dbRepo) GetStockByCategory(ctx context.Context, category stock.Category, options ...core.QueryOptions) ([]stock.Record, error) {
	m := db.StartMetric("GetStockByCategory")
	tx, forUpdate := db.GetQueryOptions(d.conn, options...)

	records, err := queryRecords(ctx, tx,
		`SELECT `+columns+` FROM stock WHERE category = $1 ORDER BY id `+forUpdate, string(category))
	m.Complete(err)
	return records, err
}

func (d *dbRepo) SaveStock(ctx context.Context, record *stock.Record, options ...core.UpdateOptions) error {
	m := db.StartMetric("SaveStock")
	tx := db.GetUpdateOptions(d.conn, options...)

	record.Normalize()
	_, err := tx.Exec(ctx, `
		INSERT INTO stock (`+columns+`)
		     VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		        SET date = EXCLUDED.date, price = EXCLUDED.price, spares = EXCLUDED.spares,
		            company_name = EXCLUDED.company_name, part_number = EXCLUDED.part_number,
		            category = EXCLUDED.category, description = EXCLUDED.description,
		            total_cost = EXCLUDED.total_cost;`,
		record.ID, record.Date, record.Price, record.Spares, record.CompanyName,
		record.PartNumber, string(record.Category), record.Description, record.TotalCost)
	m.Complete(err)
	if err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// DecrementSpares only succeeds while enough spares remain, so two orders
// racing for the last units cannot both win.
func (d *dbRepo) DecrementSpares(ctx context.Context, id, amount int64, options ...core.UpdateOptions) (stock.Record, error) {
	m := db.StartMetric("DecrementSpares")
	tx := db.GetUpdateOptions(d.conn, options...)

	record, err := scanRecord(tx.QueryRow(ctx, `
		UPDATE stock
		   SET spares = spares - $2, total_cost = price * (spares - $2)
		 WHERE id = $1 AND spares >= $2
		RETURNING `+columns, id, amount))
	if err == nil {
		m.Complete(nil)
		return record, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		m.Complete(err)
		return stock.Record{}, err
	}

	current, err := scanRecord(tx.QueryRow(ctx, `SELECT `+columns+` FROM stock WHERE id = $1`, id))
	m.Complete(ignoreNotFound(err))
	if err != nil {
		return stock.Record{}, err
	}
	return stock.Record{}, errors.WithStack(&core.InsufficientStockError{Available: current.Spares, Requested: amount})
}

func (d *dbRepo) IncrementSpares(ctx context.Context, id, amount int64, options ...core.UpdateOptions) (stock.Record, error) {
	m := db.StartMetric("IncrementSpares")
	tx := db.GetUpdateOptions(d.conn, options...)

	record, err := scanRecord(tx.QueryRow(ctx, `
		UPDATE stock
		   SET spares = spares + $2, total_cost = price * (spares + $2)
		 WHERE id = $1
		RETURNING `+columns, id, amount))
	m.Complete(ignoreNotFound(err))
	return record, err
}

func (d *dbRepo) DeleteStock(ctx context.Context, id int64, options ...core.UpdateOptions) error {
	m := db.StartMetric("DeleteStock")
	tx := db.GetUpdateOptions(d.conn, options...)

	ct, err := tx.Exec(ctx, `DELETE FROM stock WHERE id = $1`, id)
	m.Complete(err)
	if err != nil {
		return errors.WithStack(err)
	}
	if ct.RowsAffected() == 0 {
		return errors.WithStack(core.ErrNotFound)
	}
	return nil
}

func (d *dbRepo) DeleteAllStock(ctx context.Context, options ...core.UpdateOptions) (int64, error) {
	m := db.StartMetric("DeleteAllStock")
	tx := db.GetUpdateOptions(d.conn, options...)

	ct, err := tx.Exec(ctx, `DELETE FROM stock`)
	m.Complete(err)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return ct.RowsAffected(), nil
}

func scanRecord(row pgx.Row) (stock.Record, error) {
	r := stock.Record{}
	var category string
	err := row.Scan(&r.ID, &r.Date, &r.Price, &r.Spares, &r.CompanyName,
		&r.PartNumber, &category, &r.Description, &r.TotalCost)
	if err != nil {
		if err == pgx.ErrNoRows {
			return stock.Record{}, errors.WithStack(core.ErrNotFound)
		}
		return stock.Record{}, errors.WithStack(err)
	}
	r.Category = stock.Category(category)
	return r, nil
}

func queryRecords(ctx context.Context, conn core.Conn, sql string, args ...interface{}) ([]stock.Record, error) {
	records := make([]stock.Record, 0)
	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return records, errors.WithStack(err)
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return records, err
		}
		records = append(records, r)
	}
	if err = rows.Err(); err != nil {
		return records, errors.WithStack(err)
	}
	return records, nil
}

func ignoreNotFound(err error) error {
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	return err
}
