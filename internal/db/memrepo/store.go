// Package memrepo keeps stock, orders and users in process memory. It backs
// local runs with db.inMemory set and the service level tests.
//
// A transaction holds the store lock until it commits or rolls back, and
// every write made through it records an undo step. Calls that pass the
// transaction run under that lock; calls without one take the lock briefly.
package memrepo

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/sksmith/go-spares/internal/core"
	"github.com/sksmith/go-spares/internal/core/order"
	"github.com/sksmith/go-spares/internal/core/stock"
	"github.com/sksmith/go-spares/internal/core/user"
)

var ErrForeignTransaction = errors.New("memrepo: transaction belongs to another store")

type Store struct {
	mu sync.Mutex

	stock       map[int64]stock.Record
	orders      map[int64]order.Order
	users       map[string]user.User
	lastOrderID int64
}

func New() *Store {
	return &Store{
		stock:  make(map[int64]stock.Record),
		orders: make(map[int64]order.Order),
		users:  make(map[string]user.User),
	}
}

type transaction struct {
	store *Store
	undo  []func()
	done  bool
}

func (t *transaction) Commit(_ context.Context) error {
	if t.done {
		return errors.New("memrepo: transaction already closed")
	}
	t.done = true
	t.undo = nil
	t.store.mu.Unlock()
	return nil
}

func (t *transaction) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.done = true
	t.undo = nil
	t.store.mu.Unlock()
	return nil
}

func (s *Store) BeginTransaction(ctx context.Context) (core.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	s.mu.Lock()
	return &transaction{store: s}, nil
}

// session runs fn against the store. With a transaction the lock is already
// held and fn's undo steps are journaled; without one the lock is taken for
// the call and the steps are dropped.
func (s *Store) session(tx core.Transaction, fn func(journal func(undo func())) error) error {
	if tx == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		return fn(func(func()) {})
	}

	t, ok := tx.(*transaction)
	if !ok || t.store != s {
		return errors.WithStack(ErrForeignTransaction)
	}
	if t.done {
		return errors.New("memrepo: transaction already closed")
	}
	return fn(func(undo func()) { t.undo = append(t.undo, undo) })
}

func queryTx(options []core.QueryOptions) core.Transaction {
	if len(options) > 0 {
		return options[0].Tx
	}
	return nil
}

func updateTx(options []core.UpdateOptions) core.Transaction {
	if len(options) > 0 {
		return options[0].Tx
	}
	return nil
}

func (s *Store) GetStock(ctx context.Context, id int64, options ...core.QueryOptions) (rec stock.Record, err error) {
	err = s.session(queryTx(options), func(func(func())) error {
		var ok bool
		if rec, ok = s.stock[id]; !ok {
			return errors.WithStack(core.ErrNotFound)
		}
		return nil
	})
	return rec, err
}

func (s *Store) GetStockByNameAndPartNumber(ctx context.Context, name, partNumber string, options ...core.QueryOptions) (rec stock.Record, err error) {
	err = s.session(queryTx(options), func(func(func())) error {
		matches := s.filterStock(func(r stock.Record) bool {
			return r.CompanyName == name && r.PartNumber == partNumber
		})
		if len(matches) == 0 {
			return errors.WithStack(core.ErrNotFound)
		}
		rec = matches[0]
		return nil
	})
	return rec, err
}

func (s *Store) GetAllStock(ctx context.Context, limit, offset int, options ...core.QueryOptions) (records []stock.Record, err error) {
	err = s.session(queryTx(options), func(func(func())) error {
		records = pageStock(s.filterStock(func(stock.Record) bool { return true }), limit, offset)
		return nil
	})
	return records, err
}

func (s *Store) GetStockByCompanyName(ctx context.Context, name string, options ...core.QueryOptions) (records []stock.Record, err error) {
	err = s.session(queryTx(options), func(func(func())) error {
		records = s.filterStock(func(r stock.Record) bool { return r.CompanyName == name })
		return nil
	})
	return records, err
}

func (s *Store) GetStockByCategory(ctx context.Context, category stock.Category, options ...core.QueryOptions) (records []stock.Record, err error) {
	err = s.session(queryTx(options), func(func(func())) error {
		records = s.filterStock(func(r stock.Record) bool { return r.Category == category })
		return nil
	})
	return records, err
}

func (s *Store) SaveStock(ctx context.Context, record *stock.Record, options ...core.UpdateOptions) error {
	return s.session(updateTx(options), func(journal func(func())) error {
		record.Normalize()
		s.putStock(*record, journal)
		return nil
	})
}

func (s *Store) DecrementSpares(ctx context.Context, id, amount int64, options ...core.UpdateOptions) (rec stock.Record, err error) {
	err = s.session(updateTx(options), func(journal func(func())) error {
		current, ok := s.stock[id]
		if !ok {
			return errors.WithStack(core.ErrNotFound)
		}
		if current.Spares < amount {
			return errors.WithStack(&core.InsufficientStockError{Available: current.Spares, Requested: amount})
		}
		rec = current
		rec.Spares -= amount
		rec.Normalize()
		s.putStock(rec, journal)
		return nil
	})
	return rec, err
}

func (s *Store) IncrementSpares(ctx context.Context, id, amount int64, options ...core.UpdateOptions) (rec stock.Record, err error) {
	err = s.session(updateTx(options), func(journal func(func())) error {
		current, ok := s.stock[id]
		if !ok {
			return errors.WithStack(core.ErrNotFound)
		}
		rec = current
		rec.Spares += amount
		rec.Normalize()
		s.putStock(rec, journal)
		return nil
	})
	return rec, err
}

func (s *Store) DeleteStock(ctx context.Context, id int64, options ...core.UpdateOptions) error {
	return s.session(updateTx(options), func(journal func(func())) error {
		if _, ok := s.stock[id]; !ok {
			return errors.WithStack(core.ErrNotFound)
		}
		s.removeStock(id, journal)
		return nil
	})
}

func (s *Store) DeleteAllStock(ctx context.Context, options ...core.UpdateOptions) (removed int64, err error) {
	err = s.session(updateTx(options), func(journal func(func())) error {
		for id := range s.stock {
			s.removeStock(id, journal)
			removed++
		}
		return nil
	})
	return removed, err
}

func (s *Store) putStock(rec stock.Record, journal func(func())) {
	prev, existed := s.stock[rec.ID]
	s.stock[rec.ID] = rec
	journal(func() {
		if existed {
			s.stock[rec.ID] = prev
		} else {
			delete(s.stock, rec.ID)
		}
	})
}

// removeStock also clears the stock id on orders that pointed at the record.
func (s *Store) removeStock(id int64, journal func(func())) {
	prev := s.stock[id]
	delete(s.stock, id)
	journal(func() { s.stock[id] = prev })

	for oid, o := range s.orders {
		if o.StockID != id {
			continue
		}
		o.StockID = 0
		s.putOrder(oid, o, journal)
	}
}

func (s *Store) filterStock(keep func(stock.Record) bool) []stock.Record {
	records := make([]stock.Record, 0)
	for _, r := range s.stock {
		if keep(r) {
			records = append(records, r)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records
}

func (s *Store) GetOrder(ctx context.Context, id int64, options ...core.QueryOptions) (o order.Order, err error) {
	err = s.session(queryTx(options), func(func(func())) error {
		var ok bool
		if o, ok = s.orders[id]; !ok {
			return errors.WithStack(core.ErrNotFound)
		}
		return nil
	})
	return o, err
}

func (s *Store) GetOrderByRequestID(ctx context.Context, requestID string, options ...core.QueryOptions) (o order.Order, err error) {
	err = s.session(queryTx(options), func(func(func())) error {
		for _, candidate := range s.orders {
			if requestID != "" && candidate.RequestID == requestID {
				o = candidate
				return nil
			}
		}
		return errors.WithStack(core.ErrNotFound)
	})
	return o, err
}

func (s *Store) GetOrders(ctx context.Context, limit, offset int, options ...core.QueryOptions) (orders []order.Order, err error) {
	err = s.session(queryTx(options), func(func(func())) error {
		all := make([]order.Order, 0, len(s.orders))
		for _, o := range s.orders {
			all = append(all, o)
		}
		sort.Slice(all, func(i, j int) bool {
			if !all[i].OrderDate.Equal(all[j].OrderDate) {
				return all[i].OrderDate.After(all[j].OrderDate)
			}
			return all[i].ID > all[j].ID
		})
		orders = pageOrders(all, limit, offset)
		return nil
	})
	return orders, err
}

func (s *Store) SaveOrder(ctx context.Context, o *order.Order, options ...core.UpdateOptions) error {
	return s.session(updateTx(options), func(journal func(func())) error {
		if o.StockID != 0 {
			if _, ok := s.stock[o.StockID]; !ok {
				return errors.Errorf("memrepo: order references missing stock %d", o.StockID)
			}
		}
		if o.RequestID != "" {
			for _, existing := range s.orders {
				if existing.RequestID == o.RequestID {
					return errors.WithMessagef(core.ErrDuplicateRequest, "memrepo: request id %q", o.RequestID)
				}
			}
		}

		lastID := s.lastOrderID
		s.lastOrderID++
		journal(func() { s.lastOrderID = lastID })

		o.ID = s.lastOrderID
		s.putOrder(o.ID, *o, journal)
		return nil
	})
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id int64, status order.Status, options ...core.UpdateOptions) error {
	return s.session(updateTx(options), func(journal func(func())) error {
		o, ok := s.orders[id]
		if !ok {
			return errors.WithStack(core.ErrNotFound)
		}
		o.Status = status
		s.putOrder(id, o, journal)
		return nil
	})
}

func (s *Store) DeleteOrder(ctx context.Context, id int64, options ...core.UpdateOptions) error {
	return s.session(updateTx(options), func(journal func(func())) error {
		prev, ok := s.orders[id]
		if !ok {
			return errors.WithStack(core.ErrNotFound)
		}
		delete(s.orders, id)
		journal(func() { s.orders[id] = prev })
		return nil
	})
}

func (s *Store) putOrder(id int64, o order.Order, journal func(func())) {
	prev, existed := s.orders[id]
	s.orders[id] = o
	journal(func() {
		if existed {
			s.orders[id] = prev
		} else {
			delete(s.orders, id)
		}
	})
}

func (s *Store) Create(ctx context.Context, u *user.User, options ...core.UpdateOptions) error {
	return s.session(updateTx(options), func(journal func(func())) error {
		if _, ok := s.users[u.Username]; ok {
			return errors.Errorf("memrepo: user %q already exists", u.Username)
		}
		s.users[u.Username] = *u
		journal(func() { delete(s.users, u.Username) })
		return nil
	})
}

func (s *Store) Get(ctx context.Context, username string, options ...core.QueryOptions) (u user.User, err error) {
	err = s.session(queryTx(options), func(func(func())) error {
		var ok bool
		if u, ok = s.users[username]; !ok {
			return errors.WithStack(core.ErrNotFound)
		}
		return nil
	})
	return u, err
}

func (s *Store) Delete(ctx context.Context, username string, options ...core.UpdateOptions) error {
	return s.session(updateTx(options), func(journal func(func())) error {
		prev, ok := s.users[username]
		if !ok {
			return errors.WithStack(core.ErrNotFound)
		}
		delete(s.users, username)
		journal(func() { s.users[username] = prev })
		return nil
	})
}

func bounds(n, limit, offset int) (start, end int) {
	if offset < 0 {
		offset = 0
	}
	if offset > n {
		offset = n
	}
	end = n
	if limit > 0 && offset+limit < n {
		end = offset + limit
	}
	return offset, end
}

func pageStock(records []stock.Record, limit, offset int) []stock.Record {
	start, end := bounds(len(records), limit, offset)
	return records[start:end]
}

func pageOrders(orders []order.Order, limit, offset int) []order.Order {
	start, end := bounds(len(orders), limit, offset)
	return orders[start:end]
}
