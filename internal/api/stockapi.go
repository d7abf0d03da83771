package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/go-spares/internal/core/stock"
)

type StockService interface {
	ReplaceAll(ctx context.Context, records []stock.Record) (int, error)
	AddStock(ctx context.Context, record stock.Record) (stock.Record, error)

	GetStock(ctx context.Context, id int64) (stock.Record, error)
	ListStock(ctx context.Context, limit, offset int) ([]stock.Record, error)
	ListByCompanyName(ctx context.Context, name string) ([]stock.Record, error)
	ListByCategory(ctx context.Context, category stock.Category) ([]stock.Record, error)

	DeleteStock(ctx context.Context, id int64) error

	SubscribeStock(ch chan<- stock.Record) (id stock.SubscriptionID)
	UnsubscribeStock(id stock.SubscriptionID)
}

type StockApi struct {
	service StockService
}

func NewStockApi(service StockService) *StockApi {
	return &StockApi{service: service}
}

// ConfigureRouter mounts the storefront reads openly and the writes behind
// admin.
func (a *StockApi) ConfigureRouter(admin func(http.Handler) http.Handler) func(r chi.Router) {
	return func(r chi.Router) {
		r.HandleFunc("/subscribe", a.Subscribe)
		r.With(Paginate).Get("/", a.List)
		r.Get("/company/{name}", a.ListByCompany)
		r.Get("/category/{name}", a.ListByCategory)
		r.Get("/{id}", a.Get)

		r.Group(func(r chi.Router) {
			r.Use(admin)
			r.Post("/", a.ReplaceAll)
			r.Put("/", a.Add)
			r.Delete("/{id}", a.Delete)
		})
	}
}

// Subscribe streams every stock change to the client over a websocket.
//
// Only changes made through this instance are seen; there is no fan out
// between replicas.
func (a *StockApi) Subscribe(w http.ResponseWriter, r *http.Request) {
	log.Info().Msg("client requesting stock subscription")

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		log.Err(err).Msg("failed to establish stock subscription connection")
		Render(w, r, ErrInternalServer)
		return
	}
	go func() {
		defer conn.Close()

		ch := make(chan stock.Record, 8)

		id := a.service.SubscribeStock(ch)
		defer a.service.UnsubscribeStock(id)

		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := wsutil.ReadClientData(conn); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-closed:
				log.Debug().Interface("clientId", id).Msg("client closed stock subscription")
				return
			case rec, ok := <-ch:
				if !ok {
					return
				}
				body, err := json.Marshal(NewStockResponse(rec))
				if err != nil {
					log.Err(err).Interface("clientId", id).Msg("failed to marshal stock response")
					continue
				}

				log.Debug().Interface("clientId", id).Int64("id", rec.ID).Msg("sending stock update to client")
				if err = wsutil.WriteServerText(conn, body); err != nil {
					log.Err(err).Interface("clientId", id).Msg("failed to write server message, disconnecting client")
					return
				}
			}
		}
	}()
}

func (a *StockApi) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)

	records, err := a.service.ListStock(r.Context(), limit, offset)
	if err != nil {
		RenderError(w, r, err)
		return
	}

	RenderList(w, r, NewStockListResponse(records))
}

func (a *StockApi) ListByCompany(w http.ResponseWriter, r *http.Request) {
	records, err := a.service.ListByCompanyName(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		RenderError(w, r, err)
		return
	}

	RenderList(w, r, NewStockListResponse(records))
}

func (a *StockApi) ListByCategory(w http.ResponseWriter, r *http.Request) {
	category, err := stock.ParseCategory(chi.URLParam(r, "name"))
	if err != nil {
		Render(w, r, ErrInvalidRequest(err))
		return
	}

	records, err := a.service.ListByCategory(r.Context(), category)
	if err != nil {
		RenderError(w, r, err)
		return
	}

	RenderList(w, r, NewStockListResponse(records))
}

func (a *StockApi) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		Render(w, r, ErrInvalidRequest(err))
		return
	}

	rec, err := a.service.GetStock(r.Context(), id)
	if err != nil {
		RenderError(w, r, err)
		return
	}

	Render(w, r, NewStockResponse(rec))
}

func (a *StockApi) ReplaceAll(w http.ResponseWriter, r *http.Request) {
	data := &ReplaceStockRequest{}
	if err := render.Bind(r, data); err != nil {
		Render(w, r, ErrInvalidRequest(err))
		return
	}

	count, err := a.service.ReplaceAll(r.Context(), data.Entries)
	if err != nil {
		RenderError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	Render(w, r, &MessageResponse{Message: "Stock data replaced", Count: &count})
}

func (a *StockApi) Add(w http.ResponseWriter, r *http.Request) {
	data := &StockRequest{}
	if err := render.Bind(r, data); err != nil {
		Render(w, r, ErrInvalidRequest(err))
		return
	}

	rec, err := a.service.AddStock(r.Context(), data.Record)
	if err != nil {
		RenderError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	Render(w, r, NewStockResponse(rec))
}

func (a *StockApi) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		Render(w, r, ErrInvalidRequest(err))
		return
	}

	if err = a.service.DeleteStock(r.Context(), id); err != nil {
		RenderError(w, r, err)
		return
	}

	Render(w, r, &MessageResponse{Message: "Stock entry deleted"})
}

func idParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, errors.Errorf("id must be a positive integer, got %q", raw)
	}
	return id, nil
}
