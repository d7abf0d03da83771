package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/sksmith/go-spares/internal/core/order"
)

type OrderService interface {
	PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (order.Order, error)
	PlaceGatedOrder(ctx context.Context, scanToken string, req order.PlaceOrderRequest) (order.Order, error)
	CancelOrder(ctx context.Context, id int64) (order.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status string) (order.Order, error)

	GetOrder(ctx context.Context, id int64) (order.Order, error)
	ListOrders(ctx context.Context, limit, offset int) ([]order.Order, error)

	PurgeOrder(ctx context.Context, id int64) error
}

type OrderApi struct {
	service OrderService
}

func NewOrderApi(service OrderService) *OrderApi {
	return &OrderApi{service: service}
}

// ConfigureRouter mounts the order routes on the /api router. Only placing a
// scan confirmed order is open to customers.
func (a *OrderApi) ConfigureRouter(r chi.Router, admin func(http.Handler) http.Handler) {
	r.Post("/orders", a.PlaceGated)

	r.Group(func(r chi.Router) {
		r.Use(admin)
		r.With(Paginate).Get("/orders", a.List)
		r.Get("/orders/{id}", a.Get)
		r.Patch("/orders/{id}/status", a.UpdateStatus)
		r.Delete("/orders/{id}", a.Cancel)

		r.Post("/admin/orders", a.Place)
		r.Delete("/admin/orders/{id}", a.Purge)
	})
}

func (a *OrderApi) PlaceGated(w http.ResponseWriter, r *http.Request) {
	data := &PlaceOrderRequest{}
	if err := render.Bind(r, data); err != nil {
		Render(w, r, ErrInvalidRequest(err))
		return
	}

	o, err := a.service.PlaceGatedOrder(r.Context(), data.ScanToken, data.PlaceOrderRequest)
	if err != nil {
		RenderError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	Render(w, r, NewOrderResponse(o))
}

func (a *OrderApi) Place(w http.ResponseWriter, r *http.Request) {
	data := &PlaceOrderRequest{}
	if err := render.Bind(r, data); err != nil {
		Render(w, r, ErrInvalidRequest(err))
		return
	}

	o, err := a.service.PlaceOrder(r.Context(), data.PlaceOrderRequest)
	if err != nil {
		RenderError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	Render(w, r, NewOrderResponse(o))
}

func (a *OrderApi) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)

	orders, err := a.service.ListOrders(r.Context(), limit, offset)
	if err != nil {
		RenderError(w, r, err)
		return
	}

	RenderList(w, r, NewOrderListResponse(orders))
}

func (a *OrderApi) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		Render(w, r, ErrInvalidRequest(err))
		return
	}

	o, err := a.service.GetOrder(r.Context(), id)
	if err != nil {
		RenderError(w, r, err)
		return
	}

	Render(w, r, NewOrderResponse(o))
}

func (a *OrderApi) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		Render(w, r, ErrInvalidRequest(err))
		return
	}

	data := &UpdateStatusRequest{}
	if err = render.Bind(r, data); err != nil {
		Render(w, r, ErrInvalidRequest(err))
		return
	}

	o, err := a.service.UpdateOrderStatus(r.Context(), id, data.Status)
	if err != nil {
		RenderError(w, r, err)
		return
	}

	Render(w, r, NewOrderResponse(o))
}

func (a *OrderApi) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		Render(w, r, ErrInvalidRequest(err))
		return
	}

	o, err := a.service.CancelOrder(r.Context(), id)
	if err != nil {
		RenderError(w, r, err)
		return
	}

	Render(w, r, NewOrderResponse(o))
}

func (a *OrderApi) Purge(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		Render(w, r, ErrInvalidRequest(err))
		return
	}

	if err = a.service.PurgeOrder(r.Context(), id); err != nil {
		RenderError(w, r, err)
		return
	}

	Render(w, r, &MessageResponse{Message: "Order deleted"})
}
