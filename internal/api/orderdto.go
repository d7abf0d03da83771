package api

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/sksmith/go-spares/internal/core/order"
)

type OrderResponse struct {
	order.Order
}

func NewOrderResponse(o order.Order) *OrderResponse {
	return &OrderResponse{Order: o}
}

func (o *OrderResponse) Render(_ http.ResponseWriter, _ *http.Request) error {
	return nil
}

func NewOrderListResponse(orders []order.Order) []render.Renderer {
	list := make([]render.Renderer, 0, len(orders))
	for _, o := range orders {
		list = append(list, NewOrderResponse(o))
	}
	return list
}

// PlaceOrderRequest is checked by the order service, which knows which of
// the two order forms it is serving.
type PlaceOrderRequest struct {
	order.PlaceOrderRequest
	ScanToken string `json:"scanToken,omitempty"`
}

func (p *PlaceOrderRequest) Bind(_ *http.Request) error {
	return nil
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

func (u *UpdateStatusRequest) Bind(_ *http.Request) error {
	return nil
}
