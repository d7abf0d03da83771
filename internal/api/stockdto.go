package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/sksmith/go-spares/internal/core/stock"
)

type StockResponse struct {
	stock.Record
}

func NewStockResponse(rec stock.Record) *StockResponse {
	return &StockResponse{Record: rec}
}

func (rd *StockResponse) Render(_ http.ResponseWriter, _ *http.Request) error {
	return nil
}

func NewStockListResponse(records []stock.Record) []render.Renderer {
	list := make([]render.Renderer, 0, len(records))
	for _, rec := range records {
		list = append(list, NewStockResponse(rec))
	}
	return list
}

type StockRequest struct {
	stock.Record
}

func (s *StockRequest) Bind(_ *http.Request) error {
	return nil
}

type ReplaceStockRequest struct {
	Entries []stock.Record `json:"entries"`
}

func (s *ReplaceStockRequest) Bind(_ *http.Request) error {
	if s.Entries == nil {
		return errors.New("entries must be an array of stock records")
	}
	return nil
}
