package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/sksmith/go-spares/internal/core/report"
)

type ReportService interface {
	Monthly(ctx context.Context) ([]report.Bucket, error)
	ByCategory(ctx context.Context) ([]report.Bucket, error)
	Orders(ctx context.Context) (report.OrderSummary, error)
}

type ReportApi struct {
	service ReportService
}

func NewReportApi(service ReportService) *ReportApi {
	return &ReportApi{service: service}
}

func (a *ReportApi) ConfigureRouter(r chi.Router) {
	r.Get("/stock/monthly", a.Monthly)
	r.Get("/stock/category", a.ByCategory)
	r.Get("/orders", a.Orders)
}

func (a *ReportApi) Monthly(w http.ResponseWriter, r *http.Request) {
	buckets, err := a.service.Monthly(r.Context())
	if err != nil {
		RenderError(w, r, err)
		return
	}
	RenderList(w, r, newBucketListResponse(buckets))
}

func (a *ReportApi) ByCategory(w http.ResponseWriter, r *http.Request) {
	buckets, err := a.service.ByCategory(r.Context())
	if err != nil {
		RenderError(w, r, err)
		return
	}
	RenderList(w, r, newBucketListResponse(buckets))
}

func (a *ReportApi) Orders(w http.ResponseWriter, r *http.Request) {
	summary, err := a.service.Orders(r.Context())
	if err != nil {
		RenderError(w, r, err)
		return
	}
	Render(w, r, &OrderSummaryResponse{OrderSummary: summary})
}

type BucketResponse struct {
	report.Bucket
}

func (b *BucketResponse) Render(_ http.ResponseWriter, _ *http.Request) error {
	return nil
}

func newBucketListResponse(buckets []report.Bucket) []render.Renderer {
	list := make([]render.Renderer, 0, len(buckets))
	for _, b := range buckets {
		list = append(list, &BucketResponse{Bucket: b})
	}
	return list
}

type OrderSummaryResponse struct {
	report.OrderSummary
}

func (o *OrderSummaryResponse) Render(_ http.ResponseWriter, _ *http.Request) error {
	return nil
}
