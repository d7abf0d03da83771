package api

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/go-spares/internal/core"
)

type CtxKey string

const (
	CtxKeyLimit  CtxKey = "limit"
	CtxKeyOffset CtxKey = "offset"
	CtxKeyUser   CtxKey = "user"
)

// exposeInternalErrors is switched off for the prod profile so store
// failures reach the client as a generic message only.
var exposeInternalErrors = true

// ErrResponse renderer type for handling all sorts of errors.
type ErrResponse struct {
	Err            error `json:"-"` // low-level runtime error
	HTTPStatusCode int   `json:"-"` // http response status code

	StatusText string `json:"status"`              // user-level status message
	AppCode    int64  `json:"code,omitempty"`      // application-specific error code
	ErrorText  string `json:"error,omitempty"`     // application-level error message, for debugging
	Available  *int64 `json:"available,omitempty"` // spares left when an order asks for too many
	Requested  *int64 `json:"requested,omitempty"`
}

func (e *ErrResponse) Render(_ http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func ErrInvalidRequest(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusBadRequest,
		StatusText:     "Invalid request.",
		ErrorText:      err.Error(),
	}
}

func ErrInsufficientStock(err *core.InsufficientStockError) render.Renderer {
	available, requested := err.Available, err.Requested
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusBadRequest,
		StatusText:     "Insufficient stock.",
		ErrorText:      err.Error(),
		Available:      &available,
		Requested:      &requested,
	}
}

func ErrInvalidTransition(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusBadRequest,
		StatusText:     "Invalid status transition.",
		ErrorText:      err.Error(),
	}
}

var ErrScanRequired = &ErrResponse{
	HTTPStatusCode: http.StatusBadRequest,
	StatusText:     "Scan required.",
	ErrorText:      "Please scan the QR code before placing an order.",
}

var ErrNotFound = &ErrResponse{HTTPStatusCode: http.StatusNotFound, StatusText: "Resource not found."}

var ErrTooManyRequests = &ErrResponse{HTTPStatusCode: http.StatusTooManyRequests, StatusText: "Too many requests."}

var ErrInternalServer = &ErrResponse{
	Err:            nil,
	HTTPStatusCode: http.StatusInternalServerError,
	StatusText:     "Internal server error.",
	ErrorText:      "An internal server error has occurred.",
}

func errInternal(err error) render.Renderer {
	if !exposeInternalErrors {
		return ErrInternalServer
	}
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusInternalServerError,
		StatusText:     ErrInternalServer.StatusText,
		ErrorText:      err.Error(),
	}
}

// RenderError maps a service error onto its response.
func RenderError(w http.ResponseWriter, r *http.Request, err error) {
	if ise, ok := core.AsInsufficientStock(err); ok {
		Render(w, r, ErrInsufficientStock(ise))
		return
	}

	switch {
	case core.IsValidation(err):
		Render(w, r, ErrInvalidRequest(err))
	case errors.Is(err, core.ErrNotFound):
		Render(w, r, ErrNotFound)
	case errors.Is(err, core.ErrInvalidTransition):
		Render(w, r, ErrInvalidTransition(err))
	case errors.Is(err, core.ErrGateNotSatisfied):
		Render(w, r, ErrScanRequired)
	default:
		log.Error().Err(err).Str("method", r.Method).Str("uri", r.RequestURI).Msg("request failed")
		Render(w, r, errInternal(err))
	}
}

type MessageResponse struct {
	Message string `json:"message"`
	Count   *int   `json:"count,omitempty"`
}

func (m *MessageResponse) Render(_ http.ResponseWriter, _ *http.Request) error {
	return nil
}
