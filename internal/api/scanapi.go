package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/go-spares/internal/core/scan"
)

type ScanGate interface {
	Issue() scan.Challenge
	Trigger(token string) error
	Check(token string) bool
	Reset(token string)
}

type ScanApi struct {
	gate      ScanGate
	publicUrl string
	limiter   *IPRateLimiter
}

func NewScanApi(gate ScanGate, publicUrl string, limiter *IPRateLimiter) *ScanApi {
	return &ScanApi{gate: gate, publicUrl: strings.TrimSuffix(publicUrl, "/"), limiter: limiter}
}

func (a *ScanApi) ConfigureRouter(r chi.Router) {
	r.Post("/scan/challenge", a.Issue)
	r.Group(func(r chi.Router) {
		if a.limiter != nil {
			r.Use(a.limiter.Limit)
		}
		r.Get("/scan/{token}", a.Trigger)
		r.Post("/scan/{token}", a.Trigger)
	})
	r.Get("/check-scan/{token}", a.Check)
	r.Post("/reset-scan/{token}", a.Reset)
}

// Issue starts a challenge for one order form. The scan url is what the QR
// code shown next to the form encodes.
func (a *ScanApi) Issue(w http.ResponseWriter, r *http.Request) {
	c := a.gate.Issue()

	render.Status(r, http.StatusCreated)
	Render(w, r, &ChallengeResponse{
		Token:     c.Token,
		State:     c.State,
		ExpiresAt: c.ExpiresAt,
		ScanUrl:   a.publicUrl + "/api/scan/" + c.Token,
	})
}

func (a *ScanApi) Trigger(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if err := a.gate.Trigger(token); err != nil {
		log.Debug().Err(err).Str("token", token).Msg("scan for unknown or expired challenge")
		RenderError(w, r, err)
		return
	}

	Render(w, r, &ScanStatusResponse{Scanned: true})
}

func (a *ScanApi) Check(w http.ResponseWriter, r *http.Request) {
	Render(w, r, &ScanStatusResponse{Scanned: a.gate.Check(chi.URLParam(r, "token"))})
}

func (a *ScanApi) Reset(w http.ResponseWriter, r *http.Request) {
	a.gate.Reset(chi.URLParam(r, "token"))
	Render(w, r, &MessageResponse{Message: "Scan reset"})
}

type ChallengeResponse struct {
	Token     string     `json:"token"`
	State     scan.State `json:"state"`
	ExpiresAt time.Time  `json:"expiresAt"`
	ScanUrl   string     `json:"scanUrl"`
}

func (c *ChallengeResponse) Render(_ http.ResponseWriter, _ *http.Request) error {
	return nil
}

type ScanStatusResponse struct {
	Scanned bool `json:"scanned"`
}

func (s *ScanStatusResponse) Render(_ http.ResponseWriter, _ *http.Request) error {
	return nil
}
