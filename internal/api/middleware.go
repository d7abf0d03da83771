package api

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/go-spares/internal/core/user"
	"golang.org/x/time/rate"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 500

	limiterClients = 4096
)

func Paginate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limitStr := r.URL.Query().Get("limit")
		offsetStr := r.URL.Query().Get("offset")

		var err error
		limit := DefaultPageLimit
		if limitStr != "" {
			limit, err = strconv.Atoi(limitStr)
			if err != nil || limit < 1 {
				limit = DefaultPageLimit
			}
		}
		if limit > MaxPageLimit {
			limit = MaxPageLimit
		}

		offset := 0
		if offsetStr != "" {
			offset, err = strconv.Atoi(offsetStr)
			if err != nil || offset < 0 {
				offset = 0
			}
		}

		log.Trace().Int("limit", limit).Int("offset", offset).Send()
		ctx := context.WithValue(r.Context(), CtxKeyLimit, limit)
		ctx = context.WithValue(ctx, CtxKeyOffset, offset)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func pageParams(r *http.Request) (limit, offset int) {
	limit, ok := r.Context().Value(CtxKeyLimit).(int)
	if !ok {
		limit = DefaultPageLimit
	}
	offset, _ = r.Context().Value(CtxKeyOffset).(int)
	return limit, offset
}

type UserAccess interface {
	Login(ctx context.Context, username, password string) (user.User, error)
}

func Authenticate(ua UserAccess) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()

			if !ok {
				authErr(w)
				return
			}

			u, err := ua.Login(r.Context(), username, password)
			if err != nil {
				log.Debug().Err(err).Str("username", username).Msg("login failed")
				authErr(w)
				return
			}

			ctx := context.WithValue(r.Context(), CtxKeyUser, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		usr, ok := r.Context().Value(CtxKeyUser).(user.User)

		if !ok || !usr.IsAdmin {
			authErr(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// AdminRoutes authenticates the caller and requires the admin flag.
func AdminRoutes(ua UserAccess) func(http.Handler) http.Handler {
	authenticate := Authenticate(ua)
	return func(next http.Handler) http.Handler {
		return authenticate(AdminOnly(next))
	}
}

func authErr(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="restricted", charset="UTF-8"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

// IPRateLimiter hands out a token bucket per client address. Only the most
// recently seen clients are tracked.
type IPRateLimiter struct {
	mu       sync.Mutex
	limiters *lru.Cache
	rate     rate.Limit
	burst    int
}

func NewIPRateLimiter(perSecond float64, burst int) *IPRateLimiter {
	c, err := lru.New(limiterClients)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create rate limiter cache")
	}
	if burst < 1 {
		burst = 1
	}
	return &IPRateLimiter{limiters: c, rate: rate.Limit(perSecond), burst: burst}
}

func (l *IPRateLimiter) limiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if v, ok := l.limiters.Get(key); ok {
		return v.(*rate.Limiter)
	}
	lim := rate.NewLimiter(l.rate, l.burst)
	l.limiters.Add(key, lim)
	return lim
}

func (l *IPRateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.rate > 0 && !l.limiter(clientIP(r)).Allow() {
			log.Debug().Str("remoteAddr", r.RemoteAddr).Msg("rate limit exceeded")
			Render(w, r, ErrTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
