// Package scan stands in for the physical QR code confirmation that a
// customer performs before an order is submitted. Each order form gets its own
// challenge token; the QR code encodes the trigger URL for that token, so a
// scan for one customer can never satisfy another customer's order.
package scan

import (
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/go-spares/internal/core"
)

type State string

const (
	Unsatisfied State = "unsatisfied"
	Satisfied   State = "satisfied"
	Claimed     State = "claimed"
)

// Challenge is an entity keyed by Token.
type Challenge struct {
	Token     string    `json:"token"`
	State     State     `json:"state"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (c Challenge) expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

const (
	DefaultTTL           = 60 * time.Second
	DefaultMaxChallenges = 1024
)

type Option func(g *Gate)

func TTL(ttl time.Duration) Option {
	return func(g *Gate) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

func MaxChallenges(n int) Option {
	return func(g *Gate) {
		if n > 0 {
			g.max = n
		}
	}
}

func Clock(now func() time.Time) Option {
	return func(g *Gate) {
		g.now = now
	}
}

// Gate holds the outstanding challenges. The table is bounded; when it is
// full the least recently touched challenge is dropped.
type Gate struct {
	mu         sync.Mutex
	challenges *lru.Cache
	ttl        time.Duration
	max        int
	now        func() time.Time
}

func NewGate(options ...Option) (*Gate, error) {
	g := &Gate{ttl: DefaultTTL, max: DefaultMaxChallenges, now: time.Now}
	for _, option := range options {
		option(g)
	}

	c, err := lru.New(g.max)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create challenge table")
	}
	g.challenges = c
	return g, nil
}

// Issue starts a fresh, unsatisfied challenge.
func (g *Gate) Issue() Challenge {
	now := g.now()
	c := Challenge{
		Token:     uuid.NewString(),
		State:     Unsatisfied,
		IssuedAt:  now,
		ExpiresAt: now.Add(g.ttl),
	}

	g.mu.Lock()
	g.challenges.Add(c.Token, c)
	g.mu.Unlock()

	challengesIssued.Inc()
	log.Debug().Str("token", c.Token).Time("expiresAt", c.ExpiresAt).Msg("scan challenge issued")
	return c
}

// Trigger records the scan. Triggering an already satisfied or claimed
// challenge is a no-op.
func (g *Gate) Trigger(token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	c, ok := g.get(token)
	if !ok {
		return errors.WithStack(core.ErrNotFound)
	}
	if c.State == Unsatisfied {
		c.State = Satisfied
		g.challenges.Add(token, c)
		challengesTriggered.Inc()
		log.Debug().Str("token", token).Msg("scan challenge satisfied")
	}
	return nil
}

// Check reports whether the challenge has been scanned and is still usable.
func (g *Gate) Check(token string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	c, ok := g.get(token)
	return ok && c.State == Satisfied
}

// Get returns the current challenge.
func (g *Gate) Get(token string) (Challenge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	c, ok := g.get(token)
	if !ok {
		return Challenge{}, errors.WithStack(core.ErrNotFound)
	}
	return c, nil
}

// Claim moves a satisfied challenge to claimed so that only one order can
// ride on a single scan.
func (g *Gate) Claim(token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	c, ok := g.get(token)
	if !ok || c.State != Satisfied {
		return errors.WithStack(core.ErrGateNotSatisfied)
	}
	c.State = Claimed
	g.challenges.Add(token, c)
	challengesClaimed.Inc()
	return nil
}

// Release hands a claimed challenge back after a failed order attempt.
func (g *Gate) Release(token string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	c, ok := g.get(token)
	if !ok || c.State != Claimed {
		return
	}
	c.State = Satisfied
	g.challenges.Add(token, c)
}

// Reset forgets the challenge entirely.
func (g *Gate) Reset(token string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.challenges.Remove(token)
	log.Debug().Str("token", token).Msg("scan challenge reset")
}

func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.challenges.Len()
}

// get must be called with mu held. Expired challenges are evicted on read.
func (g *Gate) get(token string) (Challenge, bool) {
	v, ok := g.challenges.Get(token)
	if !ok {
		return Challenge{}, false
	}
	c, ok := v.(Challenge)
	if !ok {
		return Challenge{}, false
	}
	if c.expired(g.now()) {
		g.challenges.Remove(token)
		challengesExpired.Inc()
		return Challenge{}, false
	}
	return c, true
}
