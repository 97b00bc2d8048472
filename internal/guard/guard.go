// Package guard decides whether a navigation may proceed given the current
// session. Each navigation walks a small state machine:
//
//	anonymous -> rejected                            (no token)
//	pending-verification -> authenticated            (verify ok, or soft failure)
//	pending-verification -> rejected                 (verify invalid or 401)
//	authenticated-admin-pending -> authenticated-admin (level high enough)
//
// and ends in one of proceed, redirect-to-login or redirect-to-landing.
// A navigation that is overtaken by a newer one ends as superseded and
// leaves the guard state untouched.
package guard

import (
	"context"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dyike/QuantPilot/internal/api"
	"github.com/dyike/QuantPilot/internal/models"
)

// AdminPermissionLevel is the lowest permission level allowed on admin routes.
const AdminPermissionLevel = 2

const DefaultCheckTimeout = 3 * time.Second

type State string

const (
	StateAnonymous           State = "anonymous"
	StatePendingVerification State = "pending-verification"
	StateAuthenticated       State = "authenticated"
	StateAdminPending        State = "authenticated-admin-pending"
	StateAdmin               State = "authenticated-admin"
	StateRejected            State = "rejected"
)

type Outcome int

const (
	Proceed Outcome = iota
	RedirectToLogin
	RedirectToLanding
	Superseded
)

func (o Outcome) String() string {
	switch o {
	case Proceed:
		return "proceed"
	case RedirectToLogin:
		return "redirect-to-login"
	case RedirectToLanding:
		return "redirect-to-landing"
	case Superseded:
		return "superseded"
	default:
		return "unknown"
	}
}

// Decision is the result of resolving one navigation.
type Decision struct {
	Outcome Outcome
	// Target is where the caller should go when the outcome is a redirect.
	Target string
	// Redirect carries the originally requested path on login redirects.
	Redirect string
	State    State
	// Degraded is set when a check failed softly and navigation was allowed
	// without confirmation from the server.
	Degraded bool
}

// URL returns Target with the post-login redirect attached.
func (d Decision) URL() string {
	if d.Redirect == "" {
		return d.Target
	}
	return d.Target + "?" + url.Values{"redirect": {d.Redirect}}.Encode()
}

type Session interface {
	Token() string
	Teardown() error
}

// Checker is the slice of the auth API the guard consults.
type Checker interface {
	Verify(ctx context.Context) (*models.VerifyReply, error)
	Profile(ctx context.Context) (*models.UserInfo, error)
}

type Guard struct {
	sess       Session
	auth       Checker
	timeout    time.Duration
	adminLevel int
	logger     *zap.Logger

	seq   atomic.Uint64
	mu    sync.Mutex
	state State
}

type Option func(*Guard)

func WithTimeout(d time.Duration) Option {
	return func(g *Guard) {
		if d > 0 {
			g.timeout = d
		}
	}
}

func WithAdminLevel(level int) Option {
	return func(g *Guard) { g.adminLevel = level }
}

func WithLogger(logger *zap.Logger) Option {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func New(sess Session, auth Checker, opts ...Option) *Guard {
	g := &Guard{
		sess:       sess,
		auth:       auth,
		timeout:    DefaultCheckTimeout,
		adminLevel: AdminPermissionLevel,
		logger:     zap.NewNop(),
		state:      StateAnonymous,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// State reports where the most recent completed navigation left the session.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Resolve runs the navigation checks for route. Starting a new Resolve
// supersedes any that is still waiting on the server.
func (g *Guard) Resolve(ctx context.Context, route Route) Decision {
	seq := g.seq.Add(1)

	if !route.RequiresAuth {
		return Decision{Outcome: Proceed, State: g.State()}
	}

	if g.sess.Token() == "" {
		return g.finish(seq, g.reject(route))
	}

	g.set(seq, StatePendingVerification)
	reply, err := g.verify(ctx)
	if g.stale(seq) {
		return Decision{Outcome: Superseded, State: g.State()}
	}

	degraded := false
	switch {
	case err == nil && reply != nil && reply.Valid:
	case err == nil, api.IsUnauthorized(err):
		if tdErr := g.sess.Teardown(); tdErr != nil {
			g.logger.Warn("session teardown failed", zap.Error(tdErr))
		}
		g.logger.Info("session rejected", zap.String("path", route.Path))
		return g.finish(seq, g.reject(route))
	default:
		// Timeouts and network failures keep the user where they are.
		g.logger.Warn("session verify failed, continuing unverified",
			zap.String("path", route.Path), zap.Error(err))
		degraded = true
	}

	if !route.RequiresAdmin {
		return g.finish(seq, Decision{Outcome: Proceed, State: StateAuthenticated, Degraded: degraded})
	}

	g.set(seq, StateAdminPending)
	user, err := g.profile(ctx)
	if g.stale(seq) {
		return Decision{Outcome: Superseded, State: g.State()}
	}
	if err != nil || user == nil {
		// Admin data endpoints re-check privilege, so a failed fetch allows entry.
		g.logger.Warn("profile fetch failed, allowing admin route",
			zap.String("path", route.Path), zap.Error(err))
		return g.finish(seq, Decision{Outcome: Proceed, State: StateAdmin, Degraded: true})
	}
	if user.PermissionLevel < g.adminLevel {
		g.logger.Info("insufficient permission",
			zap.String("path", route.Path),
			zap.Int("level", user.PermissionLevel))
		return g.finish(seq, Decision{Outcome: RedirectToLanding, Target: LandingPath, State: StateAuthenticated})
	}
	return g.finish(seq, Decision{Outcome: Proceed, State: StateAdmin, Degraded: degraded})
}

func (g *Guard) reject(route Route) Decision {
	return Decision{
		Outcome:  RedirectToLogin,
		Target:   LoginPath,
		Redirect: route.Path,
		State:    StateRejected,
	}
}

func (g *Guard) verify(ctx context.Context) (*models.VerifyReply, error) {
	return race(ctx, g.timeout, g.auth.Verify)
}

func (g *Guard) profile(ctx context.Context) (*models.UserInfo, error) {
	return race(ctx, g.timeout, g.auth.Profile)
}

// race returns whichever comes first: fn's result or the timeout. A call
// that loses keeps running against a cancelled context and its result is
// dropped.
func race[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (g *Guard) stale(seq uint64) bool {
	return g.seq.Load() != seq
}

func (g *Guard) set(seq uint64, s State) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seq.Load() == seq {
		g.state = s
	}
}

func (g *Guard) finish(seq uint64, d Decision) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seq.Load() != seq {
		return Decision{Outcome: Superseded, State: g.state}
	}
	g.state = d.State
	return d
}
