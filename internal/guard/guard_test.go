package guard

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/QuantPilot/internal/api"
	"github.com/dyike/QuantPilot/internal/models"
)

type memSession struct {
	mu       sync.Mutex
	token    string
	tornDown bool
}

func (s *memSession) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *memSession) Teardown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.tornDown = true
	return nil
}

type stubChecker struct {
	verify  func(ctx context.Context) (*models.VerifyReply, error)
	profile func(ctx context.Context) (*models.UserInfo, error)
}

func (c stubChecker) Verify(ctx context.Context) (*models.VerifyReply, error) {
	return c.verify(ctx)
}

func (c stubChecker) Profile(ctx context.Context) (*models.UserInfo, error) {
	return c.profile(ctx)
}

func valid(context.Context) (*models.VerifyReply, error) {
	return &models.VerifyReply{Valid: true}, nil
}

func level(n int) func(context.Context) (*models.UserInfo, error) {
	return func(context.Context) (*models.UserInfo, error) {
		return &models.UserInfo{ID: "u1", PermissionLevel: n}, nil
	}
}

func mustRoute(t *testing.T, path string) Route {
	t.Helper()
	r, ok := Lookup(DefaultRoutes(), path)
	require.True(t, ok, "route %s", path)
	return r
}

func TestNoTokenRedirectsToLogin(t *testing.T) {
	called := false
	g := New(&memSession{}, stubChecker{verify: func(context.Context) (*models.VerifyReply, error) {
		called = true
		return nil, nil
	}})

	d := g.Resolve(context.Background(), mustRoute(t, "/portfolio"))
	assert.Equal(t, RedirectToLogin, d.Outcome)
	assert.Equal(t, "/portfolio", d.Redirect)
	assert.Equal(t, "/login?redirect=%2Fportfolio", d.URL())
	assert.Equal(t, StateRejected, g.State())
	assert.False(t, called)
}

func TestPublicRouteProceeds(t *testing.T) {
	g := New(&memSession{}, stubChecker{})
	d := g.Resolve(context.Background(), mustRoute(t, "/login"))
	assert.Equal(t, Proceed, d.Outcome)
	assert.Equal(t, StateAnonymous, d.State)
}

func TestValidTokenProceeds(t *testing.T) {
	g := New(&memSession{token: "t"}, stubChecker{verify: valid})
	d := g.Resolve(context.Background(), mustRoute(t, "/chat"))
	assert.Equal(t, Proceed, d.Outcome)
	assert.False(t, d.Degraded)
	assert.Equal(t, StateAuthenticated, g.State())
}

func TestInvalidTokenTearsDown(t *testing.T) {
	cases := map[string]func(context.Context) (*models.VerifyReply, error){
		"reported invalid": func(context.Context) (*models.VerifyReply, error) {
			return &models.VerifyReply{Valid: false}, nil
		},
		"unauthorized": func(context.Context) (*models.VerifyReply, error) {
			return nil, &api.Error{Status: http.StatusUnauthorized, Message: "expired"}
		},
	}
	for name, verify := range cases {
		t.Run(name, func(t *testing.T) {
			sess := &memSession{token: "t"}
			g := New(sess, stubChecker{verify: verify})

			d := g.Resolve(context.Background(), mustRoute(t, "/market"))
			assert.Equal(t, RedirectToLogin, d.Outcome)
			assert.Equal(t, "/market", d.Redirect)
			assert.True(t, sess.tornDown)
			assert.Empty(t, sess.Token())
		})
	}
}

func TestSlowVerifyProceedsDegraded(t *testing.T) {
	sess := &memSession{token: "t"}
	g := New(sess, stubChecker{verify: func(context.Context) (*models.VerifyReply, error) {
		// Ignores cancellation, like a request the caller has stopped waiting on.
		time.Sleep(500 * time.Millisecond)
		return &models.VerifyReply{Valid: false}, nil
	}}, WithTimeout(50*time.Millisecond))

	start := time.Now()
	d := g.Resolve(context.Background(), mustRoute(t, "/dashboard"))
	assert.Less(t, time.Since(start), 400*time.Millisecond)
	assert.Equal(t, Proceed, d.Outcome)
	assert.True(t, d.Degraded)
	assert.False(t, sess.tornDown)
}

func TestNetworkErrorOnVerifyIsSoft(t *testing.T) {
	sess := &memSession{token: "t"}
	g := New(sess, stubChecker{verify: func(context.Context) (*models.VerifyReply, error) {
		return nil, errors.New("dial tcp: connection refused")
	}})
	d := g.Resolve(context.Background(), mustRoute(t, "/trades"))
	assert.Equal(t, Proceed, d.Outcome)
	assert.True(t, d.Degraded)
	assert.Equal(t, "t", sess.Token())
}

func TestAdminRoute(t *testing.T) {
	t.Run("sufficient level", func(t *testing.T) {
		g := New(&memSession{token: "t"}, stubChecker{verify: valid, profile: level(AdminPermissionLevel)})
		d := g.Resolve(context.Background(), mustRoute(t, "/admin"))
		assert.Equal(t, Proceed, d.Outcome)
		assert.Equal(t, StateAdmin, d.State)
	})

	t.Run("insufficient level", func(t *testing.T) {
		sess := &memSession{token: "t"}
		g := New(sess, stubChecker{verify: valid, profile: level(AdminPermissionLevel - 1)})
		d := g.Resolve(context.Background(), mustRoute(t, "/admin"))
		assert.Equal(t, RedirectToLanding, d.Outcome)
		assert.Equal(t, LandingPath, d.Target)
		assert.False(t, sess.tornDown)
	})

	t.Run("profile failure fails open", func(t *testing.T) {
		g := New(&memSession{token: "t"}, stubChecker{
			verify: valid,
			profile: func(context.Context) (*models.UserInfo, error) {
				return nil, &api.Error{Status: http.StatusInternalServerError, Message: "boom"}
			},
		})
		d := g.Resolve(context.Background(), mustRoute(t, "/admin"))
		assert.Equal(t, Proceed, d.Outcome)
		assert.True(t, d.Degraded)
	})
}

func TestNewerNavigationSupersedes(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	var once sync.Once
	g := New(&memSession{token: "t"}, stubChecker{verify: func(ctx context.Context) (*models.VerifyReply, error) {
		first := false
		once.Do(func() { first = true })
		if first {
			close(entered)
			<-release
			return &models.VerifyReply{Valid: false}, nil
		}
		return &models.VerifyReply{Valid: true}, nil
	}})

	portfolio := mustRoute(t, "/portfolio")
	slow := make(chan Decision, 1)
	go func() { slow <- g.Resolve(context.Background(), portfolio) }()
	<-entered

	d := g.Resolve(context.Background(), mustRoute(t, "/chat"))
	assert.Equal(t, Proceed, d.Outcome)
	close(release)

	old := <-slow
	assert.Equal(t, Superseded, old.Outcome)
	assert.Equal(t, StateAuthenticated, g.State())
}

func TestLookupTrimsTrailingSlash(t *testing.T) {
	r, ok := Lookup(DefaultRoutes(), "/admin/")
	require.True(t, ok)
	assert.True(t, r.RequiresAdmin)

	_, ok = Lookup(DefaultRoutes(), "/nowhere")
	assert.False(t, ok)
}
