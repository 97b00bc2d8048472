package guard

import "strings"

const (
	LoginPath   = "/login"
	LandingPath = "/dashboard"
)

// Route describes a navigable path and the session it needs.
type Route struct {
	Name          string
	Path          string
	Title         string
	RequiresAuth  bool
	RequiresAdmin bool
}

func DefaultRoutes() []Route {
	return []Route{
		{Name: "login", Path: LoginPath, Title: "Sign in"},
		{Name: "register", Path: "/register", Title: "Create account"},
		{Name: "dashboard", Path: LandingPath, Title: "Dashboard", RequiresAuth: true},
		{Name: "portfolio", Path: "/portfolio", Title: "Portfolio", RequiresAuth: true},
		{Name: "chat", Path: "/chat", Title: "AI Assistant", RequiresAuth: true},
		{Name: "strategy", Path: "/strategy", Title: "Strategies", RequiresAuth: true},
		{Name: "market", Path: "/market", Title: "Market", RequiresAuth: true},
		{Name: "trades", Path: "/trades", Title: "Trades", RequiresAuth: true},
		{Name: "data", Path: "/data", Title: "Data sources", RequiresAuth: true},
		{Name: "admin", Path: "/admin", Title: "Administration", RequiresAuth: true, RequiresAdmin: true},
	}
}

// Lookup finds the route registered for path, ignoring a trailing slash.
func Lookup(routes []Route, path string) (Route, bool) {
	if path != "/" {
		path = strings.TrimSuffix(path, "/")
	}
	for _, r := range routes {
		if r.Path == path {
			return r, true
		}
	}
	return Route{}, false
}
