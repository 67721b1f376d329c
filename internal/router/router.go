// Package router holds the client's route table and the guard that gates
// navigation on the session.
package router

import (
	"errors"
	"fmt"
	"strings"
)

// Name identifies a route.
type Name string

const (
	Login         Name = "login"
	Register      Name = "register"
	Feed          Name = "feed"
	Friends       Name = "friends"
	Profile       Name = "profile"
	Notifications Name = "notifications"
)

// Route is one navigable screen.
type Route struct {
	Name         Name
	Path         string
	RequiresAuth bool
}

// Routes is the route table, in menu order.
var Routes = []Route{
	{Name: Login, Path: "/login"},
	{Name: Register, Path: "/register"},
	{Name: Feed, Path: "/", RequiresAuth: true},
	{Name: Friends, Path: "/friends", RequiresAuth: true},
	{Name: Profile, Path: "/profile/:userId?", RequiresAuth: true},
	{Name: Notifications, Path: "/notifications", RequiresAuth: true},
}

// ErrUnknownRoute is returned for names and paths not in the table.
var ErrUnknownRoute = errors.New("router: unknown route")

// Session reports whether a user is signed in.
type Session interface {
	IsAuthenticated() bool
}

// Guard decides which route to show for a navigation request.
type Guard struct {
	session Session
}

func NewGuard(session Session) *Guard {
	return &Guard{session: session}
}

// Resolve returns the route to show when navigating to name: the login
// route when name requires a session and there is none, name otherwise.
func (g *Guard) Resolve(name Name) (Route, error) {
	r, ok := Lookup(name)
	if !ok {
		return Route{}, fmt.Errorf("%w: %q", ErrUnknownRoute, name)
	}
	if r.RequiresAuth && !g.session.IsAuthenticated() {
		login, _ := Lookup(Login)
		return login, nil
	}
	return r, nil
}

// ResolvePath is Resolve for a path such as "/profile/42". Route
// parameters are returned alongside the route; they are empty when the
// guard redirects.
func (g *Guard) ResolvePath(path string) (Route, map[string]string, error) {
	r, params, ok := Match(path)
	if !ok {
		return Route{}, nil, fmt.Errorf("%w: %q", ErrUnknownRoute, path)
	}
	resolved, err := g.Resolve(r.Name)
	if err != nil {
		return Route{}, nil, err
	}
	if resolved.Name != r.Name {
		return resolved, map[string]string{}, nil
	}
	return resolved, params, nil
}

// Lookup finds a route by name.
func Lookup(name Name) (Route, bool) {
	for _, r := range Routes {
		if r.Name == name {
			return r, true
		}
	}
	return Route{}, false
}

// Match finds the route for path. Segments ":p" bind a parameter and ":p?"
// binds an optional trailing one.
func Match(path string) (Route, map[string]string, bool) {
	for _, r := range Routes {
		if params, ok := matchPattern(r.Path, path); ok {
			return r, params, true
		}
	}
	return Route{}, nil, false
}

func matchPattern(pattern, path string) (map[string]string, bool) {
	pp := splitPath(pattern)
	ps := splitPath(path)
	params := map[string]string{}

	for i, seg := range pp {
		optional := strings.HasSuffix(seg, "?")
		name := strings.TrimSuffix(strings.TrimPrefix(seg, ":"), "?")

		if i >= len(ps) {
			if optional {
				continue
			}
			return nil, false
		}
		if strings.HasPrefix(seg, ":") {
			params[name] = ps[i]
			continue
		}
		if seg != ps[i] {
			return nil, false
		}
	}
	if len(ps) > len(pp) {
		return nil, false
	}
	return params, true
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
