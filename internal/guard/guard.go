// Package guard decides whether a viewer may enter a route.
package guard

import (
	"encoding/json"
	"errors"
	"strings"

	"consulting-calendar/internal/calendar"
	appLog "consulting-calendar/internal/log"
)

// Session is the view of the authentication collaborator a guard needs.
// Implementations are read-only to the guard apart from Logout.
type Session interface {
	IsAuthenticated() bool
	// CachedIdentity returns the raw identity blob stored at login.
	CachedIdentity() ([]byte, bool)
	Logout()
}

type State int

const (
	StateLoading State = iota
	StateAuthorized
	StateRedirecting
)

func (s State) String() string {
	switch s {
	case StateAuthorized:
		return "authorized"
	case StateRedirecting:
		return "redirecting"
	default:
		return "loading"
	}
}

// Routes are the landing targets used when redirecting.
type Routes struct {
	Login     string
	Admin     string
	Dashboard string
}

func DefaultRoutes() Routes {
	return Routes{Login: "/login", Admin: "/admin", Dashboard: "/dashboard"}
}

// Landing is the default route for role.
func (r Routes) Landing(role calendar.Role) string {
	switch role {
	case calendar.RoleAdmin:
		return r.Admin
	case calendar.RoleEngineer, calendar.RoleCompany:
		return r.Dashboard
	default:
		return r.Login
	}
}

// Decision is the outcome of Evaluate.
type Decision struct {
	State    State
	Redirect string
	Viewer   calendar.Viewer
	// LoggedOut is set when the session was torn down.
	LoggedOut bool
}

// RenderChildren reports whether the guarded content may be shown.
func (d Decision) RenderChildren() bool {
	return d.State == StateAuthorized
}

var ErrCorruptIdentity = errors.New("cached identity is corrupt")

// Guard gates one route.
type Guard struct {
	session Session
	allowed map[calendar.Role]bool
	routes  Routes
	state   State
}

func New(session Session, routes Routes, allowed ...calendar.Role) *Guard {
	set := make(map[calendar.Role]bool, len(allowed))
	for _, r := range allowed {
		if r != calendar.RoleUnknown {
			set[r] = true
		}
	}
	return &Guard{session: session, allowed: set, routes: routes, state: StateLoading}
}

func (g *Guard) State() State {
	return g.state
}

// Evaluate runs the mount check and moves the guard out of Loading.
func (g *Guard) Evaluate() Decision {
	d := g.evaluate()
	g.state = d.State
	return d
}

func (g *Guard) evaluate() Decision {
	if g.session == nil || !g.session.IsAuthenticated() {
		return Decision{State: StateRedirecting, Redirect: g.routes.Login}
	}

	raw, ok := g.session.CachedIdentity()
	if !ok {
		g.session.Logout()
		return Decision{State: StateRedirecting, Redirect: g.routes.Login, LoggedOut: true}
	}
	viewer, err := ParseIdentity(raw)
	if err != nil {
		appLog.Error("tearing down session with unreadable identity", err)
		g.session.Logout()
		return Decision{State: StateRedirecting, Redirect: g.routes.Login, LoggedOut: true}
	}

	if !g.allowed[viewer.Role] {
		return Decision{State: StateRedirecting, Redirect: g.routes.Landing(viewer.Role), Viewer: viewer}
	}
	return Decision{State: StateAuthorized, Viewer: viewer}
}

type identityJSON struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// ParseIdentity decodes a cached identity blob. Both "id" and "userId" are
// accepted for the user id; the role is normalized case-insensitively.
func ParseIdentity(raw []byte) (calendar.Viewer, error) {
	var id identityJSON
	if err := json.Unmarshal(raw, &id); err != nil {
		return calendar.Viewer{}, errors.Join(ErrCorruptIdentity, err)
	}
	uid := strings.TrimSpace(id.UserID)
	if uid == "" {
		uid = strings.TrimSpace(id.ID)
	}
	if uid == "" {
		return calendar.Viewer{}, errors.Join(ErrCorruptIdentity, errors.New("missing user id"))
	}
	return calendar.Viewer{UserID: uid, Role: calendar.ParseRole(id.Role)}, nil
}
