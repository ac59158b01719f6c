package app

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"consulting-calendar/internal/calendar"
	"consulting-calendar/internal/config"
	"consulting-calendar/internal/guard"
	appLog "consulting-calendar/internal/log"
)

const (
	sessionCookie = "session"
	sessionKey    = "session"
	viewerKey     = "viewer"
)

// Authenticator validates bearer tokens: HMAC-signed JWTs or static tokens.
type Authenticator struct {
	JWTSecret    string
	StaticTokens []config.StaticToken
}

// requestSession is the guard's view of one request's credentials.
type requestSession struct {
	c             *gin.Context
	authenticated bool
	identity      []byte
}

func (s *requestSession) IsAuthenticated() bool { return s.authenticated }

func (s *requestSession) CachedIdentity() ([]byte, bool) {
	return s.identity, s.identity != nil
}

// Logout drops the credentials and expires the session cookie.
func (s *requestSession) Logout() {
	s.authenticated = false
	s.identity = nil
	s.c.SetCookie(sessionCookie, "", -1, "/", "", false, true)
}

// SessionMiddleware attaches a session to every request. It never aborts;
// routes decide through their guard.
func (a Authenticator) SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := &requestSession{c: c}
		if tok := bearerToken(c); tok != "" {
			s.identity, s.authenticated = a.authenticate(tok)
		}
		c.Set(sessionKey, s)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		parts := strings.Fields(auth)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
		return ""
	}
	if tok, err := c.Cookie(sessionCookie); err == nil {
		return tok
	}
	return ""
}

// authenticate returns the cached identity blob for a valid token. A valid
// token without identity yields (nil, true): authenticated but unknown.
func (a Authenticator) authenticate(tokenStr string) ([]byte, bool) {
	if a.JWTSecret != "" {
		token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrTokenMalformed
			}
			return []byte(a.JWTSecret), nil
		}, jwt.WithLeeway(5*time.Second))
		if err == nil {
			if claims, ok := token.Claims.(jwt.MapClaims); ok {
				return identityFromClaims(claims), true
			}
			return nil, true
		}
	}

	for _, t := range a.StaticTokens {
		if tokenStr == strings.TrimSpace(t.Token) {
			raw, _ := json.Marshal(map[string]string{"id": t.UserID, "role": t.Role})
			return raw, true
		}
	}
	return nil, false
}

// identityFromClaims prefers the "identity" claim (the JSON blob the login
// service caches) and falls back to sub + role.
func identityFromClaims(claims jwt.MapClaims) []byte {
	if raw, ok := claims["identity"]; ok {
		if s, ok := raw.(string); ok {
			return []byte(s)
		}
		b, err := json.Marshal(raw)
		if err != nil {
			return []byte("{")
		}
		return b
	}
	sub, _ := claims.GetSubject()
	if sub == "" {
		return nil
	}
	role, _ := claims["role"].(string)
	b, _ := json.Marshal(map[string]string{"id": sub, "role": role})
	return b
}

func sessionFrom(c *gin.Context) guard.Session {
	if v, ok := c.Get(sessionKey); ok {
		if s, ok := v.(guard.Session); ok {
			return s
		}
	}
	return &requestSession{c: c}
}

// RequireRoles guards a route. Unauthorized requests are answered with the
// redirect target and never reach the handler.
func (a *App) RequireRoles(roles ...calendar.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := guard.New(sessionFrom(c), a.Display.Routes(), roles...).Evaluate()
		if !d.RenderChildren() {
			status := http.StatusForbidden
			if d.Redirect == a.Display.LoginRoute {
				status = http.StatusUnauthorized
			}
			appLog.Debug("guard redirect", "path", c.FullPath(), "to", d.Redirect, "logged_out", d.LoggedOut)
			c.Header("Location", d.Redirect)
			c.AbortWithStatusJSON(status, gin.H{"error": "not permitted", "redirect": d.Redirect})
			return
		}
		c.Set(viewerKey, d.Viewer)
		c.Next()
	}
}

func viewerFrom(c *gin.Context) calendar.Viewer {
	v, _ := c.Get(viewerKey)
	viewer, _ := v.(calendar.Viewer)
	return viewer
}
