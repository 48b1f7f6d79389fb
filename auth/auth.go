// Package auth resolves the caller behind a request - session cookie or
// Bearer api token - into an access.Scope, and provides the auth-checking
// route wrapper.
package auth

import (
	"strings"

	"github.com/gin-gonic/gin"

	"gallery/access"
	"gallery/models"
	"gallery/store"
)

type Auth struct {
	Store *store.Store
}

// CurrentUser resolves the request's user: session first, then a Bearer
// api token. Returns nil for anonymous callers.
func (a *Auth) CurrentUser(c *gin.Context) *models.User {
	if id := LoadSession(c).UserID(); id > 0 {
		if user, err := a.Store.GetActiveUser(id); err == nil {
			return user
		}
		return nil
	}
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil
	}
	raw := strings.TrimSpace(header[len("Bearer "):])
	if raw == "" {
		return nil
	}
	user, err := a.Store.GetUserByToken(raw)
	if err != nil {
		return nil
	}
	return user
}

// CurrentScope never fails: unknown callers get the anonymous scope.
func (a *Auth) CurrentScope(c *gin.Context) access.Scope {
	if user := a.CurrentUser(c); user != nil {
		return access.ForUser(user)
	}
	return access.AnonymousScope()
}
