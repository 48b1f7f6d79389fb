package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gallery/models"
)

// HandlerFunc receives the authenticated user along with the context.
type HandlerFunc func(c *gin.Context, user *models.User)

// Router wraps gin routes with authentication and role checks.
type Router struct {
	Base *gin.Engine
	Auth *Auth
}

func (r *Router) baseExec(c *gin.Context, handler HandlerFunc, required []models.Role) {
	user := r.Auth.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	for _, role := range required {
		if user.Role != role {
			c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}
	}
	handler(c, user)
}

func (r *Router) GET(path string, handler HandlerFunc, required ...models.Role) {
	r.Base.GET(path, func(c *gin.Context) {
		r.baseExec(c, handler, required)
	})
}

func (r *Router) POST(path string, handler HandlerFunc, required ...models.Role) {
	r.Base.POST(path, func(c *gin.Context) {
		r.baseExec(c, handler, required)
	})
}

func (r *Router) PATCH(path string, handler HandlerFunc, required ...models.Role) {
	r.Base.PATCH(path, func(c *gin.Context) {
		r.baseExec(c, handler, required)
	})
}

func (r *Router) DELETE(path string, handler HandlerFunc, required ...models.Role) {
	r.Base.DELETE(path, func(c *gin.Context) {
		r.baseExec(c, handler, required)
	})
}
