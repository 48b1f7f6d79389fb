package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"gallery/auth"
	"gallery/cache"
	"gallery/engine"
	"gallery/errs"
	"gallery/remote"
	"gallery/runner"
	"gallery/store"
)

// API carries the service objects handlers need. Everything is constructed
// in main and injected; handlers hold no globals.
type API struct {
	Store  *store.Store
	Engine *engine.Engine
	Remote *remote.Client
	Runner *runner.Runner
	Cache  *cache.Cache
	Auth   *auth.Auth
}

type Response struct {
	Error string `json:"error"`
}

var OKResponse = Response{}

// fail maps a taxonomy error to its HTTP status. Unknown errors become an
// opaque 500 - internals never leak to callers.
func fail(c *gin.Context, err error) {
	status := errs.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		c.JSON(status, Response{"internal error"})
		return
	}
	c.JSON(status, Response{err.Error()})
}

func failBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, Response{err.Error()})
}

func pathID(c *gin.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.Param(name), 10, 64)
}

func parseID(v string) (uint64, error) {
	return strconv.ParseUint(v, 10, 64)
}
