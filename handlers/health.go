package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type HealthResponse struct {
	Status string `json:"status"`
	DB     string `json:"db"`
	Cache  string `json:"cache"`
	Remote string `json:"remote"`
}

// Health reports the state of each dependency. The database is the only
// hard requirement; a missing cache or unconfigured remote only degrades.
func (api *API) Health(c *gin.Context) {
	resp := HealthResponse{Status: "healthy", DB: "ok", Cache: "ok", Remote: "ok"}
	status := http.StatusOK

	var one int
	if err := api.Store.DB().Raw("SELECT 1").Scan(&one).Error; err != nil {
		resp.DB = "unreachable"
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	if !api.Cache.Enabled() {
		resp.Cache = "disabled"
	} else if err := api.Cache.Ping(c.Request.Context()); err != nil {
		resp.Cache = "unreachable"
		if resp.Status == "healthy" {
			resp.Status = "degraded"
		}
	}
	if !api.Remote.Configured() {
		resp.Remote = "unconfigured"
		if resp.Status == "healthy" {
			resp.Status = "degraded"
		}
	}
	c.JSON(status, resp)
}
