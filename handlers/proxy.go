package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// MediaProxy streams a remote media binary through the service, so
// clients never need direct access to the media store. Only URLs on the
// configured remote host are allowed.
func (api *API) MediaProxy(c *gin.Context) {
	rawURL := c.Query("url")
	if rawURL == "" {
		c.JSON(http.StatusBadRequest, Response{"url is required"})
		return
	}
	body, contentType, err := api.Remote.FetchForProxy(c.Request.Context(), rawURL)
	if err != nil {
		fail(c, err)
		return
	}
	defer body.Close()

	c.Header("Content-Type", contentType)
	c.Header("Cache-Control", "max-age=604800, private")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, body); err != nil {
		// Too late for a status change, the headers are out
		log.Debug().Err(err).Msg("Proxy stream interrupted")
	}
}
