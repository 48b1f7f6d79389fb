package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"gallery/config"
	"gallery/models"
)

type TokenInfo struct {
	ID         uint64 `json:"id"`
	Name       string `json:"name"`
	ExpiresAt  int64  `json:"expires_at"`
	CreatedAt  int64  `json:"created_at"`
	LastUsedAt int64  `json:"last_used_at"`
}

func tokenInfoFrom(t *models.ApiToken) TokenInfo {
	return TokenInfo{
		ID:         t.ID,
		Name:       t.Name,
		ExpiresAt:  t.ExpiresAt,
		CreatedAt:  t.CreatedAt,
		LastUsedAt: t.LastUsedAt,
	}
}

func (api *API) TokenList(c *gin.Context, user *models.User) {
	tokens, err := api.Store.ListApiTokens(user.ID)
	if err != nil {
		fail(c, err)
		return
	}
	result := make([]TokenInfo, 0, len(tokens))
	for i := range tokens {
		result = append(result, tokenInfoFrom(&tokens[i]))
	}
	c.JSON(http.StatusOK, result)
}

type TokenCreateRequest struct {
	Name string `json:"name" binding:"required"`
}

type TokenCreateResponse struct {
	Token TokenInfo `json:"token"`
	// Raw is shown exactly once; only its digest is stored
	Raw string `json:"raw"`
}

func (api *API) TokenCreate(c *gin.Context, user *models.User) {
	r := TokenCreateRequest{}
	if err := c.ShouldBindWith(&r, binding.JSON); err != nil {
		failBadRequest(c, err)
		return
	}
	expiry := time.Duration(config.API_TOKEN_EXPIRY_DAYS) * 24 * time.Hour
	raw, token, err := api.Store.CreateApiToken(user.ID, r.Name, expiry)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, TokenCreateResponse{Token: tokenInfoFrom(token), Raw: raw})
}

func (api *API) TokenRevoke(c *gin.Context, user *models.User) {
	id, err := pathID(c, "id")
	if err != nil {
		failBadRequest(c, err)
		return
	}
	if err := api.Store.RevokeApiToken(user.ID, id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, OKResponse)
}
