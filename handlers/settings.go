package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"gallery/models"
)

type SettingsResponse struct {
	RemoteAPIURL  string `json:"remote_api_url"`
	RemoteAPIUser string `json:"remote_api_user"`
	// The password itself is never returned
	RemoteAPIPassSet bool `json:"remote_api_pass_set"`
}

func (api *API) SettingsGet(c *gin.Context, user *models.User) {
	url, username, pass := api.Store.RemoteCredentials()
	c.JSON(http.StatusOK, SettingsResponse{
		RemoteAPIURL:     url,
		RemoteAPIUser:    username,
		RemoteAPIPassSet: pass != "",
	})
}

type SettingsSaveRequest struct {
	RemoteAPIURL  *string `json:"remote_api_url"`
	RemoteAPIUser *string `json:"remote_api_user"`
	RemoteAPIPass *string `json:"remote_api_pass"`
}

// SettingsSave persists remote store credentials and points the shared
// client at the new endpoint without a restart.
func (api *API) SettingsSave(c *gin.Context, user *models.User) {
	r := SettingsSaveRequest{}
	if err := c.ShouldBindWith(&r, binding.JSON); err != nil {
		failBadRequest(c, err)
		return
	}
	pairs := map[string]*string{
		models.SettingRemoteAPIURL:  r.RemoteAPIURL,
		models.SettingRemoteAPIUser: r.RemoteAPIUser,
		models.SettingRemoteAPIPass: r.RemoteAPIPass,
	}
	for key, value := range pairs {
		if value == nil {
			continue
		}
		if err := api.Store.SetSetting(key, *value); err != nil {
			fail(c, err)
			return
		}
	}
	url, username, pass := api.Store.RemoteCredentials()
	if err := api.Remote.SetEndpoint(url, username, pass); err != nil {
		failBadRequest(c, err)
		return
	}
	api.SettingsGet(c, user)
}
