package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gallery/config"
	"gallery/db"
	"gallery/models"
	"gallery/store"
	"gallery/utils"
)

var initOnce sync.Once

func registrationRig(t *testing.T) (*gin.Engine, *store.Store) {
	t.Helper()
	initOnce.Do(func() {
		gin.SetMode(gin.TestMode)
		db.InitTest()
		models.Init()
	})
	st := store.New(db.Instance, true)

	engine := gin.New()
	engine.Use(sessions.Sessions("token", cookie.NewStore([]byte("test-session-key"))))
	api := &API{Store: st}
	engine.POST("/user/register", api.UserRegister)
	return engine, st
}

func postRegister(t *testing.T, engine *gin.Engine, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/user/register", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestRegisterDisabledByDefault(t *testing.T) {
	engine, _ := registrationRig(t)
	require.False(t, config.ENABLE_REGISTRATION)

	rec := postRegister(t, engine, UserRegisterRequest{
		Username: "nobody", Email: "nobody@example.com", Password: "secret",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRegisterCreatesMemberInDefaultTenant(t *testing.T) {
	engine, st := registrationRig(t)
	config.ENABLE_REGISTRATION = true
	defer func() { config.ENABLE_REGISTRATION = false }()

	def, err := st.DefaultTenant()
	require.NoError(t, err)

	suffix := utils.Rand8BytesToBase62()
	rec := postRegister(t, engine, UserRegisterRequest{
		Username: "joiner-" + suffix,
		Email:    "joiner-" + suffix + "@example.com",
		Password: "secret",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var info UserInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, models.RoleMember, info.Role)
	assert.Equal(t, def.ID, info.Tenant)

	created, err := st.GetUserByUsername("joiner-" + suffix)
	require.NoError(t, err)
	assert.True(t, created.CheckPassword("secret"))
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	engine, _ := registrationRig(t)
	config.ENABLE_REGISTRATION = true
	defer func() { config.ENABLE_REGISTRATION = false }()

	suffix := utils.Rand8BytesToBase62()
	body := UserRegisterRequest{
		Username: "dup-" + suffix,
		Email:    "dup-" + suffix + "@example.com",
		Password: "secret",
	}
	require.Equal(t, http.StatusOK, postRegister(t, engine, body).Code)
	assert.Equal(t, http.StatusConflict, postRegister(t, engine, body).Code)
}
