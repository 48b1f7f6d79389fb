package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/rs/zerolog/log"

	"gallery/auth"
	"gallery/config"
	"gallery/models"
)

type UserInfo struct {
	ID       uint64      `json:"id"`
	Username string      `json:"username"`
	Email    string      `json:"email"`
	Role     models.Role `json:"role"`
	Tenant   uint64      `json:"tenant"`
	Active   bool        `json:"active"`
}

func userInfoFrom(u *models.User) UserInfo {
	return UserInfo{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
		Tenant:   u.TenantID,
		Active:   u.Active,
	}
}

type UserLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (api *API) UserLogin(c *gin.Context) {
	r := UserLoginRequest{}
	if err := c.ShouldBindWith(&r, binding.JSON); err != nil {
		failBadRequest(c, err)
		return
	}
	user, err := api.Store.GetUserByUsername(r.Username)
	if err != nil || !user.CheckPassword(r.Password) {
		// Same answer for unknown user and wrong password
		c.JSON(http.StatusUnauthorized, Response{"invalid credentials"})
		return
	}
	if err := auth.LoadSession(c).LoginUser(user.ID); err != nil {
		log.Error().Err(err).Msg("Cannot save session")
		c.JSON(http.StatusInternalServerError, Response{"internal error"})
		return
	}
	c.JSON(http.StatusOK, userInfoFrom(user))
}

type UserRegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UserRegister is self-service signup into the default tenant, guarded by
// the ENABLE_REGISTRATION flag. New accounts are always plain members;
// admins and other tenants are provisioned by an admin.
func (api *API) UserRegister(c *gin.Context) {
	if !config.ENABLE_REGISTRATION {
		c.JSON(http.StatusForbidden, Response{"registration is disabled"})
		return
	}
	r := UserRegisterRequest{}
	if err := c.ShouldBindWith(&r, binding.JSON); err != nil {
		failBadRequest(c, err)
		return
	}
	tenant, err := api.Store.DefaultTenant()
	if err != nil {
		fail(c, err)
		return
	}
	created, err := api.Store.CreateUser(r.Username, r.Email, r.Password, models.RoleMember, tenant.ID)
	if err != nil {
		fail(c, err)
		return
	}
	if err := auth.LoadSession(c).LoginUser(created.ID); err != nil {
		log.Error().Err(err).Msg("Cannot save session")
	}
	c.JSON(http.StatusOK, userInfoFrom(created))
}

func (api *API) UserLogout(c *gin.Context, user *models.User) {
	auth.LoadSession(c).LogoutUser()
	c.JSON(http.StatusOK, OKResponse)
}

// UserStatus is public: it tells the UI whether the caller has a session
// and who they are.
func (api *API) UserStatus(c *gin.Context) {
	user := api.Auth.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": true, "user": userInfoFrom(user)})
}

// UserList is admin-only and spans all tenants unless one is requested.
func (api *API) UserList(c *gin.Context, user *models.User) {
	var tenantID *uint64
	if v := c.Query("tenant_id"); v != "" {
		parsed, err := parseID(v)
		if err != nil {
			failBadRequest(c, err)
			return
		}
		tenantID = &parsed
	}
	users, err := api.Store.ListUsers(tenantID)
	if err != nil {
		fail(c, err)
		return
	}
	result := make([]UserInfo, 0, len(users))
	for i := range users {
		result = append(result, userInfoFrom(&users[i]))
	}
	c.JSON(http.StatusOK, result)
}

type UserCreateRequest struct {
	Username string      `json:"username" binding:"required"`
	Email    string      `json:"email" binding:"required"`
	Password string      `json:"password" binding:"required"`
	Role     models.Role `json:"role"`
	TenantID uint64      `json:"tenant_id" binding:"required"`
}

func (api *API) UserCreate(c *gin.Context, user *models.User) {
	r := UserCreateRequest{Role: models.RoleMember}
	if err := c.ShouldBindWith(&r, binding.JSON); err != nil {
		failBadRequest(c, err)
		return
	}
	if r.Role != models.RoleAdmin && r.Role != models.RoleMember {
		c.JSON(http.StatusBadRequest, Response{"invalid role"})
		return
	}
	created, err := api.Store.CreateUser(r.Username, r.Email, r.Password, r.Role, r.TenantID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, userInfoFrom(created))
}

// UserDeactivate disables a login without deleting the row, so the user's
// assets keep a valid owner. Admins cannot deactivate themselves.
func (api *API) UserDeactivate(c *gin.Context, user *models.User) {
	id, err := pathID(c, "id")
	if err != nil {
		failBadRequest(c, err)
		return
	}
	if id == user.ID {
		c.JSON(http.StatusBadRequest, Response{"cannot deactivate yourself"})
		return
	}
	if err := api.Store.DeactivateUser(id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, OKResponse)
}

type TenantCreateRequest struct {
	Name string `json:"name" binding:"required"`
	Slug string `json:"slug" binding:"required"`
}

func (api *API) TenantCreate(c *gin.Context, user *models.User) {
	r := TenantCreateRequest{}
	if err := c.ShouldBindWith(&r, binding.JSON); err != nil {
		failBadRequest(c, err)
		return
	}
	tenant, err := api.Store.CreateTenant(r.Name, r.Slug)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tenant)
}
