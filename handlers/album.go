package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"gallery/access"
	"gallery/models"
)

type AlbumInfo struct {
	ID          uint64  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	ParentID    *uint64 `json:"parent_id"`
	Owner       uint64  `json:"owner"`
	Tenant      uint64  `json:"tenant"`
	Public      bool    `json:"public"`
}

func albumInfoFrom(a *models.Album) AlbumInfo {
	return AlbumInfo{
		ID:          a.ID,
		Name:        a.Name,
		Description: a.Description,
		ParentID:    a.ParentID,
		Owner:       a.UserID,
		Tenant:      a.TenantID,
		Public:      a.Public,
	}
}

// AlbumList is a public route; anonymous callers see public albums only.
func (api *API) AlbumList(c *gin.Context) {
	albums, err := api.Store.ListAlbums(api.Auth.CurrentScope(c))
	if err != nil {
		fail(c, err)
		return
	}
	result := make([]AlbumInfo, 0, len(albums))
	for i := range albums {
		result = append(result, albumInfoFrom(&albums[i]))
	}
	c.JSON(http.StatusOK, result)
}

func (api *API) AlbumGet(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		failBadRequest(c, err)
		return
	}
	album, err := api.Store.GetAlbum(api.Auth.CurrentScope(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, albumInfoFrom(album))
}

type AlbumCreateRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description"`
	ParentID    *uint64 `json:"parent_id"`
	Public      bool    `json:"public"`
}

func (api *API) AlbumCreate(c *gin.Context, user *models.User) {
	r := AlbumCreateRequest{}
	if err := c.ShouldBindWith(&r, binding.JSON); err != nil {
		failBadRequest(c, err)
		return
	}
	album, err := api.Store.CreateAlbum(access.ForUser(user), r.Name, r.Description, r.ParentID, r.Public)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, albumInfoFrom(album))
}

type AlbumSaveRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Public      *bool  `json:"public"`
}

func (api *API) AlbumSave(c *gin.Context, user *models.User) {
	id, err := pathID(c, "id")
	if err != nil {
		failBadRequest(c, err)
		return
	}
	r := AlbumSaveRequest{}
	if err := c.ShouldBindWith(&r, binding.JSON); err != nil {
		failBadRequest(c, err)
		return
	}
	album, err := api.Store.UpdateAlbum(access.ForUser(user), id, r.Name, r.Description, r.Public)
	if err != nil {
		fail(c, err)
		return
	}
	if r.Public != nil {
		api.Cache.Invalidate(c.Request.Context())
	}
	c.JSON(http.StatusOK, albumInfoFrom(album))
}

type AlbumReparentRequest struct {
	ParentID *uint64 `json:"parent_id"`
}

// AlbumReparent moves an album under a new parent, or to the root when
// parent_id is null. Moves that would close a loop are rejected.
func (api *API) AlbumReparent(c *gin.Context, user *models.User) {
	id, err := pathID(c, "id")
	if err != nil {
		failBadRequest(c, err)
		return
	}
	r := AlbumReparentRequest{}
	if err := c.ShouldBindWith(&r, binding.JSON); err != nil {
		failBadRequest(c, err)
		return
	}
	album, err := api.Store.ReparentAlbum(access.ForUser(user), id, r.ParentID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, albumInfoFrom(album))
}

// AlbumDelete removes the album row only. Its assets are detached and its
// child albums are lifted to the deleted album's parent.
func (api *API) AlbumDelete(c *gin.Context, user *models.User) {
	id, err := pathID(c, "id")
	if err != nil {
		failBadRequest(c, err)
		return
	}
	if err := api.Store.DeleteAlbum(access.ForUser(user), id); err != nil {
		fail(c, err)
		return
	}
	api.Cache.Invalidate(c.Request.Context())
	c.JSON(http.StatusOK, OKResponse)
}
