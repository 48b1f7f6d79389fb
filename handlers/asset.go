package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/rs/zerolog/log"

	"gallery/access"
	"gallery/config"
	"gallery/engine"
	"gallery/errs"
	"gallery/models"
	"gallery/runner"
	"gallery/store"
)

type AssetInfo struct {
	ID           uint64  `json:"id"`
	RemoteID     uint64  `json:"remote_id"`
	Title        string  `json:"title"`
	FileName     string  `json:"file_name"`
	MimeType     string  `json:"mime_type"`
	URLFull      string  `json:"url_full"`
	URLThumbnail string  `json:"url_thumbnail"`
	URLMedium    string  `json:"url_medium"`
	Owner        uint64  `json:"owner"`
	Tenant       uint64  `json:"tenant"`
	AlbumID      *uint64 `json:"album_id"`
	Public       bool    `json:"public"`
	Created      int64   `json:"created"`
}

func assetInfoFrom(a *models.Asset) AssetInfo {
	return AssetInfo{
		ID:           a.ID,
		RemoteID:     a.RemoteID,
		Title:        a.Title,
		FileName:     a.FileName,
		MimeType:     a.MimeType,
		URLFull:      a.URLFull,
		URLThumbnail: a.URLThumbnail,
		URLMedium:    a.URLMedium,
		Owner:        a.UserID,
		Tenant:       a.TenantID,
		AlbumID:      a.AlbumID,
		Public:       a.Public,
		Created:      a.CreatedAt,
	}
}

type AssetListRequest struct {
	Page    int     `form:"page"`
	Query   string  `form:"q"`
	AlbumID *uint64 `form:"album_id"`
}

type AssetListResponse struct {
	Assets  []AssetInfo `json:"assets"`
	HasMore bool        `json:"has_more"`
}

// AssetList is a public route: the scope decides what each caller sees.
// Pages are served from the Redis cache when possible.
func (api *API) AssetList(c *gin.Context) {
	r := AssetListRequest{Page: 1}
	if err := c.ShouldBindQuery(&r); err != nil {
		failBadRequest(c, err)
		return
	}
	if len(r.Query) > 200 {
		r.Query = r.Query[:200]
	}
	scope := api.Auth.CurrentScope(c)
	filter := store.AssetFilter{Page: r.Page, Query: r.Query, AlbumID: r.AlbumID}

	key := api.Cache.PageKey(scope, filter)
	if raw, ok := api.Cache.GetPage(c.Request.Context(), key); ok {
		c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
		return
	}

	assets, hasMore, err := api.Store.ListAssets(scope, filter)
	if err != nil {
		fail(c, err)
		return
	}
	resp := AssetListResponse{Assets: make([]AssetInfo, 0, len(assets)), HasMore: hasMore}
	for i := range assets {
		resp.Assets = append(resp.Assets, assetInfoFrom(&assets[i]))
	}
	if payload, err := json.Marshal(resp); err == nil {
		api.Cache.SetPage(c.Request.Context(), key, payload)
	}
	c.JSON(http.StatusOK, resp)
}

type uploadOutcome struct {
	FileName string `json:"file_name"`
	Future   *runner.Future
}

type AssetUploadResponse struct {
	Message  string      `json:"message"`
	Assets   []AssetInfo `json:"assets"`
	Failed   []string    `json:"failed"`
	Accepted []string    `json:"accepted,omitempty"`
}

// AssetUpload enqueues one upload saga per file on the task runner, waits
// for them up to the interactive budget, and reports anything still
// running as accepted-for-background-completion.
func (api *API) AssetUpload(c *gin.Context, user *models.User) {
	form, err := c.MultipartForm()
	if err != nil {
		failBadRequest(c, err)
		return
	}
	files := form.File["file"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, Response{"no file part"})
		return
	}
	var albumID *uint64
	if v := c.PostForm("album_id"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil || parsed == 0 {
			c.JSON(http.StatusBadRequest, Response{"invalid album_id"})
			return
		}
		albumID = &parsed
	}
	scope := access.ForUser(user)

	outcomes := make([]uploadOutcome, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			log.Warn().Str("file", fh.Filename).Err(err).Msg("Cannot read upload")
			continue
		}
		// Read one byte past the cap so an oversize file is detected
		// instead of silently truncated into a corrupt image.
		maxBytes := int64(config.MAX_UPLOAD_MB) << 20
		data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
		f.Close()
		if err != nil {
			log.Warn().Str("file", fh.Filename).Err(err).Msg("Cannot read upload")
			continue
		}
		if int64(len(data)) > maxBytes {
			fail(c, errs.Validation("file %q exceeds the %d MB upload limit", fh.Filename, config.MAX_UPLOAD_MB))
			return
		}
		req := engine.UploadRequest{
			Data:         data,
			FileName:     fh.Filename,
			DeclaredMime: fh.Header.Get("Content-Type"),
			AlbumID:      albumID,
			Scope:        scope,
		}
		future, err := api.Runner.Submit(func(ctx context.Context) (interface{}, error) {
			return api.Engine.Upload(ctx, req)
		})
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, Response{err.Error()})
			return
		}
		outcomes = append(outcomes, uploadOutcome{FileName: fh.Filename, Future: future})
	}
	if len(outcomes) == 0 {
		c.JSON(http.StatusBadRequest, Response{"no valid files to upload"})
		return
	}

	deadline := time.Now().Add(time.Duration(config.UPLOAD_WAIT_SECONDS) * time.Second)
	resp := AssetUploadResponse{Assets: []AssetInfo{}, Failed: []string{}}
	for _, o := range outcomes {
		wait := time.Until(deadline)
		if wait < 0 {
			wait = 0
		}
		result, err, completed := o.Future.Await(wait)
		if !completed {
			// Saga keeps running; the asset appears once it lands.
			resp.Accepted = append(resp.Accepted, o.FileName)
			continue
		}
		if err != nil {
			log.Warn().Str("file", o.FileName).Err(err).Msg("Upload failed")
			resp.Failed = append(resp.Failed, o.FileName)
			continue
		}
		resp.Assets = append(resp.Assets, assetInfoFrom(result.(*models.Asset)))
	}
	switch {
	case len(resp.Accepted) > 0:
		resp.Message = "Upload accepted, finishing in the background"
		c.JSON(http.StatusAccepted, resp)
	case len(resp.Assets) == 0:
		resp.Message = "Upload failed"
		c.JSON(http.StatusBadGateway, resp)
	default:
		resp.Message = "Upload successful"
		c.JSON(http.StatusOK, resp)
	}
}

type AssetBatchRequest struct {
	IDs     []uint64 `json:"ids" binding:"required"`
	AlbumID *uint64  `json:"album_id"`
}

// AssetDelete runs the delete saga on the task runner so bulk remote
// cleanup doesn't hold a request worker beyond the interactive budget.
func (api *API) AssetDelete(c *gin.Context, user *models.User) {
	r := AssetBatchRequest{}
	if err := c.ShouldBindWith(&r, binding.JSON); err != nil {
		failBadRequest(c, err)
		return
	}
	scope := access.ForUser(user)
	future, err := api.Runner.Submit(func(ctx context.Context) (interface{}, error) {
		return api.Engine.DeleteAssets(ctx, scope, r.IDs)
	})
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, Response{err.Error()})
		return
	}
	result, err, completed := future.Await(time.Duration(config.UPLOAD_WAIT_SECONDS) * time.Second)
	if !completed {
		c.JSON(http.StatusAccepted, gin.H{"message": "Delete accepted, finishing in the background"})
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result.(*engine.BatchResult))
}

// AssetMove is local-only and fast, no need for the runner.
func (api *API) AssetMove(c *gin.Context, user *models.User) {
	r := AssetBatchRequest{}
	if err := c.ShouldBindWith(&r, binding.JSON); err != nil {
		failBadRequest(c, err)
		return
	}
	result, err := api.Engine.MoveAssets(c.Request.Context(), access.ForUser(user), r.IDs, r.AlbumID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type AssetVisibilityRequest struct {
	Public *bool `json:"public" binding:"required"`
}

func (api *API) AssetVisibility(c *gin.Context, user *models.User) {
	id, err := pathID(c, "id")
	if err != nil {
		failBadRequest(c, err)
		return
	}
	r := AssetVisibilityRequest{}
	if err := c.ShouldBindWith(&r, binding.JSON); err != nil {
		failBadRequest(c, err)
		return
	}
	asset, err := api.Engine.SetVisibility(c.Request.Context(), access.ForUser(user), id, *r.Public)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, assetInfoFrom(asset))
}

// AssetRepair refreshes an asset's cached delivery URLs from the remote
// store's descriptor.
func (api *API) AssetRepair(c *gin.Context, user *models.User) {
	id, err := pathID(c, "id")
	if err != nil {
		failBadRequest(c, err)
		return
	}
	asset, err := api.Engine.RepairAssetURLs(c.Request.Context(), access.ForUser(user), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, assetInfoFrom(asset))
}
