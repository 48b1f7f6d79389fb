package engine

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"gallery/access"
	"gallery/errs"
	"gallery/imageprep"
	"gallery/models"
)

type UploadRequest struct {
	Data         []byte
	FileName     string
	DeclaredMime string
	AlbumID      *uint64
	Scope        access.Scope
}

// Upload runs the upload saga: received -> prepared -> remote-committed ->
// local-committed. Preparation failures abort with no side effect anywhere.
// Remote failures abort before any local write. A local-commit failure
// after remote commit triggers a best-effort compensating delete so no
// remote object is left untracked.
func (e *Engine) Upload(ctx context.Context, req UploadRequest) (*models.Asset, error) {
	if req.Scope.Anonymous {
		return nil, errs.Forbidden("sign in to upload")
	}
	if len(req.Data) == 0 {
		return nil, errs.Validation("empty upload")
	}

	// Validate the album reference up front - finding out after the remote
	// commit would mean an orphan for a caller mistake.
	if req.AlbumID != nil {
		album, err := e.store.GetAlbum(req.Scope, *req.AlbumID)
		if err != nil {
			return nil, err
		}
		if !req.Scope.CanMutateAlbum(album) {
			return nil, errs.Forbidden("album %d is not yours", *req.AlbumID)
		}
	}

	prepared, err := imageprep.Prepare(req.Data, req.FileName, req.DeclaredMime)
	if err != nil {
		return nil, err
	}

	// Cancellation is honored up to the remote commit. Once the remote
	// store has accepted the object the saga runs to completion.
	if err = canceled(ctx); err != nil {
		return nil, err
	}
	desc, err := e.remote.Upload(ctx, prepared.Data, prepared.FileName, prepared.MimeType)
	if err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)

	title := desc.Title
	if title == "" {
		title = strings.TrimSuffix(req.FileName, filepath.Ext(req.FileName))
	}
	asset := &models.Asset{
		RemoteID:     desc.RemoteID,
		Title:        title,
		FileName:     prepared.FileName,
		MimeType:     prepared.MimeType,
		URLFull:      desc.URLFull,
		URLThumbnail: desc.URLThumbnail,
		URLMedium:    desc.URLMedium,
		UserID:       req.Scope.UserID,
		TenantID:     req.Scope.TenantID,
		AlbumID:      req.AlbumID,
		Public:       true,
	}
	if err = e.store.CreateAsset(asset); err != nil {
		// The one legitimate window where a remote object exists without a
		// local row. Close it actively instead of leaving it open.
		logOrphan(desc.RemoteID, err)
		e.compensateRemote(desc.RemoteID)
		return nil, err
	}
	e.invalidateListings(ctx)
	return asset, nil
}

// compensateRemote best-effort deletes a remote object whose local commit
// failed. Failures are logged for operator awareness, not retried further.
func (e *Engine) compensateRemote(remoteID uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if err := e.remote.Delete(ctx, remoteID); err != nil {
		log.Error().Uint64("remote_id", remoteID).Err(err).
			Msg("Compensating remote delete failed, object remains orphaned")
	}
}

// RepairAssetURLs re-fetches the remote descriptor and refreshes the cached
// delivery URLs. Used when cached URLs have gone stale; not a hot path.
func (e *Engine) RepairAssetURLs(ctx context.Context, scope access.Scope, id uint64) (*models.Asset, error) {
	unlock := e.lockAsset(id)
	defer unlock()

	asset, err := e.store.GetAsset(id)
	if err != nil {
		return nil, err
	}
	if !scope.CanMutateAsset(asset) {
		return nil, errs.Forbidden("asset %d is not yours", id)
	}
	desc, err := e.remote.Fetch(ctx, asset.RemoteID)
	if err != nil {
		return nil, err
	}
	if err = e.store.UpdateAssetURLs(asset.RemoteID, desc.URLFull, desc.URLThumbnail, desc.URLMedium); err != nil {
		return nil, err
	}
	asset.URLFull = desc.URLFull
	asset.URLThumbnail = desc.URLThumbnail
	asset.URLMedium = desc.URLMedium
	e.invalidateListings(ctx)
	return asset, nil
}
