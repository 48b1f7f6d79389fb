package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"gallery/access"
	"gallery/errs"
	"gallery/models"
)

// BatchResult aggregates per-item outcomes of a delete or move batch. The
// batch is a barrier over its item set: the result is assembled only after
// every item has resolved, and one bad id never blocks the rest.
type BatchResult struct {
	Requested     int      `json:"requested"`
	LocalDeleted  int      `json:"local_deleted,omitempty"`
	RemoteDeleted int      `json:"remote_deleted,omitempty"`
	Moved         int      `json:"moved,omitempty"`
	Failed        []uint64 `json:"failed"`
	Message       string   `json:"message"`
}

// DeleteAssets runs the delete saga over a set of ids. For each id the
// remote delete is attempted, then the local row is removed regardless of
// the remote outcome - the user's intent to drop the item from the gallery
// beats a dangling remote object. Remote failures are tallied and surfaced.
func (e *Engine) DeleteAssets(ctx context.Context, scope access.Scope, ids []uint64) (*BatchResult, error) {
	if err := validateBatch(ids); err != nil {
		return nil, err
	}
	result := &BatchResult{Requested: len(ids), Failed: []uint64{}}
	for _, id := range ids {
		e.deleteOne(ctx, scope, id, result)
	}
	result.Message = fmt.Sprintf("Deleted %d local rows. Remote cleanup: %d/%d successful.",
		result.LocalDeleted, result.RemoteDeleted, result.LocalDeleted)
	e.invalidateListings(ctx)
	return result, nil
}

func (e *Engine) deleteOne(ctx context.Context, scope access.Scope, id uint64, result *BatchResult) {
	unlock := e.lockAsset(id)
	defer unlock()

	asset, err := e.store.GetAsset(id)
	if err == nil && !scope.CanMutateAsset(asset) {
		err = errs.Forbidden("asset %d is not yours", id)
	}
	if err != nil {
		log.Warn().Uint64("asset", id).Err(err).Msg("Delete skipped")
		result.Failed = append(result.Failed, id)
		return
	}

	remoteOK := true
	if err = e.remote.Delete(ctx, asset.RemoteID); err != nil {
		log.Warn().Uint64("asset", id).Uint64("remote_id", asset.RemoteID).Err(err).
			Msg("Remote delete failed, removing local row anyway")
		remoteOK = false
	}
	if _, err = e.store.DeleteAssetRow(scope, id); err != nil {
		log.Error().Uint64("asset", id).Err(err).Msg("Local delete failed")
		result.Failed = append(result.Failed, id)
		return
	}
	result.LocalDeleted++
	if remoteOK {
		result.RemoteDeleted++
	}
}

// MoveAssets reparents a set of assets to an album (nil detaches them).
// Purely local, atomic per item through the store transaction.
func (e *Engine) MoveAssets(ctx context.Context, scope access.Scope, ids []uint64, albumID *uint64) (*BatchResult, error) {
	if err := validateBatch(ids); err != nil {
		return nil, err
	}
	result := &BatchResult{Requested: len(ids), Failed: []uint64{}}
	for _, id := range ids {
		func() {
			unlock := e.lockAsset(id)
			defer unlock()
			if _, err := e.store.MoveAsset(scope, id, albumID); err != nil {
				log.Warn().Uint64("asset", id).Err(err).Msg("Move skipped")
				result.Failed = append(result.Failed, id)
				return
			}
			result.Moved++
		}()
	}
	result.Message = fmt.Sprintf("Moved %d of %d assets.", result.Moved, result.Requested)
	e.invalidateListings(ctx)
	return result, nil
}

// SetVisibility toggles an asset's public flag. Purely local.
func (e *Engine) SetVisibility(ctx context.Context, scope access.Scope, id uint64, public bool) (*models.Asset, error) {
	unlock := e.lockAsset(id)
	defer unlock()

	asset, err := e.store.UpdateAssetVisibility(scope, id, public)
	if err != nil {
		return nil, err
	}
	asset.Public = public
	e.invalidateListings(ctx)
	return asset, nil
}

func validateBatch(ids []uint64) error {
	if len(ids) == 0 {
		return errs.Validation("no ids provided")
	}
	if len(ids) > MaxBatchSize {
		return errs.Validation("too many ids (max %d)", MaxBatchSize)
	}
	for _, id := range ids {
		if id == 0 {
			return errs.Validation("invalid id 0")
		}
	}
	return nil
}
