package store

import (
	"errors"

	"gallery/access"
	"gallery/errs"
	"gallery/models"

	"gorm.io/gorm"
)

// AssetFilter narrows ListAssets. Query matches title and file name.
type AssetFilter struct {
	Query   string
	AlbumID *uint64
	Page    int
}

func (s *Store) CreateAsset(a *models.Asset) error {
	return translate(s.write(func(tx *gorm.DB) error {
		return tx.Create(a).Error
	}), "asset")
}

func (s *Store) GetAsset(id uint64) (*models.Asset, error) {
	var a models.Asset
	if err := s.db.First(&a, "id = ?", id).Error; err != nil {
		return nil, translate(err, "asset")
	}
	return &a, nil
}

// getAssetForMutation resolves id and checks mutation rights. A row the
// caller cannot touch yields Forbidden; a missing row yields NotFound.
func (s *Store) getAssetForMutation(scope access.Scope, id uint64) (*models.Asset, error) {
	a, err := s.GetAsset(id)
	if err != nil {
		return nil, err
	}
	if !scope.CanMutateAsset(a) {
		return nil, errs.Forbidden("asset %d is not yours", id)
	}
	return a, nil
}

// ListAssets returns one page plus a has-more flag, scoped to what the
// caller may observe. Ordering is newest first.
func (s *Store) ListAssets(scope access.Scope, filter AssetFilter) ([]models.Asset, bool, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	tx := scope.AssetsQuery(s.db.Model(&models.Asset{}))
	if filter.AlbumID != nil {
		tx = tx.Where("assets.album_id = ?", *filter.AlbumID)
	}
	if filter.Query != "" {
		q := "%" + escapeLike(filter.Query) + "%"
		tx = tx.Where(`(assets.title LIKE ? ESCAPE '\' OR assets.file_name LIKE ? ESCAPE '\')`, q, q)
	}
	var assets []models.Asset
	err := tx.Order("assets.created_at DESC, assets.id DESC").
		Limit(PageSize + 1).
		Offset((page - 1) * PageSize).
		Find(&assets).Error
	if err != nil {
		return nil, false, err
	}
	hasMore := len(assets) > PageSize
	if hasMore {
		assets = assets[:PageSize]
	}
	return assets, hasMore, nil
}

func (s *Store) UpdateAssetVisibility(scope access.Scope, id uint64, public bool) (*models.Asset, error) {
	a, err := s.getAssetForMutation(scope, id)
	if err != nil {
		return nil, err
	}
	err = s.write(func(tx *gorm.DB) error {
		return tx.Model(a).Update("public", public).Error
	})
	if err != nil {
		return nil, translate(err, "asset")
	}
	return a, nil
}

// MoveAsset reparents an asset's album reference. Purely local, so it is
// atomic through the transaction. A nil albumID detaches the asset.
func (s *Store) MoveAsset(scope access.Scope, id uint64, albumID *uint64) (*models.Asset, error) {
	a, err := s.getAssetForMutation(scope, id)
	if err != nil {
		return nil, err
	}
	err = s.write(func(tx *gorm.DB) error {
		if albumID != nil {
			var album models.Album
			if err := tx.First(&album, "id = ?", *albumID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return errs.NotFound("album %d not found", *albumID)
				}
				return err
			}
			if !scope.CanMutateAlbum(&album) {
				return errs.Forbidden("album %d is not yours", *albumID)
			}
		}
		return tx.Model(a).Update("album_id", albumID).Error
	})
	if err != nil {
		return nil, translate(err, "asset")
	}
	a.AlbumID = albumID
	return a, nil
}

// DeleteAssetRow removes the local row and returns its remote id so the
// caller can attempt remote cleanup.
func (s *Store) DeleteAssetRow(scope access.Scope, id uint64) (uint64, error) {
	a, err := s.getAssetForMutation(scope, id)
	if err != nil {
		return 0, err
	}
	err = s.write(func(tx *gorm.DB) error {
		return tx.Delete(&models.Asset{}, "id = ?", id).Error
	})
	if err != nil {
		return 0, translate(err, "asset")
	}
	return a.RemoteID, nil
}

// UpdateAssetURLs is the repair path for stale delivery URLs, keyed by the
// remote id the descriptor was re-fetched with.
func (s *Store) UpdateAssetURLs(remoteID uint64, full, thumbnail, medium string) error {
	return translate(s.write(func(tx *gorm.DB) error {
		result := tx.Model(&models.Asset{}).
			Where("remote_id = ?", remoteID).
			Updates(map[string]interface{}{
				"url_full":      full,
				"url_thumbnail": thumbnail,
				"url_medium":    medium,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errs.NotFound("asset with remote id %d not found", remoteID)
		}
		return nil
	}), "asset")
}
