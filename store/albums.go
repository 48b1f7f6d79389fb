package store

import (
	"errors"

	"gallery/access"
	"gallery/errs"
	"gallery/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (s *Store) GetAlbum(scope access.Scope, id uint64) (*models.Album, error) {
	var a models.Album
	if err := scope.AlbumsQuery(s.db).First(&a, "albums.id = ?", id).Error; err != nil {
		return nil, translate(err, "album")
	}
	return &a, nil
}

// ListAlbums returns the caller-visible forest as a flat list with parent
// pointers. Tree assembly and child ordering are the client's concern.
func (s *Store) ListAlbums(scope access.Scope) ([]models.Album, error) {
	var albums []models.Album
	err := scope.AlbumsQuery(s.db.Model(&models.Album{})).
		Order("albums.name ASC").
		Find(&albums).Error
	return albums, err
}

func (s *Store) CreateAlbum(scope access.Scope, name, description string, parentID *uint64, public bool) (*models.Album, error) {
	if scope.Anonymous {
		return nil, errs.Forbidden("sign in to create albums")
	}
	album := &models.Album{
		TenantID:    scope.TenantID,
		UserID:      scope.UserID,
		Name:        name,
		Description: description,
		ParentID:    parentID,
		Public:      public,
	}
	err := s.write(func(tx *gorm.DB) error {
		if parentID != nil {
			parent, err := s.loadAlbumInTx(tx, *parentID)
			if err != nil {
				return err
			}
			if !scope.CanMutateAlbum(parent) {
				return errs.Forbidden("parent album %d is not yours", *parentID)
			}
			if scope.IsAdmin() {
				// Admin-created albums live in the parent's tenant
				album.TenantID = parent.TenantID
			}
		}
		return tx.Create(album).Error
	})
	if err != nil {
		return nil, translate(err, "album")
	}
	return album, nil
}

// UpdateAlbum renames/describes an album and optionally flips visibility.
func (s *Store) UpdateAlbum(scope access.Scope, id uint64, name, description string, public *bool) (*models.Album, error) {
	var album *models.Album
	err := s.write(func(tx *gorm.DB) error {
		var err error
		album, err = s.loadAlbumInTx(tx, id)
		if err != nil {
			return err
		}
		if !scope.CanMutateAlbum(album) {
			return errs.Forbidden("album %d is not yours", id)
		}
		updates := map[string]interface{}{"name": name, "description": description}
		if public != nil {
			updates["public"] = *public
		}
		return tx.Model(album).Updates(updates).Error
	})
	if err != nil {
		return nil, translate(err, "album")
	}
	return album, nil
}

// ReparentAlbum moves an album under a new parent (nil makes it a root).
// The upward walk from the proposed parent runs inside the same write
// transaction as the update, so a concurrent reparent cannot slip a cycle
// in between the check and the commit.
func (s *Store) ReparentAlbum(scope access.Scope, id uint64, newParentID *uint64) (*models.Album, error) {
	var album *models.Album
	err := s.write(func(tx *gorm.DB) error {
		var err error
		album, err = s.loadAlbumInTx(tx, id)
		if err != nil {
			return err
		}
		if !scope.CanMutateAlbum(album) {
			return errs.Forbidden("album %d is not yours", id)
		}
		if newParentID != nil {
			if *newParentID == id {
				return errs.Cycle("album cannot be its own parent")
			}
			parent, err := s.loadAlbumInTx(tx, *newParentID)
			if err != nil {
				return err
			}
			if !scope.CanMutateAlbum(parent) {
				return errs.Forbidden("parent album %d is not yours", *newParentID)
			}
			if err = s.checkNoCycle(tx, id, parent); err != nil {
				return err
			}
		}
		return tx.Model(album).Update("parent_id", newParentID).Error
	})
	if err != nil {
		return nil, translate(err, "album")
	}
	album.ParentID = newParentID
	return album, nil
}

// DeleteAlbum removes the album row, detaches its assets, and reparents
// its child albums to the deleted album's parent (or to root). All in one
// transaction: either everything happens or nothing does.
func (s *Store) DeleteAlbum(scope access.Scope, id uint64) error {
	return translate(s.write(func(tx *gorm.DB) error {
		album, err := s.loadAlbumInTx(tx, id)
		if err != nil {
			return err
		}
		if !scope.CanMutateAlbum(album) {
			return errs.Forbidden("album %d is not yours", id)
		}
		if err = tx.Model(&models.Asset{}).
			Where("album_id = ?", id).
			Update("album_id", nil).Error; err != nil {
			return err
		}
		if err = tx.Model(&models.Album{}).
			Where("parent_id = ?", id).
			Update("parent_id", album.ParentID).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Album{}, "id = ?", id).Error
	}), "album")
}

// loadAlbumInTx fetches an album for mutation. On MySQL the row is locked
// with SELECT ... FOR UPDATE so two transactions walking the tree at the
// same time serialize on the rows they touch; on SQLite the store-level
// write mutex already makes writers exclusive and FOR UPDATE is not
// accepted syntax.
func (s *Store) loadAlbumInTx(tx *gorm.DB, id uint64) (*models.Album, error) {
	if !s.serializeWrites {
		tx = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var a models.Album
	if err := tx.First(&a, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("album %d not found", id)
		}
		return nil, err
	}
	return &a, nil
}

// checkNoCycle walks from the proposed parent up to the root and fails if
// it encounters the album being moved. Each hop goes through loadAlbumInTx
// so every ancestor on the path stays locked until commit; without that, a
// concurrent reparent of an ancestor could pass its own check against the
// old tree and the two commits together would close a cycle. The walk is
// bounded so a row cycle that somehow made it to disk cannot hang the
// transaction.
func (s *Store) checkNoCycle(tx *gorm.DB, movingID uint64, parent *models.Album) error {
	const maxDepth = 1000
	current := parent
	for depth := 0; depth < maxDepth; depth++ {
		if current.ID == movingID {
			return errs.Cycle("album %d is an ancestor of the proposed parent", movingID)
		}
		if current.ParentID == nil {
			return nil
		}
		next, err := s.loadAlbumInTx(tx, *current.ParentID)
		if err != nil {
			return err
		}
		current = next
	}
	return errs.Cycle("album tree too deep")
}
