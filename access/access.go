// Package access computes what a caller may see and touch. Read predicates
// are applied at the query layer - never by filtering rows in memory - so
// hidden rows cannot leak through pagination counts.
package access

import (
	"gallery/models"

	"gorm.io/gorm"
)

// Scope describes the caller: anonymous, a tenant member, or an admin.
type Scope struct {
	Anonymous bool
	UserID    uint64
	TenantID  uint64
	Role      models.Role
}

func AnonymousScope() Scope {
	return Scope{Anonymous: true}
}

func ForUser(u *models.User) Scope {
	return Scope{UserID: u.ID, TenantID: u.TenantID, Role: u.Role}
}

func (s Scope) IsAdmin() bool {
	return !s.Anonymous && s.Role == models.RoleAdmin
}

// AssetsQuery narrows tx to the assets the caller may observe:
// anonymous sees public rows, members see their whole tenant (any
// visibility), admins see everything.
func (s Scope) AssetsQuery(tx *gorm.DB) *gorm.DB {
	if s.Anonymous {
		return tx.Where("assets.public = ?", true)
	}
	if s.IsAdmin() {
		return tx
	}
	return tx.Where("assets.tenant_id = ?", s.TenantID)
}

// AlbumsQuery is the album equivalent of AssetsQuery.
func (s Scope) AlbumsQuery(tx *gorm.DB) *gorm.DB {
	if s.Anonymous {
		return tx.Where("albums.public = ?", true)
	}
	if s.IsAdmin() {
		return tx
	}
	return tx.Where("albums.tenant_id = ?", s.TenantID)
}

// CanMutateAsset gates visibility toggles, moves and deletes. Tenant
// membership grants observation only; mutation is owner-or-admin.
func (s Scope) CanMutateAsset(a *models.Asset) bool {
	if s.Anonymous {
		return false
	}
	if s.IsAdmin() {
		return true
	}
	return a.UserID == s.UserID
}

// CanObserveAsset mirrors AssetsQuery for a single loaded row.
func (s Scope) CanObserveAsset(a *models.Asset) bool {
	if s.Anonymous {
		return a.Public
	}
	if s.IsAdmin() {
		return true
	}
	return a.TenantID == s.TenantID
}

func (s Scope) CanMutateAlbum(a *models.Album) bool {
	if s.Anonymous {
		return false
	}
	if s.IsAdmin() {
		return true
	}
	return a.TenantID == s.TenantID
}
