package models

import "strings"

// Asset is the local cache row for one image held by the remote media store.
// RemoteID is the join key into the remote store's namespace; once a row
// exists, a remote object is assumed to exist for it. The delivery URLs are
// handed to us by the remote store at upload time and can be re-fetched via
// the repair path if they go stale.
type Asset struct {
	ID           uint64  `gorm:"primaryKey"`
	RemoteID     uint64  `gorm:"index:uniq_remote_id,unique;not null"`
	Title        string  `gorm:"type:varchar(300)"`
	FileName     string  `gorm:"type:varchar(300)"`
	MimeType     string  `gorm:"type:varchar(50)"`
	URLFull      string  `gorm:"type:varchar(2000)"`
	URLThumbnail string  `gorm:"type:varchar(2000)"`
	URLMedium    string  `gorm:"type:varchar(2000)"`
	UserID       uint64  `gorm:"not null;index"`
	User         User    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	TenantID     uint64  `gorm:"not null;index"`
	Tenant       Tenant  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	AlbumID      *uint64 `gorm:"index"`
	Album        *Album  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"`
	Public       bool    `gorm:"not null;default:true"`
	CreatedAt    int64   `gorm:"index"`
	UpdatedAt    int64
}

func (a *Asset) IsImage() bool {
	return strings.HasPrefix(a.MimeType, "image/")
}
