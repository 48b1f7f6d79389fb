package models

// Album nodes form a forest via ParentID. Cycle checks happen in the store,
// inside the same transaction as the reparent write.
type Album struct {
	ID          uint64  `gorm:"primaryKey"`
	TenantID    uint64  `gorm:"not null;index"`
	Tenant      Tenant  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	UserID      uint64  `gorm:"not null;index"`
	User        User    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	ParentID    *uint64 `gorm:"index"`
	Name        string  `gorm:"type:varchar(300)"`
	Description string  `gorm:"type:varchar(2000)"`
	Public      bool    `gorm:"not null;default:true"`
	CreatedAt   int64
	UpdatedAt   int64
}
