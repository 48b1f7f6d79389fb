package models

// Tenant is the isolation boundary. Users, albums and assets all hang off
// exactly one tenant. Tenants are provisioned, never deleted.
type Tenant struct {
	ID        uint64 `gorm:"primaryKey"`
	Name      string `gorm:"type:varchar(100)"`
	Slug      string `gorm:"type:varchar(100);index:uniq_tenant_slug,unique"`
	CreatedAt int64
}
