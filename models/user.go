package models

import (
	"gallery/utils"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

const saltSize = 60

type User struct {
	ID       uint64 `gorm:"primaryKey"`
	TenantID uint64 `gorm:"not null;index"`
	Tenant   Tenant `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Username string `gorm:"type:varchar(100);index:uniq_username,unique"`
	Email    string `gorm:"type:varchar(150);index:uniq_user_email,unique"`
	Password string `gorm:"type:varchar(128)"`
	PassSalt string `gorm:"type:varchar(200)"`
	Role     Role   `gorm:"type:varchar(16);not null;default:member"`
	// Deactivated users keep their rows so their assets stay attributable
	Active    bool `gorm:"not null;default:true"`
	CreatedAt int64
	UpdatedAt int64
}

func (u *User) SetPassword(plainTextPassword string) {
	u.PassSalt = utils.RandSalt(saltSize)
	u.Password = utils.Sha512String(plainTextPassword + u.PassSalt)
}

func (u *User) CheckPassword(plainTextPassword string) bool {
	return u.Password == utils.Sha512String(plainTextPassword+u.PassSalt)
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
