package models

// ApiToken stores only a digest of the token value. The raw token is
// generated once, returned to the caller and never persisted.
type ApiToken struct {
	ID         uint64 `gorm:"primaryKey"`
	UserID     uint64 `gorm:"not null;index"`
	User       User   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	TokenHash  string `gorm:"type:varchar(64);index:uniq_token_hash,unique"`
	Name       string `gorm:"type:varchar(64)"`
	ExpiresAt  int64  // unix seconds, 0 means no expiry
	CreatedAt  int64
	LastUsedAt int64
}
