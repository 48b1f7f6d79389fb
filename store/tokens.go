package store

import (
	"time"

	"gallery/errs"
	"gallery/models"
	"gallery/utils"

	"gorm.io/gorm"
)

// CreateApiToken mints a token for the user and returns the raw value.
// Only the digest is stored; the raw token cannot be recovered later.
func (s *Store) CreateApiToken(userID uint64, name string, expiry time.Duration) (string, *models.ApiToken, error) {
	raw := utils.Rand32BytesToBase62()
	token := &models.ApiToken{
		UserID:    userID,
		TokenHash: utils.Sha256String(raw),
		Name:      name,
	}
	if expiry > 0 {
		token.ExpiresAt = time.Now().Add(expiry).Unix()
	}
	err := s.write(func(tx *gorm.DB) error {
		return tx.Create(token).Error
	})
	if err != nil {
		return "", nil, translate(err, "api token")
	}
	return raw, token, nil
}

// GetUserByToken resolves a raw bearer token to its active user, enforcing
// expiry and touching last_used_at.
func (s *Store) GetUserByToken(raw string) (*models.User, error) {
	var token models.ApiToken
	if err := s.db.First(&token, "token_hash = ?", utils.Sha256String(raw)).Error; err != nil {
		return nil, translate(err, "api token")
	}
	if token.ExpiresAt > 0 && token.ExpiresAt <= time.Now().Unix() {
		return nil, errs.NotFound("api token expired")
	}
	user, err := s.GetActiveUser(token.UserID)
	if err != nil {
		return nil, err
	}
	_ = s.write(func(tx *gorm.DB) error {
		return tx.Model(&token).Update("last_used_at", time.Now().Unix()).Error
	})
	return user, nil
}

func (s *Store) ListApiTokens(userID uint64) ([]models.ApiToken, error) {
	var tokens []models.ApiToken
	err := s.db.
		Select("id", "user_id", "name", "expires_at", "created_at", "last_used_at").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&tokens).Error
	return tokens, err
}

// RevokeApiToken deletes a token if it belongs to the user.
func (s *Store) RevokeApiToken(userID, tokenID uint64) error {
	return translate(s.write(func(tx *gorm.DB) error {
		result := tx.Delete(&models.ApiToken{}, "id = ? AND user_id = ?", tokenID, userID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errs.NotFound("api token %d not found", tokenID)
		}
		return nil
	}), "api token")
}
