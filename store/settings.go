package store

import (
	"errors"

	"gallery/config"
	"gallery/models"

	"gorm.io/gorm"
)

func (s *Store) GetSetting(key string) (string, error) {
	var setting models.Setting
	err := s.db.First(&setting, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return setting.Value, nil
}

func (s *Store) SetSetting(key, value string) error {
	return s.write(func(tx *gorm.DB) error {
		return tx.Save(&models.Setting{Key: key, Value: value}).Error
	})
}

// RemoteCredentials returns the effective remote store endpoint: admin
// settings first, environment fallback second.
func (s *Store) RemoteCredentials() (url, user, pass string) {
	url, _ = s.GetSetting(models.SettingRemoteAPIURL)
	user, _ = s.GetSetting(models.SettingRemoteAPIUser)
	pass, _ = s.GetSetting(models.SettingRemoteAPIPass)
	if url == "" {
		url = config.REMOTE_API_URL
	}
	if user == "" {
		user = config.REMOTE_API_USER
	}
	if pass == "" {
		pass = config.REMOTE_API_PASS
	}
	return url, user, pass
}
