package models

import (
	"gallery/config"
	"gallery/db"

	"github.com/rs/zerolog/log"
)

func Init() {
	for _, model := range []interface{}{
		&Tenant{},
		&User{},
		&Album{},
		&Asset{},
		&ApiToken{},
		&Setting{},
	} {
		if err := db.Instance.AutoMigrate(model); err != nil {
			log.Fatal().Err(err).Msg("Auto-migrate failed")
		}
	}
	seedDefaults()
}

// seedDefaults provisions the default tenant and, when ADMIN_PASSWORD is set,
// an admin account. The admin password is re-applied on every startup so a
// lost password can be recovered through the environment.
func seedDefaults() {
	var tenant Tenant
	if db.Instance.First(&tenant).Error != nil {
		tenant = Tenant{Name: "Default", Slug: "default"}
		if err := db.Instance.Create(&tenant).Error; err != nil {
			log.Fatal().Err(err).Msg("Creating default tenant failed")
		}
		log.Info().Uint64("tenant", tenant.ID).Msg("Created default tenant")
	}
	if config.ADMIN_PASSWORD == "" {
		return
	}
	var admin User
	err := db.Instance.Where("role = ? AND active = ?", RoleAdmin, true).First(&admin).Error
	if err != nil {
		admin = User{
			TenantID: tenant.ID,
			Username: config.ADMIN_USERNAME,
			Email:    config.ADMIN_EMAIL,
			Role:     RoleAdmin,
			Active:   true,
		}
		admin.SetPassword(config.ADMIN_PASSWORD)
		if err = db.Instance.Create(&admin).Error; err != nil {
			log.Fatal().Err(err).Msg("Creating default admin failed")
		}
		log.Info().Str("username", admin.Username).Msg("Created default admin user")
		return
	}
	admin.SetPassword(config.ADMIN_PASSWORD)
	if err = db.Instance.Save(&admin).Error; err != nil {
		log.Error().Err(err).Msg("Updating admin password failed")
	}
}
