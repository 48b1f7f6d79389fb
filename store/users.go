package store

import (
	"gallery/errs"
	"gallery/models"

	"gorm.io/gorm"
)

func (s *Store) CreateUser(username, email, plainTextPassword string, role models.Role, tenantID uint64) (*models.User, error) {
	user := &models.User{
		TenantID: tenantID,
		Username: username,
		Email:    email,
		Role:     role,
		Active:   true,
	}
	user.SetPassword(plainTextPassword)
	err := s.write(func(tx *gorm.DB) error {
		return tx.Create(user).Error
	})
	if err != nil {
		return nil, translate(err, "user")
	}
	return user, nil
}

// GetActiveUser resolves an active user by id. Deactivated users do not
// resolve - their rows only exist to keep assets attributable.
func (s *Store) GetActiveUser(id uint64) (*models.User, error) {
	var u models.User
	if err := s.db.First(&u, "id = ? AND active = ?", id, true).Error; err != nil {
		return nil, translate(err, "user")
	}
	return &u, nil
}

func (s *Store) GetUserByUsername(username string) (*models.User, error) {
	var u models.User
	if err := s.db.First(&u, "username = ? AND active = ?", username, true).Error; err != nil {
		return nil, translate(err, "user")
	}
	return &u, nil
}

func (s *Store) ListUsers(tenantID *uint64) ([]models.User, error) {
	tx := s.db.Model(&models.User{}).Where("active = ?", true)
	if tenantID != nil {
		tx = tx.Where("tenant_id = ?", *tenantID)
	}
	var users []models.User
	err := tx.Order("username ASC").Find(&users).Error
	return users, err
}

// DeactivateUser clears the active flag. Never a row deletion.
func (s *Store) DeactivateUser(id uint64) error {
	return translate(s.write(func(tx *gorm.DB) error {
		result := tx.Model(&models.User{}).Where("id = ?", id).Update("active", false)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errs.NotFound("user %d not found", id)
		}
		return nil
	}), "user")
}

func (s *Store) GetTenant(id uint64) (*models.Tenant, error) {
	var t models.Tenant
	if err := s.db.First(&t, "id = ?", id).Error; err != nil {
		return nil, translate(err, "tenant")
	}
	return &t, nil
}

// DefaultTenant is the tenant seeded at first startup; self-registered
// accounts land here.
func (s *Store) DefaultTenant() (*models.Tenant, error) {
	var t models.Tenant
	if err := s.db.Order("id ASC").First(&t).Error; err != nil {
		return nil, translate(err, "tenant")
	}
	return &t, nil
}

func (s *Store) CreateTenant(name, slug string) (*models.Tenant, error) {
	tenant := &models.Tenant{Name: name, Slug: slug}
	err := s.write(func(tx *gorm.DB) error {
		return tx.Create(tenant).Error
	})
	if err != nil {
		return nil, translate(err, "tenant")
	}
	return tenant, nil
}
