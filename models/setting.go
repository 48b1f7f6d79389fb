package models

// Setting rows let admins override remote store credentials at runtime
// without a restart; config env vars act as the fallback.
type Setting struct {
	Key   string `gorm:"primaryKey;type:varchar(100)"`
	Value string `gorm:"type:varchar(2048)"`
}

const (
	SettingRemoteAPIURL  = "remote_api_url"
	SettingRemoteAPIUser = "remote_api_user"
	SettingRemoteAPIPass = "remote_api_pass"
)
