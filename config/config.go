package config

import (
	"os"
	"strconv"
	"strings"
)

var (
	TLS_DOMAINS  = "" // e.g. "gallery.example.com,photos.example.com"
	BIND_ADDRESS = "0.0.0.0:8080"
	MYSQL_DSN    = ""           // MySQL will be used if this is set
	SQLITE_FILE  = "gallery.db" // SQLite will be used if MYSQL_DSN is not configured
	REDIS_ADDR   = ""           // Optional asset list cache, e.g. "127.0.0.1:6379"
	DEBUG_MODE   = false
	SESSION_KEY  = "" // Required outside debug mode
	// Remote media store (can be overridden at runtime via admin settings)
	REMOTE_API_URL  = "" // e.g. "https://blog.example.com/wp-json/wp/v2/media"
	REMOTE_API_USER = ""
	REMOTE_API_PASS = ""
	// Initial admin account, created on first startup together with the default tenant
	ADMIN_USERNAME = "admin"
	ADMIN_EMAIL    = "admin@localhost"
	ADMIN_PASSWORD = ""
	// Self-registration into the default tenant; off unless enabled
	ENABLE_REGISTRATION = false
	// Upload limits and task runner bounds
	MAX_UPLOAD_MB         = 16
	UPLOAD_WORKERS        = 4
	TASK_QUEUE_SIZE       = 256
	UPLOAD_WAIT_SECONDS   = 25 // Interactive uploads wait this long before going async
	API_TOKEN_EXPIRY_DAYS = 90
)

func init() {
	readEnvString("TLS_DOMAINS", &TLS_DOMAINS)
	readEnvString("BIND_ADDRESS", &BIND_ADDRESS)
	readEnvString("MYSQL_DSN", &MYSQL_DSN)
	readEnvString("SQLITE_FILE", &SQLITE_FILE)
	readEnvString("REDIS_ADDR", &REDIS_ADDR)
	readEnvBool("DEBUG_MODE", &DEBUG_MODE)
	readEnvString("SESSION_KEY", &SESSION_KEY)
	readEnvString("REMOTE_API_URL", &REMOTE_API_URL)
	readEnvString("REMOTE_API_USER", &REMOTE_API_USER)
	readEnvString("REMOTE_API_PASS", &REMOTE_API_PASS)
	readEnvString("ADMIN_USERNAME", &ADMIN_USERNAME)
	readEnvString("ADMIN_EMAIL", &ADMIN_EMAIL)
	readEnvString("ADMIN_PASSWORD", &ADMIN_PASSWORD)
	readEnvBool("ENABLE_REGISTRATION", &ENABLE_REGISTRATION)
	readEnvInt("MAX_UPLOAD_MB", &MAX_UPLOAD_MB)
	readEnvInt("UPLOAD_WORKERS", &UPLOAD_WORKERS)
	readEnvInt("TASK_QUEUE_SIZE", &TASK_QUEUE_SIZE)
	readEnvInt("UPLOAD_WAIT_SECONDS", &UPLOAD_WAIT_SECONDS)
	readEnvInt("API_TOKEN_EXPIRY_DAYS", &API_TOKEN_EXPIRY_DAYS)
}

func readEnvString(name string, value *string) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	*value = v
}

func readEnvBool(name string, value *bool) {
	v := strings.ToLower(os.Getenv(name))
	if v == "true" || v == "1" || v == "yes" || v == "on" {
		*value = true
	} else if v == "false" || v == "0" || v == "no" || v == "off" {
		*value = false
	}
}

func readEnvInt(name string, value *int) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	f, err := strconv.Atoi(v)
	if err != nil {
		return
	}
	*value = f
}
