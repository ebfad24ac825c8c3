package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// AppConfig holds all runtime configuration. Sensitive values never have
// defaults inside code and must come from the config file or the environment.
type AppConfig struct {
	AppPort   string
	SiteURL   string
	JWTSecret string
	GinMode   string

	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string

	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string

	// SMTP for reply notifications
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
	SMTPTLS      bool

	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool

	RateLimitPerMinute int
	AllowedOrigins     []string
	AdminUsernames     []string

	// TrackIPPerPost stores the submitter IP on each post record.
	TrackIPPerPost bool

	UploadsSelfDestructEnabled bool
	UploadsSelfDestructMinutes int
}

var cfg AppConfig
var loaded bool

// Load reads configuration once during boot.
// Precedence: config/config.json -> defaults -> environment overrides.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	if err := loadJSONConfig(filepath.Join("config", "config.json"), &cfg); err != nil {
		log.Fatalf("invalid config file: %v", err)
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set in environment variables")
	}

	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// loadJSONConfig reads a flat JSON object into cfg if the file exists.
// Returns an error only for invalid JSON.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil // missing file is fine
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(out)
}

func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.SiteURL == "" {
		c.SiteURL = "http://localhost:" + c.AppPort
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "3306"
	}
	if c.DBUser == "" {
		c.DBUser = "gobbs"
	}
	if c.DBName == "" {
		c.DBName = "gobbs"
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.SMTPPort == 0 {
		c.SMTPPort = 587
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogPath == "" {
		c.LogPath = "logs/gobbs.log"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.UploadsSelfDestructMinutes == 0 {
		c.UploadsSelfDestructMinutes = 60
	}
}

func applyEnvOverrides(c *AppConfig) {
	setStr := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setBool := func(dst *bool, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v == "1" || strings.EqualFold(v, "true")
		}
	}
	setList := func(dst *[]string, key string) {
		if v := os.Getenv(key); v != "" {
			parts := strings.Split(v, ",")
			out := make([]string, 0, len(parts))
			for _, p := range parts {
				if p = strings.TrimSpace(p); p != "" {
					out = append(out, p)
				}
			}
			*dst = out
		}
	}

	setStr(&c.AppPort, "APP_PORT")
	setStr(&c.SiteURL, "SITE_URL")
	setStr(&c.JWTSecret, "JWT_SECRET")
	setStr(&c.GinMode, "GIN_MODE")
	setStr(&c.DatabaseURI, "DATABASE_URI")
	setStr(&c.DBHost, "DB_HOST")
	setStr(&c.DBPort, "DB_PORT")
	setStr(&c.DBUser, "DB_USER")
	setStr(&c.DBPassword, "DB_PASSWORD")
	setStr(&c.DBName, "DB_NAME")
	setStr(&c.RedisHost, "REDIS_HOST")
	setInt(&c.RedisPort, "REDIS_PORT")
	setInt(&c.RedisDB, "REDIS_DB")
	setStr(&c.RedisPassword, "REDIS_PASSWORD")
	setStr(&c.SMTPHost, "SMTP_HOST")
	setInt(&c.SMTPPort, "SMTP_PORT")
	setStr(&c.SMTPUsername, "SMTP_USERNAME")
	setStr(&c.SMTPPassword, "SMTP_PASSWORD")
	setStr(&c.SMTPFrom, "SMTP_FROM")
	setStr(&c.SMTPFromName, "SMTP_FROM_NAME")
	setBool(&c.SMTPTLS, "SMTP_TLS")
	setStr(&c.LogLevel, "LOG_LEVEL")
	setStr(&c.LogPath, "LOG_PATH")
	setInt(&c.LogMaxSizeMB, "LOG_MAX_SIZE_MB")
	setInt(&c.LogMaxBackups, "LOG_MAX_BACKUPS")
	setInt(&c.LogMaxAgeDays, "LOG_MAX_AGE_DAYS")
	setBool(&c.LogCompress, "LOG_COMPRESS")
	setInt(&c.RateLimitPerMinute, "RATE_LIMIT_PER_MINUTE")
	setList(&c.AllowedOrigins, "ALLOWED_ORIGINS")
	setList(&c.AdminUsernames, "ADMIN_USERNAMES")
	setBool(&c.TrackIPPerPost, "TRACK_IP_PER_POST")
	setBool(&c.UploadsSelfDestructEnabled, "UPLOADS_SELF_DESTRUCT_ENABLED")
	setInt(&c.UploadsSelfDestructMinutes, "UPLOADS_SELF_DESTRUCT_MINUTES")
}
