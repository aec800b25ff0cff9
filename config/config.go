package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Config holds the application's configuration values.
type Config struct {
	AppName    string `json:"appname"`
	AppEnv     string `json:"appenv"`
	AppPort    uint16 `json:"appport"`
	GinMode    string `json:"ginmode"`
	DBDriver   string `json:"dbdriver"`
	DBHost     string `json:"dbhost"`
	DBPort     uint16 `json:"dbport"`
	DBName     string `json:"dbname"`
	DBUSER     string `json:"dbuser"`
	DBPass     string `json:"dbpass"`
	DBPath     string `json:"dbpath"`
	JWTSecret  string `json:"-"`
	SessionTTL time.Duration
	// JWTSecretGenerated is true when no JWTSECRET was configured and a
	// per-process secret was generated instead. Sessions do not survive a restart then.
	JWTSecretGenerated bool
	GeoIPDBPath        string
	SentryDSN          string
	AdminUsername      string
	AdminEmail         string
	AdminPassword      string
}

var config *Config
var once sync.Once

// LoadConfig loads the environment variables from a .env file, and returns a singleton Config instance.
func LoadConfig() *Config {
	once.Do(func() {
		// A missing .env is fine, the process environment is used as-is.
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			log.Printf("Error loading .env file: %v", err)
		}

		appPort, _ := strconv.ParseUint(os.Getenv("APPPORT"), 10, 16)
		dbPort, _ := strconv.ParseUint(os.Getenv("DBPORT"), 10, 16)
		ttlMinutes, err := strconv.Atoi(os.Getenv("SESSION_TTL_MINUTES"))
		if err != nil || ttlMinutes <= 0 {
			ttlMinutes = 60
		}
		if appPort == 0 {
			appPort = 8080
		}

		config = &Config{
			AppName:       getEnv("APPNAME", "Hospital Appointment"),
			AppEnv:        os.Getenv("APPENV"),
			AppPort:       uint16(appPort),
			GinMode:       getEnv("GINMODE", "debug"),
			DBDriver:      strings.ToLower(getEnv("DBDRIVER", "mysql")),
			DBHost:        os.Getenv("DBHOST"),
			DBPort:        uint16(dbPort),
			DBName:        os.Getenv("DBNAME"),
			DBUSER:        os.Getenv("DBUSER"),
			DBPass:        os.Getenv("DBPASS"),
			DBPath:        getEnv("DBPATH", "hospital.db"),
			JWTSecret:     os.Getenv("JWTSECRET"),
			SessionTTL:    time.Duration(ttlMinutes) * time.Minute,
			GeoIPDBPath:   os.Getenv("GEOIP_DB_PATH"),
			SentryDSN:     os.Getenv("SENTRY_DSN"),
			AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
			AdminEmail:    getEnv("ADMIN_EMAIL", "admin@example.com"),
			AdminPassword: getEnv("ADMIN_PASSWORD", "adminpass"),
		}

		if config.JWTSecret == "" {
			config.JWTSecret = randomSecret()
			config.JWTSecretGenerated = true
			log.Printf("JWTSECRET not set, generated a per-process secret; sessions will be invalidated on restart")
		}
	})
	return config
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		log.Fatalf("failed to generate session secret: %v", err)
	}
	return hex.EncodeToString(b)
}

// ConnectDatabase opens the ledger store selected by DBDRIVER. When APPENV is
// "test" a shared in-memory sqlite database is returned regardless of driver.
func ConnectDatabase() (*gorm.DB, error) {
	cfg := LoadConfig()
	if os.Getenv("APPENV") == "test" || cfg.AppEnv == "test" {
		return gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	}

	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, err
	}

	return db, nil
}

func dialectorFor(cfg *Config) (gorm.Dialector, error) {
	switch cfg.DBDriver {
	case "", "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", cfg.DBUSER, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		return mysql.Open(dsn), nil
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable", cfg.DBHost, cfg.DBPort, cfg.DBUSER, cfg.DBPass, cfg.DBName)
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(cfg.DBPath), nil
	default:
		return nil, fmt.Errorf("unsupported DBDRIVER %q", cfg.DBDriver)
	}
}
