package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds all configuration settings for the application.
type Config struct {
	// Server settings
	ListenAddress string
	ListenPort    string

	// Database settings
	DbFilePath   string
	SaveInterval time.Duration
	EnableBackup bool

	// Upload settings
	UploadsDir string
}

const (
	defaultAddress      = "0.0.0.0"
	defaultPort         = "3001"
	defaultDbFile       = "./database.json" // Relative to working dir
	defaultUploadsDir   = "./uploads"
	defaultSaveInterval = time.Duration(0) // 0 = persist synchronously after every mutation
	defaultEnableBackup = false
)

// LoadConfig loads configuration from defaults, environment variables, and command-line flags.
// Command-line flags take precedence over environment variables, which take precedence over defaults.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	// Use BOOKEXCHANGE_ prefix for environment variables to avoid conflicts
	flag.StringVar(&cfg.ListenAddress, "address", getEnv("BOOKEXCHANGE_LISTEN_ADDRESS", defaultAddress), "Server listen address (Env: BOOKEXCHANGE_LISTEN_ADDRESS)")
	flag.StringVar(&cfg.ListenPort, "port", defaultPort, "Server listen port (Env: BOOKEXCHANGE_LISTEN_PORT)")
	flag.StringVar(&cfg.DbFilePath, "db-file", getEnv("BOOKEXCHANGE_DB_FILE_PATH", defaultDbFile), "Path to the JSON database file (Env: BOOKEXCHANGE_DB_FILE_PATH)")
	flag.StringVar(&cfg.UploadsDir, "uploads-dir", getEnv("BOOKEXCHANGE_UPLOADS_DIR", defaultUploadsDir), "Directory for uploaded cover images (Env: BOOKEXCHANGE_UPLOADS_DIR)")
	saveIntervalStr := flag.String("save-interval", getEnv("BOOKEXCHANGE_SAVE_INTERVAL", defaultSaveInterval.String()), "Debounce interval for saving DB; 0 saves immediately (Env: BOOKEXCHANGE_SAVE_INTERVAL)")
	flag.BoolVar(&cfg.EnableBackup, "enable-backup", getEnvBool("BOOKEXCHANGE_ENABLE_BACKUP", defaultEnableBackup), "Keep a .bak copy of the database before each save (Env: BOOKEXCHANGE_ENABLE_BACKUP)")

	flag.Parse()

	// Explicitly check environment variables to allow them to override defaults
	// for flags that were not provided on the command line.
	envPort := getEnv("BOOKEXCHANGE_LISTEN_PORT", "")
	if cfg.ListenPort == defaultPort && envPort != "" {
		cfg.ListenPort = envPort
	}

	envDbFile := getEnv("BOOKEXCHANGE_DB_FILE_PATH", "")
	if cfg.DbFilePath == defaultDbFile && envDbFile != "" {
		cfg.DbFilePath = envDbFile
	}

	envUploadsDir := getEnv("BOOKEXCHANGE_UPLOADS_DIR", "")
	if cfg.UploadsDir == defaultUploadsDir && envUploadsDir != "" {
		cfg.UploadsDir = envUploadsDir
	}

	envSaveInterval := getEnv("BOOKEXCHANGE_SAVE_INTERVAL", "")
	if *saveIntervalStr == defaultSaveInterval.String() && envSaveInterval != "" {
		if _, err := time.ParseDuration(envSaveInterval); err == nil {
			*saveIntervalStr = envSaveInterval
		} else {
			log.Printf("WARN: Invalid duration in BOOKEXCHANGE_SAVE_INTERVAL: '%s'. Using default/flag value. Error: %v", envSaveInterval, err)
		}
	}

	var err error
	cfg.SaveInterval, err = time.ParseDuration(*saveIntervalStr)
	if err != nil {
		log.Printf("WARN: Invalid save-interval duration '%s'. Using default %s. Error: %v", *saveIntervalStr, defaultSaveInterval, err)
		cfg.SaveInterval = defaultSaveInterval
	}

	// --- Database Path Validation ---
	absDbPath, err := filepath.Abs(cfg.DbFilePath)
	if err != nil {
		return nil, fmt.Errorf("could not determine absolute path for db-file '%s': %w", cfg.DbFilePath, err)
	}
	cfg.DbFilePath = absDbPath

	// The DB file may not exist yet (created on first save), but it must not be a directory.
	fileInfo, err := os.Stat(cfg.DbFilePath)
	if err == nil && fileInfo.IsDir() {
		return nil, fmt.Errorf("database path '%s' points to a directory, not a file", cfg.DbFilePath)
	}

	// --- Uploads Directory Validation ---
	absUploadsDir, err := filepath.Abs(cfg.UploadsDir)
	if err != nil {
		return nil, fmt.Errorf("could not determine absolute path for uploads-dir '%s': %w", cfg.UploadsDir, err)
	}
	cfg.UploadsDir = absUploadsDir

	if fileInfo, err := os.Stat(cfg.UploadsDir); err == nil && !fileInfo.IsDir() {
		return nil, fmt.Errorf("uploads path '%s' points to a file, not a directory", cfg.UploadsDir)
	}

	logConfiguration(cfg)

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvBool retrieves a boolean environment variable or returns a default value.
// Recognizes "true", "1", "yes" (case-insensitive) as true.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		switch strings.ToLower(value) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
		log.Printf("WARN: Invalid boolean value for environment variable %s: '%s'. Using default: %t", key, value, fallback)
	}
	return fallback
}

// logConfiguration prints the loaded configuration settings.
func logConfiguration(cfg *Config) {
	log.Println("--- Configuration ---")
	log.Printf("Server Address: %s", cfg.ListenAddress)
	log.Printf("Server Port: %s", cfg.ListenPort)
	log.Printf("Database File: %s", cfg.DbFilePath)
	log.Printf("Database Save Interval: %s", cfg.SaveInterval)
	log.Printf("Database Backup Enabled: %t", cfg.EnableBackup)
	log.Printf("Uploads Directory: %s", cfg.UploadsDir)
	log.Println("---------------------")
}
