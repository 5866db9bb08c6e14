package config

import (
	"os"
	"path/filepath"
)

// Default configuration values
const (
	DefaultStoriesFile   = "stories.yaml"
	DefaultDataDir       = ".storyplan"
	DefaultDatabaseFile  = "storyplan.db"
	DefaultCapacity      = 10
	DefaultCapacityMode  = "points"
	DefaultAPIPort       = 8080
	DefaultWatchDebounce = 500 // milliseconds
)

// Config holds all application configuration
type Config struct {
	// Paths
	StoriesPath  string
	WorkingDir   string
	DataDir      string
	DatabasePath string

	// Scheduling defaults
	Capacity     int
	CapacityMode string

	// API settings
	APIPort            int
	APIKey             string
	CORSAllowedOrigins []string

	// File watching
	WatchEnabled  bool
	WatchDebounce int // milliseconds
}

// New creates a new Config with default values
func New() *Config {
	wd, _ := os.Getwd()
	dataDir := filepath.Join(wd, DefaultDataDir)

	return &Config{
		StoriesPath:        filepath.Join(wd, DefaultStoriesFile),
		WorkingDir:         wd,
		DataDir:            dataDir,
		DatabasePath:       filepath.Join(dataDir, DefaultDatabaseFile),
		Capacity:           DefaultCapacity,
		CapacityMode:       DefaultCapacityMode,
		APIPort:            DefaultAPIPort,
		CORSAllowedOrigins: []string{"http://localhost:*"},
		WatchEnabled:       false,
		WatchDebounce:      DefaultWatchDebounce,
	}
}

// EnsureDataDir creates the data directory if it does not exist
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0755)
}

// StoriesFileExists checks whether the configured stories file is present
func (c *Config) StoriesFileExists() bool {
	_, err := os.Stat(c.StoriesPath)
	return err == nil
}
