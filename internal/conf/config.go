// Package conf loads and holds the runtime configuration for the
// photoacoustic core: the audio bus, the declarative processing graph, the
// action-driver subsystem, the Modbus register bridge, and the web API.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yaml
var configFiles embed.FS

// Settings is the root configuration tree, unmarshaled by viper from
// config.yaml, environment variables, and CLI flags (in that precedence
// order, flags winning).
type Settings struct {
	Debug bool // true to enable debug-level logging

	Main struct {
		Name string // identifies this analyzer instance
		Log  LogConfig
	}

	AudioBus struct {
		RingCapacity      int // frame bus ring buffer capacity, default ~1000
		DefaultSampleRate int // Hz, used by simulated/test sources
	}

	Graph struct {
		ConfigPath string // path to the declarative graph configuration document
	}

	Actions ActionsConfig

	Modbus struct {
		Enabled           bool
		RefreshIntervalMs int // how often the register bank is refreshed from shared state
	}

	WebServer struct {
		Enabled bool
		Listen  string // address:port for the read-only API + live websocket
		Log     LogConfig
	}
}

// ActionsConfig holds per-driver configuration blocks for the action
// subsystem.
type ActionsConfig struct {
	HTTP struct {
		Enabled        bool
		URL            string
		AuthToken      string
		Headers        map[string]string
		RetryCount     int
		TimeoutSeconds int
	}
	Redis struct {
		Enabled        bool
		Addr           string
		Password       string
		DB             int
		Mode           string // "pubsub" or "kv"
		Channel        string // used when Mode == "pubsub"
		KeyPrefix      string // used when Mode == "kv"
		TTLSeconds     int    // 0 disables TTL, used when Mode == "kv"
		RetryCount     int
		TimeoutSeconds int
	}
	Kafka struct {
		Enabled           bool
		Brokers           []string
		MeasurementsTopic string
		AlertsTopic       string
		RetryCount        int
		TimeoutSeconds    int
	}
	Interpreter struct {
		Enabled          bool
		ScriptPath       string
		MeasurementFunc  string
		AlertFunc        string
		ClearFunc        string
		TimeoutSeconds   int
	}
}

// LogConfig defines the configuration for a log file.
type LogConfig struct {
	Enabled     bool
	Path        string
	Rotation    RotationType
	MaxSize     int64
	RotationDay time.Weekday
}

// RotationType defines different types of log rotations.
type RotationType string

const (
	RotationDaily  RotationType = "daily"
	RotationWeekly RotationType = "weekly"
	RotationSize   RotationType = "size"
)

var buildDate string

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file, environment variables, and any
// previously bound flags into a fresh Settings instance.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	validateSettings(settings)

	settingsInstance = settings
	return settings, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	fmt.Printf("photoacoustic-go build date: %s, using config file: %s\n", buildDate, viper.ConfigFileUsed())
	return nil
}

// createDefaultConfig writes the embedded default config to the first
// default config path and loads it.
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")
	defaultConfig := getDefaultConfig()

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("Error reading embedded config file: %v", err)
	}
	return string(data)
}

// Setting returns the currently loaded settings, or a zero-value Settings
// if Load has not yet been called (used by packages like logging that
// need read access without threading a *Settings everywhere).
func Setting() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	if settingsInstance == nil {
		return &Settings{}
	}
	return settingsInstance
}

// SetSettingForTest installs settings for use by package-level accessors in
// tests that don't go through Load().
func SetSettingForTest(s *Settings) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	settingsInstance = s
}
