// config.go: configuration structure and loading for imageclassifier
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/imageclassifier/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// MobileNetV2Config holds settings for the TensorFlow Lite MobileNetV2 model
type MobileNetV2Config struct {
	ModelPath  string `yaml:"modelpath" mapstructure:"modelpath"`   // path to .tflite model file
	LabelPath  string `yaml:"labelpath" mapstructure:"labelpath"`   // path to labels file, one label per line
	Threads    int    `yaml:"threads" mapstructure:"threads"`       // interpreter threads, 0 = auto
	UseXNNPACK bool   `yaml:"usexnnpack" mapstructure:"usexnnpack"` // true to use the XNNPACK delegate
	TopN       int    `yaml:"topn" mapstructure:"topn"`             // number of ranked predictions kept
}

// ResNet50Config holds settings for the ONNX Runtime ResNet50 model
type ResNet50Config struct {
	ModelPath         string `yaml:"modelpath" mapstructure:"modelpath"`                 // path to .onnx model file
	LabelPath         string `yaml:"labelpath" mapstructure:"labelpath"`                 // path to labels file
	SharedLibraryPath string `yaml:"sharedlibrarypath" mapstructure:"sharedlibrarypath"` // onnxruntime shared library, empty = platform default
	InputName         string `yaml:"inputname" mapstructure:"inputname"`                 // graph input tensor name
	OutputName        string `yaml:"outputname" mapstructure:"outputname"`               // graph output tensor name
	TopN              int    `yaml:"topn" mapstructure:"topn"`
}

// ModelsConfig groups per-model settings
type ModelsConfig struct {
	MobileNetV2 MobileNetV2Config `yaml:"mobilenetv2" mapstructure:"mobilenetv2"`
	ResNet50    ResNet50Config    `yaml:"resnet50" mapstructure:"resnet50"`
}

// ClassifierSettings controls dispatch behaviour
type ClassifierSettings struct {
	DefaultModel string        `yaml:"defaultmodel" mapstructure:"defaultmodel"` // model used when compare is off
	Compare      bool          `yaml:"compare" mapstructure:"compare"`           // run every model by default
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`           // per-model inference timeout, 0 = none
}

// WebServerSettings configures the HTTP API
type WebServerSettings struct {
	Listen         string        `yaml:"listen" mapstructure:"listen"`                 // listen address, e.g. ":8080"
	CacheTTL       time.Duration `yaml:"cachettl" mapstructure:"cachettl"`             // result cache lifetime, 0 disables caching
	RequestTimeout time.Duration `yaml:"requesttimeout" mapstructure:"requesttimeout"` // max wait for a classification
	RateLimit      float64       `yaml:"ratelimit" mapstructure:"ratelimit"`           // classify requests per second per client, 0 disables
	RateBurst      int           `yaml:"rateburst" mapstructure:"rateburst"`           // classify requests allowed in a burst
}

// MetricsSettings controls the Prometheus endpoint
type MetricsSettings struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// MQTTSettings contains settings for MQTT result publishing
type MQTTSettings struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`   // true to enable MQTT
	Broker   string `yaml:"broker" mapstructure:"broker"`     // MQTT (tcp://host:port)
	Topic    string `yaml:"topic" mapstructure:"topic"`       // MQTT topic
	ClientID string `yaml:"clientid" mapstructure:"clientid"` // client id, empty = generated
	Username string `yaml:"username" mapstructure:"username"` // MQTT username
	Password string `yaml:"password" mapstructure:"password"` // MQTT password
	Retain   bool   `yaml:"retain" mapstructure:"retain"`     // retain published results
}

// SQLiteSettings contains settings for the SQLite history database
type SQLiteSettings struct {
	Path string `yaml:"path" mapstructure:"path"` // database file
}

// MySQLSettings contains settings for the MySQL history database
type MySQLSettings struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
}

// HistorySettings controls persistence of completed classifications
type HistorySettings struct {
	Enabled bool           `yaml:"enabled" mapstructure:"enabled"`
	Type    string         `yaml:"type" mapstructure:"type"`   // sqlite or mysql
	Limit   int            `yaml:"limit" mapstructure:"limit"` // default page size for history queries
	SQLite  SQLiteSettings `yaml:"sqlite" mapstructure:"sqlite"`
	MySQL   MySQLSettings  `yaml:"mysql" mapstructure:"mysql"`
}

// NotifySettings controls push notifications of completed classifications
type NotifySettings struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	URLs    []string      `yaml:"urls" mapstructure:"urls"`       // shoutrrr service URLs
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"` // per-send timeout
}

// SentrySettings controls error telemetry
type SentrySettings struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	DSN     string `yaml:"dsn" mapstructure:"dsn"`
}

// Settings is the root configuration
type Settings struct {
	Debug bool `yaml:"debug" mapstructure:"debug"` // true to enable debug mode

	// Runtime values, not stored in config file
	Version    string `yaml:"-" mapstructure:"-"`
	ConfigFile string `yaml:"-" mapstructure:"-"` // file the settings were read from, empty when defaults only

	Models     ModelsConfig         `yaml:"models" mapstructure:"models"`
	Classifier ClassifierSettings   `yaml:"classifier" mapstructure:"classifier"`
	Logging    logger.LoggingConfig `yaml:"logging" mapstructure:"logging"`
	WebServer  WebServerSettings    `yaml:"webserver" mapstructure:"webserver"`
	Metrics    MetricsSettings      `yaml:"metrics" mapstructure:"metrics"`
	MQTT       MQTTSettings         `yaml:"mqtt" mapstructure:"mqtt"`
	History    HistorySettings      `yaml:"history" mapstructure:"history"`
	Notify     NotifySettings       `yaml:"notify" mapstructure:"notify"`
	Sentry     SentrySettings       `yaml:"sentry" mapstructure:"sentry"`
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads defaults, the configuration file and environment variables into Settings.
// An empty configFile searches the default config paths; a missing file is not an error.
func Load(configFile string) (*Settings, error) {
	v, err := initViper(configFile)
	if err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}
	settings.ConfigFile = v.ConfigFileUsed()

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsMutex.Lock()
	settingsInstance = settings
	settingsMutex.Unlock()

	return settings, nil
}

// initViper creates a viper instance with defaults, config file and environment bindings.
func initViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// Set default values for each configuration parameter
	// function defined in defaults.go
	setDefaultConfig(v)

	// .env is optional; real environment variables win over it
	if err := loadDotEnv(); err != nil {
		GetLogger().Warn("Failed to load .env file", logger.Error(err))
	}

	if err := configureEnvironmentVariables(v); err != nil {
		// Invalid values are reported but do not prevent startup
		GetLogger().Warn("Environment variable configuration issues", logger.Error(err))
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("fatal error reading config file %s: %w", configFile, err)
		}
		return v, nil
	}

	v.SetConfigName("config")
	configPaths := configSearchPaths()
	for _, path := range configPaths {
		v.AddConfigPath(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			GetLogger().Info("No config file found, using defaults",
				logger.Any("search_paths", configPaths))
			return v, nil
		}
		return nil, fmt.Errorf("fatal error reading config file: %w", err)
	}

	return v, nil
}

// GetSettings returns the most recently loaded settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// DefaultConfig returns the commented default configuration file
func DefaultConfig() ([]byte, error) {
	return fs.ReadFile(configFiles, "config.yaml")
}

// WriteDefaultConfig writes the default configuration to configPath, refusing to overwrite.
func WriteDefaultConfig(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s", configPath)
	}

	data, err := DefaultConfig()
	if err != nil {
		return fmt.Errorf("error reading embedded default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o750); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	GetLogger().Info("Created default config file", logger.String("path", configPath))
	return nil
}

// RedactedYAML renders settings as YAML with secrets masked, for display.
func (s *Settings) RedactedYAML() ([]byte, error) {
	masked := *s
	if masked.MQTT.Password != "" {
		masked.MQTT.Password = redactedValue
	}
	if masked.Sentry.DSN != "" {
		masked.Sentry.DSN = redactedValue
	}
	if masked.History.MySQL.Password != "" {
		masked.History.MySQL.Password = redactedValue
	}
	if len(masked.Notify.URLs) > 0 {
		// URLs embed service tokens
		urls := make([]string, len(masked.Notify.URLs))
		for i := range urls {
			urls[i] = redactedValue
		}
		masked.Notify.URLs = urls
	}
	return yaml.Marshal(&masked)
}

const redactedValue = "[REDACTED]"
