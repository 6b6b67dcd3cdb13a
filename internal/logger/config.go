package logger

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	DefaultLevel string            `yaml:"defaultlevel" mapstructure:"defaultlevel" json:"default_level"` // default log level for all modules
	Timezone     string            `yaml:"timezone" mapstructure:"timezone" json:"timezone"`             // "Local", "UTC", or IANA name like "Europe/Helsinki"
	Console      *ConsoleOutput    `yaml:"console" mapstructure:"console" json:"console"`                // console output configuration
	FileOutput   *FileOutput       `yaml:"fileoutput" mapstructure:"fileoutput" json:"file_output"`      // file output configuration
	ModuleLevels map[string]string `yaml:"modulelevels" mapstructure:"modulelevels" json:"module_levels"` // per-module log levels
}

// ConsoleOutput represents console logging configuration.
// Console output uses human-readable text format without timestamps;
// journald or Docker add them.
type ConsoleOutput struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled" json:"enabled"`
	Level   string `yaml:"level" mapstructure:"level" json:"level"`
}

// FileOutput represents file logging configuration.
// File output uses JSON format for log aggregation systems.
type FileOutput struct {
	Enabled         bool   `yaml:"enabled" mapstructure:"enabled" json:"enabled"`
	Path            string `yaml:"path" mapstructure:"path" json:"path"`
	MaxSize         int    `yaml:"maxsize" mapstructure:"maxsize" json:"max_size"`                         // megabytes before rotation
	MaxAge          int    `yaml:"maxage" mapstructure:"maxage" json:"max_age"`                            // days to keep rotated logs (0 = no limit)
	MaxRotatedFiles int    `yaml:"maxrotatedfiles" mapstructure:"maxrotatedfiles" json:"max_rotated_files"` // 0 = no limit
	Compress        bool   `yaml:"compress" mapstructure:"compress" json:"compress"`
	Level           string `yaml:"level" mapstructure:"level" json:"level"`
}

// Default values for logging configuration.
// These match the defaults in conf/defaults.go.
const (
	DefaultLogLevel        = "info"
	DefaultLogPath         = "logs/imageclassifier.log"
	DefaultMaxSize         = 100
	DefaultMaxAge          = 30
	DefaultMaxRotatedFiles = 10
	DefaultConsoleEnabled  = true
	DefaultFileEnabled     = false
)

// applyConfigDefaults fills nil sections so a partial config still logs somewhere.
func applyConfigDefaults(cfg *LoggingConfig) {
	if cfg == nil {
		return
	}

	if cfg.DefaultLevel == "" {
		cfg.DefaultLevel = DefaultLogLevel
	}

	if cfg.Console == nil {
		cfg.Console = &ConsoleOutput{
			Enabled: DefaultConsoleEnabled,
			Level:   cfg.DefaultLevel,
		}
	}

	if cfg.FileOutput == nil {
		cfg.FileOutput = &FileOutput{
			Enabled:         DefaultFileEnabled,
			Path:            DefaultLogPath,
			Level:           cfg.DefaultLevel,
			MaxSize:         DefaultMaxSize,
			MaxAge:          DefaultMaxAge,
			MaxRotatedFiles: DefaultMaxRotatedFiles,
		}
	}
}
