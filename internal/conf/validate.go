// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"

	"github.com/tphakala/imageclassifier/internal/errors"
)

// ModelNames lists the supported model identifiers in declaration order
var ModelNames = []string{"MobileNetV2", "ResNet50"}

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateModelsSettings(&settings.Models); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateClassifierSettings(&settings.Classifier); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateWebServerSettings(&settings.WebServer); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateMQTTSettings(&settings.MQTT); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateHistorySettings(&settings.History); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if settings.Notify.Enabled && len(settings.Notify.URLs) == 0 {
		ve.Errors = append(ve.Errors, "notify is enabled but no service URLs are set")
	}

	if settings.Sentry.Enabled && settings.Sentry.DSN == "" {
		ve.Errors = append(ve.Errors, "sentry is enabled but no DSN is set")
	}

	// If there are any errors, return the ValidationError
	if len(ve.Errors) > 0 {
		return errors.New(ve).
			Category(errors.CategoryValidation).
			Context("error_count", len(ve.Errors)).
			Build()
	}
	return nil
}

// validateModelsSettings validates per-model settings
func validateModelsSettings(settings *ModelsConfig) error {
	var errs []string

	if settings.MobileNetV2.Threads < 0 {
		errs = append(errs, fmt.Sprintf("models.mobilenetv2.threads must be >= 0, got %d", settings.MobileNetV2.Threads))
	}
	if settings.MobileNetV2.TopN < 1 {
		errs = append(errs, fmt.Sprintf("models.mobilenetv2.topn must be >= 1, got %d", settings.MobileNetV2.TopN))
	}
	if settings.ResNet50.TopN < 1 {
		errs = append(errs, fmt.Sprintf("models.resnet50.topn must be >= 1, got %d", settings.ResNet50.TopN))
	}
	if strings.TrimSpace(settings.ResNet50.InputName) == "" {
		errs = append(errs, "models.resnet50.inputname must not be empty")
	}
	if strings.TrimSpace(settings.ResNet50.OutputName) == "" {
		errs = append(errs, "models.resnet50.outputname must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("model settings errors: %v", errs)
	}
	return nil
}

// validateClassifierSettings validates dispatch settings
func validateClassifierSettings(settings *ClassifierSettings) error {
	var errs []string

	if !slices.Contains(ModelNames, settings.DefaultModel) {
		errs = append(errs, fmt.Sprintf("classifier.defaultmodel %q is not one of %v", settings.DefaultModel, ModelNames))
	}
	if settings.Timeout < 0 {
		errs = append(errs, fmt.Sprintf("classifier.timeout must not be negative, got %s", settings.Timeout))
	}

	if len(errs) > 0 {
		return fmt.Errorf("classifier settings errors: %v", errs)
	}
	return nil
}

// validateWebServerSettings validates the HTTP API settings
func validateWebServerSettings(settings *WebServerSettings) error {
	var errs []string

	if _, _, err := net.SplitHostPort(settings.Listen); err != nil {
		errs = append(errs, fmt.Sprintf("invalid webserver.listen address %q: %v", settings.Listen, err))
	}
	if settings.CacheTTL < 0 {
		errs = append(errs, "webserver.cachettl must not be negative")
	}
	if settings.RequestTimeout <= 0 {
		errs = append(errs, "webserver.requesttimeout must be positive")
	}
	if settings.RateLimit < 0 {
		errs = append(errs, "webserver.ratelimit must not be negative")
	}
	if settings.RateLimit > 0 && settings.RateBurst < 1 {
		errs = append(errs, "webserver.rateburst must be at least 1 when rate limiting is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("webserver settings errors: %v", errs)
	}
	return nil
}

// validateMQTTSettings validates the MQTT-specific settings
func validateMQTTSettings(settings *MQTTSettings) error {
	if !settings.Enabled {
		return nil
	}

	var errs []string

	if settings.Broker == "" {
		errs = append(errs, "MQTT broker URL is required when MQTT is enabled")
	} else if u, err := url.Parse(settings.Broker); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("invalid MQTT broker URL %q", settings.Broker))
	}

	if settings.Topic == "" {
		errs = append(errs, "MQTT topic is required when MQTT is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("MQTT settings errors: %v", errs)
	}
	return nil
}

// validateHistorySettings validates the classification history store settings
func validateHistorySettings(settings *HistorySettings) error {
	if !settings.Enabled {
		return nil
	}

	var errs []string

	switch settings.Type {
	case "sqlite":
		if settings.SQLite.Path == "" {
			errs = append(errs, "SQLite path is required when the sqlite history store is used")
		}
	case "mysql":
		if settings.MySQL.Host == "" || settings.MySQL.Database == "" {
			errs = append(errs, "MySQL host and database are required when the mysql history store is used")
		}
		if settings.MySQL.Port <= 0 || settings.MySQL.Port > 65535 {
			errs = append(errs, fmt.Sprintf("invalid MySQL port %d", settings.MySQL.Port))
		}
	default:
		errs = append(errs, fmt.Sprintf("unsupported history store type %q, must be sqlite or mysql", settings.Type))
	}

	if settings.Limit <= 0 {
		errs = append(errs, "history limit must be greater than zero")
	}

	if len(errs) > 0 {
		return fmt.Errorf("history settings errors: %v", errs)
	}
	return nil
}
