package conf

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "IMAGECLASSIFIER"

// envBinding ties a config key to an environment variable. The variable name
// is EnvPrefix + "_" + Name. check may be nil.
type envBinding struct {
	Key   string
	Name  string
	check func(string) error
}

func (b envBinding) envVar() string { return EnvPrefix + "_" + b.Name }

var envBindings = []envBinding{
	{"debug", "DEBUG", checkBool},

	{"models.mobilenetv2.modelpath", "MOBILENETV2_MODELPATH", checkPath},
	{"models.mobilenetv2.labelpath", "MOBILENETV2_LABELPATH", checkPath},
	{"models.mobilenetv2.threads", "MOBILENETV2_THREADS", checkThreads},
	{"models.mobilenetv2.usexnnpack", "MOBILENETV2_USEXNNPACK", checkBool},
	{"models.resnet50.modelpath", "RESNET50_MODELPATH", checkPath},
	{"models.resnet50.labelpath", "RESNET50_LABELPATH", checkPath},
	{"models.resnet50.sharedlibrarypath", "ONNXRUNTIME_LIBRARY", checkPath},

	{"classifier.defaultmodel", "DEFAULT_MODEL", checkModel},
	{"classifier.compare", "COMPARE", checkBool},
	{"classifier.timeout", "TIMEOUT", checkDuration},

	{"webserver.listen", "LISTEN", nil},
	{"metrics.enabled", "METRICS_ENABLED", checkBool},
	{"mqtt.enabled", "MQTT_ENABLED", checkBool},
	{"mqtt.broker", "MQTT_BROKER", nil},
	{"mqtt.username", "MQTT_USERNAME", nil},
	{"mqtt.password", "MQTT_PASSWORD", nil},
	{"history.mysql.password", "HISTORY_MYSQL_PASSWORD", nil},
	{"sentry.enabled", "SENTRY_ENABLED", checkBool},
	{"sentry.dsn", "SENTRY_DSN", nil},
}

// configureEnvironmentVariables enables IMAGECLASSIFIER_* overrides on v.
// Every key is also reachable through AutomaticEnv with dots replaced by
// underscores; envBindings adds short names and value checks. The returned
// error lists bad values, which are still applied.
func configureEnvironmentVariables(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var errs []error
	for _, b := range envBindings {
		name := b.envVar()
		if err := v.BindEnv(b.Key, name); err != nil {
			errs = append(errs, fmt.Errorf("bind %s: %w", name, err))
			continue
		}
		value := os.Getenv(name)
		if value == "" || b.check == nil {
			continue
		}
		if err := b.check(value); err != nil {
			errs = append(errs, fmt.Errorf("%s=%q: %w", name, value, err))
		}
	}
	return errors.Join(errs...)
}

// loadDotEnv reads ./.env when present. Variables already in the
// environment keep their values.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func checkBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return errors.New("not a boolean")
	}
	return nil
}

func checkThreads(value string) error {
	n, err := strconv.Atoi(value)
	switch {
	case err != nil:
		return errors.New("not an integer")
	case n < 0:
		return errors.New("must not be negative")
	}
	return nil
}

func checkModel(value string) error {
	if !slices.Contains(ModelNames, value) {
		return fmt.Errorf("unknown model, expected one of %v", ModelNames)
	}
	return nil
}

func checkDuration(value string) error {
	d, err := time.ParseDuration(value)
	switch {
	case err != nil:
		return errors.New("not a duration")
	case d < 0:
		return errors.New("must not be negative")
	}
	return nil
}

// checkPath flags a missing file. The value is used anyway and model
// loading reports the real error.
func checkPath(value string) error {
	if strings.ContainsRune(value, 0) {
		return errors.New("contains NUL byte")
	}
	if _, err := os.Stat(value); errors.Is(err, fs.ErrNotExist) {
		return errors.New("file does not exist")
	}
	return nil
}
