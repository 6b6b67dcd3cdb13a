// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/imageclassifier/internal/logger"
)

// Default values shared with validation and the CLI
const (
	DefaultModel          = "MobileNetV2"
	DefaultTopN           = 5
	DefaultONNXInputName  = "input"
	DefaultONNXOutputName = "output"
	DefaultListenAddress  = ":8080"
	DefaultMQTTTopic      = "imageclassifier/results"
	DefaultHistoryLimit   = 50
	DefaultSQLitePath     = "data/history.db"
)

// Sets default values for the configuration.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("models.mobilenetv2.modelpath", "models/mobilenet_v2_1.0_224.tflite")
	v.SetDefault("models.mobilenetv2.labelpath", "models/mobilenet_v2_labels.txt")
	v.SetDefault("models.mobilenetv2.threads", 0)
	v.SetDefault("models.mobilenetv2.usexnnpack", true)
	v.SetDefault("models.mobilenetv2.topn", DefaultTopN)

	v.SetDefault("models.resnet50.modelpath", "models/resnet50-v2-7.onnx")
	v.SetDefault("models.resnet50.labelpath", "models/imagenet_labels.txt")
	v.SetDefault("models.resnet50.sharedlibrarypath", "")
	v.SetDefault("models.resnet50.inputname", DefaultONNXInputName)
	v.SetDefault("models.resnet50.outputname", DefaultONNXOutputName)
	v.SetDefault("models.resnet50.topn", DefaultTopN)

	v.SetDefault("classifier.defaultmodel", DefaultModel)
	v.SetDefault("classifier.compare", false)
	v.SetDefault("classifier.timeout", time.Duration(0))

	v.SetDefault("logging.defaultlevel", logger.DefaultLogLevel)
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", logger.DefaultConsoleEnabled)
	v.SetDefault("logging.console.level", logger.DefaultLogLevel)
	v.SetDefault("logging.fileoutput.enabled", logger.DefaultFileEnabled)
	v.SetDefault("logging.fileoutput.path", logger.DefaultLogPath)
	v.SetDefault("logging.fileoutput.maxsize", logger.DefaultMaxSize)
	v.SetDefault("logging.fileoutput.maxage", logger.DefaultMaxAge)
	v.SetDefault("logging.fileoutput.maxrotatedfiles", logger.DefaultMaxRotatedFiles)
	v.SetDefault("logging.fileoutput.compress", false)
	v.SetDefault("logging.fileoutput.level", logger.DefaultLogLevel)

	v.SetDefault("webserver.listen", DefaultListenAddress)
	v.SetDefault("webserver.cachettl", 5*time.Minute)
	v.SetDefault("webserver.requesttimeout", 30*time.Second)
	v.SetDefault("webserver.ratelimit", 0.0)
	v.SetDefault("webserver.rateburst", 5)

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic", DefaultMQTTTopic)
	v.SetDefault("mqtt.clientid", "")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.retain", false)

	v.SetDefault("history.enabled", false)
	v.SetDefault("history.type", "sqlite")
	v.SetDefault("history.limit", DefaultHistoryLimit)
	v.SetDefault("history.sqlite.path", DefaultSQLitePath)
	v.SetDefault("history.mysql.host", "localhost")
	v.SetDefault("history.mysql.port", 3306)
	v.SetDefault("history.mysql.username", "")
	v.SetDefault("history.mysql.password", "")
	v.SetDefault("history.mysql.database", "imageclassifier")

	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.urls", []string{})
	v.SetDefault("notify.timeout", 10*time.Second)

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
}
