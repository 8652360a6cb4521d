// conf/defaults.go default values for settings
package conf

import "github.com/spf13/viper"

// setDefaultConfig sets viper defaults for every configuration key before
// the config file and environment variables are merged in.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "photoacoustic-go")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/application.log")
	viper.SetDefault("main.log.rotation", "daily")
	viper.SetDefault("main.log.maxsize", 10*1024*1024)

	viper.SetDefault("audiobus.ringcapacity", 1000)
	viper.SetDefault("audiobus.defaultsamplerate", 44100)

	viper.SetDefault("graph.configpath", "graph.yaml")

	viper.SetDefault("actions.http.enabled", false)
	viper.SetDefault("actions.http.retrycount", 3)
	viper.SetDefault("actions.http.timeoutseconds", 5)

	viper.SetDefault("actions.redis.enabled", false)
	viper.SetDefault("actions.redis.addr", "localhost:6379")
	viper.SetDefault("actions.redis.mode", "pubsub")
	viper.SetDefault("actions.redis.channel", "photoacoustic.measurements")
	viper.SetDefault("actions.redis.keyprefix", "photoacoustic:")
	viper.SetDefault("actions.redis.retrycount", 3)
	viper.SetDefault("actions.redis.timeoutseconds", 5)

	viper.SetDefault("actions.kafka.enabled", false)
	viper.SetDefault("actions.kafka.measurementstopic", "photoacoustic.measurements")
	viper.SetDefault("actions.kafka.alertstopic", "photoacoustic.alerts")
	viper.SetDefault("actions.kafka.retrycount", 3)
	viper.SetDefault("actions.kafka.timeoutseconds", 5)

	viper.SetDefault("actions.interpreter.enabled", false)
	viper.SetDefault("actions.interpreter.measurementfunc", "on_measurement")
	viper.SetDefault("actions.interpreter.alertfunc", "on_alert")
	viper.SetDefault("actions.interpreter.clearfunc", "on_clear")
	viper.SetDefault("actions.interpreter.timeoutseconds", 5)

	viper.SetDefault("modbus.enabled", false)
	viper.SetDefault("modbus.refreshintervalms", 1000)

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.listen", ":8090")
	viper.SetDefault("webserver.log.enabled", true)
	viper.SetDefault("webserver.log.path", "logs/webserver.log")
	viper.SetDefault("webserver.log.rotation", "daily")
}
