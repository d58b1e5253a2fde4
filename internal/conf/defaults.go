// conf/defaults.go default values for settings
package conf

import "github.com/spf13/viper"

// setDefaultConfig sets viper defaults for every key Settings unmarshals
// from, so a partially-specified config file (or none at all) still
// produces a runnable server.
func setDefaultConfig() {
	viper.SetDefault("cache_directory", "cache")
	viper.SetDefault("port", 9001)
	viper.SetDefault("audio_device", "")
	viper.SetDefault("gui", false)
}
