// conf/config.go
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

	"github.com/spf13/viper"
)

//go:embed config.yaml
var configFiles embed.FS

// Settings holds the server's bootstrap configuration, loaded once before
// any network activity starts. The wire protocol and scene state have no
// configuration surface of their own; everything tunable lives here.
type Settings struct {
	// CacheDirectory is where uploaded/pre-staged audio files are read from
	// and PTFI uploads are written to. Required.
	CacheDirectory string `mapstructure:"cache_directory"`

	// Port is the TCP port the listener binds to. Required, 1-65535.
	Port int `mapstructure:"port"`

	// AudioDevice is a renderer-specific device name. Empty selects the
	// platform default output device.
	AudioDevice string `mapstructure:"audio_device"`

	// GUI enables the optional observer callback. Accepts the usual
	// truthy/falsy strings from the config file; see ParseGUIFlag.
	GUI bool `mapstructure:"gui"`
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file (creating one with defaults if none
// exists) and returns the validated Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	// gui also accepts the disabled spellings ParseGUIFlag recognizes,
	// which viper's own bool coercion would reject.
	viper.Set("gui", ParseGUIFlag(viper.GetString("gui")))

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := validateSettings(settings); err != nil {
		return nil, err
	}

	settingsInstance = settings
	return settings, nil
}

func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("OAS")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	fmt.Printf("oasd: using config file %s\n", viper.ConfigFileUsed())
	return nil
}

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
	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil { //nolint:gosec // config file, not a secret
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("oasd: created default config file at", configPath)
	return viper.ReadInConfig()
}

func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("error reading embedded default config: %v", err)
	}
	return string(data)
}

// GetSettings returns the current settings instance, or nil if Load has
// not yet succeeded.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, loading it on first use.
// Exits the process via log.Fatalf if loading fails, matching the server's fatal
// config-error policy.
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			if _, err := Load(); err != nil {
				log.Fatalf("error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}
