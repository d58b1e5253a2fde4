// conf/validate.go
package conf

import (
	"fmt"
	"strings"
)

// validateSettings enforces the required-keys and range checks from the
// external configuration contract: cache_directory and port are mandatory,
// and port must fall in the valid TCP range. The gui spellings are handled
// by ParseGUIFlag in Load, not here.
func validateSettings(settings *Settings) error {
	if strings.TrimSpace(settings.CacheDirectory) == "" {
		return fmt.Errorf("conf: cache_directory is required")
	}
	if settings.Port < 1 || settings.Port > 65535 {
		return fmt.Errorf("conf: port %d out of range 1-65535", settings.Port)
	}
	return nil
}

// disabledGUISpellings lists the case-insensitive string values that,
// when present in the gui config key, are treated as "false" even though
// viper would otherwise fail to coerce them to a bool.
var disabledGUISpellings = map[string]bool{
	"off":      true,
	"false":    true,
	"no":       true,
	"disable":  true,
	"disabled": true,
}

// ParseGUIFlag interprets a raw gui config value the way the external
// configuration contract specifies: any of the disabled spellings (any
// case) disables the observer, everything else is left to viper's normal
// bool coercion.
func ParseGUIFlag(raw string) bool {
	return !disabledGUISpellings[strings.ToLower(strings.TrimSpace(raw))]
}
