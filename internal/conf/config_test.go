package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSettingsRequiresCacheDirectory(t *testing.T) {
	err := validateSettings(&Settings{Port: 9001})
	assert.Error(t, err)
}

func TestValidateSettingsRequiresValidPort(t *testing.T) {
	err := validateSettings(&Settings{CacheDirectory: "cache", Port: 0})
	assert.Error(t, err)

	err = validateSettings(&Settings{CacheDirectory: "cache", Port: 70000})
	assert.Error(t, err)

	err = validateSettings(&Settings{CacheDirectory: "cache", Port: 9001})
	assert.NoError(t, err)
}

func TestParseGUIFlag(t *testing.T) {
	for _, raw := range []string{"off", "OFF", "false", "no", "disable", "disabled", " Disabled "} {
		assert.False(t, ParseGUIFlag(raw), "expected %q to disable the GUI", raw)
	}
	for _, raw := range []string{"on", "true", "yes", ""} {
		assert.True(t, ParseGUIFlag(raw), "expected %q to leave the GUI enabled", raw)
	}
}
