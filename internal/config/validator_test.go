package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateLogLevel(t *testing.T) {
	v := NewValidator()
	for _, level := range []string{"debug", "info", "warn", "error"} {
		assert.NoError(t, v.ValidateLogLevel(level), level)
	}
	assert.Error(t, v.ValidateLogLevel("trace"))
	assert.Error(t, v.ValidateLogLevel(""))
}

func TestValidateSecurityLevel(t *testing.T) {
	v := NewValidator()
	assert.NoError(t, v.ValidateSecurityLevel("PUBLIC"))
	assert.NoError(t, v.ValidateSecurityLevel("high"))
	assert.Error(t, v.ValidateSecurityLevel("superuser"))
}

func TestValidateAddr(t *testing.T) {
	v := NewValidator()
	assert.NoError(t, v.ValidateAddr("127.0.0.1:9464"))
	assert.NoError(t, v.ValidateAddr(":9464"))
	assert.Error(t, v.ValidateAddr("localhost"))
}
