package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidator_ValidateExtension(t *testing.T) {
	validator := NewConfigValidator()

	tests := []struct {
		name    string
		ext     string
		wantErr bool
	}{
		{name: "asi", ext: ".asi"},
		{name: "dll", ext: ".DLL"},
		{name: "empty", ext: "", wantErr: true},
		{name: "dot_only", ext: ".", wantErr: true},
		{name: "no_dot", ext: "asi", wantErr: true},
		{name: "double_dot", ext: ".asi.bak", wantErr: true},
		{name: "separator", ext: `.a\b`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateExtension(tt.ext)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigValidator_ValidateGateTimeout(t *testing.T) {
	validator := NewConfigValidator()

	assert.NoError(t, validator.ValidateGateTimeout(time.Second))
	assert.NoError(t, validator.ValidateGateTimeout(300*time.Second))
	assert.Error(t, validator.ValidateGateTimeout(999*time.Millisecond))
	assert.Error(t, validator.ValidateGateTimeout(301*time.Second))
}

func TestConfigValidator_Validate_ReportsEveryProblem(t *testing.T) {
	config := emptyRepo("").LoadDefault()
	config.GateMode = "spin"
	config.MaxPluginFiles = 0
	config.PollTimeout = -time.Second

	err := NewConfigValidator().Validate(config)
	assert.ErrorContains(t, err, "gate mode")
	assert.ErrorContains(t, err, "max plugin files")
	assert.ErrorContains(t, err, "poll timeout")
}

func TestConfigValidator_Validate_Nil(t *testing.T) {
	assert.Error(t, NewConfigValidator().Validate(nil))
}
