package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"lebinkproxy.dev/proxy/internal/core/domain"
)

func TestLayoutFor(t *testing.T) {
	tests := []struct {
		game     domain.Game
		ok       bool
		funcOff  uintptr
		codeOff  uintptr
		indirect bool
	}{
		{domain.GameLE1, true, 0xF8, 0x24, false},
		{domain.GameLE2, true, 0xF0, 0x24, true},
		{domain.GameLE3, true, 0xD8, 0x28, true},
		{domain.GameLauncher, false, 0, 0, false},
		{domain.GameUnsupported, false, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.game.String(), func(t *testing.T) {
			layout, ok := LayoutFor(tt.game)
			assert.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, uintptr(0x48), layout.NameOffset)
			assert.Equal(t, tt.funcOff, layout.FuncOffset)
			assert.Equal(t, tt.codeOff, layout.FrameCodeOffset)
			assert.Equal(t, tt.indirect, layout.NameIndirect)
			assert.Positive(t, layout.NameBufferLen)
		})
	}
}

func TestErrUnsupported_MapsToUnsupportedCode(t *testing.T) {
	assert.ErrorIs(t, ErrUnsupported, domain.ErrUnsupported)
	assert.Equal(t, domain.FailureUnsupportedYet, domain.CodeOf(ErrUnsupported))
}
