package platform

import (
	"lebinkproxy.dev/proxy/internal/core/domain"
)

// ObjectLayout holds the engine structure offsets the console patch touches
type ObjectLayout struct {
	// NameOffset is where UObject keeps its FName
	NameOffset uintptr
	// FuncOffset is where UFunction keeps its native entry point
	FuncOffset uintptr
	// FrameCodeOffset is where FFrame keeps the script code cursor
	FrameCodeOffset uintptr
	// NameBufferLen is the scratch buffer, in UTF-16 units, GetName writes to
	NameBufferLen int
	// NameIndirect is set when the name pointer is written into the buffer
	// rather than returned
	NameIndirect bool
}

var layouts = map[domain.Game]ObjectLayout{
	domain.GameLE1: {NameOffset: 0x48, FuncOffset: 0xF8, FrameCodeOffset: 0x24, NameBufferLen: 2048},
	domain.GameLE2: {NameOffset: 0x48, FuncOffset: 0xF0, FrameCodeOffset: 0x24, NameBufferLen: 16, NameIndirect: true},
	domain.GameLE3: {NameOffset: 0x48, FuncOffset: 0xD8, FrameCodeOffset: 0x28, NameBufferLen: 16, NameIndirect: true},
}

// LayoutFor returns the structure offsets of a game
func LayoutFor(game domain.Game) (ObjectLayout, bool) {
	layout, ok := layouts[game]
	return layout, ok
}
