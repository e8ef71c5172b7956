//go:build windows

package platform

import (
	"fmt"
	"sync"
	"syscall"
	"unsafe"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sys/windows"

	"lebinkproxy.dev/proxy/internal/core/domain"
	"lebinkproxy.dev/proxy/internal/core/modules"
)

// bindPatch is the state the replacement UFunction::Bind runs with
var bindPatch struct {
	once     sync.Once
	bind     uintptr
	positive uintptr
	negative uintptr

	mu       sync.RWMutex
	game     domain.Game
	layout   ObjectLayout
	getName  uintptr
	original uintptr
	logger   hclog.Logger
}

// BindPatcher rebinds the shipping-build checks of the script VM
type BindPatcher struct {
	logger hclog.Logger
}

var _ modules.BindPatcher = (*BindPatcher)(nil)

// NewBindPatcher creates the windows patcher
func NewBindPatcher(logger hclog.Logger) *BindPatcher {
	return &BindPatcher{logger: logger.Named("bind")}
}

// Detour implements modules.BindPatcher
func (p *BindPatcher) Detour(game domain.Game, getName uintptr) (uintptr, error) {
	layout, ok := LayoutFor(game)
	if !ok {
		return 0, fmt.Errorf("%w: no object layout for %s", domain.ErrUnsupported, game)
	}
	if getName == 0 {
		return 0, fmt.Errorf("%w: GetName address", domain.ErrNullPointer)
	}

	bindPatch.once.Do(func() {
		bindPatch.bind = windows.NewCallback(hookedBind)
		bindPatch.positive = windows.NewCallback(alwaysTrueNative)
		bindPatch.negative = windows.NewCallback(alwaysFalseNative)
	})

	bindPatch.mu.Lock()
	bindPatch.game = game
	bindPatch.layout = layout
	bindPatch.getName = getName
	bindPatch.original = 0
	bindPatch.logger = p.logger
	bindPatch.mu.Unlock()

	return bindPatch.bind, nil
}

// SetOriginal implements modules.BindPatcher
func (p *BindPatcher) SetOriginal(original uintptr) {
	bindPatch.mu.Lock()
	bindPatch.original = original
	bindPatch.mu.Unlock()
}

// objectName decodes the FName of a UObject through the game's GetName
func objectName(object uintptr) string {
	bindPatch.mu.RLock()
	layout, getName := bindPatch.layout, bindPatch.getName
	bindPatch.mu.RUnlock()

	buf := make([]uint16, layout.NameBufferLen)
	r1, _, _ := syscall.SyscallN(getName, object+layout.NameOffset, uintptr(unsafe.Pointer(&buf[0])))

	var text uintptr
	if layout.NameIndirect {
		text = *(*uintptr)(unsafe.Pointer(&buf[0]))
	} else if r1 != 0 {
		text = *(*uintptr)(unsafe.Pointer(r1))
	}
	if text == 0 {
		return ""
	}
	return windows.UTF16PtrToString((*uint16)(unsafe.Pointer(text)))
}

func hookedBind(function uintptr) uintptr {
	bindPatch.mu.RLock()
	game, layout, original, logger := bindPatch.game, bindPatch.layout, bindPatch.original, bindPatch.logger
	bindPatch.mu.RUnlock()

	if original != 0 {
		syscall.SyscallN(original, function)
	}

	name := objectName(function)
	value, ok := modules.NativeOverride(game, name)
	if !ok {
		return 0
	}

	native := bindPatch.negative
	if value {
		native = bindPatch.positive
	}
	logger.Info("rebinding native", "game", game, "function", name, "address", fmt.Sprintf("%#x", function), "value", value)
	*(*uintptr)(unsafe.Pointer(function + layout.FuncOffset)) = native
	return 0
}

func returnNative(frame, result uintptr, value int64) {
	bindPatch.mu.RLock()
	layout := bindPatch.layout
	bindPatch.mu.RUnlock()

	// skip the end-of-parameters token
	*(*uintptr)(unsafe.Pointer(frame + layout.FrameCodeOffset))++
	*(*int64)(unsafe.Pointer(result)) = value
}

func alwaysTrueNative(object, frame, result uintptr) uintptr {
	returnNative(frame, result, 1)
	return 0
}

func alwaysFalseNative(object, frame, result uintptr) uintptr {
	returnNative(frame, result, 0)
	return 0
}
