//go:build windows

package platform

import (
	"runtime"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/windows"
)

var procDestroyWindow = moduser32.NewProc("DestroyWindow")

const wsVisible = 0x10000000

func TestWindowSource_TopLevelTitles(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	class, err := windows.UTF16PtrFromString("STATIC")
	require.NoError(t, err)
	title, err := windows.UTF16PtrFromString("Mass Effect Splash")
	require.NoError(t, err)

	hwnd, _, callErr := procCreateWindowExW.Call(0,
		uintptr(unsafe.Pointer(class)), uintptr(unsafe.Pointer(title)),
		wsVisible, 0, 0, 64, 64, 0, 0, 0, 0)
	require.NotZero(t, hwnd, "CreateWindowExW: %v", callErr)
	defer procDestroyWindow.Call(hwnd)

	titles, err := WindowSource{}.TopLevelTitles()
	require.NoError(t, err)
	assert.Contains(t, titles, "Mass Effect Splash")
}
