//go:build windows

package platform

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"lebinkproxy.dev/proxy/internal/core/gate"
)

// Threads suspends and resumes threads of the current process
type Threads struct {
	pid uint32
}

var _ gate.ThreadController = (*Threads)(nil)

// NewThreads creates a controller for the current process
func NewThreads() *Threads {
	return &Threads{pid: windows.GetCurrentProcessId()}
}

// CurrentThreadID implements gate.ThreadController
func (t *Threads) CurrentThreadID() uint32 {
	return windows.GetCurrentThreadId()
}

// ThreadIDs implements gate.ThreadController
func (t *Threads) ThreadIDs() ([]uint32, error) {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPTHREAD, 0)
	if err != nil {
		return nil, fmt.Errorf("thread snapshot: %w", err)
	}
	defer windows.CloseHandle(snapshot)

	var entry windows.ThreadEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	var ids []uint32
	for err = windows.Thread32First(snapshot, &entry); err == nil; err = windows.Thread32Next(snapshot, &entry) {
		if entry.OwnerProcessID == t.pid {
			ids = append(ids, entry.ThreadID)
		}
	}
	if !errors.Is(err, windows.ERROR_NO_MORE_FILES) {
		return ids, fmt.Errorf("thread walk: %w", err)
	}
	return ids, nil
}

// Suspend implements gate.ThreadController
func (t *Threads) Suspend(id uint32) error {
	thread, err := windows.OpenThread(threadSuspendResume, false, id)
	if err != nil {
		return fmt.Errorf("open thread %d: %w", id, err)
	}
	defer windows.CloseHandle(thread)

	if r1, _, callErr := procSuspendThread.Call(uintptr(thread)); uint32(r1) == 0xFFFFFFFF {
		return fmt.Errorf("suspend thread %d: %w", id, callErr)
	}
	return nil
}

// Resume implements gate.ThreadController
func (t *Threads) Resume(id uint32) error {
	thread, err := windows.OpenThread(threadSuspendResume, false, id)
	if err != nil {
		return fmt.Errorf("open thread %d: %w", id, err)
	}
	defer windows.CloseHandle(thread)

	if _, err := windows.ResumeThread(thread); err != nil {
		return fmt.Errorf("resume thread %d: %w", id, err)
	}
	return nil
}
