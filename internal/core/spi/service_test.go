package spi

import (
	"errors"
	"sync"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"lebinkproxy.dev/proxy/internal/core/domain"
	"lebinkproxy.dev/proxy/internal/core/handshake"
	"lebinkproxy.dev/proxy/internal/core/hooks"
	"lebinkproxy.dev/proxy/internal/core/scanner"
)

type fakeConsole struct {
	mu     sync.Mutex
	opens  int
	closes int
	open   bool
	err    error
}

func (c *fakeConsole) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.opens++
	c.open = true
	return nil
}

func (c *fakeConsole) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	c.open = false
	return nil
}

type fakeDetourer struct {
	next uintptr
}

func (d *fakeDetourer) Initialize() error { return nil }

func (d *fakeDetourer) Uninitialize() error { return nil }
func (d *fakeDetourer) CreateHook(target, detour uintptr) (uintptr, error) {
	d.next++
	return 0x9000 + d.next, nil
}
func (d *fakeDetourer) EnableHook(target uintptr) error { return nil }

func (d *fakeDetourer) RemoveHook(target uintptr) error { return nil }

func newTestService(t *testing.T, console Console) *Service {
	t.Helper()

	logger := hclog.NewNullLogger()
	image := []byte{0x00, 0x11, 0x48, 0x8B, 0xC4, 0x55, 0x41, 0x56, 0x00}
	scan := scanner.New(scanner.StaticImage{Base: 0x140000000, Bytes: image}, logger)

	manager := hooks.NewManager(&fakeDetourer{}, logger)
	require.NoError(t, manager.Initialize())

	host := domain.HostContext{Target: domain.Target{Game: domain.GameLE2}, PID: 10}
	return NewService(host, scan, manager, console, logger)
}

func TestService_Queries(t *testing.T) {
	svc := newTestService(t, &fakeConsole{})

	assert.Equal(t, uint32(3), svc.Version())
	assert.Equal(t, domain.BuildMode, svc.BuildMode())
	assert.Equal(t, domain.GameLE2, svc.HostGame())
}

func TestService_FindPattern(t *testing.T) {
	svc := newTestService(t, &fakeConsole{})

	tests := []struct {
		name        string
		pattern     string
		expected    uintptr
		expectedErr error
	}{
		{"exact", "48 8B C4 55", 0x140000002, nil},
		{"wildcard", "48 ?? C4 55 41", 0x140000002, nil},
		{"absent", "48 8B C4 56", 0, domain.ErrPatternMissing},
		{"malformed token", "48 8BC4", 0, domain.ErrPatternInvalid},
		{"non hex", "48 ZZ", 0, domain.ErrPatternInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := svc.FindPattern(tt.pattern)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, addr)
		})
	}
}

func TestService_Hooks_NameUniqueness(t *testing.T) {
	svc := newTestService(t, &fakeConsole{})

	original, err := svc.InstallHook("X", 0x1000, 0x2000)
	require.NoError(t, err)
	assert.NotZero(t, original)

	_, err = svc.InstallHook("X", 0x3000, 0x4000)
	assert.Equal(t, domain.FailureDuplicacy, domain.CodeOf(err))

	assert.ErrorIs(t, svc.UninstallHook("never"), domain.ErrHookNotFound)
	require.NoError(t, svc.UninstallHook("X"))

	_, err = svc.InstallHook("X", 0x1000, 0x2000)
	assert.NoError(t, err)
}

func TestService_SharedConsole_RefCounting(t *testing.T) {
	console := &fakeConsole{}
	svc := newTestService(t, console)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.OpenSharedConsole())
	}
	assert.Equal(t, 1, console.opens)

	require.NoError(t, svc.CloseSharedConsole())
	require.NoError(t, svc.CloseSharedConsole())
	assert.True(t, console.open)
	assert.Equal(t, 0, console.closes)

	require.NoError(t, svc.CloseSharedConsole())
	assert.False(t, console.open)
	assert.Equal(t, 1, console.closes)

	require.NoError(t, svc.CloseSharedConsole())
	assert.Equal(t, 0, svc.ConsoleRefs())
	assert.Equal(t, 1, console.closes)

	require.NoError(t, svc.OpenSharedConsole())
	assert.Equal(t, 2, console.opens)
	assert.Equal(t, 1, svc.ConsoleRefs())
}

func TestService_SharedConsole_OpenFailureKeepsCount(t *testing.T) {
	console := &fakeConsole{err: errors.New("no console")}
	svc := newTestService(t, console)

	assert.Error(t, svc.OpenSharedConsole())
	assert.Equal(t, 0, svc.ConsoleRefs())
}

func TestService_SharedConsole_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		console := &fakeConsole{}
		svc := newTestService(t, console)

		refs := 0
		ops := rapid.SliceOf(rapid.Bool()).Draw(rt, "ops")
		for _, open := range ops {
			if open {
				require.NoError(rt, svc.OpenSharedConsole())
				refs++
			} else {
				require.NoError(rt, svc.CloseSharedConsole())
				if refs > 0 {
					refs--
				}
			}
			assert.Equal(rt, refs, svc.ConsoleRefs())
			assert.Equal(rt, refs > 0, console.open)
		}
	})
}

func TestService_ConcurrentHookInstall(t *testing.T) {
	svc := newTestService(t, &fakeConsole{})

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.InstallHook("shared", 0x1000, 0x2000)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, domain.ErrDuplicateHook)
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestHandleTable_AcquireThroughHandshake(t *testing.T) {
	svc := newTestService(t, &fakeConsole{})
	table := NewHandleTable()
	handle := table.Register(svc)

	mapper := handshake.NewMemoryMapper()
	broker := handshake.NewBroker(mapper, domain.HostContext{Target: domain.Target{Game: domain.GameLE2}, PID: 10}, hclog.NewNullLogger())
	_, err := broker.Create(handle)
	require.NoError(t, err)

	got, err := Acquire(table, mapper, 10, 2, domain.GameLE2, "SamplePlugin", "Someone", hclog.NewNullLogger())
	require.NoError(t, err)
	assert.Same(t, svc, got)

	table.Unregister(handle)
	_, err = Acquire(table, mapper, 10, 2, domain.GameLE2, "SamplePlugin", "Someone", hclog.NewNullLogger())
	assert.ErrorIs(t, err, domain.ErrNullPointer)
}
