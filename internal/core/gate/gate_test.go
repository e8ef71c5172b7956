package gate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lebinkproxy.dev/proxy/internal/core/domain"
)

var le1 = domain.Target{
	Game:         domain.GameLE1,
	WindowTitle:  "Mass Effect",
	SplashTitles: []string{"Mass Effect Splash"},
}

func TestEvent_Wait(t *testing.T) {
	tests := []struct {
		name     string
		set      bool
		timeout  time.Duration
		cancel   bool
		expected WaitResult
	}{
		{"already set", true, time.Second, false, Signaled},
		{"times out", false, 10 * time.Millisecond, false, TimedOut},
		{"cancelled", false, 0, true, Cancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEvent()
			if tt.set {
				e.Set()
				e.Set()
			}
			ctx, cancel := context.WithCancel(context.Background())
			if tt.cancel {
				cancel()
			} else {
				defer cancel()
			}
			assert.Equal(t, tt.expected, e.Wait(ctx, tt.timeout))
			assert.Equal(t, tt.set, e.IsSet())
		})
	}
}

type fakeWatcher struct {
	mu       sync.Mutex
	onCreate func(string)
	watchErr error
	unwatch  int
}

func (f *fakeWatcher) Watch(onCreate func(string)) error {
	if f.watchErr != nil {
		return f.watchErr
	}
	f.mu.Lock()
	f.onCreate = onCreate
	f.mu.Unlock()
	return nil
}

func (f *fakeWatcher) Unwatch() error {
	f.unwatch++
	return nil
}

func (f *fakeWatcher) create(title string) {
	f.mu.Lock()
	cb := f.onCreate
	f.mu.Unlock()
	cb(title)
}

func TestWaiter_EventMode_SignalsOnMatchingTitle(t *testing.T) {
	for _, title := range []string{"Mass Effect", "Mass Effect Splash"} {
		t.Run(title, func(t *testing.T) {
			watcher := &fakeWatcher{}
			w := NewWaiter(le1, watcher, nil, DefaultOptions(), hclog.NewNullLogger())
			require.NoError(t, w.Arm())

			go func() {
				watcher.create("Some Other Window")
				watcher.create(title)
			}()

			assert.Equal(t, Signaled, w.Wait(context.Background()))
			require.NoError(t, w.Disarm())
			require.NoError(t, w.Disarm())
			assert.Equal(t, 1, watcher.unwatch)
		})
	}
}

func TestWaiter_EventMode_TimeoutIsNonFatal(t *testing.T) {
	watcher := &fakeWatcher{}
	opts := DefaultOptions()
	opts.Timeout = 20 * time.Millisecond
	w := NewWaiter(le1, watcher, nil, opts, hclog.NewNullLogger())
	require.NoError(t, w.Arm())

	watcher.create("Mass Effect 2")
	assert.Equal(t, TimedOut, w.Wait(context.Background()))
}

type fakeSource struct {
	mu     sync.Mutex
	calls  int
	appear int
}

func (f *fakeSource) TopLevelTitles() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.appear > 0 && f.calls >= f.appear {
		return []string{"Desktop", "Mass Effect"}, nil
	}
	return []string{"Desktop"}, nil
}

func TestWaiter_PollMode(t *testing.T) {
	opts := DefaultOptions()
	opts.Mode = ModePoll
	opts.PollInterval = time.Millisecond

	t.Run("finds window", func(t *testing.T) {
		source := &fakeSource{appear: 3}
		w := NewWaiter(le1, nil, source, opts, hclog.NewNullLogger())
		require.NoError(t, w.Arm())
		assert.Equal(t, Signaled, w.Wait(context.Background()))
		assert.Equal(t, 3, source.calls)
	})

	t.Run("bounded", func(t *testing.T) {
		bounded := opts
		bounded.PollTimeout = 20 * time.Millisecond
		w := NewWaiter(le1, nil, &fakeSource{}, bounded, hclog.NewNullLogger())
		assert.Equal(t, TimedOut, w.Wait(context.Background()))
	})

	t.Run("unbounded until cancelled", func(t *testing.T) {
		w := NewWaiter(le1, nil, &fakeSource{}, opts, hclog.NewNullLogger())
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.Equal(t, Cancelled, w.Wait(ctx))
	})
}

func TestWaiter_Arm_FallsBackToPolling(t *testing.T) {
	opts := DefaultOptions()
	opts.PollInterval = time.Millisecond
	w := NewWaiter(le1, &fakeWatcher{watchErr: errors.New("hook failed")}, &fakeSource{appear: 1}, opts, hclog.NewNullLogger())

	assert.Error(t, w.Arm())
	assert.Equal(t, ModePoll, w.Mode())
	assert.Equal(t, Signaled, w.Wait(context.Background()))
	assert.NoError(t, w.Disarm())
}

type fakeThreads struct {
	self      uint32
	ids       []uint32
	failOn    map[uint32]bool
	enumErr   error
	suspended map[uint32]int
	resumed   []uint32
}

func newFakeThreads(self uint32, ids ...uint32) *fakeThreads {
	return &fakeThreads{self: self, ids: ids, failOn: map[uint32]bool{}, suspended: map[uint32]int{}}
}

func (f *fakeThreads) CurrentThreadID() uint32 { return f.self }

func (f *fakeThreads) ThreadIDs() ([]uint32, error) { return f.ids, f.enumErr }
func (f *fakeThreads) Suspend(id uint32) error {
	if f.failOn[id] {
		return errors.New("access denied")
	}
	f.suspended[id]++
	return nil
}
func (f *fakeThreads) Resume(id uint32) error {
	f.resumed = append(f.resumed, id)
	f.suspended[id]--
	return nil
}

func TestFreezeOtherThreads_TracksExactlyWhatItSuspended(t *testing.T) {
	threads := newFakeThreads(2, 1, 2, 3, 4)
	threads.failOn[3] = true

	guard, err := FreezeOtherThreads(threads, hclog.NewNullLogger())
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 4}, guard.Suspended())

	// A thread created during the window is never touched.
	threads.ids = append(threads.ids, 5)

	guard.Release()
	guard.Release()
	assert.Equal(t, []uint32{1, 4}, threads.resumed)
	for id, count := range threads.suspended {
		assert.Zero(t, count, "thread %d", id)
	}
}

func TestFreezeOtherThreads_ReleasedOnEarlyReturn(t *testing.T) {
	threads := newFakeThreads(1, 1, 2, 3)

	patch := func() error {
		guard, err := FreezeOtherThreads(threads, hclog.NewNullLogger())
		if err != nil {
			return err
		}
		defer guard.Release()
		return errors.New("pattern not found")
	}

	assert.Error(t, patch())
	assert.ElementsMatch(t, []uint32{2, 3}, threads.resumed)
}

func TestFreezeOtherThreads_EnumerationFailure(t *testing.T) {
	threads := newFakeThreads(1)
	threads.enumErr = errors.New("snapshot failed")

	guard, err := FreezeOtherThreads(threads, hclog.NewNullLogger())
	assert.Error(t, err)
	assert.Nil(t, guard)
	assert.Empty(t, threads.resumed)
}
