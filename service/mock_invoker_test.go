package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"adbfleet/adb"
)

// fakeInvoker is a test double for adb.Invoker and adb.Enumerator.
type fakeInvoker struct {
	mu      sync.Mutex
	calls   []adb.Command
	devices adb.DeviceList
	listErr error

	invokeFn func(ctx context.Context, cmd adb.Command) (adb.Output, error)

	running    atomic.Int32
	maxRunning atomic.Int32
}

func (f *fakeInvoker) Invoke(ctx context.Context, cmd adb.Command) (adb.Output, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	f.mu.Unlock()

	n := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		peak := f.maxRunning.Load()
		if n <= peak || f.maxRunning.CompareAndSwap(peak, n) {
			break
		}
	}

	if f.invokeFn != nil {
		return f.invokeFn(ctx, cmd)
	}
	return adb.Output{Stdout: cmd.Serial + ":" + cmd.Verb()}, nil
}

func (f *fakeInvoker) Devices(_ context.Context, q adb.DeviceQuery) (adb.DeviceList, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if q.OnlineOnly {
		return f.devices.Online(), nil
	}
	return f.devices, nil
}

func (f *fakeInvoker) recorded() []adb.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]adb.Command(nil), f.calls...)
}

// sleepFor returns an invokeFn that sleeps per device before echoing.
func sleepFor(delays map[string]time.Duration) func(context.Context, adb.Command) (adb.Output, error) {
	return func(ctx context.Context, cmd adb.Command) (adb.Output, error) {
		select {
		case <-time.After(delays[cmd.Serial]):
		case <-ctx.Done():
			return adb.Output{}, ctx.Err()
		}
		return adb.Output{Stdout: cmd.Serial}, nil
	}
}

var (
	_ adb.Invoker    = (*fakeInvoker)(nil)
	_ adb.Enumerator = (*fakeInvoker)(nil)
)
