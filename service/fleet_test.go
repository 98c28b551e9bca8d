package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adbfleet/adb"
)

func TestFleetNavigationSharesDispatcher(t *testing.T) {
	inv := &fakeInvoker{}
	d := New(inv, inv)
	fleet := d.Fleet()

	one := fleet.Device("A")
	sub := fleet.Subset("A", "B")

	assert.Same(t, d, one.Dispatcher())
	assert.Same(t, d, sub.Dispatcher())
	assert.False(t, fleet.Scoped())
	assert.True(t, one.Scoped())

	serials, err := sub.Devices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, serials)

	n, err := one.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFleetUnscopedReflectsLiveDevices(t *testing.T) {
	inv := &fakeInvoker{devices: adb.DeviceList{{Serial: "A", State: "device"}}}
	fleet := NewFleet(New(inv, inv))

	n, err := fleet.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	inv.devices = append(inv.devices, adb.Device{Serial: "B", State: "device"})
	serials, err := fleet.Devices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, serials)
}

func TestFleetSubsetDoesNotAliasCaller(t *testing.T) {
	inv := &fakeInvoker{}
	ids := []string{"A", "B"}
	sub := NewFleet(New(inv, inv), ids...)
	ids[0] = "Z"

	serials, err := sub.Devices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, serials)
}

func TestFleetOperations(t *testing.T) {
	cases := []struct {
		name string
		run  func(ctx context.Context, f *Fleet) error
		want []string
	}{
		{"push keeps trailing slash", func(ctx context.Context, f *Fleet) error {
			_, err := f.Push(ctx, "build/app.txt", `sdcard\data/`)
			return err
		}, []string{"push", "build/app.txt", "sdcard/data/"}},
		{"pull", func(ctx context.Context, f *Fleet) error {
			_, err := f.Pull(ctx, "/sdcard/test.txt", "")
			return err
		}, []string{"pull", "/sdcard/test.txt", "."}},
		{"install flags", func(ctx context.Context, f *Fleet) error {
			_, err := f.Install(ctx, "app.apk", InstallOptions{ForwardLock: true, Reinstall: true, SDCard: true})
			return err
		}, []string{"install", "-l", "-r", "-s", "app.apk"}},
		{"uninstall keep data", func(ctx context.Context, f *Fleet) error {
			_, err := f.Uninstall(ctx, "com.example", true)
			return err
		}, []string{"uninstall", "-k", "com.example"}},
		{"uninstall", func(ctx context.Context, f *Fleet) error {
			_, err := f.Uninstall(ctx, "com.example", false)
			return err
		}, []string{"uninstall", "com.example"}},
		{"shell", func(ctx context.Context, f *Fleet) error {
			_, err := f.Shell(ctx, "ls -l '/sdcard/'")
			return err
		}, []string{"shell", "ls -l '/sdcard/'"}},
		{"wait", func(ctx context.Context, f *Fleet) error { return f.WaitForDevice(ctx) }, []string{"wait-for-device"}},
		{"serialno", func(ctx context.Context, f *Fleet) error { _, err := f.GetSerialNo(ctx); return err }, []string{"get-serialno"}},
		{"remount", func(ctx context.Context, f *Fleet) error { _, err := f.Remount(ctx); return err }, []string{"remount"}},
		{"root", func(ctx context.Context, f *Fleet) error { _, err := f.Root(ctx); return err }, []string{"root"}},
		{"reboot", func(ctx context.Context, f *Fleet) error { _, err := f.Reboot(ctx); return err }, []string{"reboot"}},
		{"version", func(ctx context.Context, f *Fleet) error { _, err := f.Version(ctx); return err }, []string{"version"}},
		{"help", func(ctx context.Context, f *Fleet) error { _, err := f.Help(ctx); return err }, []string{"help"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inv := &fakeInvoker{}
			fleet := New(inv, inv).Fleet().Device("X")

			require.NoError(t, tc.run(context.Background(), fleet))
			calls := inv.recorded()
			require.Len(t, calls, 1)
			assert.Equal(t, "X", calls[0].Serial)
			assert.Equal(t, tc.want, calls[0].Args)
		})
	}
}

func TestFleetOne(t *testing.T) {
	ctx := context.Background()
	inv := &fakeInvoker{devices: adb.DeviceList{{Serial: "A", State: "device"}}}
	fleet := New(inv, inv).Fleet()

	one, err := fleet.One(ctx)
	require.NoError(t, err)
	serials, _ := one.Devices(ctx)
	assert.Equal(t, []string{"A"}, serials)

	inv.devices = append(inv.devices, adb.Device{Serial: "B", State: "device"})
	_, err = fleet.One(ctx)
	assert.True(t, errors.Is(err, adb.ErrTooManyDevices))
}

func TestFleetUnsupportedVerbsFailLoudly(t *testing.T) {
	inv := &fakeInvoker{}
	fleet := New(inv, inv).Fleet()
	ctx := context.Background()

	for _, err := range []error{
		fleet.Logcat(ctx),
		fleet.Bugreport(ctx),
		fleet.Jdwp(ctx),
		fleet.Forward(ctx, "tcp:1", "tcp:2"),
		fleet.Listen(ctx),
		fleet.Connect(ctx, "10.0.0.2:5555"),
		fleet.GetState(ctx),
	} {
		var unsupportedErr *adb.UnsupportedOperationError
		require.True(t, errors.As(err, &unsupportedErr))
		assert.True(t, errors.Is(err, adb.ErrUnsupported))
	}
	assert.Empty(t, inv.recorded())
}
