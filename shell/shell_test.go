package shell

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adbfleet/adb"
	"adbfleet/service"
)

// recordingInvoker records shell command lines and answers through fn.
type recordingInvoker struct {
	mu      sync.Mutex
	lines   []string
	serials []string
	devices adb.DeviceList
	fn      func(serial, line string) (adb.Output, error)
}

func (r *recordingInvoker) Invoke(_ context.Context, cmd adb.Command) (adb.Output, error) {
	line := ""
	if len(cmd.Args) > 1 {
		line = cmd.Args[1]
	}
	r.mu.Lock()
	r.lines = append(r.lines, line)
	r.serials = append(r.serials, cmd.Serial)
	r.mu.Unlock()
	if r.fn != nil {
		return r.fn(cmd.Serial, line)
	}
	return adb.Output{Stdout: cmd.Serial}, nil
}

func (r *recordingInvoker) Devices(context.Context, adb.DeviceQuery) (adb.DeviceList, error) {
	return r.devices, nil
}

func (r *recordingInvoker) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

func newShell(inv *recordingInvoker, opts ...Option) *Shell {
	return New(service.New(inv, inv, service.WithWorkers(1)).Fleet().Device("X"), opts...)
}

func TestCommandLines(t *testing.T) {
	at := time.Date(2010, 12, 31, 12, 1, 59, 0, time.UTC)
	cases := []struct {
		name string
		run  func(ctx context.Context, s *Shell) (service.FleetResult, error)
		want string
	}{
		{"ls", func(ctx context.Context, s *Shell) (service.FleetResult, error) { return s.Ls(ctx, "/sdcard", false) }, "ls '/sdcard/'"},
		{"ls long keeps one slash", func(ctx context.Context, s *Shell) (service.FleetResult, error) {
			return s.Ls(ctx, `\sdcard\data\`, true)
		}, "ls -l '/sdcard/data/'"},
		{"ls root", func(ctx context.Context, s *Shell) (service.FleetResult, error) { return s.Ls(ctx, "/", false) }, "ls '/'"},
		{"mkdir", func(ctx context.Context, s *Shell) (service.FleetResult, error) { return s.Mkdir(ctx, "/sdcard/new dir") }, "mkdir '/sdcard/new dir'"},
		{"chmod", func(ctx context.Context, s *Shell) (service.FleetResult, error) {
			return s.Chmod(ctx, "/system/bin/tool", "755", false)
		}, "chmod 755 '/system/bin/tool'"},
		{"chmod recursive", func(ctx context.Context, s *Shell) (service.FleetResult, error) {
			return s.Chmod(ctx, "/data/local/", "0744", true)
		}, "chmod -R 0744 '/data/local/'"},
		{"cp", func(ctx context.Context, s *Shell) (service.FleetResult, error) {
			return s.Cp(ctx, "/a", "/b/", CopyOptions{Recursive: true, Force: true})
		}, "cp -r -f '/a' '/b/'"},
		{"mv", func(ctx context.Context, s *Shell) (service.FleetResult, error) { return s.Mv(ctx, "/a", "/b") }, "mv '/a' '/b'"},
		{"rm", func(ctx context.Context, s *Shell) (service.FleetResult, error) {
			return s.Rm(ctx, "/data/it's", RemoveOptions{Force: true})
		}, `rm -f '/data/it'\''s'`},
		{"mount", func(ctx context.Context, s *Shell) (service.FleetResult, error) { return s.Mount(ctx, "/system", true) }, "mount -o rw,remount '/system'"},
		{"cat", func(ctx context.Context, s *Shell) (service.FleetResult, error) { return s.Cat(ctx, "/proc/version") }, "cat '/proc/version'"},
		{"getprop", func(ctx context.Context, s *Shell) (service.FleetResult, error) {
			return s.Getprop(ctx, "persist.sys.timezone")
		}, "getprop persist.sys.timezone"},
		{"setprop", func(ctx context.Context, s *Shell) (service.FleetResult, error) {
			return s.Setprop(ctx, "persist.sys.timezone", "Asia/Seoul")
		}, "setprop persist.sys.timezone 'Asia/Seoul'"},
		{"date", func(ctx context.Context, s *Shell) (service.FleetResult, error) { return s.Date(ctx) }, "date"},
		{"set date", func(ctx context.Context, s *Shell) (service.FleetResult, error) { return s.SetDate(ctx, at) }, "date -s 20101231.120159"},
		{"permissive", func(ctx context.Context, s *Shell) (service.FleetResult, error) { return s.Setenforce(ctx, true) }, "setenforce 0"},
		{"enforcing", func(ctx context.Context, s *Shell) (service.FleetResult, error) { return s.Setenforce(ctx, false) }, "setenforce 1"},
		{"stop", func(ctx context.Context, s *Shell) (service.FleetResult, error) { return s.Stop(ctx) }, "stop"},
		{"start", func(ctx context.Context, s *Shell) (service.FleetResult, error) { return s.Start(ctx) }, "start"},
		{"sleep", func(ctx context.Context, s *Shell) (service.FleetResult, error) { return s.Sleep(ctx, 3) }, "sleep 3"},
		{"echo", func(ctx context.Context, s *Shell) (service.FleetResult, error) { return s.Echo(ctx, "two\nlines") }, `echo 'two\nlines'`},
		{"redirect", func(ctx context.Context, s *Shell) (service.FleetResult, error) {
			return s.Redirect(ctx, "abc", "/sdcard/x.txt", false)
		}, "echo 'abc' > '/sdcard/x.txt'"},
		{"redirect append", func(ctx context.Context, s *Shell) (service.FleetResult, error) {
			return s.Redirect(ctx, "abc", "/sdcard/x.txt", true)
		}, "echo 'abc' >> '/sdcard/x.txt'"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inv := &recordingInvoker{}
			_, err := tc.run(context.Background(), newShell(inv))
			require.NoError(t, err)
			assert.Equal(t, []string{tc.want}, inv.recorded())
		})
	}
}

func TestSuperuserWrapsCommands(t *testing.T) {
	inv := &recordingInvoker{}
	sh := newShell(inv).AsSuperuser()

	_, err := sh.Setprop(context.Background(), "persist.sys.timezone", "Europe/Zurich")
	require.NoError(t, err)
	_, err = sh.Execute(context.Background(), `echo "$HOME"`)
	require.NoError(t, err)

	assert.Equal(t, []string{
		`su -c "setprop persist.sys.timezone 'Europe/Zurich'"`,
		`su -c "echo \"\$HOME\""`,
	}, inv.recorded())
}

func TestEchoAndRedirectNeverElevate(t *testing.T) {
	inv := &recordingInvoker{}
	sh := New(service.New(inv, inv).Fleet().Device("X"), WithSuperuser(true))

	_, err := sh.Echo(context.Background(), "hi")
	require.NoError(t, err)
	_, err = sh.Redirect(context.Background(), "hi", "/sdcard/a", false)
	require.NoError(t, err)

	assert.Equal(t, []string{"echo 'hi'", "echo 'hi' > '/sdcard/a'"}, inv.recorded())
}

func TestSuAlwaysElevatesOnce(t *testing.T) {
	inv := &recordingInvoker{}
	_, err := newShell(inv).AsSuperuser().Su(context.Background(), "id")
	require.NoError(t, err)
	assert.Equal(t, []string{`su -c "id"`}, inv.recorded())
}

func TestInvalidChmodModeDispatchesNothing(t *testing.T) {
	inv := &recordingInvoker{}
	_, err := newShell(inv).Chmod(context.Background(), "/a", "rwx", false)
	require.Error(t, err)
	assert.Empty(t, inv.recorded())
}

func TestNavigation(t *testing.T) {
	inv := &recordingInvoker{devices: adb.DeviceList{{Serial: "A", State: "device"}, {Serial: "B", State: "device"}}}
	sh := New(service.New(inv, inv).Fleet(), WithSuperuser(true))

	n, err := sh.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	sub := sh.Subset("B")
	serials, err := sub.Devices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, serials)
	assert.True(t, sub.Superuser())
	assert.Same(t, sh.Fleet().Dispatcher(), sub.Fleet().Dispatcher())

	result, err := sh.Device("A").Date(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, result.Devices())
}

func TestSuperuserRetriesFailedDevicesOnly(t *testing.T) {
	attempts := map[string]int{}
	var mu sync.Mutex
	inv := &recordingInvoker{fn: func(serial, _ string) (adb.Output, error) {
		mu.Lock()
		defer mu.Unlock()
		attempts[serial]++
		switch {
		case serial == "flaky" && attempts[serial] < 2:
			return adb.Output{ExitCode: 1, Stderr: "su: permission denied"}, nil
		case serial == "broken":
			return adb.Output{}, &adb.SpawnError{Path: "adb", Serial: serial, Err: errors.New("boom")}
		}
		return adb.Output{Stdout: "ok"}, nil
	}}
	fleet := service.New(inv, inv).Fleet().Subset("ok", "flaky", "broken")
	sh := New(fleet, WithSuperuser(true), WithSuperuserRetries(2))

	result, err := sh.Getprop(context.Background(), "ro.secure")
	require.NoError(t, err)

	assert.Equal(t, []string{"ok", "flaky", "broken"}, result.Devices())
	flaky, _ := result.Get("flaky")
	assert.True(t, flaky.OK())
	broken, _ := result.Get("broken")
	assert.ErrorIs(t, broken.Err, adb.ErrSpawn)

	assert.Equal(t, 1, attempts["ok"])
	assert.Equal(t, 2, attempts["flaky"])
	assert.Equal(t, 3, attempts["broken"])
}

func TestNoRetriesByDefault(t *testing.T) {
	inv := &recordingInvoker{fn: func(string, string) (adb.Output, error) {
		return adb.Output{ExitCode: 1}, nil
	}}
	result, err := newShell(inv, WithSuperuser(true)).Stop(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.Failed(), 1)
	assert.Len(t, inv.recorded(), 1)
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `'plain'`, Quote("plain"))
	assert.Equal(t, `'it'\''s'`, Quote("it's"))
	assert.Equal(t, `su -c "ls '/'"`, Su("ls '/'"))
}
