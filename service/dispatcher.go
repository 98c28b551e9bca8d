package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"golang.org/x/sync/errgroup"

	"adbfleet/adb"
	"adbfleet/config"
)

// DefaultWorkers is the pool bound used when none is configured: two
// concurrent adb processes per logical CPU.
func DefaultWorkers() int {
	return 2 * runtime.NumCPU()
}

// Observer is called with every completed dispatch, after the barrier.
// Observers run on the dispatching goroutine and must not mutate the result.
// Their context carries the dispatch values but is never cancelled.
type Observer func(ctx context.Context, cmd adb.Command, result FleetResult)

// Dispatcher fans one command out to a set of devices with bounded
// parallelism and collects the per-device results in target order.
// A Dispatcher is safe for concurrent use and is shared by every Fleet
// handle derived from it.
type Dispatcher struct {
	invoker    adb.Invoker
	enumerator adb.Enumerator
	query      adb.DeviceQuery
	workers    int
	timeout    time.Duration
	wait       bool
	emulator   bool
	observers  []Observer
	logger     log.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithWorkers bounds the number of concurrent invocations. Values below 1
// select DefaultWorkers.
func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n < 1 {
			n = DefaultWorkers()
		}
		d.workers = n
	}
}

// WithTimeout bounds each individual invocation. Zero disables the bound.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) { d.timeout = timeout }
}

// WithWaitForDevice prepends wait-for-device to every dispatched command.
func WithWaitForDevice(wait bool) Option {
	return func(d *Dispatcher) { d.wait = wait }
}

// WithEmulator addresses device-less server invocations to the emulator (-e).
func WithEmulator(emulator bool) Option {
	return func(d *Dispatcher) { d.emulator = emulator }
}

// WithDeviceQuery sets how targets are enumerated when none are given.
func WithDeviceQuery(q adb.DeviceQuery) Option {
	return func(d *Dispatcher) { d.query = q }
}

// WithObserver registers fn to receive every completed dispatch.
func WithObserver(fn Observer) Option {
	return func(d *Dispatcher) { d.observers = append(d.observers, fn) }
}

// WithLogger sets the dispatcher logger.
func WithLogger(logger log.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New builds a Dispatcher from existing collaborators.
func New(invoker adb.Invoker, enumerator adb.Enumerator, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		invoker:    invoker,
		enumerator: enumerator,
		workers:    DefaultWorkers(),
		logger:     log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = log.With(d.logger, "component", "dispatcher")
	return d
}

// NewFromConfig builds a Dispatcher backed by the adb executable named in
// cfg. Extra options are applied after the configured ones.
func NewFromConfig(cfg *config.Config, logger log.Logger, opts ...Option) (*Dispatcher, error) {
	timeout, err := cfg.Bridge.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	client := adb.NewADBClient(cfg.Bridge.ResolvePath(), logger)
	base := []Option{
		WithLogger(logger),
		WithWorkers(cfg.Bridge.Workers),
		WithTimeout(timeout),
		WithWaitForDevice(cfg.Bridge.WaitForDevice),
		WithEmulator(cfg.Bridge.Emulator),
		WithDeviceQuery(adb.DeviceQuery{OnlineOnly: cfg.Bridge.OnlineOnly}),
	}
	return New(client, client, append(base, opts...)...), nil
}

// Workers returns the concurrency bound.
func (d *Dispatcher) Workers() int {
	return d.workers
}

// Devices enumerates the attached devices with the dispatcher's query,
// overridden by q where q asks for more.
func (d *Dispatcher) Devices(ctx context.Context, q adb.DeviceQuery) (adb.DeviceList, error) {
	q.Long = q.Long || d.query.Long
	q.OnlineOnly = q.OnlineOnly || d.query.OnlineOnly
	return d.enumerator.Devices(ctx, q)
}

// resolve returns targets verbatim when given, otherwise the currently
// attached devices. An empty resolution is an *adb.EnumerationError. An
// empty serial would drop the -s selector, so it fails the whole call.
func (d *Dispatcher) resolve(ctx context.Context, targets []string) ([]string, error) {
	if len(targets) > 0 {
		for i, serial := range targets {
			if serial == "" {
				return nil, fmt.Errorf("target %d: %w", i, adb.ErrEmptySerial)
			}
		}
		return targets, nil
	}
	devices, err := d.Devices(ctx, adb.DeviceQuery{})
	if err != nil {
		var enumErr *adb.EnumerationError
		if errors.As(err, &enumErr) {
			return nil, err
		}
		return nil, &adb.EnumerationError{Err: err}
	}
	if len(devices) == 0 {
		return nil, &adb.EnumerationError{Err: adb.ErrNoDevices}
	}
	return devices.Serials(), nil
}

// Dispatch runs cmd once per target device and blocks until every
// invocation has finished. With no targets the currently attached devices
// are used. Per-device failures are reported in the matching Result; only
// call-level failures (enumeration) are returned as an error, and then no
// device has been touched.
//
// Duplicate targets each get their own invocation and their own entry.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd adb.Command, targets []string) (FleetResult, error) {
	serials, err := d.resolve(ctx, targets)
	if err != nil {
		level.Error(d.logger).Log("msg", "target resolution failed", "cmd", cmd.String(), "err", err)
		return FleetResult{}, err
	}

	started := time.Now()
	results := make([]Result, len(serials))

	var g errgroup.Group
	g.SetLimit(d.workers)
	for i, serial := range serials {
		g.Go(func() error {
			results[i] = d.invoke(ctx, cmd.ForDevice(serial).WithWait(cmd.Wait || d.wait))
			return nil
		})
	}
	_ = g.Wait()

	result := FleetResult{results: results}
	failed := result.Failed()
	level.Info(d.logger).Log(
		"msg", "dispatched",
		"cmd", cmd.String(),
		"devices", len(serials),
		"failed", len(failed),
		"took", time.Since(started),
	)
	for _, r := range failed {
		level.Warn(d.logger).Log("msg", "device failed", "device", r.Device, "err", r.Err)
	}

	observeCtx := context.WithoutCancel(ctx)
	for _, observe := range d.observers {
		observe(observeCtx, cmd, result)
	}
	return result, nil
}

// invoke runs one device-scoped command, mapping a per-invocation deadline
// to *adb.TimeoutError.
func (d *Dispatcher) invoke(ctx context.Context, cmd adb.Command) Result {
	invokeCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		invokeCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	out, err := d.invoker.Invoke(invokeCtx, cmd)
	if err != nil && ctx.Err() == nil && errors.Is(invokeCtx.Err(), context.DeadlineExceeded) {
		err = &adb.TimeoutError{Serial: cmd.Serial, Timeout: d.timeout}
	}
	return Result{Device: cmd.Serial, Output: out, Err: err}
}

// Server runs a device-less invocation (start-server, kill-server, version,
// help) exactly once.
func (d *Dispatcher) Server(ctx context.Context, args ...string) (adb.Output, error) {
	cmd := adb.NewCommand(args...)
	cmd.Emulator = d.emulator
	level.Debug(d.logger).Log("msg", "server request", "cmd", cmd.String())
	return d.invoker.Invoke(ctx, cmd)
}

// StartServer asks adb to start its server process.
func (d *Dispatcher) StartServer(ctx context.Context) error {
	_, err := d.Server(ctx, "start-server")
	return err
}

// KillServer asks adb to stop its server process.
func (d *Dispatcher) KillServer(ctx context.Context) error {
	_, err := d.Server(ctx, "kill-server")
	return err
}

// Fleet returns a handle over every attached device.
func (d *Dispatcher) Fleet() *Fleet {
	return &Fleet{dispatcher: d}
}

// Unobserved returns a dispatcher sharing every setting of d except its
// observers. Housekeeping dispatches (device scans) use it so they do not
// show up in history or on the websocket.
func (d *Dispatcher) Unobserved() *Dispatcher {
	c := *d
	c.observers = nil
	return &c
}
