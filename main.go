package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/spf13/cobra"

	"adbfleet/config"
	"adbfleet/service"
)

// Version is overridden at build time.
var Version = "dev"

// newDispatcher builds the dispatcher used by every command. Tests replace it.
var newDispatcher = service.NewFromConfig

// errDevicesFailed is returned when at least one device did not run cleanly;
// the per-device output has already been printed.
var errDevicesFailed = errors.New("one or more devices failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		if !errors.Is(err, errDevicesFailed) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd.ExecuteContext(ctx)
}

// app holds the state shared by all subcommands.
type app struct {
	configPath string
	serials    []string
	logLevel   string

	cfg    *config.Config
	logger log.Logger
	stderr io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "adbfleet",
		Short:         "Run adb commands on many Android devices at once",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.stderr = cmd.ErrOrStderr()
			return a.setupLogger(a.stderr)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default ./"+config.DefaultFile+")")
	root.PersistentFlags().StringSliceVarP(&a.serials, "device", "s", nil, "target device serial, repeatable (default all attached)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	root.AddCommand(
		newInitCmd(a),
		newDevicesCmd(a),
		newExecCmd(a),
		newShellCmd(a),
		newPushCmd(a),
		newPullCmd(a),
		newInstallCmd(a),
		newUninstallCmd(a),
		newVerbCmd(a, "reboot", "Reboot the devices", (*service.Fleet).Reboot),
		newVerbCmd(a, "remount", "Remount the system partitions read-write", (*service.Fleet).Remount),
		newVerbCmd(a, "root", "Restart adbd with root permissions", (*service.Fleet).Root),
		newVerbCmd(a, "serialno", "Print each device's serial number", (*service.Fleet).GetSerialNo),
		newWaitCmd(a),
		newVersionCmd(a),
		newServerCmd(a, "start-server", "Start the adb server", (*service.Dispatcher).StartServer),
		newServerCmd(a, "kill-server", "Stop the adb server", (*service.Dispatcher).KillServer),
		newLocalizeCmd(a),
		newServeCmd(a),
		newHistoryCmd(a),
	)
	return root
}

// setupLogger builds a logfmt logger on w filtered by --log-level.
func (a *app) setupLogger(w io.Writer) error {
	var opt level.Option
	switch strings.ToLower(a.logLevel) {
	case "debug":
		opt = level.AllowDebug()
	case "info":
		opt = level.AllowInfo()
	case "warn", "warning":
		opt = level.AllowWarn()
	case "error":
		opt = level.AllowError()
	default:
		return fmt.Errorf("unknown log level %q", a.logLevel)
	}
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	a.logger = level.NewFilter(logger, opt)
	return nil
}

// config loads --config, else ./adbfleet.toml when present, else defaults.
func (a *app) config() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	path := a.configPath
	if path == "" {
		if _, err := os.Stat(config.DefaultFile); err != nil {
			a.cfg = config.Default()
			return a.cfg, nil
		}
		path = config.DefaultFile
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	a.cfg = cfg
	return cfg, nil
}

func (a *app) dispatcher(opts ...service.Option) (*service.Dispatcher, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	return newDispatcher(cfg, a.logger, opts...)
}

// fleet returns the handle addressed by --device.
func (a *app) fleet() (*service.Fleet, error) {
	d, err := a.dispatcher()
	if err != nil {
		return nil, err
	}
	return d.Fleet().Subset(a.serials...), nil
}

// setupLogging tees the logger to log/<timestamp>.log. The returned file must
// be closed by the caller.
func (a *app) setupLogging(console io.Writer) (*os.File, error) {
	logDir := "log"
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	logPath := filepath.Join(logDir, timestamp+".log")

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	if err := a.setupLogger(io.MultiWriter(console, logFile)); err != nil {
		logFile.Close()
		return nil, err
	}
	level.Info(a.logger).Log("msg", "logging to file", "path", logPath)
	return logFile, nil
}
