package service

import (
	"context"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"adbfleet/adb"
	"adbfleet/models"
)

// Shell commands used to enrich the device snapshot.
const (
	propAndroidVersion = "getprop ro.build.version.release"
	propHardwareSerial = "getprop ro.serialno"
	cmdScreenSize      = "wm size"
	cmdBattery         = "dumpsys battery"
)

// DeviceManager keeps the last scanned snapshot of attached devices for the
// HTTP API. The fleet itself never reads it: dispatch always enumerates
// fresh.
type DeviceManager struct {
	dispatcher *Dispatcher
	devices    map[string]*models.Device
	order      []string
	mu         sync.RWMutex
	logger     log.Logger
}

func NewDeviceManager(d *Dispatcher, logger log.Logger) *DeviceManager {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &DeviceManager{
		dispatcher: d.Unobserved(),
		devices:    make(map[string]*models.Device),
		logger:     log.With(logger, "component", "device_manager"),
	}
}

// ScanDevices enumerates attached devices, reads a few properties from the
// online ones in parallel, and replaces the snapshot.
func (m *DeviceManager) ScanDevices(ctx context.Context) error {
	list, err := m.dispatcher.Devices(ctx, adb.DeviceQuery{Long: true})
	if err != nil {
		return err
	}

	now := time.Now().Unix()
	devices := make([]*models.Device, 0, len(list))
	for _, d := range list {
		device := &models.Device{
			ID:       "device_" + d.Serial,
			Name:     d.Serial,
			Serial:   d.Serial,
			State:    d.State,
			Status:   "offline",
			Info:     d.Info,
			LastSeen: now,
		}
		if model, ok := d.Info["model"]; ok {
			device.Name = model
		}
		if d.State == "device" {
			device.Status = "online"
		}
		devices = append(devices, device)
	}

	m.enrich(ctx, devices)
	devices = deduplicateDevices(devices)
	if len(devices) != len(list) {
		level.Info(m.logger).Log("msg", "deduplicated devices", "devices", len(devices), "raw", len(list))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices = make(map[string]*models.Device, len(devices))
	m.order = m.order[:0]
	for _, device := range devices {
		m.devices[device.ID] = device
		m.order = append(m.order, device.ID)
	}
	return nil
}

// enrich fills version, resolution, battery and hardware serial of the online
// devices. Failures leave the fields empty.
func (m *DeviceManager) enrich(ctx context.Context, devices []*models.Device) {
	var online []string
	bySerial := make(map[string]*models.Device, len(devices))
	for _, device := range devices {
		if device.Status == "online" {
			online = append(online, device.Serial)
			bySerial[device.Serial] = device
		}
	}
	if len(online) == 0 {
		return
	}
	fleet := NewFleet(m.dispatcher, online...)

	query := func(command string, apply func(*models.Device, string)) {
		result, err := fleet.Shell(ctx, command)
		if err != nil {
			level.Warn(m.logger).Log("msg", "property query failed", "cmd", command, "err", err)
			return
		}
		for _, r := range result.Results() {
			if r.OK() {
				apply(bySerial[r.Device], r.Stdout)
			}
		}
	}

	query(propAndroidVersion, func(d *models.Device, out string) { d.AndroidVersion = out })
	query(propHardwareSerial, func(d *models.Device, out string) { d.HardwareSerial = out })
	query(cmdScreenSize, func(d *models.Device, out string) { d.Resolution = adb.ParseScreenSize(out) })
	query(cmdBattery, func(d *models.Device, out string) {
		if battery, err := adb.ParseBatteryLevel(out); err == nil {
			d.Battery = battery
		}
	})
}

// deduplicateDevices collapses devices reported twice (USB and WiFi) by
// hardware serial, keeping the WiFi connection. Order of first appearance is
// kept.
func deduplicateDevices(devices []*models.Device) []*models.Device {
	index := make(map[string]int, len(devices))
	result := make([]*models.Device, 0, len(devices))
	for _, device := range devices {
		key := device.HardwareSerial
		if key == "" {
			key = device.Serial
		}
		i, exists := index[key]
		if !exists {
			index[key] = len(result)
			result = append(result, device)
			continue
		}
		existing := result[i]
		if (adb.Device{Serial: device.Serial}).WiFi() && !(adb.Device{Serial: existing.Serial}).WiFi() {
			result[i] = device
		}
	}
	return result
}

// GetAllDevices returns the snapshot in enumeration order.
func (m *DeviceManager) GetAllDevices() []*models.Device {
	m.mu.RLock()
	defer m.mu.RUnlock()

	devices := make([]*models.Device, 0, len(m.order))
	for _, id := range m.order {
		devices = append(devices, m.devices[id])
	}
	return devices
}

// GetDevice returns a single device by ID
func (m *DeviceManager) GetDevice(id string) *models.Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.devices[id]
}
