package models

// Device is the API view of one attached device, enriched with a few
// properties read over the fleet.
type Device struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Serial         string            `json:"serial"`
	HardwareSerial string            `json:"hardware_serial,omitempty"`
	State          string            `json:"state"`
	Status         string            `json:"status"` // online, offline
	Resolution     string            `json:"resolution,omitempty"`
	Battery        int               `json:"battery"`
	AndroidVersion string            `json:"android_version,omitempty"`
	Info           map[string]string `json:"info,omitempty"`
	LastSeen       int64             `json:"last_seen"`
}
