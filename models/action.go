package models

// DispatchRequest runs raw adb arguments on a set of devices. An empty
// DeviceIDs addresses every attached device. Wait prepends wait-for-device;
// Async queues the dispatch and returns at once.
type DispatchRequest struct {
	DeviceIDs []string `json:"device_ids,omitempty"`
	Args      []string `json:"args" binding:"required,min=1"`
	Wait      bool     `json:"wait,omitempty"`
	Async     bool     `json:"async,omitempty"`
}

// ShellRequest runs one shell command line on a set of devices.
type ShellRequest struct {
	DeviceIDs []string `json:"device_ids,omitempty"`
	Command   string   `json:"command" binding:"required"`
	Superuser bool     `json:"superuser,omitempty"`
	Async     bool     `json:"async,omitempty"`
}

// DispatchRecord is the stored summary of one completed dispatch.
type DispatchRecord struct {
	ID        string          `json:"id"`
	Command   string          `json:"command"`
	Devices   []string        `json:"devices"`
	Failed    int             `json:"failed"`
	Results   []DeviceOutcome `json:"results"`
	Timestamp int64           `json:"timestamp"`
}

// DeviceOutcome is one device's entry in a DispatchRecord.
type DeviceOutcome struct {
	Device   string `json:"device"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
	Error    string `json:"error,omitempty"`
}

// ResultEvent is pushed to websocket subscribers for every device result.
type ResultEvent struct {
	Type       string        `json:"type"` // "result"
	DispatchID string        `json:"dispatch_id"`
	Command    string        `json:"command"`
	Outcome    DeviceOutcome `json:"outcome"`
}
