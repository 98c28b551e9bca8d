package adb

import (
	"errors"
	"fmt"
	"time"
)

// Sentinels for errors.Is checks. Each typed error below matches its sentinel.
var (
	ErrSpawn            = errors.New("adb could not be started")
	ErrTimeout          = errors.New("adb invocation timed out")
	ErrEnumeration      = errors.New("device enumeration failed")
	ErrUnexpectedHeader = errors.New("unexpected device list header")
	ErrNoDevices        = errors.New("no devices attached")
	ErrTooManyDevices   = errors.New("found too many devices")
	ErrUnsupported      = errors.New("operation not supported")
	ErrEmptySerial      = errors.New("empty device serial")
)

// SpawnError reports that the bridge executable could not be launched for
// one invocation (missing binary, permission denied).
type SpawnError struct {
	Path   string
	Serial string
	Err    error
}

func (e *SpawnError) Error() string {
	if e.Serial != "" {
		return fmt.Sprintf("spawn %s for %s: %v", e.Path, e.Serial, e.Err)
	}
	return fmt.Sprintf("spawn %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

func (e *SpawnError) Is(target error) bool { return target == ErrSpawn }

// TimeoutError reports an invocation that did not finish within its deadline.
type TimeoutError struct {
	Serial  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: no exit after %s", e.Serial, e.Timeout)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// EnumerationError reports a failed or unparsable "devices" call.
type EnumerationError struct {
	Output string
	Err    error
}

func (e *EnumerationError) Error() string {
	return fmt.Sprintf("%v: %v", ErrEnumeration, e.Err)
}

func (e *EnumerationError) Unwrap() error { return e.Err }

func (e *EnumerationError) Is(target error) bool { return target == ErrEnumeration }

// TooManyDevicesError is returned when exactly one device was requested but
// several are attached.
type TooManyDevicesError struct {
	Serials []string
}

func (e *TooManyDevicesError) Error() string {
	return fmt.Sprintf("%v: %d attached %v", ErrTooManyDevices, len(e.Serials), e.Serials)
}

func (e *TooManyDevicesError) Is(target error) bool { return target == ErrTooManyDevices }

// UnsupportedOperationError is returned by bridge verbs that are deliberately
// not implemented.
type UnsupportedOperationError struct {
	Verb string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("adb %s: %v", e.Verb, ErrUnsupported)
}

func (e *UnsupportedOperationError) Is(target error) bool { return target == ErrUnsupported }
