package shell

import (
	"context"
	"fmt"
	"strings"

	"adbfleet/service"
)

// Android keycodes accepted by Keyevent.
const (
	KeycodeHome       = 3
	KeycodeBack       = 4
	KeycodeDpadUp     = 19
	KeycodeDpadDown   = 20
	KeycodeDpadLeft   = 21
	KeycodeDpadRight  = 22
	KeycodeVolumeUp   = 24
	KeycodeVolumeDown = 25
	KeycodePower      = 26
	KeycodeTab        = 61
	KeycodeSpace      = 62
	KeycodeEnter      = 66
	KeycodeDel        = 67
	KeycodeEscape     = 111
	KeycodeWakeup     = 224
)

// Tap sends a tap at screen coordinates x, y.
func (s *Shell) Tap(ctx context.Context, x, y int) (service.FleetResult, error) {
	return s.Execute(ctx, fmt.Sprintf("input tap %d %d", x, y))
}

// Swipe drags from x1,y1 to x2,y2 over durationMs milliseconds.
func (s *Shell) Swipe(ctx context.Context, x1, y1, x2, y2, durationMs int) (service.FleetResult, error) {
	return s.Execute(ctx, fmt.Sprintf("input swipe %d %d %d %d %d", x1, y1, x2, y2, durationMs))
}

// Text types text into the focused field. "input text" reads %s as a space.
func (s *Shell) Text(ctx context.Context, text string) (service.FleetResult, error) {
	return s.Execute(ctx, "input text "+Quote(strings.ReplaceAll(text, " ", "%s")))
}

func (s *Shell) Keyevent(ctx context.Context, keycode int) (service.FleetResult, error) {
	return s.Execute(ctx, fmt.Sprintf("input keyevent %d", keycode))
}

// Launch starts the launcher activity of pkg.
func (s *Shell) Launch(ctx context.Context, pkg string) (service.FleetResult, error) {
	return s.Execute(ctx, "monkey -p "+Quote(pkg)+" -c android.intent.category.LAUNCHER 1")
}
