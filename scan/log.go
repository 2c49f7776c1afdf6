package scan

import "log"

// Debug gates verbose per-dispatch tracing. Off by default; flip it on
// in a test or a caller's init to see level-by-level dispatch detail.
var Debug bool

// Log writes a debug line when Debug is set. Silent otherwise.
func Log(format string, args ...any) {
	if !Debug {
		return
	}
	log.Printf(format, args...)
}
