package gpuctx

import "log"

// Debug gates verbose tracing of adapter selection and device
// acquisition. Off by default; flip it on in a test or a caller's
// init to see which adapter fallback path was taken.
var Debug bool

// Log writes a debug line when Debug is set. Silent otherwise.
func Log(format string, args ...any) {
	if !Debug {
		return
	}
	log.Printf(format, args...)
}
