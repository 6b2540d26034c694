package runner

import "errors"

// Control signals cooperatively unwind a running worker. A checkpoint
// returns one of these from inside the script, which aborts the Tengo VM
// and propagates to the worker's top level. They are expected outcomes of
// a controller request, never errors, and are never shown to the user.
var (
	// ErrStop silently stops the execution of the script.
	ErrStop = errors.New("script execution stopped")

	// ErrRerun silently stops the script so it can be rerun from the top.
	ErrRerun = errors.New("script execution rerun")
)

// interrupt records which control signal the last checkpoint raised. The
// VM may wrap the error it aborts with, so the worker consults this record
// rather than relying on the returned error's identity.
type interrupt int

const (
	interruptNone interrupt = iota
	interruptStop
	interruptRerun
)
