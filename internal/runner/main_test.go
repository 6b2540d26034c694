package runner

import (
	"testing"

	"go.uber.org/goleak"
)

// Every worker must exit when its run stops; a leaked goroutine here means
// the cooperative shutdown path is broken.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
