package deadline

import (
	"testing"

	"go.uber.org/goleak"
)

// Run owns a ticker goroutine; every test must leave it stopped.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
