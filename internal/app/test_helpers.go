package app

import (
	"testing"

	"github.com/specialistvlad/pacforge/internal/config"
	"github.com/specialistvlad/pacforge/internal/testutil"
)

// SetupAppTest creates a new app instance for system testing with debug
// logging captured in the returned buffer.
func SetupAppTest(t *testing.T, cfg *config.Config, collab Collaborators) (*App, *testutil.SafeBuffer) {
	t.Helper()

	logBuffer := &testutil.SafeBuffer{}
	cfg.LogLevel = "debug"
	testApp := NewApp(logBuffer, cfg, collab)
	testutil.LogOnFailure(t, logBuffer)
	return testApp, logBuffer
}
