package integration_test

import (
	"os"
	"testing"

	"github.com/Edgewood-TD/workspaces-go/pkg/testutil/harness"
)

func TestMain(m *testing.M) {
	harness.AcquireTestLock()

	code := m.Run()

	if err := harness.ForceCleanup(runnerName); err != nil {
		os.Stderr.WriteString("failed to clean up shared runner: " + err.Error() + "\n")
	}

	harness.ReleaseTestLock()

	os.Exit(code)
}
