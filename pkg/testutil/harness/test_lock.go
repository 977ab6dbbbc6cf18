package harness

import "sync"

// globalTestMutex ensures only one sandbox-backed test suite runs at a time.
// This prevents port and process churn when packages run in parallel.
var globalTestMutex sync.Mutex

// AcquireTestLock acquires the global test lock. Call it at the beginning of
// TestMain in packages that boot sandbox nodes.
func AcquireTestLock() {
	globalTestMutex.Lock()
}

// ReleaseTestLock releases the global test lock. Call it at the end of
// TestMain, or in a defer.
func ReleaseTestLock() {
	globalTestMutex.Unlock()
}
