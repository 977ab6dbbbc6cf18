// Package harness provides shared test utilities for managing workspace
// runners across a test suite.
//
// Usage:
//
//	func TestMain(m *testing.M) {
//	    harness.AcquireTestLock()
//	    defer harness.ReleaseTestLock()
//
//	    os.Exit(m.Run())
//	}
//
// Individual tests then share a runner through GetRunner, which reference
// counts the underlying base environment so it is bootstrapped once per
// suite and torn down when the last test releases it.
package harness
