package app

import (
	"os"
	"strconv"
	"sync"
	"sync/atomic"
)

const testModeEnv = "USERGATE_TEST_MODE"

var (
	testMode     atomic.Bool
	testModeOnce sync.Once
)

func detectTestMode() {
	on, err := strconv.ParseBool(os.Getenv(testModeEnv))
	testMode.Store(err == nil && on)
}

// InTestMode reports whether processes should skip runtime side effects
// such as opening connections. USERGATE_TEST_MODE accepts any boolean form.
func InTestMode() bool {
	testModeOnce.Do(detectTestMode)
	return testMode.Load()
}

// RefreshTestMode re-reads the environment.
func RefreshTestMode() {
	testModeOnce.Do(func() {})
	detectTestMode()
}
