package app

import (
	"os"
	"strconv"
)

const testModeEnv = "FABLINE_TEST_MODE"

// InTestMode reports whether FABLINE_TEST_MODE is set, in which case the
// binaries return before touching any backing service.
func InTestMode() bool {
	on, err := strconv.ParseBool(os.Getenv(testModeEnv))
	return err == nil && on
}
