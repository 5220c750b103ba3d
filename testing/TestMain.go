// Package testing switches the binaries into test mode and supplies safe
// configuration defaults for packages that load app.Config in tests.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("FABLINE_TEST_MODE", "1")
		defaults := map[string]string{
			"GOTENBERG_URL":        "http://127.0.0.1:0",
			"SESSION_SECRET":       "test-session-secret",
			"STORE_DRIVER":         "memory",
			"BLOB_DRIVER":          "local",
			"PAYMENT_GATEWAY_MOCK": "true",
		}
		for k, v := range defaults {
			if os.Getenv(k) == "" {
				_ = os.Setenv(k, v)
			}
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
