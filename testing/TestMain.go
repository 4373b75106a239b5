// Package testing switches the application into test mode for any package
// that blank-imports it.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("PRODUCTDESK_TEST_MODE", "1")
		if os.Getenv("PRODUCTS_API_URL") == "" {
			_ = os.Setenv("PRODUCTS_API_URL", "http://127.0.0.1:0/api")
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
