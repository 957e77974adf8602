// Package guard forces test mode for any package that imports it, keeping
// runtime startup paths inert under go test.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("ALMACEN_TEST_MODE") == "" {
			_ = os.Setenv("ALMACEN_TEST_MODE", "1")
		}
	})
}
