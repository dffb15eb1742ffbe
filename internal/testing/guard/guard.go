package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("DEMANDFLOW_TEST_MODE") == "" {
			_ = os.Setenv("DEMANDFLOW_TEST_MODE", "1")
		}
	})
}
