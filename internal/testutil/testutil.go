// Package testutil holds helpers shared by integration tests.
package testutil

import (
	"fmt"
	"os"
	"strings"
	"testing"
	"time"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

// UniqueName returns a name that is unlikely to collide across test runs,
// suitable for throwaway databases and collections.
func UniqueName(t testing.TB, prefix string) string {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	return fmt.Sprintf("%s_%s_%d", prefix, strings.ToLower(name), time.Now().UnixNano())
}
