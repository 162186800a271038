package app

import (
	"testing"
	"time"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STR", "  hello  ")
	t.Setenv("TEST_BOOL", "true")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_INT_BAD", "-3")
	t.Setenv("TEST_DUR", "90s")
	t.Setenv("TEST_DUR_BAD", "soon")

	if got := EnvString("TEST_STR", "def"); got != "hello" {
		t.Fatalf("EnvString = %q", got)
	}
	if got := EnvString("TEST_UNSET", "def"); got != "def" {
		t.Fatalf("EnvString default = %q", got)
	}
	if !EnvBool("TEST_BOOL", false) {
		t.Fatalf("EnvBool = false")
	}
	if got := EnvInt("TEST_INT", 1); got != 42 {
		t.Fatalf("EnvInt = %d", got)
	}
	if got := EnvInt("TEST_INT_BAD", 7); got != 7 {
		t.Fatalf("EnvInt negative should fall back, got %d", got)
	}
	if got := EnvDuration("TEST_DUR", time.Second); got != 90*time.Second {
		t.Fatalf("EnvDuration = %v", got)
	}
	if got := EnvDuration("TEST_DUR_BAD", time.Second); got != time.Second {
		t.Fatalf("EnvDuration unparsable should fall back, got %v", got)
	}
}
