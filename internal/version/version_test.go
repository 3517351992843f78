package version

import "testing"

func TestString(t *testing.T) {
	Version, GitSHA, BuildTime = "1.2.3", "abc123", "2025-01-01T00:00:00Z"
	want := "perceptron-sweep 1.2.3 (commit abc123, built 2025-01-01T00:00:00Z)"
	if got := String("perceptron-sweep"); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
