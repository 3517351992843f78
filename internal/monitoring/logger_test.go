package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	if !called {
		t.Error("Custom logger was not called")
	}

	called = false
	SetLogger(nil)
	Logf("test message")
	if called {
		t.Error("No-op logger should not have triggered callback")
	}
}

func TestPrefixed(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got string
	SetLogger(func(format string, v ...interface{}) {
		got = fmt.Sprintf(format, v...)
	})

	logf := Prefixed("ledger")
	logf("appended %d rows", 3)
	if got != "[ledger] appended 3 rows" {
		t.Errorf("got %q", got)
	}

	// Loggers resolve Logf lazily so SetLogger after construction still applies.
	got = ""
	SetLogger(nil)
	logf("muted")
	if got != "" {
		t.Errorf("expected muted logger, got %q", got)
	}
}
