// Package testutil provides shared test utilities and fixtures.
//
// The stub simulator helpers write small POSIX shell scripts that accept the
// predictor tool's command line, write a canned artifact to the -o path and
// exit with a chosen status, so sweep tests can run real processes without
// the instrumentation framework installed.
package testutil

import (
	"fmt"
	"os"
	"strings"
	"testing"
)

// Stub describes the behaviour of a stub simulator script.
type Stub struct {
	// Artifact is written verbatim (plus a newline) to the -o path.
	// Empty means no artifact is written.
	Artifact string
	// ExitCode is the script's exit status.
	ExitCode int
	// CallLog, if set, gets one line appended per invocation holding the
	// full argument list.
	CallLog string
}

// WriteStubSimulator writes a stub that emits artifact and exits with exitCode.
func WriteStubSimulator(t *testing.T, dir, artifact string, exitCode int) string {
	t.Helper()
	return WriteStub(t, dir, Stub{Artifact: artifact, ExitCode: exitCode})
}

// WriteStub writes an executable stub simulator into dir and returns its path.
func WriteStub(t *testing.T, dir string, s Stub) string {
	t.Helper()

	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	if s.CallLog != "" {
		fmt.Fprintf(&b, "echo \"$*\" >> %s\n", shellQuote(s.CallLog))
	}
	b.WriteString(`out=""
while [ $# -gt 0 ]; do
	case "$1" in
	-o) out="$2"; shift 2 ;;
	--) shift; break ;;
	*) shift ;;
	esac
done
`)
	if s.Artifact != "" {
		fmt.Fprintf(&b, "[ -n \"$out\" ] && printf '%%s\\n' %s > \"$out\"\n", shellQuote(s.Artifact))
	}
	fmt.Fprintf(&b, "exit %d\n", s.ExitCode)

	f, err := os.CreateTemp(dir, "stub-sim-*.sh")
	if err != nil {
		t.Fatalf("create stub: %v", err)
	}
	if _, err := f.WriteString(b.String()); err != nil {
		f.Close()
		t.Fatalf("write stub: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close stub: %v", err)
	}
	if err := os.Chmod(f.Name(), 0755); err != nil {
		t.Fatalf("chmod stub: %v", err)
	}
	return f.Name()
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
