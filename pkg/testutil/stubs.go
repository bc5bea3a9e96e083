package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteStub writes an executable /bin/sh script named name into a temp dir
// and returns its absolute path. Stubs stand in for systemctl and journalctl.
func WriteStub(t testing.TB, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("writing stub %s: %v", name, err)
	}
	return path
}

// ArgsEchoStub prints the argument count followed by each argument in
// brackets, one per line.
const ArgsEchoStub = `printf '%s\n' "$#"; for a in "$@"; do printf '[%s]\n' "$a"; done`
