//go:build !unix

package ledger

import (
	"os"
	"sync"
)

// Without flock only appends from this process are serialised.
var appendMu sync.Mutex

func lockFile(*os.File) error {
	appendMu.Lock()
	return nil
}

func unlockFile(*os.File) error {
	appendMu.Unlock()
	return nil
}
