package signlog

import "sync"

var fileLocks sync.Map

// lockFile serializes read-modify-write cycles on one log file and
// returns the unlock function.
func lockFile(path string) func() {
	v, _ := fileLocks.LoadOrStore(path, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
