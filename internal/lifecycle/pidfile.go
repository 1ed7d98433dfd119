package lifecycle

import (
	"os"
	"strconv"
)

// WritePidFile writes the current process id to path. Empty path disables
// the marker.
func WritePidFile(path string) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644)
}

// RemovePidFile removes the marker on clean shutdown. Best-effort.
func RemovePidFile(path string) {
	if path == "" {
		return
	}
	_ = os.Remove(path)
}
