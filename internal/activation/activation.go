package activation

import (
	"fmt"
	"net"
	"os"
	"strconv"
)

// Systemd passes activated sockets starting at fd 3 (after stdio).
const listenFdsStart = 3

// Listeners returns the listeners for sockets passed to this process via
// systemd socket activation (LISTEN_PID / LISTEN_FDS). It returns nil
// when no activation is present or the activation targets another
// process, letting callers fall back to a regular listen.
func Listeners() ([]net.Listener, error) {
	numFDs, err := activatedFds()
	if err != nil || numFDs == 0 {
		return nil, err
	}

	listeners := make([]net.Listener, 0, numFDs)
	for i := 0; i < numFDs; i++ {
		fd := listenFdsStart + i
		file := os.NewFile(uintptr(fd), fmt.Sprintf("systemd-socket-%d", i))
		if file == nil {
			return nil, fmt.Errorf("failed to open fd %d", fd)
		}

		listener, err := net.FileListener(file)
		if err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("failed to create listener from fd %d: %w", fd, err)
		}

		// The listener duplicated the descriptor and owns it now.
		_ = file.Close()
		listeners = append(listeners, listener)
	}

	// Unset so child processes don't inherit the activation variables.
	_ = os.Unsetenv("LISTEN_PID")
	_ = os.Unsetenv("LISTEN_FDS")
	_ = os.Unsetenv("LISTEN_FDNAMES")

	return listeners, nil
}

// activatedFds parses LISTEN_PID / LISTEN_FDS and returns how many
// descriptors were passed to this process, or 0 when activation is
// absent or addressed to a different PID.
func activatedFds() (int, error) {
	pidStr := os.Getenv("LISTEN_PID")
	if pidStr == "" {
		return 0, nil
	}

	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return 0, fmt.Errorf("invalid LISTEN_PID %q: %w", pidStr, err)
	}
	if pid != os.Getpid() {
		return 0, nil
	}

	fdsStr := os.Getenv("LISTEN_FDS")
	if fdsStr == "" {
		return 0, nil
	}

	numFDs, err := strconv.Atoi(fdsStr)
	if err != nil {
		return 0, fmt.Errorf("invalid LISTEN_FDS %q: %w", fdsStr, err)
	}
	if numFDs < 1 {
		return 0, nil
	}

	return numFDs, nil
}
