package supervisor

import (
	"fmt"
	"net"
	"os"
	"syscall"
)

// listenerFile duplicates the descriptor behind ln.
//
// net's File method marks the file so that Fd (called by os/exec for
// ExtraFiles) switches the socket to blocking mode. O_NONBLOCK belongs to the
// open file description shared by every worker, so one spawn would leave the
// running workers stuck in accept(2). Wrapping a plain dup with os.NewFile
// keeps the descriptor non-blocking.
func listenerFile(ln net.Listener) (*os.File, error) {
	sc, ok := ln.(syscall.Conn)
	if !ok {
		return nil, fmt.Errorf("listener %T cannot be shared", ln)
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return nil, fmt.Errorf("failed to access listener: %w", err)
	}

	dup := -1
	var dupErr error
	if err := raw.Control(func(fd uintptr) {
		syscall.ForkLock.RLock()
		defer syscall.ForkLock.RUnlock()
		if dup, dupErr = syscall.Dup(int(fd)); dupErr == nil {
			syscall.CloseOnExec(dup)
		}
	}); err != nil {
		return nil, fmt.Errorf("failed to access listener: %w", err)
	}
	if dupErr != nil {
		return nil, fmt.Errorf("failed to duplicate listener: %w", dupErr)
	}
	return os.NewFile(uintptr(dup), "listener"), nil
}

// DupListener returns an independent listener on the same socket as ln.
// Closing the duplicate leaves ln open.
func DupListener(ln net.Listener) (net.Listener, error) {
	file, err := listenerFile(ln)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	dup, err := net.FileListener(file)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild listener: %w", err)
	}
	return dup, nil
}

// InheritedListener rebuilds the listener a worker received on ListenerFD.
func InheritedListener() (net.Listener, error) {
	file := os.NewFile(ListenerFD, "listener")
	if file == nil {
		return nil, fmt.Errorf("no listener on fd %d", ListenerFD)
	}
	defer file.Close()

	ln, err := net.FileListener(file)
	if err != nil {
		return nil, fmt.Errorf("failed to use inherited listener: %w", err)
	}
	return ln, nil
}

// InheritedCheckinPipe returns the write end of the check-in pipe.
func InheritedCheckinPipe() (*os.File, error) {
	file := os.NewFile(CheckinFD, "checkin")
	if file == nil {
		return nil, fmt.Errorf("no check-in pipe on fd %d", CheckinFD)
	}
	return file, nil
}
