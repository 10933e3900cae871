package proc

import "errors"

var (
	// ErrIO indicates that the accounting interface itself (the /proc
	// directory listing) could not be read. The whole snapshot is lost.
	ErrIO = errors.New("proc: accounting interface unreadable")

	// ErrPermission indicates that a single process could not be read for
	// lack of privileges. Reader skips such processes.
	ErrPermission = errors.New("proc: permission denied")

	// ErrGone indicates that a process exited between enumeration and the
	// read of its detail record. Reader skips such processes.
	ErrGone = errors.New("proc: process gone")

	// ErrNoStat indicates that /proc/<pid>/stat was empty or malformed.
	ErrNoStat = errors.New("proc: malformed or empty stat")

	// ErrShortStat indicates that /proc/<pid>/stat had fewer fields than expected.
	ErrShortStat = errors.New("proc: short stat")
)
