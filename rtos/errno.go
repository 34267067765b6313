package rtos

import "strconv"

// Errno is a POSIX-like result code returned by value on the kernel hot path.
//
// The zero value is OK; every other value is a failure.
type Errno uint

const (
	// OK reports success.
	OK Errno = 0

	// EPERM is returned when an operation that requires thread context is
	// called from interrupt (handler) mode.
	EPERM Errno = iota
	// EINVAL reports a parameter out of range, an invalid mask, or an unknown handle.
	EINVAL
	// EAGAIN reports a resource exhausted transiently (recursion limit, semaphore overflow).
	EAGAIN
	// EWOULDBLOCK is returned by try_* variants when the operation would have blocked.
	EWOULDBLOCK
	// ETIMEDOUT reports that a bounded wait expired.
	ETIMEDOUT
	// EINTR reports that a wait was terminated by reset or asynchronous interruption.
	EINTR
	// EMSGSIZE reports that a message exceeds the queue's slot size.
	EMSGSIZE
	// EDEADLK reports an error-check mutex self-lock.
	EDEADLK
	// EOWNERDEAD reports that the previous owner of a robust mutex terminated while holding it.
	EOWNERDEAD
	// ENOTRECOVERABLE reports that a robust mutex's consistency could not be restored.
	ENOTRECOVERABLE
	// EBADMSG reports a corrupted message queue.
	EBADMSG
	// ENOMEM reports an allocation failure.
	ENOMEM
)

var errnoText = map[Errno]string{
	OK:              "ok",
	EPERM:           "operation not permitted from interrupt context",
	EINVAL:          "invalid argument",
	EAGAIN:          "resource temporarily unavailable",
	EWOULDBLOCK:     "operation would block",
	ETIMEDOUT:       "timed out",
	EINTR:           "interrupted",
	EMSGSIZE:        "message too large",
	EDEADLK:         "resource deadlock avoided",
	EOWNERDEAD:      "owner died",
	ENOTRECOVERABLE: "state not recoverable",
	EBADMSG:         "bad message",
	ENOMEM:          "out of memory",
}

// Error implements the error interface, so an Errno can be returned as an error
// and compared with errors.Is against the package-level sentinels.
func (e Errno) Error() string {
	if s, ok := errnoText[e]; ok {
		return s
	}
	return "errno " + strconv.FormatUint(uint64(e), 10)
}

// Is reports whether target is the same Errno, so errors.Is(err, rtos.ETIMEDOUT) works
// whether err is the bare Errno or something wrapped with fmt.Errorf("%w", ...).
func (e Errno) Is(target error) bool {
	t, ok := target.(Errno)
	return ok && t == e
}
