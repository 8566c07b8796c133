//go:build windows

package winexec

import (
	"errors"

	"golang.org/x/sys/windows"

	"github.com/eXtremal-ik7/asyncio-go/internal/opcore"
)

func wouldBlock(err error) bool {
	return errors.Is(err, windows.ERROR_IO_PENDING) || errors.Is(err, windows.WSAEWOULDBLOCK)
}

// statusFor mirrors internal/ioexec's errno table for the Windows
// error domain; duplicated rather than shared for the same reason:
// avoiding an import cycle back into the root package's error types.
func statusFor(err error) opcore.Status {
	switch {
	case errors.Is(err, windows.WSAECONNRESET), errors.Is(err, windows.WSAECONNABORTED),
		errors.Is(err, windows.WSAENOTCONN), errors.Is(err, windows.WSAESHUTDOWN),
		errors.Is(err, windows.ERROR_NETNAME_DELETED):
		return opcore.StatusDisconnected
	case errors.Is(err, windows.ERROR_OPERATION_ABORTED):
		return opcore.StatusCanceled
	case errors.Is(err, windows.WSAEMSGSIZE):
		return opcore.StatusBufferTooSmall
	default:
		return opcore.StatusUnknownError
	}
}
