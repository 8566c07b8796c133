//go:build windows

package asyncio

import (
	"golang.org/x/sys/windows"

	"github.com/eXtremal-ik7/asyncio-go/internal/opcore"
)

// closeHandle releases obj's OS descriptor once the combiner's
// destructor phase runs (spec.md §3.1: "destructor runs when queues
// drain"). Sockets and file/device handles are distinct kernel object
// types on Windows and must go through their own close call.
func closeHandle(obj *opcore.Object) {
	switch obj.Kind {
	case opcore.KindStreamSocket, opcore.KindDatagramSocket:
		windows.Closesocket(windows.Handle(obj.Handle))
	default:
		windows.CloseHandle(windows.Handle(obj.Handle))
	}
}
