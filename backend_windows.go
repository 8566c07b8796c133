//go:build windows

package asyncio

import (
	"fmt"

	"github.com/eXtremal-ik7/asyncio-go/internal/opcore"
	"github.com/eXtremal-ik7/asyncio-go/internal/reactor/iocp"
)

// newBackend resolves a Method to a concrete reactor backend on
// Windows. MethodOSDefault picks IOCP, matching the original's Windows
// build (spec.md §4.1/§4.7). MethodSelect's internal/reactor/selectloop
// implementation is built on golang.org/x/sys/unix's FdSet/Pipe2 and
// has no Windows counterpart here, so it is not offered on this
// platform.
func newBackend(method Method, toErr func(opcore.Status) error) (reactorBackend, error) {
	switch method {
	case MethodOSDefault, MethodIOCP:
		return iocp.New(toErr)
	default:
		return nil, fmt.Errorf("backend method %s is not available on windows", method)
	}
}
