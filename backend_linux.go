//go:build linux

package asyncio

import (
	"fmt"

	"github.com/eXtremal-ik7/asyncio-go/internal/opcore"
	"github.com/eXtremal-ik7/asyncio-go/internal/reactor/epoll"
	"github.com/eXtremal-ik7/asyncio-go/internal/reactor/selectloop"
	"github.com/eXtremal-ik7/asyncio-go/internal/reactor/uring"
)

// newBackend resolves a Method to a concrete reactor backend on Linux.
// MethodOSDefault picks epoll, matching the original's Linux build
// (spec.md §4.1/§4.7).
func newBackend(method Method, toErr func(opcore.Status) error) (reactorBackend, error) {
	switch method {
	case MethodOSDefault, MethodEpoll:
		return epoll.New(toErr)
	case MethodSelect:
		return selectloop.New(toErr)
	case MethodURing:
		return uring.New(toErr)
	default:
		return nil, fmt.Errorf("backend method %s is not available on linux", method)
	}
}
