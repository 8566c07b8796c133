//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package asyncio

import (
	"fmt"

	"github.com/eXtremal-ik7/asyncio-go/internal/opcore"
	"github.com/eXtremal-ik7/asyncio-go/internal/reactor/kqueue"
	"github.com/eXtremal-ik7/asyncio-go/internal/reactor/selectloop"
)

// newBackend resolves a Method to a concrete reactor backend on BSD
// and Darwin. MethodOSDefault picks kqueue (spec.md §4.1/§4.7).
func newBackend(method Method, toErr func(opcore.Status) error) (reactorBackend, error) {
	switch method {
	case MethodOSDefault, MethodKqueue:
		return kqueue.New(toErr)
	case MethodSelect:
		return selectloop.New(toErr)
	default:
		return nil, fmt.Errorf("backend method %s is not available on this platform", method)
	}
}
