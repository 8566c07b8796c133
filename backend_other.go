//go:build !windows && !linux && !darwin && !freebsd && !netbsd && !openbsd && !dragonfly

package asyncio

import (
	"fmt"

	"github.com/eXtremal-ik7/asyncio-go/internal/opcore"
	"github.com/eXtremal-ik7/asyncio-go/internal/reactor/selectloop"
)

// newBackend resolves a Method on platforms with no edge-triggered
// readiness primitive wired here: select is the only option, and also
// what MethodOSDefault falls back to (spec.md §4.1 "the select-based
// loop everywhere else").
func newBackend(method Method, toErr func(opcore.Status) error) (reactorBackend, error) {
	switch method {
	case MethodOSDefault, MethodSelect:
		return selectloop.New(toErr)
	default:
		return nil, fmt.Errorf("backend method %s is not available on this platform", method)
	}
}
