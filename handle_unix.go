//go:build !windows

package asyncio

import (
	"golang.org/x/sys/unix"

	"github.com/eXtremal-ik7/asyncio-go/internal/opcore"
)

// closeHandle releases obj's OS descriptor once the combiner's
// destructor phase runs (spec.md §3.1: "destructor runs when queues
// drain"). Errors are not actionable here — the descriptor is gone
// either way from the caller's perspective.
func closeHandle(obj *opcore.Object) {
	unix.Close(int(obj.Handle))
}
