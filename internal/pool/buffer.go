package pool

import "github.com/bytedance/gopkg/lang/mcache"

// GetBuffer returns a scratch buffer of at least size bytes, backed by
// a size-classed arena. The facade's write path uses this to copy the
// caller's buffer at submission time (spec.md §5: "Buffers supplied to
// write: by default copied into an owned scratch buffer... NoCopy flag
// skips the copy"). Replaces the teacher's hand-rolled 128KB/256KB/
// 512KB/1MB sync.Pool buckets with mcache's size-classed arena, which
// does the same bucketing without the runtime needing to hand-pick
// bucket boundaries.
func GetBuffer(size int) []byte {
	return mcache.Malloc(size)
}

// PutBuffer returns a buffer obtained from GetBuffer to the arena. It
// must not be called with a buffer obtained any other way.
func PutBuffer(buf []byte) {
	mcache.Free(buf)
}
