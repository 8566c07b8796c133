package asyncio

import "runtime"

func numCPU() int { return runtime.NumCPU() }
