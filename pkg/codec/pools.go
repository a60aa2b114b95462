package codec

import "sync"

// Buffer pool for reducing GC pressure in encode hot paths

// byteSlicePool pools []byte scratch buffers for stream building
var byteSlicePool = sync.Pool{
	New: func() interface{} {
		s := make([]byte, 0, 4096)
		return &s
	},
}

// getByteSlice gets a []byte from pool with at least the given capacity
func getByteSlice(capacity int) []byte {
	slice := byteSlicePool.Get().(*[]byte)
	if cap(*slice) < capacity {
		// Pool slice too small, allocate new one
		*slice = make([]byte, 0, capacity)
	}
	*slice = (*slice)[:0] // Reset length to 0, keep capacity
	return *slice
}

// putByteSlice returns a []byte to the pool
func putByteSlice(slice []byte) {
	if cap(slice) > 1<<20 {
		// Don't pool very large buffers
		return
	}
	byteSlicePool.Put(&slice)
}
