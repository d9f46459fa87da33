package spirvc

import (
	"encoding/binary"
	"sync"

	"github.com/gogpu/spirvc/engine"
)

// Result owns an engine compilation result and its binary.
//
// The caller must Release it exactly once. Bytes returns a view of
// engine-owned memory that is valid only until Release; after Release
// every accessor fails with ErrResultReleased instead of exposing stale
// memory.
type Result struct {
	mu     sync.Mutex
	handle engine.Result
	length int
}

func newResult(h engine.Result) *Result {
	return &Result{handle: h, length: h.Length()}
}

// Len returns the binary length in bytes reported by the engine.
func (r *Result) Len() int {
	return r.length
}

// Bytes returns a read-only view of the SPIR-V binary. Copy it if it must
// outlive Release.
func (r *Result) Bytes() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handle == nil {
		return nil, ErrResultReleased
	}
	b := r.handle.Bytes()
	if len(b) > r.length {
		b = b[:r.length]
	}
	return b, nil
}

// Words returns a copy of the binary as little-endian 32-bit words, the
// form graphics APIs take for shader modules.
func (r *Result) Words() ([]uint32, error) {
	b, err := r.Bytes()
	if err != nil {
		return nil, err
	}
	if len(b)%4 != 0 {
		return nil, ErrMisaligned
	}
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return words, nil
}

// Release frees the engine result. A second call returns
// ErrResultReleased and does not reach the engine.
func (r *Result) Release() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handle == nil {
		return ErrResultReleased
	}
	r.handle.Release()
	r.handle = nil
	return nil
}

// Close is Release, for use with defer and io.Closer.
func (r *Result) Close() error {
	return r.Release()
}
