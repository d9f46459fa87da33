//go:build linux || darwin || freebsd

package shaderc

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/gogpu/spirvc/include"
)

// cIncludeResult mirrors shaderc_include_result.
type cIncludeResult struct {
	sourceName       *byte
	sourceNameLength uintptr
	content          *byte
	contentLength    uintptr
	userData         uintptr
}

// arena backs one include result handed to shaderc. Every buffer it
// references stays pinned until the release callback.
type arena struct {
	header  cIncludeResult
	name    []byte
	content []byte
	pinner  runtime.Pinner

	owner    *options        // nil when the token was not registered
	resolved *include.Result // nil for error results
}

func newArena(owner *options, userData uintptr, name string, content []byte, resolved *include.Result) *arena {
	a := &arena{owner: owner, resolved: resolved}
	// One spare byte keeps the pointers valid for empty strings.
	a.name = append(make([]byte, 0, len(name)+1), name...)
	a.content = append(make([]byte, 0, len(content)+1), content...)
	nameBuf := a.name[:cap(a.name)]
	contentBuf := a.content[:cap(a.content)]

	a.header = cIncludeResult{
		sourceName:       &nameBuf[0],
		sourceNameLength: uintptr(len(a.name)),
		content:          &contentBuf[0],
		contentLength:    uintptr(len(a.content)),
		userData:         userData,
	}
	a.pinner.Pin(a)
	a.pinner.Pin(&nameBuf[0])
	a.pinner.Pin(&contentBuf[0])
	return a
}

func (a *arena) address() uintptr {
	return uintptr(unsafe.Pointer(&a.header))
}

var errUnregistered = errors.New("include callback invoked for options that were released")

var (
	// options reachable from C, keyed by user-data token.
	registry  sync.Map
	nextToken atomic.Uintptr

	// live arenas keyed by the address handed to shaderc.
	arenasMu sync.Mutex
	arenas   = map[uintptr]*arena{}

	callbacksOnce   sync.Once
	resolveCallback uintptr
	releaseCallback uintptr
)

func register(o *options) uintptr {
	token := nextToken.Add(1)
	registry.Store(token, o)
	return token
}

func unregister(token uintptr) {
	registry.Delete(token)
}

func lookup(token uintptr) *options {
	v, ok := registry.Load(token)
	if !ok {
		return nil
	}
	return v.(*options)
}

// callbacks returns the C function pointers. purego callbacks are a
// bounded process resource, so exactly two are ever created.
func callbacks() (resolve, release uintptr) {
	callbacksOnce.Do(func() {
		resolveCallback = purego.NewCallback(resolveInclude)
		releaseCallback = purego.NewCallback(releaseInclude)
	})
	return resolveCallback, releaseCallback
}

// resolveInclude is shaderc_include_resolve_fn.
func resolveInclude(userData, requestedSource, includeType, requestingSource, includeDepth uintptr) (ret uintptr) {
	o := lookup(userData)
	if o == nil {
		// shaderc dereferences the result, so never hand it NULL.
		return keep(newArena(nil, userData, "", []byte(errUnregistered.Error()), nil))
	}

	req := include.Request{
		Name:      cString(requestedSource),
		Requester: cString(requestingSource),
		Type:      include.Type(int32(includeType)),
		Depth:     int(includeDepth),
	}

	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("include resolver panic: %v", p)
			o.recordIncludeError(err)
			ret = keep(newArena(o, userData, "", []byte(err.Error()), nil))
		}
	}()

	res, err := o.resolver.Resolve(req)
	if err == nil && res == nil {
		err = fmt.Errorf("include %q: resolver returned no result", req.Name)
	}
	if err != nil {
		o.recordIncludeError(err)
		return keep(newArena(o, userData, "", []byte(err.Error()), nil))
	}
	return keep(newArena(o, userData, res.Name, res.Content, res))
}

// releaseInclude is shaderc_include_result_release_fn.
func releaseInclude(userData, includeResult uintptr) {
	arenasMu.Lock()
	a, ok := arenas[includeResult]
	delete(arenas, includeResult)
	arenasMu.Unlock()
	if !ok {
		return
	}
	defer a.pinner.Unpin()
	if a.owner == nil || a.resolved == nil {
		return
	}

	defer func() {
		if p := recover(); p != nil {
			a.owner.recordIncludeError(fmt.Errorf("include releaser panic: %v", p))
		}
	}()
	a.owner.releaser.Release(a.resolved)
}

func keep(a *arena) uintptr {
	addr := a.address()
	arenasMu.Lock()
	arenas[addr] = a
	arenasMu.Unlock()
	return addr
}

// liveArenas reports how many include results shaderc still holds.
func liveArenas() int {
	arenasMu.Lock()
	defer arenasMu.Unlock()
	return len(arenas)
}

// cString copies a NUL-terminated C string.
func cString(p uintptr) string {
	if p == 0 {
		return ""
	}
	ptr := *(*unsafe.Pointer)(unsafe.Pointer(&p))
	n := 0
	for *(*byte)(unsafe.Add(ptr, n)) != 0 {
		n++
	}
	return string(unsafe.Slice((*byte)(ptr), n))
}
