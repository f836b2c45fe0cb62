// Package scope implements the layered execution context for one case run.
//
// A Context is a stack of frames, each frame a stack of variable layers.
// Lookups search the layers of the current frame only, innermost first, so a
// template window (its own frame) never observes the caller's variables.
// Writes always target the innermost layer of the current frame.
package scope

import (
	"strings"

	"github.com/frherrer/GoE2E-LocoRunner/internal/values"
)

type frame struct {
	layers []map[string]any
}

// Context is the mutable variable store owned by exactly one case run. It is
// not safe for concurrent use; the engine runs a case on a single goroutine.
type Context struct {
	frames []*frame
}

// New returns a Context with a single empty frame and one base layer.
func New() *Context {
	return &Context{
		frames: []*frame{{layers: []map[string]any{{}}}},
	}
}

func (c *Context) current() *frame {
	return c.frames[len(c.frames)-1]
}

// PushLayer adds a new innermost variable layer to the current frame.
func (c *Context) PushLayer() {
	f := c.current()
	f.layers = append(f.layers, map[string]any{})
}

// PopLayer removes the innermost layer of the current frame. The base layer
// of a frame is never popped.
func (c *Context) PopLayer() {
	f := c.current()
	if len(f.layers) > 1 {
		f.layers = f.layers[:len(f.layers)-1]
	}
}

// PushFrame starts an isolated frame, e.g. for a template window. Variables
// of outer frames are invisible until the frame is popped.
func (c *Context) PushFrame() {
	c.frames = append(c.frames, &frame{layers: []map[string]any{{}}})
}

// PopFrame discards the current frame and everything defined inside it.
func (c *Context) PopFrame() {
	if len(c.frames) > 1 {
		c.frames = c.frames[:len(c.frames)-1]
	}
}

// Depth reports the number of active frames.
func (c *Context) Depth() int {
	return len(c.frames)
}

// Set binds a name in the innermost layer of the current frame.
func (c *Context) Set(name string, value any) {
	f := c.current()
	f.layers[len(f.layers)-1][name] = value
}

// SetBase binds a name in the outermost layer of the current frame. Exports
// use this so they survive the per-step layer.
func (c *Context) SetBase(name string, value any) {
	c.current().layers[0][name] = value
}

// Lookup resolves a dotted path against the current frame. The first path
// segment selects a variable, innermost layer first; remaining segments
// descend into the value.
func (c *Context) Lookup(path string) (any, bool) {
	segments := strings.Split(path, ".")
	f := c.current()
	for i := len(f.layers) - 1; i >= 0; i-- {
		root, ok := f.layers[i][segments[0]]
		if !ok {
			continue
		}
		return values.LookupPath(root, segments[1:])
	}
	return nil, false
}

// Has reports whether a variable name is bound in the current frame.
func (c *Context) Has(name string) bool {
	_, ok := c.Lookup(name)
	return ok
}

// Snapshot returns a flattened, masked copy of the current frame, used for
// error snippets and debug logging. Inner layers shadow outer ones.
func (c *Context) Snapshot() map[string]any {
	out := map[string]any{}
	for _, layer := range c.current().layers {
		for name, value := range layer {
			out[name] = values.Mask(value)
		}
	}
	return out
}
