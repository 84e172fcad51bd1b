// Package display holds the surfaces the renderer draws on. A Canvas is
// the renderer-owned drawing target; frontends read its presented frame.
package display

import (
	"image"
	"sync"

	"github.com/tinytelemetry/byod/internal/bitmap"
)

// PlaceholderCaption is shown until the first image arrives.
const PlaceholderCaption = "TRMNL: waiting for the first image"

// Frame is one presented image. Version increases with every new frame.
type Frame struct {
	Image   *image.Gray
	Version uint64
}

// Canvas decodes into a back buffer on DrawImage and publishes it on
// Present, so readers never see a half drawn frame.
type Canvas struct {
	width, height int

	// back and dirty belong to the renderer goroutine.
	back  *image.Gray
	dirty bool

	mu        sync.RWMutex
	front     Frame
	presents  uint64
	listeners []func(Frame)
}

// NewCanvas creates a width x height canvas showing the placeholder.
func NewCanvas(width, height int) *Canvas {
	return &Canvas{
		width:  width,
		height: height,
		front: Frame{
			Image:   bitmap.Placeholder(width, height, PlaceholderCaption),
			Version: 1,
		},
	}
}

// Size reports the nominal canvas size.
func (c *Canvas) Size() (width, height int) {
	return c.width, c.height
}

// DrawImage decodes data into the back buffer. On error the back buffer is
// left untouched.
func (c *Canvas) DrawImage(data []byte) error {
	img, err := bitmap.Decode(data)
	if err != nil {
		return err
	}
	c.back = img
	c.dirty = true
	return nil
}

// Present publishes the back buffer if it changed since the last call.
// Listeners run on the caller's goroutine only for new frames.
func (c *Canvas) Present() {
	c.mu.Lock()
	c.presents++
	if !c.dirty {
		c.mu.Unlock()
		return
	}
	c.front = Frame{Image: c.back, Version: c.front.Version + 1}
	c.back = nil
	c.dirty = false
	f := c.front
	listeners := c.listeners
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(f)
	}
}

// Frame returns the last presented frame. The image must not be modified.
func (c *Canvas) Frame() Frame {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.front
}

// Presents reports how many times Present was called.
func (c *Canvas) Presents() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.presents
}

// OnPresent registers fn to receive every newly presented frame.
func (c *Canvas) OnPresent(fn func(Frame)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}
