package display

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int, fill uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = fill
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestCanvas_StartsWithPlaceholder(t *testing.T) {
	c := NewCanvas(800, 480)
	f := c.Frame()
	require.NotNil(t, f.Image)
	assert.Equal(t, uint64(1), f.Version)
	assert.Equal(t, image.Rect(0, 0, 800, 480), f.Image.Bounds())
}

func TestCanvas_DrawIsInvisibleUntilPresent(t *testing.T) {
	c := NewCanvas(4, 4)
	before := c.Frame()

	require.NoError(t, c.DrawImage(pngBytes(t, 4, 4, 0x00)))
	assert.Equal(t, before.Version, c.Frame().Version)

	c.Present()
	after := c.Frame()
	assert.Equal(t, before.Version+1, after.Version)
	assert.Equal(t, color.Gray{Y: 0}, after.Image.GrayAt(0, 0))

	c.Present()
	assert.Equal(t, after.Version, c.Frame().Version, "present without a draw keeps the frame")
	assert.Equal(t, uint64(2), c.Presents())
}

func TestCanvas_DecodeFailureKeepsFrame(t *testing.T) {
	c := NewCanvas(4, 4)
	require.NoError(t, c.DrawImage(pngBytes(t, 4, 4, 0x10)))
	c.Present()
	shown := c.Frame()

	assert.Error(t, c.DrawImage([]byte("garbage")))
	c.Present()
	assert.Equal(t, shown.Version, c.Frame().Version)
	assert.Equal(t, uint8(0x10), c.Frame().Image.GrayAt(1, 1).Y)
}

func TestCanvas_OnPresentSeesOnlyNewFrames(t *testing.T) {
	c := NewCanvas(2, 2)
	var seen []uint64
	c.OnPresent(func(f Frame) { seen = append(seen, f.Version) })

	c.Present()
	require.NoError(t, c.DrawImage(pngBytes(t, 2, 2, 0xff)))
	c.Present()
	c.Present()

	assert.Equal(t, []uint64{2}, seen)
}

func TestHeadless_WritesSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "frame.png")
	h := NewHeadless(3, 3, path)

	require.NoError(t, h.DrawImage(pngBytes(t, 3, 3, 0x40)))
	h.Present()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 3), img.Bounds())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
	assert.Nil(t, h.Drain())
}

func TestHeadless_RunReturnsOnCancel(t *testing.T) {
	h := NewHeadless(1, 1, "")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("headless run did not return")
	}
}

func TestAspectFit(t *testing.T) {
	scale, ox, oy := AspectFit(1600, 1200, 800, 480)
	assert.InDelta(t, 2.0, scale, 1e-9)
	assert.InDelta(t, 0.0, ox, 1e-9)
	assert.InDelta(t, 120.0, oy, 1e-9)

	scale, ox, oy = AspectFit(400, 480, 800, 480)
	assert.InDelta(t, 0.5, scale, 1e-9)
	assert.InDelta(t, 0.0, ox, 1e-9)
	assert.InDelta(t, 120.0, oy, 1e-9)

	scale, _, _ = AspectFit(10, 10, 0, 0)
	assert.Equal(t, 1.0, scale)
}
