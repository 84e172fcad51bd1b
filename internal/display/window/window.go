// Package window shows the canvas in a desktop window using Ebitengine.
package window

import (
	"context"
	"image/color"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/tinytelemetry/byod/internal/display"
	"github.com/tinytelemetry/byod/internal/input"
)

// Title is the window title.
const Title = "TRMNL"

// Window is an ebiten.Game presenting the canvas and capturing keys.
type Window struct {
	*display.Canvas
	input.Queue

	scale float64
	ctx   context.Context

	img     *ebiten.Image
	shown   uint64
	keysBuf []ebiten.Key
}

// New creates a window frontend for a width x height canvas. scale sizes
// the initial window.
func New(width, height int, scale float64) *Window {
	if scale <= 0 {
		scale = 1
	}
	return &Window{
		Canvas: display.NewCanvas(width, height),
		scale:  scale,
		ctx:    context.Background(),
	}
}

// Run starts the Ebitengine game loop and returns when ctx is done or the
// loop fails. Must be called from the main goroutine.
func (w *Window) Run(ctx context.Context) error {
	w.ctx = ctx
	width, height := w.Size()
	ebiten.SetWindowSize(int(float64(width)*w.scale), int(float64(height)*w.scale))
	ebiten.SetWindowTitle(Title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowClosingHandled(true)
	return ebiten.RunGame(w)
}

// --- ebiten.Game interface ---

func (w *Window) Update() error {
	if w.ctx.Err() != nil {
		return ebiten.Termination
	}
	if ebiten.IsWindowBeingClosed() {
		w.Push(input.Event{Kind: input.Quit})
	}

	w.keysBuf = inpututil.AppendJustPressedKeys(w.keysBuf[:0])
	for _, k := range w.keysBuf {
		if k == ebiten.KeyEscape {
			w.Push(input.Event{Kind: input.Quit})
			continue
		}
		w.Push(input.Event{Kind: input.KeyPress, Key: keyName(k)})
	}
	return nil
}

func (w *Window) Draw(screen *ebiten.Image) {
	screen.Fill(color.White)

	f := w.Frame()
	if f.Image == nil {
		return
	}
	if w.img == nil || f.Version != w.shown {
		if w.img != nil {
			w.img.Deallocate()
		}
		w.img = ebiten.NewImageFromImage(f.Image)
		w.shown = f.Version
	}

	sw, sh := screen.Bounds().Dx(), screen.Bounds().Dy()
	fw, fh := float64(f.Image.Bounds().Dx()), float64(f.Image.Bounds().Dy())
	scale, offsetX, offsetY := display.AspectFit(float64(sw), float64(sh), fw, fh)

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(scale, scale)
	op.GeoM.Translate(offsetX, offsetY)
	op.Filter = ebiten.FilterNearest
	screen.DrawImage(w.img, op)
}

func (w *Window) Layout(outsideWidth, outsideHeight int) (int, int) {
	return outsideWidth, outsideHeight
}

// keyName maps an Ebitengine key to the lower-case names used for refresh
// keys ("r", "f5", "space").
func keyName(k ebiten.Key) string {
	return strings.ToLower(k.String())
}
