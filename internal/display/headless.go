package display

import (
	"context"
	"fmt"
	"image/png"
	"log"
	"os"
	"path/filepath"

	"github.com/tinytelemetry/byod/internal/input"
)

// Headless is a frontend without a screen. It never produces input and
// optionally writes every new frame to a PNG file.
type Headless struct {
	*Canvas
	input.Queue

	snapshotPath string
}

// NewHeadless creates a headless frontend. An empty snapshotPath disables
// snapshots.
func NewHeadless(width, height int, snapshotPath string) *Headless {
	h := &Headless{
		Canvas:       NewCanvas(width, height),
		snapshotPath: snapshotPath,
	}
	if snapshotPath != "" {
		h.OnPresent(func(f Frame) {
			if err := writePNG(snapshotPath, f); err != nil {
				log.Printf("display: snapshot: %v", err)
			}
		})
	}
	return h
}

// Run blocks until ctx is done.
func (h *Headless) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

// writePNG replaces path atomically so readers never see a partial file.
func writePNG(path string, f Frame) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*.png")
	if err != nil {
		return fmt.Errorf("creating snapshot file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := png.Encode(tmp, f.Image); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding frame %d: %w", f.Version, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing snapshot file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
