package display

import "math"

// AspectFit returns the scale and offsets that fit a frame into a view,
// letterboxed and centered.
func AspectFit(viewW, viewH, frameW, frameH float64) (scale, offsetX, offsetY float64) {
	if frameW <= 0 || frameH <= 0 {
		return 1, 0, 0
	}
	scale = math.Min(viewW/frameW, viewH/frameH)
	offsetX = (viewW - frameW*scale) / 2
	offsetY = (viewH - frameH*scale) / 2
	return
}
