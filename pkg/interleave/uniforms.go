package interleave

import (
	"holoquilt/internal/models"
)

// Uniforms returns the shader uniforms for drawing a quilt laid out as g
// onto a screenWidth x screenHeight target.
func Uniforms(cal models.Calibration, g models.QuiltGeometry, screenWidth, screenHeight int, debug bool) map[string]any {
	var overscan, dbg float32
	if g.Overscan {
		overscan = 1
	}
	if debug {
		dbg = 1
	}

	return map[string]any{
		"ScreenSize":    []float32{float32(screenWidth), float32(screenHeight)},
		"Pitch":         float32(cal.Pitch),
		"Tilt":          float32(cal.Tilt),
		"Center":        float32(cal.Center),
		"Subp":          float32(cal.Subp),
		"Invert":        float32(invertSign(cal.InvView, g.Invert)),
		"DisplayAspect": float32(cal.DisplayAspect),
		"QuiltAspect":   float32(g.QuiltAspect()),
		"Overscan":      overscan,
		"Tiles":         []float32{float32(g.Columns), float32(g.Rows), float32(g.TotalViews())},
		"ViewPortion":   []float32{float32(g.ViewPortion[0]), float32(g.ViewPortion[1])},
		"Ri":            float32(cal.Ri),
		"Bi":            float32(cal.Bi),
		"Debug":         dbg,
	}
}
