package detect

import "framecut/internal/frame"

// DefaultMinWidth is the effective width auto-downscale aims for.
const DefaultMinWidth = 256

// ComputeDownscaleFactor floor-divides width by effectiveWidth so the
// subsampled width stays at or above effectiveWidth. Narrow frames get a
// factor of 1.
func ComputeDownscaleFactor(width, effectiveWidth int) int {
	if effectiveWidth < 1 {
		effectiveWidth = DefaultMinWidth
	}
	if width < effectiveWidth {
		return 1
	}
	return max(width/effectiveWidth, 1)
}

func (m *Manager) effectiveDownscale(source frame.Source) int {
	width, height := source.FrameSize()
	factor := m.downscale
	if m.autoDownscale {
		factor = ComputeDownscaleFactor(width, m.minWidth)
	}
	if factor > 1 {
		m.logger.Info("downscale factor applied",
			"downscale", factor,
			"effective_width", width/factor,
			"effective_height", height/factor,
		)
	}
	return max(factor, 1)
}
