package smoothing

// Curve maps the linear transition fraction (0..1) to the blend weight
// applied per channel. Every curve must return exactly 0 at 0 and 1 at 1.
type Curve func(f float64) float64

// LinearCurve is the identity ramp.
func LinearCurve(f float64) float64 { return f }

// SmoothCurve is the classic smoothstep 3f^2 - 2f^3: slow start, fast
// middle, slow settle.
func SmoothCurve(f float64) float64 {
	return f * f * (3 - 2*f)
}

// SmootherCurve is 6f^5 - 15f^4 + 10f^3.
func SmootherCurve(f float64) float64 {
	return f * f * f * (f*(f*6-15) + 10)
}

// CurveFor returns the curve used by a variant.
func CurveFor(v Variant) Curve {
	switch v {
	case Alternative:
		return SmoothCurve
	default:
		return LinearCurve
	}
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
