package camera

// NavigatorBuilderOption is a functional option for configuring a Navigator.
type NavigatorBuilderOption func(*navigatorImpl)

// WithFrameGrowth sets the factor applied to the range after each failed framing step.
// Factors of 1 or less are ignored.
//
// Parameters:
//   - f: the growth factor
//
// Returns:
//   - NavigatorBuilderOption: functional option to set the growth factor
func WithFrameGrowth(f float64) NavigatorBuilderOption {
	return func(n *navigatorImpl) {
		if f > 1 {
			n.growth = f
		}
	}
}

// WithMinFrameRange sets the closest range Frame starts from, in meters.
func WithMinFrameRange(r float64) NavigatorBuilderOption {
	return func(n *navigatorImpl) {
		n.minRange = r
	}
}

// WithMaxFrameSteps bounds the number of range steps Frame tries.
func WithMaxFrameSteps(steps int) NavigatorBuilderOption {
	return func(n *navigatorImpl) {
		if steps > 0 {
			n.maxIterations = steps
		}
	}
}
