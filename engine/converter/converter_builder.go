package converter

import "github.com/cogentcore/webgpu/wgpu"

// ConverterBuilderOption is a functional option for configuring a Converter via NewConverter.
type ConverterBuilderOption func(*converterImpl)

// WithSRGB tags display images as sRGB encoded so the sampler linearizes them.
func WithSRGB() ConverterBuilderOption {
	return func(c *converterImpl) {
		c.format = wgpu.TextureFormatRGBA8UnormSrgb
	}
}
