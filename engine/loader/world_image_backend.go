package loader

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/Carmen-Shannon/oxy-globe/engine/projection"
	"github.com/Carmen-Shannon/oxy-globe/engine/raster"
	_ "golang.org/x/image/tiff"
)

var (
	pngMagic    = []byte("\x89PNG\r\n\x1a\n")
	jpegMagic   = []byte{0xff, 0xd8, 0xff}
	tiffMagicLE = []byte("II*\x00")
	tiffMagicBE = []byte("MM\x00*")
)

// worldImageBackendImpl is the implementation of worldImageBackend.
type worldImageBackendImpl struct {
	terrainRGB bool
}

// worldImageBackend is a loaderBackend for TIFF, PNG and JPEG images georeferenced by a world file.
// Single-channel gray images decode as elevation (16-bit samples are signed meters), all others as color.
// In Terrain-RGB mode every pixel encodes a height as -10000 + 0.1 * (R*65536 + G*256 + B).
type worldImageBackend interface {
	loaderBackend
}

var _ worldImageBackend = &worldImageBackendImpl{}

func newWorldImageBackend(terrainRGB bool) worldImageBackend {
	return &worldImageBackendImpl{terrainRGB: terrainRGB}
}

func (b *worldImageBackendImpl) Recognize(path string, header []byte) bool {
	if b.terrainRGB {
		return hasExt(path, ".terrain.png") && bytes.HasPrefix(header, pngMagic)
	}
	for _, magic := range [][]byte{pngMagic, jpegMagic, tiffMagicLE, tiffMagicBE} {
		if bytes.HasPrefix(header, magic) {
			return true
		}
	}
	return false
}

func (b *worldImageBackendImpl) ReadMetadata(path string, defaultCRS *projection.CRS) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("empty image %dx%d", cfg.Width, cfg.Height)
	}

	crs, err := readCRS(path, defaultCRS)
	if err != nil {
		return nil, err
	}

	md := &Metadata{
		PixelFormat: raster.PixelFormatColor,
		Width:       cfg.Width,
		Height:      cfg.Height,
		CRS:         crs,
		NoData:      raster.DefaultNoData,
	}
	if b.terrainRGB || cfg.ColorModel == color.Gray16Model || cfg.ColorModel == color.GrayModel {
		md.PixelFormat = raster.PixelFormatElevation
	}

	wf, ok, err := readWorldFile(path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return md, nil
	}
	md.Extent = wf.extent(cfg.Width, cfg.Height)
	sector, err := geographicSector(md.Extent, crs)
	if err != nil {
		return nil, err
	}
	md.Sector = &sector
	return md, nil
}

func (b *worldImageBackendImpl) Decode(path string, md *Metadata, opts []raster.Option) (*raster.DataRaster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	if bounds.Dx() != md.Width || bounds.Dy() != md.Height {
		return nil, fmt.Errorf("decoded size %dx%d differs from header %dx%d", bounds.Dx(), bounds.Dy(), md.Width, md.Height)
	}

	if md.PixelFormat == raster.PixelFormatColor {
		rgba, ok := img.(*image.RGBA)
		if !ok || bounds.Min != (image.Point{}) {
			rgba = image.NewRGBA(image.Rect(0, 0, md.Width, md.Height))
			draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
		}
		return raster.NewColorRaster(rgba, *md.Sector, opts...)
	}

	samples := make([]float64, md.Width*md.Height)
	for y := 0; y < md.Height; y++ {
		for x := 0; x < md.Width; x++ {
			samples[y*md.Width+x] = b.elevationAt(img, bounds.Min.X+x, bounds.Min.Y+y, md.NoData)
		}
	}
	return raster.NewElevationRaster(md.Width, md.Height, *md.Sector, samples, opts...)
}

func (b *worldImageBackendImpl) elevationAt(img image.Image, x, y int, noData float64) float64 {
	if b.terrainRGB {
		c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
		if c.A == 0 {
			return noData
		}
		return rgbToHeight(c)
	}
	switch g := img.(type) {
	case *image.Gray16:
		return float64(int16(g.Gray16At(x, y).Y))
	case *image.Gray:
		return float64(g.GrayAt(x, y).Y)
	default:
		return float64(int16(color.Gray16Model.Convert(img.At(x, y)).(color.Gray16).Y))
	}
}

// rgbToHeight decodes a Terrain-RGB pixel into meters.
func rgbToHeight(c color.RGBA) float64 {
	x := int64(c.R)*256*256 + int64(c.G)*256 + int64(c.B)
	return -10000 + float64(x)*0.1
}
