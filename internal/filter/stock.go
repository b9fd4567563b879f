package filter

import (
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/gift"
	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/dunamismax/pixelgraph/internal/graph"
)

// Filter names. They double as recipe and CLI identifiers.
const (
	NameGaussianBlur = "gaussian_blur"
	NameBoxBlur      = "box_blur"
	NameMedian       = "median"
	NameSharpen      = "sharpen"
	NameUnsharpMask  = "unsharp_mask"
	NameBrightness   = "brightness"
	NameContrast     = "contrast"
	NameSaturation   = "saturation"
	NameGamma        = "gamma"
	NameExposure     = "exposure"
	NameHue          = "hue"
	NameGrayscale    = "grayscale"
	NameSepia        = "sepia"
	NameInvert       = "invert"
	NamePosterize    = "posterize"
	NameThreshold    = "threshold"
	NamePixelate     = "pixelate"
	NameEmboss       = "emboss"
	NameTint         = "tint"
)

var catalog = map[string]entry{
	NameGaussianBlur: {
		params: map[string]Range{"radius": {Min: 0, Max: 100, Default: 10}},
		apply: func(src *image.NRGBA, p map[string]float64) *image.NRGBA {
			if p["radius"] == 0 {
				return imaging.Clone(src)
			}
			return imaging.Blur(src, p["radius"])
		},
	},
	NameBoxBlur: {
		params: map[string]Range{"radius": {Min: 0, Max: 100, Default: 5}},
		apply: func(src *image.NRGBA, p map[string]float64) *image.NRGBA {
			if p["radius"] == 0 {
				return imaging.Clone(src)
			}
			return imaging.Clone(blur.Box(src, p["radius"]))
		},
	},
	NameMedian: {
		params: map[string]Range{"radius": {Min: 1, Max: 20, Default: 2}},
		apply: func(src *image.NRGBA, p map[string]float64) *image.NRGBA {
			ksize := 2*int(math.Round(p["radius"])) + 1
			return runGift(src, gift.Median(ksize, true))
		},
	},
	NameSharpen: {
		params: map[string]Range{"sigma": {Min: 0, Max: 10, Default: 1}},
		apply: func(src *image.NRGBA, p map[string]float64) *image.NRGBA {
			if p["sigma"] == 0 {
				return imaging.Clone(src)
			}
			return imaging.Sharpen(src, p["sigma"])
		},
	},
	NameUnsharpMask: {
		params: map[string]Range{
			"sigma":     {Min: 0, Max: 10, Default: 1},
			"amount":    {Min: 0, Max: 5, Default: 1},
			"threshold": {Min: 0, Max: 1, Default: 0},
		},
		apply: func(src *image.NRGBA, p map[string]float64) *image.NRGBA {
			return runGift(src, gift.UnsharpMask(float32(p["sigma"]), float32(p["amount"]), float32(p["threshold"])))
		},
	},
	NameBrightness: {
		params: map[string]Range{"amount": {Min: -100, Max: 100, Default: 0}},
		apply: func(src *image.NRGBA, p map[string]float64) *image.NRGBA {
			return imaging.AdjustBrightness(src, p["amount"])
		},
	},
	NameContrast: {
		params: map[string]Range{"amount": {Min: -100, Max: 100, Default: 0}},
		apply: func(src *image.NRGBA, p map[string]float64) *image.NRGBA {
			return imaging.AdjustContrast(src, p["amount"])
		},
	},
	NameSaturation: {
		params: map[string]Range{"amount": {Min: -100, Max: 100, Default: 0}},
		apply: func(src *image.NRGBA, p map[string]float64) *image.NRGBA {
			return imaging.AdjustSaturation(src, p["amount"])
		},
	},
	NameGamma: {
		params: map[string]Range{"gamma": {Min: 0.1, Max: 10, Default: 1}},
		apply: func(src *image.NRGBA, p map[string]float64) *image.NRGBA {
			return imaging.AdjustGamma(src, p["gamma"])
		},
	},
	NameExposure: {
		params: map[string]Range{"ev": {Min: -10, Max: 10, Default: 0}},
		apply: func(src *image.NRGBA, p map[string]float64) *image.NRGBA {
			gain := math.Exp2(p["ev"])
			return imaging.AdjustFunc(src, func(c color.NRGBA) color.NRGBA {
				return color.NRGBA{R: scaleChannel(c.R, gain), G: scaleChannel(c.G, gain), B: scaleChannel(c.B, gain), A: c.A}
			})
		},
	},
	NameHue: {
		params: map[string]Range{"shift": {Min: -180, Max: 180, Default: 0}},
		apply: func(src *image.NRGBA, p map[string]float64) *image.NRGBA {
			return runGift(src, gift.Hue(float32(p["shift"])))
		},
	},
	NameGrayscale: {
		params: map[string]Range{},
		apply: func(src *image.NRGBA, _ map[string]float64) *image.NRGBA {
			return imaging.Grayscale(src)
		},
	},
	NameSepia: {
		params: map[string]Range{"intensity": {Min: 0, Max: 100, Default: 100}},
		apply: func(src *image.NRGBA, p map[string]float64) *image.NRGBA {
			return runGift(src, gift.Sepia(float32(p["intensity"])))
		},
	},
	NameInvert: {
		params: map[string]Range{},
		apply: func(src *image.NRGBA, _ map[string]float64) *image.NRGBA {
			return imaging.Invert(src)
		},
	},
	NamePosterize: {
		params: map[string]Range{"levels": {Min: 2, Max: 256, Default: 6}},
		apply: func(src *image.NRGBA, p map[string]float64) *image.NRGBA {
			levels := math.Round(p["levels"])
			step := 255 / (levels - 1)
			q := func(v uint8) uint8 {
				return uint8(math.Round(math.Round(float64(v)/step) * step))
			}
			return imaging.AdjustFunc(src, func(c color.NRGBA) color.NRGBA {
				return color.NRGBA{R: q(c.R), G: q(c.G), B: q(c.B), A: c.A}
			})
		},
	},
	NameThreshold: {
		params: map[string]Range{"level": {Min: 0, Max: 100, Default: 50}},
		apply: func(src *image.NRGBA, p map[string]float64) *image.NRGBA {
			return runGift(src, gift.Threshold(float32(p["level"])))
		},
	},
	NamePixelate: {
		params: map[string]Range{"size": {Min: 1, Max: 256, Default: 8}},
		apply: func(src *image.NRGBA, p map[string]float64) *image.NRGBA {
			return runGift(src, gift.Pixelate(int(math.Round(p["size"]))))
		},
	},
	NameEmboss: {
		params: map[string]Range{},
		apply: func(src *image.NRGBA, _ map[string]float64) *image.NRGBA {
			return imaging.Clone(effect.Emboss(src))
		},
	},
	NameTint: {
		params: map[string]Range{
			"r":      {Min: 0, Max: 255, Default: 255},
			"g":      {Min: 0, Max: 255, Default: 200},
			"b":      {Min: 0, Max: 255, Default: 120},
			"amount": {Min: 0, Max: 1, Default: 0.3},
		},
		apply: applyTint,
	},
}

func runGift(src *image.NRGBA, filters ...gift.Filter) *image.NRGBA {
	g := gift.New(filters...)
	dst := image.NewNRGBA(g.Bounds(src.Bounds()))
	g.Draw(dst, src)
	return dst
}

func scaleChannel(v uint8, gain float64) uint8 {
	return uint8(math.Min(255, math.Round(float64(v)*gain)))
}

// applyTint blends every pixel toward the tint color in Lab space, which
// keeps perceived lightness steadier than an RGB mix.
func applyTint(src *image.NRGBA, p map[string]float64) *image.NRGBA {
	tint := colorful.Color{R: p["r"] / 255, G: p["g"] / 255, B: p["b"] / 255}
	amount := p["amount"]
	if amount == 0 {
		return imaging.Clone(src)
	}
	return imaging.AdjustFunc(src, func(c color.NRGBA) color.NRGBA {
		base := colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
		r, g, b := base.BlendLab(tint, amount).Clamped().RGB255()
		return color.NRGBA{R: r, G: g, B: b, A: c.A}
	})
}

// Constructors for the most common library entries. Each clamps its
// arguments into the documented range.

func GaussianBlur(radius float64) graph.Filter {
	return build(NameGaussianBlur, map[string]float64{"radius": radius})
}

func BoxBlur(radius float64) graph.Filter {
	return build(NameBoxBlur, map[string]float64{"radius": radius})
}

func Median(radius float64) graph.Filter {
	return build(NameMedian, map[string]float64{"radius": radius})
}

func Sharpen(sigma float64) graph.Filter {
	return build(NameSharpen, map[string]float64{"sigma": sigma})
}

func UnsharpMask(sigma, amount, threshold float64) graph.Filter {
	return build(NameUnsharpMask, map[string]float64{"sigma": sigma, "amount": amount, "threshold": threshold})
}

func Brightness(amount float64) graph.Filter {
	return build(NameBrightness, map[string]float64{"amount": amount})
}

func Contrast(amount float64) graph.Filter {
	return build(NameContrast, map[string]float64{"amount": amount})
}

func Saturation(amount float64) graph.Filter {
	return build(NameSaturation, map[string]float64{"amount": amount})
}

func Gamma(gamma float64) graph.Filter {
	return build(NameGamma, map[string]float64{"gamma": gamma})
}

func Exposure(ev float64) graph.Filter {
	return build(NameExposure, map[string]float64{"ev": ev})
}

func Hue(shift float64) graph.Filter {
	return build(NameHue, map[string]float64{"shift": shift})
}

func Grayscale() graph.Filter { return build(NameGrayscale, nil) }
func Invert() graph.Filter    { return build(NameInvert, nil) }
func Emboss() graph.Filter    { return build(NameEmboss, nil) }

func Sepia(intensity float64) graph.Filter {
	return build(NameSepia, map[string]float64{"intensity": intensity})
}

func Posterize(levels float64) graph.Filter {
	return build(NamePosterize, map[string]float64{"levels": levels})
}

func Threshold(level float64) graph.Filter {
	return build(NameThreshold, map[string]float64{"level": level})
}

func Pixelate(size float64) graph.Filter {
	return build(NamePixelate, map[string]float64{"size": size})
}

// Tint blends toward c by amount (0..1). Transparent colors tint toward
// black.
func Tint(c color.Color, amount float64) graph.Filter {
	nc := color.NRGBAModel.Convert(c).(color.NRGBA)
	return build(NameTint, map[string]float64{
		"r":      float64(nc.R),
		"g":      float64(nc.G),
		"b":      float64(nc.B),
		"amount": amount,
	})
}
