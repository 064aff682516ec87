package photo

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"time"
	"unicode"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
	"golang.org/x/text/language"
)

// Label proportions, relative to the font size.
const (
	fontScale      = 0.035
	paddingH       = 1.5
	paddingV       = 0.8
	capsuleOpacity = 0.7
	bezierQuarterK = 0.5522847498
	trailingMark   = "✨"
	fallbackMark   = "*"
)

// LabelFormat renders the footer text for one locale.
type LabelFormat struct {
	Tag        language.Tag
	DateLayout string
	Template   string // date, minutes, mark
	Mark       string
}

var labelFormats = []LabelFormat{
	{Tag: language.Korean, DateLayout: "2006/01/02 15:04", Template: "%s | %d분 소요 | 요래됐슴당 %s", Mark: trailingMark},
	{Tag: language.English, DateLayout: "Jan 02, 2006 15:04", Template: "%s | %d min | Yorae %s", Mark: trailingMark},
}

var labelMatcher = language.NewMatcher([]language.Tag{language.Korean, language.English})

// LabelFormatFor returns the closest supported format for a BCP 47 locale,
// defaulting to Korean.
func LabelFormatFor(locale string) LabelFormat {
	_, idx, _ := labelMatcher.Match(language.Make(locale))
	return labelFormats[idx]
}

// Text builds the single-line footer for a session that ended at `at` and
// took minutes minutes.
func (f LabelFormat) Text(at time.Time, minutes int) string {
	return fmt.Sprintf(f.Template, at.Format(f.DateLayout), minutes, f.Mark)
}

// missingGlyphs lists the runes of text that f has no glyph for.
func missingGlyphs(f *opentype.Font, text string) []rune {
	var buf sfnt.Buffer
	var missing []rune
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		if idx, err := f.GlyphIndex(&buf, r); err != nil || idx == 0 {
			missing = append(missing, r)
		}
	}
	return missing
}

// drawableFormat returns format when f can render all of its text. Otherwise
// it falls back to English and, if needed, a plain trailing mark.
func drawableFormat(f *opentype.Font, format LabelFormat) (LabelFormat, []rune) {
	sample := time.Date(2006, time.January, 2, 15, 4, 0, 0, time.UTC)
	missing := missingGlyphs(f, format.Text(sample, 15))
	if len(missing) == 0 {
		return format, nil
	}

	format = LabelFormatFor("en")
	if len(missingGlyphs(f, format.Text(sample, 15))) > 0 {
		format.Mark = fallbackMark
	}
	return format, missing
}

// FontSize is the label font size for a canvas.
func FontSize(canvas image.Point) int {
	size := int(math.Round(float64(max(canvas.X, canvas.Y)) * fontScale))
	if size < 1 {
		return 1
	}
	return size
}

// Capsule is the label background box in canvas coordinates.
type Capsule struct {
	X, Y, W, H float64
}

// Radius is half the box height, which makes the short ends fully round.
func (c Capsule) Radius() float64 {
	return c.H / 2
}

// Rect returns the integer bounds of the capsule.
func (c Capsule) Rect() image.Rectangle {
	return image.Rect(
		int(math.Round(c.X)), int(math.Round(c.Y)),
		int(math.Round(c.X+c.W)), int(math.Round(c.Y+c.H)),
	)
}

// PlaceCapsule sizes the box around text of textWidth pixels: centered
// horizontally, one font size above the bottom edge.
func PlaceCapsule(canvas image.Point, fontSize int, textWidth float64) Capsule {
	fs := float64(fontSize)
	w := textWidth + fs*paddingH*2
	h := fs + fs*paddingV*2
	return Capsule{
		X: (float64(canvas.X) - w) / 2,
		Y: float64(canvas.Y) - h - fs,
		W: w,
		H: h,
	}
}

// drawLabel paints the capsule and the centered text onto dst.
func drawLabel(dst draw.Image, face font.Face, text string, rounded bool) Capsule {
	bounds := dst.Bounds()
	canvas := bounds.Size()
	fontSize := FontSize(canvas)

	advance := font.MeasureString(face, text)
	capsule := PlaceCapsule(canvas, fontSize, fixedToFloat(advance))

	fill := image.NewUniform(color.NRGBA{A: uint8(math.Round(255 * capsuleOpacity))})
	if rounded && capsule.W >= capsule.H {
		fillCapsule(dst, capsule, fill)
	} else {
		draw.Draw(dst, capsule.Rect(), fill, image.Point{}, draw.Over)
	}

	metrics := face.Metrics()
	centerX := capsule.X + capsule.W/2
	centerY := capsule.Y + capsule.H/2
	baseline := centerY + (fixedToFloat(metrics.Ascent)-fixedToFloat(metrics.Descent))/2

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.White,
		Face: face,
		Dot: fixed.Point26_6{
			X: floatToFixed(centerX - fixedToFloat(advance)/2),
			Y: floatToFixed(baseline),
		},
	}
	d.DrawString(text)
	return capsule
}

// fillCapsule rasterizes a stadium shape: a rectangle with semicircular ends.
func fillCapsule(dst draw.Image, c Capsule, src image.Image) {
	b := dst.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())

	x, y := float32(c.X), float32(c.Y)
	w, h := float32(c.W), float32(c.H)
	r := float32(c.Radius())
	k := r * bezierQuarterK

	z.MoveTo(x+r, y)
	z.LineTo(x+w-r, y)
	z.CubeTo(x+w-r+k, y, x+w, y+r-k, x+w, y+r)
	z.CubeTo(x+w, y+r+k, x+w-r+k, y+h, x+w-r, y+h)
	z.LineTo(x+r, y+h)
	z.CubeTo(x+r-k, y+h, x, y+r+k, x, y+r)
	z.CubeTo(x, y+r-k, x+r-k, y, x+r, y)
	z.ClosePath()

	z.Draw(dst, b, src, image.Point{})
}

func newFace(f *opentype.Font, size int) (font.Face, error) {
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

func floatToFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(math.Round(v * 64))
}
