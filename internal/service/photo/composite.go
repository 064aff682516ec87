package photo

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"os"
	"time"
	"yorae/internal/logger"

	"gocv.io/x/gocv"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/sync/errgroup"
)

// ErrCompositeFailed is returned when a comparison image cannot be produced.
var ErrCompositeFailed = errors.New("composite failed")

// CompositorOptions configures the comparison renderer.
type CompositorOptions struct {
	Target   int    // shared edge in pixels, 1080 by default
	Quality  int    // JPEG quality of the result
	Locale   string // label locale, e.g. "ko" or "en"
	Rounded  bool   // capsule-shaped label background
	FontPath string // TTF/OTF face for the label, Go Bold when empty
}

// Compositor merges a before and an after photo into one annotated image.
type Compositor struct {
	target  int
	quality int
	format  LabelFormat
	rounded bool
	font    *opentype.Font
	now     func() time.Time
	logger  *logger.Logger
}

// NewCompositor creates a Compositor. A font that cannot be loaded is logged
// and replaced by the embedded Go Bold face. When the face cannot draw the
// label of the requested locale, the English label is used instead.
func NewCompositor(opts CompositorOptions, logger *logger.Logger) *Compositor {
	if opts.Target <= 0 {
		opts.Target = 1080
	}
	if opts.Quality <= 0 {
		opts.Quality = 90
	}

	c := &Compositor{
		target:  opts.Target,
		quality: opts.Quality,
		format:  LabelFormatFor(opts.Locale),
		rounded: opts.Rounded,
		now:     time.Now,
		logger:  logger,
	}

	if opts.FontPath != "" {
		f, err := loadFont(opts.FontPath)
		if err != nil {
			logger.Warning("Could not load label font, using Go Bold: %v", err)
		} else {
			c.font = f
		}
	}
	if c.font == nil {
		f, err := opentype.Parse(gobold.TTF)
		if err != nil {
			panic(fmt.Sprintf("embedded font is invalid: %v", err))
		}
		c.font = f
	}

	format, missing := drawableFormat(c.font, c.format)
	if len(missing) > 0 {
		logger.Warning("Label font has no glyphs for %q, using %q instead", string(missing), format.Text(c.now(), 0))
	}
	c.format = format

	return c
}

// SetClock overrides the wall clock used by Composite.
func (c *Compositor) SetClock(now func() time.Time) {
	c.now = now
}

// LabelText returns the footer text that CompositeAt would render.
func (c *Compositor) LabelText(at time.Time, minutes int) string {
	return c.format.Text(at, minutes)
}

// Composite merges before and after, labelling the result with the current time.
func (c *Compositor) Composite(before, after []byte, minutes int) ([]byte, error) {
	return c.CompositeAt(before, after, minutes, c.now())
}

// CompositeAt merges before and after, labelling the result with at and the
// elapsed minutes. Any decode failure yields ErrCompositeFailed.
func (c *Compositor) CompositeAt(before, after []byte, minutes int, at time.Time) ([]byte, error) {
	var beforeMat, afterMat *gocv.Mat
	var g errgroup.Group

	g.Go(func() error {
		m, err := decode(before)
		if err != nil {
			return fmt.Errorf("before image: %w", err)
		}
		beforeMat = &m
		return nil
	})
	g.Go(func() error {
		m, err := decode(after)
		if err != nil {
			return fmt.Errorf("after image: %w", err)
		}
		afterMat = &m
		return nil
	})

	err := g.Wait()
	if beforeMat != nil {
		defer beforeMat.Close()
	}
	if afterMat != nil {
		defer afterMat.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompositeFailed, err)
	}

	layout := PlanLayout(
		image.Pt(beforeMat.Cols(), beforeMat.Rows()),
		image.Pt(afterMat.Cols(), afterMat.Rows()),
		c.target,
	)

	canvas := image.NewRGBA(image.Rectangle{Max: layout.Canvas})
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)

	if err := place(canvas, *beforeMat, layout.Before); err != nil {
		return nil, fmt.Errorf("%w: before image: %v", ErrCompositeFailed, err)
	}
	if err := place(canvas, *afterMat, layout.After); err != nil {
		return nil, fmt.Errorf("%w: after image: %v", ErrCompositeFailed, err)
	}

	face, err := newFace(c.font, FontSize(layout.Canvas))
	if err != nil {
		return nil, fmt.Errorf("%w: label font: %v", ErrCompositeFailed, err)
	}
	defer face.Close()

	text := c.format.Text(at, minutes)
	drawLabel(canvas, face, text, c.rounded)

	out, err := encodeImage(canvas, c.quality)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompositeFailed, err)
	}

	c.logger.Info("Composited %s %dx%d (%d bytes): %s",
		layout.Policy, layout.Canvas.X, layout.Canvas.Y, len(out), text)
	return out, nil
}

// place scales the source region of src into its target rectangle on canvas.
func place(canvas draw.Image, src gocv.Mat, p Placement) error {
	resized, err := resize(src, p.Source, p.Target.Size())
	if err != nil {
		return err
	}
	defer resized.Close()

	img, err := resized.ToImage()
	if err != nil {
		return fmt.Errorf("failed to convert image: %w", err)
	}

	draw.Draw(canvas, p.Target, img, img.Bounds().Min, draw.Src)
	return nil
}

func loadFont(path string) (*opentype.Font, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read font %s: %w", path, err)
	}

	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font %s: %w", path, err)
	}
	return f, nil
}
