package photo

import "image"

// Orientation classifies an image by its aspect ratio.
type Orientation int

const (
	Portrait Orientation = iota
	Landscape
)

// OrientationOf reports Landscape only when the image is strictly wider than
// it is tall; squares count as portrait.
func OrientationOf(size image.Point) Orientation {
	if size.X > size.Y {
		return Landscape
	}
	return Portrait
}

// LayoutPolicy is how the two photos share the canvas.
type LayoutPolicy int

const (
	StackVertical LayoutPolicy = iota
	SideBySide
	CenterCroppedPair
)

func (p LayoutPolicy) String() string {
	switch p {
	case StackVertical:
		return "stack-vertical"
	case SideBySide:
		return "side-by-side"
	case CenterCroppedPair:
		return "center-cropped-pair"
	default:
		return "unknown"
	}
}

// ChooseLayout picks the policy from the orientations of both photos.
// Mixed orientations are cropped to squares so neither photo dominates.
func ChooseLayout(before, after Orientation) LayoutPolicy {
	switch {
	case before == Landscape && after == Landscape:
		return StackVertical
	case before == Portrait && after == Portrait:
		return SideBySide
	default:
		return CenterCroppedPair
	}
}

// Placement maps a source region of one photo onto the canvas.
type Placement struct {
	Source image.Rectangle
	Target image.Rectangle
}

// Layout is the resolved geometry of a comparison image.
type Layout struct {
	Policy LayoutPolicy
	Canvas image.Point
	Before Placement
	After  Placement
}

// PlanLayout computes canvas size and placements for photos of the given
// sizes. target is the shared dimension: width when stacking, height when
// side by side, and the square edge when cropping.
func PlanLayout(before, after image.Point, target int) Layout {
	policy := ChooseLayout(OrientationOf(before), OrientationOf(after))
	full := func(size image.Point) image.Rectangle {
		return image.Rectangle{Max: size}
	}

	switch policy {
	case StackVertical:
		hb := scaled(before.Y, target, before.X)
		ha := scaled(after.Y, target, after.X)
		return Layout{
			Policy: policy,
			Canvas: image.Pt(target, hb+ha),
			Before: Placement{Source: full(before), Target: image.Rect(0, 0, target, hb)},
			After:  Placement{Source: full(after), Target: image.Rect(0, hb, target, hb+ha)},
		}

	case SideBySide:
		wb := scaled(before.X, target, before.Y)
		wa := scaled(after.X, target, after.Y)
		return Layout{
			Policy: policy,
			Canvas: image.Pt(wb+wa, target),
			Before: Placement{Source: full(before), Target: image.Rect(0, 0, wb, target)},
			After:  Placement{Source: full(after), Target: image.Rect(wb, 0, wb+wa, target)},
		}

	default:
		return Layout{
			Policy: policy,
			Canvas: image.Pt(target*2, target),
			Before: Placement{Source: centerSquare(before), Target: image.Rect(0, 0, target, target)},
			After:  Placement{Source: centerSquare(after), Target: image.Rect(target, 0, target*2, target)},
		}
	}
}

// centerSquare returns the largest centered square inside size.
func centerSquare(size image.Point) image.Rectangle {
	edge := min(size.X, size.Y)
	x := (size.X - edge) / 2
	y := (size.Y - edge) / 2
	return image.Rect(x, y, x+edge, y+edge)
}
