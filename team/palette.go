package team

import (
	"errors"
	"image"
	"image/color"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ErrNoKnownLabel is returned by PaletteClassifier when none of the labels
// has a reference colour
var ErrNoKnownLabel = errors.New("no label has a reference colour")

// PaletteClassifier is a simple hooptrack.Classifier which compares the
// average shirt colour of a player crop with a reference colour per label
type PaletteClassifier struct {
	// Palette maps a label to the reference colour of the uniform it
	// describes
	Palette map[string]color.RGBA
}

// NewPaletteClassifier returns a classifier knowing the default team labels
func NewPaletteClassifier() *PaletteClassifier {
	return &PaletteClassifier{
		Palette: map[string]color.RGBA{
			DefaultTeam1Label: {R: 235, G: 235, B: 235, A: 255},
			DefaultTeam2Label: {R: 25, G: 35, B: 90, A: 255},
		},
	}
}

// Classify returns the label whose reference colour is nearest to the
// average colour of the torso band of region.  Labels without a reference
// colour are ignored, ties keep the earlier label.
func (p *PaletteClassifier) Classify(region image.Image, labels []string) (string, error) {

	mean := torsoColour(region)

	best := ""
	bestDist := math.Inf(1)

	for _, label := range labels {
		ref, ok := p.Palette[label]

		if !ok {
			continue
		}

		dist := floats.Distance(mean, []float64{float64(ref.R), float64(ref.G), float64(ref.B)}, 2)

		if dist < bestDist {
			best = label
			bestDist = dist
		}
	}

	if best == "" {
		return "", ErrNoKnownLabel
	}

	return best, nil
}

// torsoColour averages the 8 bit RGB values over the upper half and central
// 60% of the width of img, where the shirt of a standing player sits
func torsoColour(img image.Image) []float64 {

	b := img.Bounds()
	w := b.Dx()

	band := image.Rect(
		b.Min.X+w/5, b.Min.Y,
		b.Max.X-w/5, b.Min.Y+(b.Dy()+1)/2,
	)

	if band.Empty() {
		band = b
	}

	sum := make([]float64, 3)
	px := make([]float64, 3)
	n := 0

	for y := band.Min.Y; y < band.Max.Y; y++ {
		for x := band.Min.X; x < band.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			px[0], px[1], px[2] = float64(r>>8), float64(g>>8), float64(bl>>8)
			floats.Add(sum, px)
			n++
		}
	}

	if n > 0 {
		floats.Scale(1/float64(n), sum)
	}

	return sum
}
