package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/stat"

	"seismicslicer/internal/models"
)

// ClipSigma is the display clip in standard deviations of the volume
const ClipSigma = 3.0

// Viewer renders sections of a seismic volume as grayscale images.
// Amplitudes are clipped at ±ClipSigma standard deviations and mapped so that
// zero amplitude is mid-gray, negative is dark and positive is bright.
type Viewer struct {
	// vol holds the volume to display
	vol *models.Volume

	// clip is the amplitude mapped to full white
	clip float64
}

// NewViewer creates a viewer for vol
func NewViewer(vol *models.Volume) *Viewer {
	return &Viewer{
		vol:  vol,
		clip: ClipSigma * stat.StdDev(vol.Data, nil),
	}
}

// Clip returns the amplitude mapped to full white
func (v *Viewer) Clip() float64 {
	return v.clip
}

// gray maps an amplitude to a 16-bit gray level
func (v *Viewer) gray(x float64) color.Gray16 {
	if v.clip == 0 || math.IsNaN(v.clip) {
		return color.Gray16{Y: 32768}
	}
	u := 0.5 + 0.5*x/v.clip
	u = math.Max(0, math.Min(1, u))
	return color.Gray16{Y: uint16(math.Round(u * 65535))}
}

// ExtractSlice extracts a 2D section along the specified axis.
// Inline and crossline sections have time running down the image; time
// slices have crosslines across and inlines down.
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}
	s := v.vol.Shape

	var img *image.Gray16
	switch strings.ToLower(axis) {
	case "inline":
		if position >= s.N1 {
			return nil, fmt.Errorf("position %d exceeds %d inlines", position, s.N1)
		}
		img = image.NewGray16(image.Rect(0, 0, s.N2, s.N3))
		for i2 := 0; i2 < s.N2; i2++ {
			for t := 0; t < s.N3; t++ {
				img.SetGray16(i2, t, v.gray(v.vol.At(position, i2, t)))
			}
		}

	case "crossline":
		if position >= s.N2 {
			return nil, fmt.Errorf("position %d exceeds %d crosslines", position, s.N2)
		}
		img = image.NewGray16(image.Rect(0, 0, s.N1, s.N3))
		for i1 := 0; i1 < s.N1; i1++ {
			for t := 0; t < s.N3; t++ {
				img.SetGray16(i1, t, v.gray(v.vol.At(i1, position, t)))
			}
		}

	case "time":
		if position >= s.N3 {
			return nil, fmt.Errorf("position %d exceeds %d samples", position, s.N3)
		}
		img = image.NewGray16(image.Rect(0, 0, s.N2, s.N1))
		for i1 := 0; i1 < s.N1; i1++ {
			for i2 := 0; i2 < s.N2; i2++ {
				img.SetGray16(i2, i1, v.gray(v.vol.At(i1, i2, position)))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be inline, crossline or time)", axis)
	}

	return img, nil
}

// SaveSlice saves an extracted slice as a PNG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return err
	}
	return file.Close()
}

// axisLength returns the number of positions along a named axis
func (v *Viewer) axisLength(axis string) (int, error) {
	switch strings.ToLower(axis) {
	case "inline":
		return v.vol.N1, nil
	case "crossline":
		return v.vol.N2, nil
	case "time":
		return v.vol.N3, nil
	}
	return 0, fmt.Errorf("invalid axis: %s (must be inline, crossline or time)", axis)
}

// SaveSliceSequence extracts and saves every slice along the specified axis
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	n, err := v.axisLength(axis)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for pos := 0; pos < n; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.png", strings.ToLower(axis), pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}

// SaveSections writes the central inline, crossline and time slice as
// <prefix>_<axis>.png and returns the written paths
func (v *Viewer) SaveSections(outputDir, prefix string) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, err
	}

	var paths []string
	for _, axis := range []string{"inline", "crossline", "time"} {
		n, _ := v.axisLength(axis)
		img, err := v.ExtractSlice(axis, n/2)
		if err != nil {
			return nil, err
		}
		filename := filepath.Join(outputDir, fmt.Sprintf("%s_%s.png", prefix, axis))
		if err := v.SaveSlice(img, filename); err != nil {
			return nil, fmt.Errorf("saving %s section: %w", axis, err)
		}
		paths = append(paths, filename)
	}
	return paths, nil
}
