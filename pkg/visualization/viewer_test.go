package visualization

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"seismicslicer/internal/models"
)

// testVolume fills every sample with a value that encodes its inline
func testVolume(shape models.Shape) *models.Volume {
	v := models.Zeros(shape)
	for i1 := 0; i1 < shape.N1; i1++ {
		for i2 := 0; i2 < shape.N2; i2++ {
			for t := 0; t < shape.N3; t++ {
				v.Set(i1, i2, t, float64(i1)-float64(shape.N1-1)/2)
			}
		}
	}
	return v
}

// TestExtractSlice verifies the image size and orientation for every axis
func TestExtractSlice(t *testing.T) {
	shape := models.Shape{N1: 6, N2: 4, N3: 9}
	viewer := NewViewer(testVolume(shape))

	tests := []struct {
		axis          string
		position      int
		width, height int
	}{
		{"inline", 2, 4, 9},
		{"crossline", 1, 6, 9},
		{"time", 8, 4, 6},
		{"Time", 0, 4, 6},
	}
	for _, tt := range tests {
		t.Run(tt.axis, func(t *testing.T) {
			img, err := viewer.ExtractSlice(tt.axis, tt.position)
			if err != nil {
				t.Fatalf("Failed to extract slice: %v", err)
			}
			b := img.Bounds()
			if b.Dx() != tt.width || b.Dy() != tt.height {
				t.Errorf("Expected %dx%d image, got %dx%d", tt.width, tt.height, b.Dx(), b.Dy())
			}
		})
	}

	// Crossline sections run from dark (first inline) to bright (last inline)
	img, err := viewer.ExtractSlice("crossline", 0)
	if err != nil {
		t.Fatal(err)
	}
	gray := img.(*image.Gray16)
	first := gray.Gray16At(0, 0).Y
	last := gray.Gray16At(shape.N1-1, 0).Y
	if first >= 32768 || last <= 32768 {
		t.Errorf("Expected dark-to-bright ramp, got %d .. %d", first, last)
	}

	for _, bad := range []struct {
		axis string
		pos  int
	}{{"inline", 6}, {"crossline", 4}, {"time", 9}, {"time", -1}, {"depth", 0}} {
		if _, err := viewer.ExtractSlice(bad.axis, bad.pos); err == nil {
			t.Errorf("Expected error for %s %d", bad.axis, bad.pos)
		}
	}
}

// TestClipping checks the ±3σ display clip
func TestClipping(t *testing.T) {
	shape := models.Shape{N1: 1, N2: 1, N3: 101}
	v := models.Zeros(shape)
	v.Data[50] = 1000

	viewer := NewViewer(v)
	if viewer.Clip() <= 0 || viewer.Clip() >= 1000 {
		t.Fatalf("Clip = %g, expected between 0 and the spike", viewer.Clip())
	}
	if g := viewer.gray(1000).Y; g != 65535 {
		t.Errorf("spike mapped to %d, want 65535", g)
	}
	if g := viewer.gray(0).Y; g != 32768 {
		t.Errorf("zero mapped to %d, want 32768", g)
	}
	if g := viewer.gray(-1e9).Y; g != 0 {
		t.Errorf("large negative mapped to %d, want 0", g)
	}

	flat := NewViewer(models.Zeros(shape))
	if g := flat.gray(3).Y; g != 32768 {
		t.Errorf("constant volume mapped to %d, want mid-gray", g)
	}
}

// TestSaveSliceSequence verifies that a sequence of slices can be saved
func TestSaveSliceSequence(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	shape := models.Shape{N1: 3, N2: 3, N3: 5}
	viewer := NewViewer(testVolume(shape))

	outputDir := filepath.Join(t.TempDir(), "slices")
	if err := viewer.SaveSliceSequence("inline", outputDir); err != nil {
		t.Fatalf("Failed to save slice sequence: %v", err)
	}
	for i := 0; i < shape.N1; i++ {
		filename := filepath.Join(outputDir, fmt.Sprintf("slice_inline_%03d.png", i))
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			t.Errorf("Expected slice file does not exist: %s", filename)
		}
	}

	if err := viewer.SaveSliceSequence("invalid", outputDir); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
}

// TestSaveSections verifies the three central sections decode as PNG
func TestSaveSections(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	shape := models.Shape{N1: 4, N2: 5, N3: 7}
	viewer := NewViewer(testVolume(shape))

	paths, err := viewer.SaveSections(t.TempDir(), "filtered")
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 3 {
		t.Fatalf("Expected 3 sections, got %d", len(paths))
	}
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := png.Decode(f); err != nil {
			t.Errorf("%s is not a PNG: %v", p, err)
		}
		f.Close()
	}
}
