// Package cube reads and writes volumes as raw little-endian float32
// samples with a YAML header stored next to them in <file>.yaml.
package cube

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"seismicslicer/internal/models"
)

// FormatFloat32LE is the only sample format written
const FormatFloat32LE = "float32le"

// Header describes a raw cube file
type Header struct {
	N1     int    `yaml:"n1"`
	N2     int    `yaml:"n2"`
	N3     int    `yaml:"n3"`
	Format string `yaml:"format"`

	Geometry *models.Geometry `yaml:"geometry,omitempty"`
}

// Shape returns the grid described by the header
func (h *Header) Shape() models.Shape {
	return models.Shape{N1: h.N1, N2: h.N2, N3: h.N3}
}

// HeaderPath returns the sidecar path of a cube file
func HeaderPath(path string) string {
	return path + ".yaml"
}

// ReadHeader loads and checks the sidecar of a cube file
func ReadHeader(path string) (*Header, error) {
	data, err := os.ReadFile(HeaderPath(path))
	if err != nil {
		return nil, fmt.Errorf("error reading cube header: %w", err)
	}
	var h Header
	if err := yaml.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("error parsing cube header: %w", err)
	}
	if h.Format == "" {
		h.Format = FormatFloat32LE
	}
	if h.Format != FormatFloat32LE {
		return nil, &models.ConfigError{Field: "format", Reason: fmt.Sprintf("unsupported sample format %q", h.Format)}
	}
	if err := h.Shape().Validate(); err != nil {
		return nil, fmt.Errorf("cube header %s: %w", HeaderPath(path), err)
	}
	return &h, nil
}

// Write stores the volume and its header
func Write(path string, v *models.Volume) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}

	h := Header{N1: v.N1, N2: v.N2, N3: v.N3, Format: FormatFloat32LE, Geometry: v.Geometry}
	meta, err := yaml.Marshal(&h)
	if err != nil {
		return fmt.Errorf("error marshaling cube header: %w", err)
	}
	if err := os.WriteFile(HeaderPath(path), meta, 0644); err != nil {
		return fmt.Errorf("error writing cube header: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating cube file: %w", err)
	}
	defer f.Close()

	if err := writeSamples(f, v.Data); err != nil {
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	return f.Close()
}

func writeSamples(w io.Writer, data []float64) error {
	bw := bufio.NewWriter(w)
	var buf [4]byte
	for _, x := range data {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(float32(x)))
		if _, err := bw.Write(buf[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Read loads a volume written by Write
func Read(path string) (*models.Volume, error) {
	h, err := ReadHeader(path)
	if err != nil {
		return nil, err
	}
	data, err := readSamples(path, h.Shape().Len())
	if err != nil {
		return nil, err
	}
	v, err := models.NewVolume(h.Shape(), data)
	if err != nil {
		return nil, err
	}
	v.Geometry = h.Geometry
	return v, nil
}

func readSamples(path string, n int) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening cube file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("error reading cube file: %w", err)
	}
	if info.Size() != int64(4*n) {
		return nil, &models.ConfigError{
			Field:  "cube",
			Reason: fmt.Sprintf("%s holds %d bytes, header expects %d", path, info.Size(), 4*n),
		}
	}

	br := bufio.NewReader(f)
	data := make([]float64, n)
	var buf [4]byte
	for i := range data {
		if _, err := io.ReadFull(br, buf[:]); err != nil {
			return nil, fmt.Errorf("error reading %s: %w", path, err)
		}
		data[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[:])))
	}
	return data, nil
}

// ReadDips loads the inline and crossline slope cubes, which must share a
// shape
func ReadDips(inlinePath, crosslinePath string) (*models.DipField, error) {
	p1, err := Read(inlinePath)
	if err != nil {
		return nil, fmt.Errorf("inline dips: %w", err)
	}
	p2, err := Read(crosslinePath)
	if err != nil {
		return nil, fmt.Errorf("crossline dips: %w", err)
	}
	if p1.Shape != p2.Shape {
		return nil, &models.ConfigError{
			Field:  "dips",
			Reason: fmt.Sprintf("inline shape %s differs from crossline shape %s", p1.Shape, p2.Shape),
		}
	}
	return models.NewDipField(p1.Shape, p1.Data, p2.Data)
}

// ReadMask loads a mask cube: non-zero samples are known
func ReadMask(path string) (*models.Mask, error) {
	v, err := Read(path)
	if err != nil {
		return nil, fmt.Errorf("mask: %w", err)
	}
	return models.InferMask(v), nil
}
