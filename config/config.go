// Package config reads run descriptions from YAML with environment
// overrides
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/notargets/DGTransport/logging"
	"github.com/notargets/DGTransport/utils"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// File is the YAML input of one run
type File struct {
	Type       string         `yaml:"type"`
	Groups     int            `yaml:"groups"`
	Mesh       Mesh           `yaml:"mesh"`
	Quadrature Quadrature     `yaml:"quadrature"`
	Materials  []Material     `yaml:"materials"`
	Regions    map[int]string `yaml:"regions"`
	Sources    []Source       `yaml:"sources"`
	Boundaries []Boundary     `yaml:"boundaries"`
	Solver     Solver         `yaml:"solver"`
	Transient  *Transient     `yaml:"transient"`
	Logging    logging.Config `yaml:"logging"`
	Store      string         `yaml:"store"`
	Reference  *Reference     `yaml:"reference"`
}

// Mesh is either a rectangle or an explicit triangulation
type Mesh struct {
	Rectangle *Rectangle     `yaml:"rectangle"`
	Vertices  []Vertex       `yaml:"vertices"`
	Triangles []Triangle     `yaml:"triangles"`
	Boundary  []BoundaryEdge `yaml:"boundary"`
}

type Rectangle struct {
	Nx     int     `yaml:"nx"`
	Ny     int     `yaml:"ny"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
	Region int     `yaml:"region"`
}

type Vertex struct {
	ID int     `yaml:"id"`
	X  float64 `yaml:"x"`
	Y  float64 `yaml:"y"`
}

type Triangle struct {
	V      [3]int `yaml:"v"`
	Region int    `yaml:"region"`
}

type BoundaryEdge struct {
	V   [2]int `yaml:"v"`
	Tag int    `yaml:"tag"`
}

// Quadrature is a product set of polar levels per hemisphere and azimuths
type Quadrature struct {
	Polar     int `yaml:"polar"`
	Azimuthal int `yaml:"azimuthal"`
}

// Material holds group tables. Scatter is indexed [order][gOut][gIn].
type Material struct {
	Name      string        `yaml:"name"`
	Order     int           `yaml:"order"`
	Total     []float64     `yaml:"total"`
	Scatter   [][][]float64 `yaml:"scatter"`
	NuFission []float64     `yaml:"nu_fission"`
	Spectrum  []float64     `yaml:"spectrum"`
	Speed     []float64     `yaml:"speed"`
	Delayed   *Delayed      `yaml:"delayed"`
}

type Delayed struct {
	Beta   []float64 `yaml:"beta"`
	Lambda []float64 `yaml:"lambda"`
}

// Source is a uniform isotropic source per group over a region
type Source struct {
	Region int       `yaml:"region"`
	Values []float64 `yaml:"values"`
}

// Boundary sets the condition of one boundary tag
type Boundary struct {
	Tag    int       `yaml:"tag"`
	Kind   string    `yaml:"kind"`
	Values []float64 `yaml:"values"`
}

type Solver struct {
	Tolerance       float64 `yaml:"tolerance"`
	MaxIterations   int     `yaml:"max_iterations"`
	Consecutive     int     `yaml:"consecutive"`
	InnerIterations int     `yaml:"inner_iterations"`
	Workers         int     `yaml:"workers"`
	Strategy        string  `yaml:"strategy"`
}

type Transient struct {
	Dt      float64 `yaml:"dt"`
	EndTime float64 `yaml:"end_time"`
	Order   string  `yaml:"order"`
	Initial string  `yaml:"initial"`
}

// Reference names a scalar flux array stored by an earlier run
type Reference struct {
	Run    string    `yaml:"run"`
	Path   string    `yaml:"path"`
	Values []float64 `yaml:"values"`
}

// Overrides are read from the environment after the file
type Overrides struct {
	Tolerance     *float64 `env:"DGT_TOLERANCE"`
	MaxIterations *int     `env:"DGT_MAX_ITERATIONS"`
	Workers       *int     `env:"DGT_WORKERS"`
	LogLevel      *string  `env:"DGT_LOG_LEVEL"`
	Store         *string  `env:"DGT_STORE"`
}

// Load reads, overrides and validates the file at path
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read config: %v", utils.ErrInput, err)
	}
	return Parse(bytes.NewReader(data))
}

// Parse decodes YAML from r, applies the environment and validates
func Parse(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: decode config: %v", utils.ErrInput, err)
	}
	if err := f.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// ApplyEnv overrides file values with the DGT_* variables that are set
func (f *File) ApplyEnv() error {
	var o Overrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("%w: parse env: %v", utils.ErrInput, err)
	}
	f.apply(o)
	return nil
}

func (f *File) apply(o Overrides) {
	if o.Tolerance != nil {
		f.Solver.Tolerance = *o.Tolerance
	}
	if o.MaxIterations != nil {
		f.Solver.MaxIterations = *o.MaxIterations
	}
	if o.Workers != nil {
		f.Solver.Workers = *o.Workers
	}
	if o.LogLevel != nil {
		f.Logging.Level = *o.LogLevel
	}
	if o.Store != nil {
		f.Store = *o.Store
	}
}

// Validate checks the parts of the file that do not need the numerical
// packages. Everything else is checked by Build.
func (f *File) Validate() error {
	var errs error
	add := func(format string, args ...any) {
		errs = multierr.Append(errs, fmt.Errorf("%w: "+format, append([]any{utils.ErrInput}, args...)...))
	}
	if f.Groups < 1 {
		add("groups must be at least 1, got %d", f.Groups)
	}
	explicit := len(f.Mesh.Vertices) > 0 || len(f.Mesh.Triangles) > 0
	switch {
	case f.Mesh.Rectangle != nil && explicit:
		add("mesh has both a rectangle and explicit triangles")
	case f.Mesh.Rectangle == nil && !explicit:
		add("mesh is missing")
	}
	if len(f.Materials) == 0 {
		add("no materials")
	}
	if len(f.Regions) == 0 {
		add("no region to material assignment")
	}
	if strings.EqualFold(strings.TrimSpace(f.Type), "transient") && f.Transient == nil {
		add("transient problem without a transient section")
	}
	if f.Reference != nil && f.Reference.Values == nil && (f.Reference.Run == "" || f.Store == "") {
		add("reference needs values or a run and a store")
	}
	return errs
}
