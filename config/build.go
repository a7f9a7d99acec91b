package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/notargets/DGTransport/manager"
	"github.com/notargets/DGTransport/material"
	"github.com/notargets/DGTransport/partitions"
	"github.com/notargets/DGTransport/solver"
	"github.com/notargets/DGTransport/store"
	"github.com/notargets/DGTransport/transient"
	"github.com/notargets/DGTransport/transport"
	"github.com/notargets/DGTransport/trimesh"
	"github.com/notargets/DGTransport/utils"
	"go.uber.org/multierr"
)

// Build turns the file into a manager.Input. A stored reference is read
// from the store named by the file.
func (f *File) Build(ctx context.Context) (manager.Input, error) {
	var in manager.Input
	pt, err := manager.ParseProblemType(f.Type)
	if err != nil {
		return in, err
	}
	in.Type = pt

	if in.Solver, err = f.SolverConfig(); err != nil {
		return in, err
	}
	if f.Transient != nil {
		if in.Transient, err = f.TransientConfig(); err != nil {
			return in, err
		}
	}

	mesh, err := f.BuildMesh()
	if err != nil {
		return in, err
	}
	lib, err := f.BuildLibrary()
	if err != nil {
		return in, err
	}
	q := f.Quadrature
	if q.Polar == 0 {
		q.Polar = 2
	}
	if q.Azimuthal == 0 {
		q.Azimuthal = 8
	}
	quad, err := transport.ProductQuadrature(q.Polar, q.Azimuthal)
	if err != nil {
		return in, err
	}
	p, err := transport.NewProblem(mesh, lib, quad)
	if err != nil {
		return in, err
	}

	var errs error
	for _, src := range f.Sources {
		errs = multierr.Append(errs, p.SetUniformSource(src.Region, src.Values))
	}
	for _, b := range f.Boundaries {
		bc, err := boundaryCondition(b)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		errs = multierr.Append(errs, p.SetBoundary(b.Tag, bc))
	}
	if errs != nil {
		return in, errs
	}

	if f.Reference != nil {
		ref, err := f.loadReference(ctx)
		if err != nil {
			return in, err
		}
		if err := p.SetReferenceSolution(ref); err != nil {
			return in, err
		}
	}
	in.Problem = p
	return in, nil
}

// SolverConfig converts the solver section, filling defaults
func (f *File) SolverConfig() (solver.Config, error) {
	strategy, err := partitions.ParseStrategy(f.Solver.Strategy)
	if err != nil {
		return solver.Config{}, err
	}
	cfg := solver.Config{
		Tolerance:       f.Solver.Tolerance,
		MaxIterations:   f.Solver.MaxIterations,
		Consecutive:     f.Solver.Consecutive,
		InnerIterations: f.Solver.InnerIterations,
		Workers:         f.Solver.Workers,
		Strategy:        strategy,
	}.WithDefaults()
	return cfg, cfg.Validate()
}

// TransientConfig converts the transient section
func (f *File) TransientConfig() (transient.Config, error) {
	order, err := transient.ParseOrder(f.Transient.Order)
	if err != nil {
		return transient.Config{}, err
	}
	initial, err := transient.ParseInitial(strings.ToLower(strings.TrimSpace(f.Transient.Initial)))
	if err != nil {
		return transient.Config{}, err
	}
	return transient.Config{
		Order:   order,
		Dt:      f.Transient.Dt,
		EndTime: f.Transient.EndTime,
		Initial: initial,
	}, nil
}

// BuildMesh builds the rectangle or the explicit triangulation
func (f *File) BuildMesh() (*trimesh.Mesh, error) {
	if r := f.Mesh.Rectangle; r != nil {
		return trimesh.Rectangle(r.Nx, r.Ny, r.Width, r.Height, r.Region)
	}
	verts := make([]trimesh.Vertex, len(f.Mesh.Vertices))
	for i, v := range f.Mesh.Vertices {
		verts[i] = trimesh.Vertex{ID: v.ID, X: v.X, Y: v.Y}
	}
	tris := make([]trimesh.Triangle, len(f.Mesh.Triangles))
	for i, t := range f.Mesh.Triangles {
		tris[i] = trimesh.Triangle{V: t.V, Region: t.Region}
	}
	edges := make([]trimesh.BoundaryEdge, len(f.Mesh.Boundary))
	for i, e := range f.Mesh.Boundary {
		edges[i] = trimesh.BoundaryEdge{V0: e.V[0], V1: e.V[1], Tag: e.Tag}
	}
	return trimesh.Build(verts, tris, edges)
}

// BuildLibrary finalizes every material and assigns regions
func (f *File) BuildLibrary() (*material.Library, error) {
	lib := material.NewLibrary(f.Groups)
	var errs error
	for _, mc := range f.Materials {
		d, err := mc.build(f.Groups)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if _, err := lib.Add(d); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if errs != nil {
		return nil, errs
	}
	for region, name := range f.Regions {
		errs = multierr.Append(errs, lib.Assign(region, name))
	}
	return lib, errs
}

func (mc Material) build(G int) (*material.Data, error) {
	m, err := material.New(mc.Name, G, mc.Order)
	if err != nil {
		return nil, err
	}
	var errs error
	if mc.Total != nil {
		errs = multierr.Append(errs, m.SetTotals(mc.Total))
	}
	if mc.Scatter == nil {
		m.SetNoScatter()
	}
	for l, s := range mc.Scatter {
		errs = multierr.Append(errs, m.SetScatterMatrix(l, s))
	}
	if mc.NuFission != nil {
		errs = multierr.Append(errs, m.SetNuFissions(mc.NuFission))
	}
	if mc.Spectrum != nil {
		errs = multierr.Append(errs, m.SetSpectrum(mc.Spectrum))
	}
	if mc.Speed != nil {
		errs = multierr.Append(errs, m.SetSpeeds(mc.Speed))
	}
	if mc.Delayed != nil {
		errs = multierr.Append(errs, m.SetDelayed(mc.Delayed.Beta, mc.Delayed.Lambda))
	}
	if errs != nil {
		return nil, errs
	}
	return m.Finalize()
}

func boundaryCondition(b Boundary) (transport.BoundaryCondition, error) {
	switch strings.ToLower(strings.TrimSpace(b.Kind)) {
	case "", "vacuum":
		return transport.VacuumBoundary(), nil
	case "reflecting", "reflective":
		return transport.ReflectingBoundary(), nil
	case "incident":
		return transport.IncidentBoundary(b.Values), nil
	}
	return transport.BoundaryCondition{}, fmt.Errorf("%w: boundary tag %d has unknown kind %q", utils.ErrInput, b.Tag, b.Kind)
}

func (f *File) loadReference(ctx context.Context) ([]float64, error) {
	if f.Reference.Values != nil {
		return f.Reference.Values, nil
	}
	st, err := store.Open(ctx, f.Store)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	path := f.Reference.Path
	if path == "" {
		path = "run/solution/phi"
	}
	return st.LoadArray(ctx, f.Reference.Run, path)
}
