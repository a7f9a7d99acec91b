package material

import (
	"fmt"
	"slices"
)

// Library registers finalized materials by name and assigns them to mesh
// regions. All materials share one group count.
type Library struct {
	groups    int
	materials []*Data
	byName    map[string]int
	byRegion  map[int]int
}

// NewLibrary creates an empty library of G group materials
func NewLibrary(G int) *Library {
	return &Library{
		groups:   G,
		byName:   make(map[string]int),
		byRegion: make(map[int]int),
	}
}

// Add registers d and returns its index
func (lib *Library) Add(d *Data) (int, error) {
	if d.NumGroups() != lib.groups {
		return -1, fmt.Errorf("material %q has %d groups, library has %d: %w", d.Name(), d.NumGroups(), lib.groups, ErrGroupMismatch)
	}
	if _, ok := lib.byName[d.Name()]; ok {
		return -1, fmt.Errorf("%q: %w", d.Name(), ErrNameCollision)
	}
	lib.byName[d.Name()] = len(lib.materials)
	lib.materials = append(lib.materials, d)
	return len(lib.materials) - 1, nil
}

// Assign maps a mesh region to a registered material
func (lib *Library) Assign(region int, name string) error {
	idx, ok := lib.byName[name]
	if !ok {
		return fmt.Errorf("region %d: material %q: %w", region, name, ErrNoMaterial)
	}
	lib.byRegion[region] = idx
	return nil
}

// ForRegion returns the material of a region and its index
func (lib *Library) ForRegion(region int) (*Data, int, error) {
	idx, ok := lib.byRegion[region]
	if !ok {
		return nil, -1, fmt.Errorf("region %d: %w", region, ErrNoMaterial)
	}
	return lib.materials[idx], idx, nil
}

// Index returns the index of a material by name
func (lib *Library) Index(name string) (int, bool) {
	idx, ok := lib.byName[name]
	return idx, ok
}

// Material returns the material at index i
func (lib *Library) Material(i int) *Data { return lib.materials[i] }

// Names returns the material names in registration order
func (lib *Library) Names() []string {
	names := make([]string, len(lib.materials))
	for i, d := range lib.materials {
		names[i] = d.Name()
	}
	return names
}

// Regions returns the assigned region ids, sorted
func (lib *Library) Regions() []int {
	regions := make([]int, 0, len(lib.byRegion))
	for r := range lib.byRegion {
		regions = append(regions, r)
	}
	slices.Sort(regions)
	return regions
}

func (lib *Library) Len() int       { return len(lib.materials) }
func (lib *Library) NumGroups() int { return lib.groups }

// MaxOrder is the highest scattering order of any material
func (lib *Library) MaxOrder() int {
	order := 0
	for _, d := range lib.materials {
		order = max(order, d.Order())
	}
	return order
}
