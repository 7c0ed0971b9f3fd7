package courier

import (
	"fmt"
	"sort"
)

// Catalogue is the set of resolved courier types, addressable by profile id
// and by vehicle.
type Catalogue struct {
	byID      map[int]*Type
	byVehicle map[Vehicle]*Type
	all       []*Type
}

// NewCatalogue resolves every profile. Duplicate ids are rejected; the first
// profile of a vehicle is the one ByVehicle returns.
func NewCatalogue(profiles []Profile, allowance float64) (*Catalogue, error) {
	c := &Catalogue{byID: map[int]*Type{}, byVehicle: map[Vehicle]*Type{}}
	for _, p := range profiles {
		t, err := NewType(p, allowance)
		if err != nil {
			return nil, err
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("courier type %d: duplicate id", p.ID)
		}
		c.byID[p.ID] = t
		if _, ok := c.byVehicle[t.Vehicle]; !ok {
			c.byVehicle[t.Vehicle] = t
		}
		c.all = append(c.all, t)
	}
	sort.SliceStable(c.all, func(i, j int) bool { return c.all[i].ID < c.all[j].ID })
	return c, nil
}

func (c *Catalogue) ByID(id int) (*Type, bool) {
	t, ok := c.byID[id]
	return t, ok
}

func (c *Catalogue) ByVehicle(v Vehicle) (*Type, bool) {
	t, ok := c.byVehicle[v]
	return t, ok
}

// All returns the types ordered by id.
func (c *Catalogue) All() []*Type { return c.all }

// Resolve maps vehicle names to types, keeping their order.
func (c *Catalogue) Resolve(names []string) ([]*Type, error) {
	out := make([]*Type, 0, len(names))
	for _, n := range names {
		v, err := ParseVehicle(n)
		if err != nil {
			return nil, err
		}
		t, ok := c.byVehicle[v]
		if !ok {
			return nil, fmt.Errorf("no courier type for vehicle %s", v)
		}
		out = append(out, t)
	}
	return out, nil
}
