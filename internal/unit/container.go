package unit

// Container groups the units of one build request
type Container struct {
	// Units are the units the request asks to build
	Units []*Unit
	// All is the full unit list, used for cross-referencing and linking
	All []*Unit
	// Headers are the project headers, tracked in aggregate by the build cache
	Headers []Header
}

// Single creates a container for a single-file build
func Single(u *Unit, all []*Unit) *Container {
	return &Container{Units: []*Unit{u}, All: all}
}

// Project creates a container for a whole-project build
func Project(all []*Unit) *Container {
	return &Container{Units: all, All: all}
}

// IsSingle returns true for a single-file build
func (c *Container) IsSingle() bool {
	return len(c.Units) == 1 && len(c.All) > 1
}

// Targets returns the requested units that take part in the build
func (c *Container) Targets() []*Unit {
	return buildable(c.Units)
}

// Linkable returns every unit whose object file goes into the module
func (c *Container) Linkable() []*Unit {
	return buildable(c.All)
}

// Find returns the unit with the given identity
func (c *Container) Find(identity string) *Unit {
	for _, u := range c.All {
		if u.Identity == identity {
			return u
		}
	}

	return nil
}

func buildable(units []*Unit) []*Unit {
	out := make([]*Unit, 0, len(units))
	for _, u := range units {
		if u.Buildable() {
			out = append(out, u)
		}
	}

	return out
}
