package column

// Columns is the insertion ordered set of columns of one row.
type Columns struct {
	cols []Column
}

// New returns a set holding cols in order.
func New(cols ...Column) *Columns {
	return &Columns{cols: append([]Column(nil), cols...)}
}

func (cs *Columns) Add(c Column) *Columns {
	cs.cols = append(cs.cols, c)
	return cs
}

// AddAll appends every column of other, keeping its order.
func (cs *Columns) AddAll(other *Columns) *Columns {
	if other != nil {
		cs.cols = append(cs.cols, other.cols...)
	}
	return cs
}

// ByFullName returns the columns whose full name equals name.
func (cs *Columns) ByFullName(name string) *Columns {
	return cs.filter(func(c Column) bool { return c.fullName == name })
}

// ByMapperName returns the columns indexed by the mapper registered under
// name, whatever map entry or collection slot produced them.
func (cs *Columns) ByMapperName(name string) *Columns {
	name = MapperNameOf(name)
	return cs.filter(func(c Column) bool { return c.mapperName == name })
}

// First returns the first column in insertion order.
func (cs *Columns) First() (Column, bool) {
	if cs == nil || len(cs.cols) == 0 {
		return Column{}, false
	}
	return cs.cols[0], true
}

func (cs *Columns) Len() int {
	if cs == nil {
		return 0
	}
	return len(cs.cols)
}

func (cs *Columns) IsEmpty() bool { return cs.Len() == 0 }

// All returns the columns in insertion order. The slice must not be modified.
func (cs *Columns) All() []Column {
	if cs == nil {
		return nil
	}
	return cs.cols
}

// MapperNames returns the distinct mapper names in first-seen order.
func (cs *Columns) MapperNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, c := range cs.All() {
		if !seen[c.mapperName] {
			seen[c.mapperName] = true
			names = append(names, c.mapperName)
		}
	}
	return names
}

func (cs *Columns) filter(keep func(Column) bool) *Columns {
	out := &Columns{}
	for _, c := range cs.All() {
		if keep(c) {
			out.cols = append(out.cols, c)
		}
	}
	return out
}
