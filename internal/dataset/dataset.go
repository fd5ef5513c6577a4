// Package dataset holds the in-memory dataset registry: columnar tabular
// data loaded once before any session starts and read concurrently by
// profiling and execution stages. Datasets are never mutated after load.
package dataset

// Kind is the declared type of a column.
type Kind string

const (
	KindNumeric     Kind = "numeric"
	KindCategorical Kind = "categorical"
	KindDatetime    Kind = "datetime"
	KindBoolean     Kind = "boolean"
	KindText        Kind = "text"
)

// Column is a single column stored columnar. Numeric columns populate
// Floats, everything else populates Strings; Null marks missing cells in
// either representation.
type Column struct {
	Name    string
	Kind    Kind
	Floats  []float64
	Strings []string
	Null    []bool
}

// Len returns the number of rows in the column.
func (c *Column) Len() int { return len(c.Null) }

// IsNumeric reports whether the column carries numeric values.
func (c *Column) IsNumeric() bool { return c.Kind == KindNumeric }

// MissingCount returns the number of null cells.
func (c *Column) MissingCount() int {
	n := 0
	for _, isNull := range c.Null {
		if isNull {
			n++
		}
	}
	return n
}

// MissingFraction returns the fraction of null cells in [0,1].
func (c *Column) MissingFraction() float64 {
	if len(c.Null) == 0 {
		return 0
	}
	return float64(c.MissingCount()) / float64(len(c.Null))
}

// Dataset is one immutable table.
type Dataset struct {
	ID      string
	Name    string
	Rows    int
	Columns []Column

	byName map[string]int
}

// NewDataset builds a dataset and its column index.
func NewDataset(id, name string, rows int, cols []Column) *Dataset {
	ds := &Dataset{ID: id, Name: name, Rows: rows, Columns: cols}
	ds.byName = make(map[string]int, len(cols))
	for i := range cols {
		ds.byName[cols[i].Name] = i
	}
	return ds
}

// Column returns the named column, or nil if absent.
func (d *Dataset) Column(name string) *Column {
	i, ok := d.byName[name]
	if !ok {
		return nil
	}
	return &d.Columns[i]
}

// ColumnNames returns the column names in declaration order.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i := range d.Columns {
		names[i] = d.Columns[i].Name
	}
	return names
}

// Width returns the number of columns.
func (d *Dataset) Width() int { return len(d.Columns) }
