package schema

// Kind is the type of a table constraint.
type Kind string

const (
	KindForeignKey Kind = "foreign_key"
	KindPrimaryKey Kind = "primary_key"
	KindUnique     Kind = "unique"
	KindCheck      Kind = "check"
	KindExclusion  Kind = "exclusion"
)

// Constraint describes one column of a table constraint. A constraint over
// several columns is reported as several Constraints sharing one Name, in
// column order. Referenced fields are empty unless Kind is KindForeignKey.
type Constraint struct {
	Name             string `json:"name" yaml:"name"`
	Kind             Kind   `json:"kind" yaml:"kind"`
	SourceTable      string `json:"source_table" yaml:"source_table"`
	SourceColumn     string `json:"source_column" yaml:"source_column"`
	ReferencedTable  string `json:"referenced_table,omitempty" yaml:"referenced_table,omitempty"`
	ReferencedColumn string `json:"referenced_column,omitempty" yaml:"referenced_column,omitempty"`
}

// IsForeignKey reports whether c is a foreign key column pair.
func (c Constraint) IsForeignKey() bool { return c.Kind == KindForeignKey }

// IsSelfReference reports whether c is a foreign key into its own table.
func (c Constraint) IsSelfReference() bool {
	return c.IsForeignKey() && c.SourceTable == c.ReferencedTable
}
