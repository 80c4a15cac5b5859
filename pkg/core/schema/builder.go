package schema

import "reflect"

// Builder collects the column declarations of T.
// Declaration errors are deferred to Build so calls can be chained.
type Builder[T any] struct {
	table    string
	schema   string
	columns  []Column[T]
	ignored  []string
	problems []*ValidationError
}

// NewBuilder creates an empty builder for T.
func NewBuilder[T any]() *Builder[T] {
	return &Builder[T]{}
}

// Table sets the target table name.
func (b *Builder[T]) Table(name string) *Builder[T] {
	b.table = name
	return b
}

// Schema sets the database schema of the table.
func (b *Builder[T]) Schema(name string) *Builder[T] {
	b.schema = name
	return b
}

// Column adds a plain persisted column.
func (b *Builder[T]) Column(name string, get func(*T) any) *Builder[T] {
	return b.add(Column[T]{Name: name, get: get}, get == nil)
}

// Key adds a declared primary key column.
func (b *Builder[T]) Key(name string, get func(*T) any) *Builder[T] {
	return b.add(Column[T]{Name: name, Key: true, get: get}, get == nil)
}

// Identity adds a column whose value may be generated by the server.
func (b *Builder[T]) Identity(name string, field IdentityField[T]) *Builder[T] {
	return b.add(Column[T]{Name: name, identity: field}, field == nil)
}

// KeyIdentity adds an identity column that is also a declared primary key.
func (b *Builder[T]) KeyIdentity(name string, field IdentityField[T]) *Builder[T] {
	return b.add(Column[T]{Name: name, Key: true, identity: field}, field == nil)
}

// Ignore marks a name as not persisted. It never appears in generated SQL.
func (b *Builder[T]) Ignore(names ...string) *Builder[T] {
	b.ignored = append(b.ignored, names...)
	return b
}

func (b *Builder[T]) add(c Column[T], missingAccessor bool) *Builder[T] {
	if missingAccessor {
		b.problems = append(b.problems, &ValidationError{Column: c.Name, Message: "accessor is nil"})
	}
	b.columns = append(b.columns, c)
	return b
}

// FieldCount returns the number of declared persisted columns.
func (b *Builder[T]) FieldCount() int {
	return len(b.columns)
}

// HasKeyField reports whether a primary key has been declared.
func (b *Builder[T]) HasKeyField() bool {
	for _, c := range b.columns {
		if c.Key {
			return true
		}
	}
	return false
}

// Build validates the declarations and returns the immutable schema.
func (b *Builder[T]) Build() (*Schema[T], error) {
	typeName := reflect.TypeFor[T]().Name()

	if err := validate(typeName, b); err != nil {
		return nil, err
	}

	s := &Schema[T]{
		table:   b.table,
		schema:  b.schema,
		columns: make([]Column[T], len(b.columns)),
		ignored: append([]string(nil), b.ignored...),
		index:   make(map[string]int, len(b.columns)),
	}
	if s.table == "" {
		s.table = typeName
	}

	copy(s.columns, b.columns)
	for i, c := range s.columns {
		s.index[Normalize(c.Name)] = i
		if c.Key {
			s.keys = append(s.keys, c.Name)
		}
	}

	return s, nil
}

// Reset clears the builder for reuse.
func (b *Builder[T]) Reset() *Builder[T] {
	*b = Builder[T]{}
	return b
}

// Describe runs T's own declaration and builds its schema.
func Describe[T Describer[T]]() (*Schema[T], error) {
	var zero T
	b := NewBuilder[T]()
	zero.BulkSchema(b)
	return b.Build()
}
