// Package schema resolves, once per entity type, the metadata the generic
// repository needs: the primary key, the queryable columns and the columns an
// update may touch.
package schema

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strings"
	"sync"

	"gorm.io/gorm/clause"
	gormschema "gorm.io/gorm/schema"

	"github.com/Gopher0727/AltMur/internal/models"
)

var (
	descriptors sync.Map // descriptorKey -> *Descriptor
	gormSchemas = &sync.Map{}
	naming      = gormschema.NamingStrategy{}
)

type descriptorKey struct {
	typ reflect.Type
	pk  string
}

// Descriptor is the immutable metadata of one entity type.
type Descriptor struct {
	Entity string
	Table  string

	typ         reflect.Type
	primary     *gormschema.Field
	ignoredKeys []string
	fields      map[string]*gormschema.Field
	columns     []string
	patchable   map[string]bool
	dependents  []string
}

// Describe returns the descriptor of T, using the first declared primary-key
// column as the key.
func Describe[T any]() (*Descriptor, error) {
	return describe(reflect.TypeOf((*T)(nil)).Elem(), "")
}

// DescribeWithKey is like Describe but keys the entity on the named column.
func DescribeWithKey[T any](pk string) (*Descriptor, error) {
	return describe(reflect.TypeOf((*T)(nil)).Elem(), pk)
}

func describe(typ reflect.Type, pk string) (*Descriptor, error) {
	key := descriptorKey{typ: typ, pk: pk}
	if d, ok := descriptors.Load(key); ok {
		return d.(*Descriptor), nil
	}

	d, err := build(typ, pk)
	if err != nil {
		return nil, err
	}
	actual, _ := descriptors.LoadOrStore(key, d)
	return actual.(*Descriptor), nil
}

func build(typ reflect.Type, pk string) (*Descriptor, error) {
	if typ.Kind() != reflect.Struct {
		return nil, &SchemaError{Entity: typ.String(), Reason: ReasonUnsupported}
	}

	s, err := gormschema.Parse(reflect.New(typ).Interface(), gormSchemas, naming)
	if err != nil {
		return nil, &SchemaError{Entity: typ.Name(), Reason: fmt.Sprintf("%s: %v", ReasonUnsupported, err)}
	}

	d := &Descriptor{
		Entity:    s.Name,
		Table:     s.Table,
		typ:       typ,
		fields:    make(map[string]*gormschema.Field, len(s.Fields)*2),
		patchable: make(map[string]bool),
	}
	for _, f := range s.Fields {
		// 关联字段没有列
		if f.DBName == "" {
			continue
		}
		d.fields[f.DBName] = f
		d.fields[f.Name] = f
		d.columns = append(d.columns, f.DBName)
	}

	if pk != "" {
		f, ok := d.fields[pk]
		if !ok {
			return nil, &SchemaError{Entity: d.Entity, Field: pk, Reason: ReasonUnknownField}
		}
		d.primary = f
	} else {
		if len(s.PrimaryFields) == 0 {
			return nil, &SchemaError{Entity: d.Entity, Reason: ReasonNoPrimaryKey}
		}
		d.primary = s.PrimaryFields[0]
		for _, f := range s.PrimaryFields[1:] {
			d.ignoredKeys = append(d.ignoredKeys, f.DBName)
		}
	}

	if p, ok := reflect.New(typ).Interface().(models.Patchable); ok {
		for _, name := range p.PatchableFields() {
			f, ok := d.fields[name]
			if !ok {
				return nil, &SchemaError{Entity: d.Entity, Field: name, Reason: ReasonUnknownField}
			}
			d.patchable[f.DBName] = true
		}
	} else {
		for _, f := range s.Fields {
			if f.DBName == "" || f == d.primary || f.AutoCreateTime > 0 || f.AutoUpdateTime > 0 {
				continue
			}
			d.patchable[f.DBName] = true
		}
	}
	delete(d.patchable, d.primary.DBName)

	graph, err := deleteGraph()
	if err != nil {
		return nil, err
	}
	d.dependents = reachable(graph, d.Entity)

	return d, nil
}

// PrimaryKey returns the key column.
func (d *Descriptor) PrimaryKey() string {
	return d.primary.DBName
}

// IgnoredKeys lists declared primary-key columns beyond the first. They take
// no part in key lookups.
func (d *Descriptor) IgnoredKeys() []string {
	return d.ignoredKeys
}

// Dependents lists, sorted, the entities whose rows the database deletes or
// rewrites, directly or transitively, when a row of this entity is deleted.
func (d *Descriptor) Dependents() []string {
	return d.dependents
}

// Columns lists the entity's columns in declaration order.
func (d *Descriptor) Columns() []string {
	return d.columns
}

// Field resolves a column name or Go field name to its column.
func (d *Descriptor) Field(name string) (string, error) {
	f, ok := d.fields[name]
	if !ok {
		return "", &SchemaError{Entity: d.Entity, Field: name, Reason: ReasonUnknownField}
	}
	return f.DBName, nil
}

// Has reports whether name resolves to a column.
func (d *Descriptor) Has(name string) bool {
	_, ok := d.fields[name]
	return ok
}

// Assign sets the named fields on entity, which must be a pointer to the
// described type.
func (d *Descriptor) Assign(ctx context.Context, entity any, fields map[string]any) error {
	rv, err := d.value(entity)
	if err != nil {
		return err
	}
	for _, name := range sortedKeys(fields) {
		f, ok := d.fields[name]
		if !ok {
			return &SchemaError{Entity: d.Entity, Field: name, Reason: ReasonUnknownField}
		}
		if err := f.Set(ctx, rv, fields[name]); err != nil {
			return &SchemaError{Entity: d.Entity, Field: name, Reason: err.Error()}
		}
	}
	return nil
}

// Patch converts an update patch into a column map. Every name must resolve
// to a patchable column.
func (d *Descriptor) Patch(fields map[string]any) (map[string]any, error) {
	columns := make(map[string]any, len(fields))
	for _, name := range sortedKeys(fields) {
		f, ok := d.fields[name]
		if !ok {
			return nil, &SchemaError{Entity: d.Entity, Field: name, Reason: ReasonUnknownField}
		}
		if !d.patchable[f.DBName] {
			return nil, &SchemaError{Entity: d.Entity, Field: name, Reason: ReasonNotPatchable}
		}
		columns[f.DBName] = fields[name]
	}
	return columns, nil
}

// Filter converts equality filters into conditions joined by AND. Names that
// do not resolve are dropped. A nil value matches NULL.
func (d *Descriptor) Filter(fields map[string]any) []clause.Expression {
	exprs := make([]clause.Expression, 0, len(fields))
	for _, name := range sortedKeys(fields) {
		f, ok := d.fields[name]
		if !ok {
			continue
		}
		exprs = append(exprs, clause.Eq{
			Column: clause.Column{Table: clause.CurrentTable, Name: f.DBName},
			Value:  fields[name],
		})
	}
	return exprs
}

// KeyEq is the condition selecting the row with primary key id.
func (d *Descriptor) KeyEq(id any) clause.Expression {
	return clause.Eq{
		Column: clause.Column{Table: clause.CurrentTable, Name: d.primary.DBName},
		Value:  id,
	}
}

// PrimaryValue reads the key of entity. zero is true when it is unset.
func (d *Descriptor) PrimaryValue(ctx context.Context, entity any) (value any, zero bool, err error) {
	rv, err := d.value(entity)
	if err != nil {
		return nil, false, err
	}
	value, zero = d.primary.ValueOf(ctx, rv)
	return value, zero, nil
}

func (d *Descriptor) value(entity any) (reflect.Value, error) {
	rv := reflect.ValueOf(entity)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Type() != d.typ {
		return reflect.Value{}, &SchemaError{Entity: d.Entity, Reason: fmt.Sprintf("%s: %T", ReasonWrongEntity, entity)}
	}
	return rv, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// deleteGraph maps each model to the models whose rows the database deletes
// or rewrites when one of its rows is deleted, following the ON DELETE
// CASCADE and ON DELETE SET NULL foreign keys.
var deleteGraph = sync.OnceValues(func() (map[string][]string, error) {
	graph := make(map[string][]string)
	for _, m := range models.All() {
		s, err := gormschema.Parse(m, gormSchemas, naming)
		if err != nil {
			return nil, &SchemaError{Entity: fmt.Sprintf("%T", m), Reason: fmt.Sprintf("%s: %v", ReasonUnsupported, err)}
		}
		for _, rel := range s.Relationships.BelongsTo {
			c := rel.ParseConstraint()
			if c == nil {
				continue
			}
			switch strings.ToUpper(c.OnDelete) {
			case "CASCADE", "SET NULL":
				parent := rel.FieldSchema.Name
				if !slices.Contains(graph[parent], s.Name) {
					graph[parent] = append(graph[parent], s.Name)
				}
			}
		}
	}
	return graph, nil
})

// reachable returns, sorted, every entity reached from entity through graph.
// entity itself is included only through a cycle, such as a self reference.
func reachable(graph map[string][]string, entity string) []string {
	seen := make(map[string]bool)
	queue := []string{entity}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		for _, child := range graph[next] {
			if !seen[child] {
				seen[child] = true
				queue = append(queue, child)
			}
		}
	}

	out := make([]string, 0, len(seen))
	for e := range seen {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}
