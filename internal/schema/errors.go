package schema

import (
	"errors"
	"fmt"
)

// ErrSchema matches every *SchemaError through errors.Is.
var ErrSchema = errors.New("schema error")

// SchemaError reports a reference to something the entity does not declare:
// an unknown or read-only field, or a missing primary key.
type SchemaError struct {
	Entity string
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schema error: %s: %s", e.Entity, e.Reason)
	}
	return fmt.Sprintf("schema error: %s.%s: %s", e.Entity, e.Field, e.Reason)
}

func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}

const (
	ReasonNoPrimaryKey  = "no primary key defined"
	ReasonUnknownField  = "unknown field"
	ReasonNotPatchable  = "field is not patchable"
	ReasonUnsupported   = "unsupported entity type"
	ReasonWrongEntity   = "entity type mismatch"
	ReasonZeroPrimaryID = "primary key is not set"
)
