package odm

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// FieldType is the type tag a schema field is declared with.
type FieldType string

const (
	Any      FieldType = "any"
	String   FieldType = "string"
	Int      FieldType = "int"
	ObjectID FieldType = "objectid"
	UUID     FieldType = "uuid"
)

func (t FieldType) String() string {
	return string(t)
}

// UnmarshalText lets FieldType be read from env vars and YAML scalars.
func (t *FieldType) UnmarshalText(text []byte) error {
	switch v := FieldType(strings.ToLower(strings.TrimSpace(string(text)))); v {
	case Any, String, Int, ObjectID, UUID:
		*t = v
		return nil
	case "":
		*t = String
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFieldType, string(text))
	}
}

// MarshalText is the inverse of UnmarshalText.
func (t FieldType) MarshalText() ([]byte, error) {
	return []byte(t), nil
}

// Cast converts v to the Go representation of the field type.
// Values that cannot be converted are returned unchanged.
func (t FieldType) Cast(v any) any {
	switch t {
	case ObjectID:
		if s, ok := v.(string); ok {
			if id, err := bson.ObjectIDFromHex(s); err == nil {
				return id
			}
		}
	case UUID:
		if s, ok := v.(string); ok {
			if id, err := uuid.Parse(s); err == nil {
				return id
			}
		}
	case String:
		if s, ok := v.(fmt.Stringer); ok {
			return s.String()
		}
	}
	return v
}
