package handler

import (
	"context"

	// Packages
	schema "github.com/mutablelogic/go-formdata/pkg/schema"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// FieldHandler returns the values of named fields
type FieldHandler struct {
	*Handler[schema.Field]
	limits schema.Limits
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewFieldHandler returns a handler which requires each of keys as a field
func NewFieldHandler(ctx context.Context, keys []string, limits schema.Limits, opts ...Opt[schema.Field]) (*FieldHandler, error) {
	self := &FieldHandler{limits: limits.WithDefaults()}
	handler, err := newHandler(append(opts,
		WithName[schema.Field]("fields"),
		WithRequired[schema.Field](keys...),
		WithoutFiles[schema.Field](),
		WithFieldParser(self.parse),
	)...)
	if err != nil {
		return nil, err
	}
	self.Handler = handler
	self.start(ctx)
	return self, nil
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (f *FieldHandler) parse(ctx context.Context, key string, field schema.Field) (schema.Field, error) {
	if err := checkField(key, field, f.limits); err != nil {
		return schema.Field{}, err
	}
	field.Name = key
	return field, nil
}

func checkField(key string, field schema.Field, limits schema.Limits) error {
	if field.ValueTruncated {
		return &schema.TruncatedFieldError{Key: key}
	}
	return checkName(key, limits)
}

func checkName(key string, limits schema.Limits) error {
	if len(key) > limits.FieldNameSize {
		return &schema.FieldNameSizeError{Limit: limits.FieldNameSize}
	}
	return nil
}
