package handler

import (
	"context"

	// Packages
	formdata "github.com/mutablelogic/go-formdata"
	logger "github.com/mutablelogic/go-formdata/pkg/logger"
	pump "github.com/mutablelogic/go-formdata/pkg/pump"
	schema "github.com/mutablelogic/go-formdata/pkg/schema"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// FileParser turns a file part into a result
type FileParser[T any] func(ctx context.Context, key string, src pump.Source) (T, error)

// FieldParser turns a field part into a result
type FieldParser[T any] func(ctx context.Context, key string, field schema.Field) (T, error)

type opt[T any] struct {
	name        string
	required    []string
	allowFiles  bool
	allowFields bool
	parseFile   FileParser[T]
	parseField  FieldParser[T]
	onAbort     func(context.Context) error
	onFinish    func(context.Context) error
	logger      formdata.Logger
}

// Opt is a functional option for a handler
type Opt[T any] func(*opt[T]) error

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func apply[T any](opts ...Opt[T]) (*opt[T], error) {
	o := opt[T]{
		name:        "handler",
		allowFiles:  true,
		allowFields: true,
		parseFile: func(context.Context, string, pump.Source) (T, error) {
			var zero T
			return zero, schema.ErrCannotParseFile
		},
		parseField: func(context.Context, string, schema.Field) (T, error) {
			var zero T
			return zero, schema.ErrCannotParseField
		},
		logger: logger.Nop(),
	}
	for _, fn := range opts {
		if err := fn(&o); err != nil {
			return nil, err
		}
	}
	return &o, nil
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// WithRequired appends keys which must each be satisfied before the
// handler can succeed
func WithRequired[T any](keys ...string) Opt[T] {
	return func(o *opt[T]) error {
		o.required = append(o.required, keys...)
		return nil
	}
}

// WithoutFiles refuses every file task
func WithoutFiles[T any]() Opt[T] {
	return func(o *opt[T]) error {
		o.allowFiles = false
		return nil
	}
}

// WithoutFields refuses every field task
func WithoutFields[T any]() Opt[T] {
	return func(o *opt[T]) error {
		o.allowFields = false
		return nil
	}
}

func WithFileParser[T any](fn FileParser[T]) Opt[T] {
	return func(o *opt[T]) error {
		if fn != nil {
			o.parseFile = fn
		}
		return nil
	}
}

func WithFieldParser[T any](fn FieldParser[T]) Opt[T] {
	return func(o *opt[T]) error {
		if fn != nil {
			o.parseField = fn
		}
		return nil
	}
}

// WithOnAbort sets a function called once when the handler is aborted
func WithOnAbort[T any](fn func(context.Context) error) Opt[T] {
	return func(o *opt[T]) error {
		o.onAbort = fn
		return nil
	}
}

// WithOnFinish sets a function called once when the handler starts to
// settle, before outstanding tasks are awaited
func WithOnFinish[T any](fn func(context.Context) error) Opt[T] {
	return func(o *opt[T]) error {
		o.onFinish = fn
		return nil
	}
}

func WithLogger[T any](logger formdata.Logger) Opt[T] {
	return func(o *opt[T]) error {
		if logger != nil {
			o.logger = logger
		}
		return nil
	}
}

// WithName sets the name reported in log messages
func WithName[T any](name string) Opt[T] {
	return func(o *opt[T]) error {
		o.name = name
		return nil
	}
}
