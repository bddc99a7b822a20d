package parser

import (
	"slices"

	// Packages
	formdata "github.com/mutablelogic/go-formdata"
	logger "github.com/mutablelogic/go-formdata/pkg/logger"
	schema "github.com/mutablelogic/go-formdata/pkg/schema"
	lo "github.com/samber/lo"
	metric "go.opentelemetry.io/otel/metric"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

type opt struct {
	persist []string
	fields  []string
	stream  string
	limits  schema.Limits
	prefix  string
	logger  formdata.Logger
	meter   metric.Meter
}

type Opt func(*opt) error

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func apply(opts ...Opt) (*opt, error) {
	o := opt{
		logger: logger.Nop(),
	}
	for _, fn := range opts {
		if err := fn(&o); err != nil {
			return nil, err
		}
	}
	o.limits = o.limits.WithDefaults()

	// The stream part cannot also be persisted or returned
	if o.stream != "" && (slices.Contains(o.persist, o.stream) || slices.Contains(o.fields, o.stream)) {
		return nil, &schema.ParsingErrors{Errs: []error{&schema.InvalidStreamOptionError{Key: o.stream}}}
	}

	return &o, nil
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// WithPersist appends the names of parts written to storage
func WithPersist(keys ...string) Opt {
	return func(o *opt) error {
		o.persist = lo.Uniq(append(o.persist, lo.Compact(keys)...))
		return nil
	}
}

// WithFields appends the names of fields returned as values
func WithFields(keys ...string) Opt {
	return func(o *opt) error {
		o.fields = lo.Uniq(append(o.fields, lo.Compact(keys)...))
		return nil
	}
}

// WithStream sets the name of the file part handed over as a live stream.
// Parts which follow it in the form are an error.
func WithStream(key string) Opt {
	return func(o *opt) error {
		o.stream = key
		return nil
	}
}

func WithLimits(limits schema.Limits) Opt {
	return func(o *opt) error {
		o.limits = limits
		return nil
	}
}

// WithPrefix sets the directory under which persisted parts are written
func WithPrefix(prefix string) Opt {
	return func(o *opt) error {
		o.prefix = prefix
		return nil
	}
}

func WithLogger(logger formdata.Logger) Opt {
	return func(o *opt) error {
		if logger != nil {
			o.logger = logger
		}
		return nil
	}
}

func WithMeter(meter metric.Meter) Opt {
	return func(o *opt) error {
		o.meter = meter
		return nil
	}
}
