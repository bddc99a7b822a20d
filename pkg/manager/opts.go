package manager

import (
	"context"
	"errors"
	"fmt"

	// Packages
	formdata "github.com/mutablelogic/go-formdata"
	backend "github.com/mutablelogic/go-formdata/pkg/backend"
	logger "github.com/mutablelogic/go-formdata/pkg/logger"
	schema "github.com/mutablelogic/go-formdata/pkg/schema"
	metric "go.opentelemetry.io/otel/metric"
	trace "go.opentelemetry.io/otel/trace"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

type Opt func(*opts) error

type opts struct {
	tracer   trace.Tracer
	meter    metric.Meter
	logger   formdata.Logger
	limits   schema.Limits
	names    []string
	backends map[string]formdata.Backend
}

////////////////////////////////////////////////////////////////////////////////
// OPTIONS

func WithTracer(tracer trace.Tracer) Opt {
	return func(o *opts) error {
		o.tracer = tracer
		return nil
	}
}

// WithMeter records upload metrics for every parsed form
func WithMeter(meter metric.Meter) Opt {
	return func(o *opts) error {
		o.meter = meter
		return nil
	}
}

// WithLogger sets the logger for the manager and the forms it parses
func WithLogger(logger formdata.Logger) Opt {
	return func(o *opts) error {
		if logger != nil {
			o.logger = logger
		}
		return nil
	}
}

// WithLimits caps the limits requested by each form. A zero limit is
// not capped.
func WithLimits(limits schema.Limits) Opt {
	return func(o *opts) error {
		o.limits = limits
		return nil
	}
}

// WithBackend opens the backend at url, which is one of mem://name,
// file://name/path or s3://bucket/prefix. The backend name must be unique.
func WithBackend(ctx context.Context, url string, backendOpts ...backend.Opt) Opt {
	return func(o *opts) error {
		b, err := backend.NewBlobBackend(ctx, url, backendOpts...)
		if err != nil {
			return err
		}
		if _, exists := o.backends[b.Name()]; exists {
			return errors.Join(fmt.Errorf("backend with name %q already registered", b.Name()), b.Close())
		}
		o.names = append(o.names, b.Name())
		o.backends[b.Name()] = b
		return nil
	}
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func applyOpts(opt []Opt) (opts, error) {
	o := opts{
		logger:   logger.Nop(),
		backends: make(map[string]formdata.Backend),
	}
	for _, fn := range opt {
		if err := fn(&o); err != nil {
			return opts{}, errors.Join(err, o.close())
		}
	}
	return o, nil
}

func (o *opts) close() error {
	var result error
	for _, name := range o.names {
		result = errors.Join(result, o.backends[name].Close())
	}
	return result
}
