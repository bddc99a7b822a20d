package uploader

import (
	"fmt"
	"path"
	"strings"

	// Packages
	formdata "github.com/mutablelogic/go-formdata"
	logger "github.com/mutablelogic/go-formdata/pkg/logger"
	metric "go.opentelemetry.io/otel/metric"
	noop "go.opentelemetry.io/otel/metric/noop"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

type opt struct {
	prefix      string
	logger      formdata.Logger
	meter       metric.Meter
	concurrency int
}

type Opt func(*opt) error

const (
	defaultConcurrency = 8
)

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func apply(opts ...Opt) (*opt, error) {
	o := opt{
		logger:      logger.Nop(),
		meter:       noop.NewMeterProvider().Meter(meterName),
		concurrency: defaultConcurrency,
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

// WithPrefix sets the directory under which uploads are written
func WithPrefix(prefix string) Opt {
	return func(o *opt) error {
		o.prefix = strings.Trim(path.Clean("/"+prefix), "/")
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

// WithMeter sets the meter used to count uploaded files and bytes
func WithMeter(meter metric.Meter) Opt {
	return func(o *opt) error {
		if meter != nil {
			o.meter = meter
		}
		return nil
	}
}

// WithConcurrency sets the number of deletions run in parallel when
// uploads are removed
func WithConcurrency(n int) Opt {
	return func(o *opt) error {
		if n < 1 {
			return fmt.Errorf("invalid concurrency %d", n)
		}
		o.concurrency = n
		return nil
	}
}
