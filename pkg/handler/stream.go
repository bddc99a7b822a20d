package handler

import (
	"context"

	// Packages
	pump "github.com/mutablelogic/go-formdata/pkg/pump"
	schema "github.com/mutablelogic/go-formdata/pkg/schema"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// StreamHandler hands a single file part to the caller as a live stream
type StreamHandler struct {
	*Handler[*pump.Detachable]
	key    string
	limits schema.Limits
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewStreamHandler returns a handler which requires key as a file, or
// nothing when key is empty
func NewStreamHandler(ctx context.Context, key string, limits schema.Limits, opts ...Opt[*pump.Detachable]) (*StreamHandler, error) {
	self := &StreamHandler{key: key, limits: limits.WithDefaults()}
	opts = append(opts,
		WithName[*pump.Detachable]("stream"),
		WithoutFields[*pump.Detachable](),
		WithFileParser(self.parse),
		WithOnAbort[*pump.Detachable](self.onAbort),
	)
	if key != "" {
		opts = append(opts, WithRequired[*pump.Detachable](key))
	}
	handler, err := newHandler(opts...)
	if err != nil {
		return nil, err
	}
	self.Handler = handler
	self.start(ctx)
	return self, nil
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Key returns the name of the stream part
func (s *StreamHandler) Key() string {
	return s.key
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (s *StreamHandler) parse(_ context.Context, key string, src pump.Source) (*pump.Detachable, error) {
	if src.Truncated() {
		return nil, &schema.FileSizeError{Key: key, Limit: s.limits.FileSize}
	}
	if err := checkName(key, s.limits); err != nil {
		return nil, err
	}
	return pump.NewDetachable(src), nil
}

// onAbort drains a stream already handed to the caller
func (s *StreamHandler) onAbort(ctx context.Context) error {
	for _, task := range s.Tasks() {
		if stream, ok, err := task.Result(); ok && err == nil {
			if err := stream.Drain(); err != nil {
				s.logger.Debugf(ctx, "drain %q: %v", s.key, err)
			}
		}
	}
	return nil
}
