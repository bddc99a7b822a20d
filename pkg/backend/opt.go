package backend

import (
	"fmt"
	"net/url"

	// Packages
	aws "github.com/aws/aws-sdk-go-v2/aws"
	trace "go.opentelemetry.io/otel/trace"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

type opt struct {
	region    string
	profile   string
	endpoint  *url.URL
	anonymous bool
	createDir bool
	tracer    trace.Tracer
	awsConfig *aws.Config
}

// Opt is a functional option for a backend
type Opt func(*opt) error

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func apply(opts ...Opt) (*opt, error) {
	o := new(opt)
	for _, fn := range opts {
		if err := fn(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

////////////////////////////////////////////////////////////////////////////////
// OPTIONS

// WithEndpoint sets the endpoint of an S3-compatible service. Requests use
// path-style addressing, and plain http:// endpoints disable TLS.
func WithEndpoint(endpoint string) Opt {
	return func(o *opt) error {
		u, err := url.Parse(endpoint)
		if err != nil {
			return err
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("endpoint must be http:// or https://, got %q", endpoint)
		}
		o.endpoint = u
		return nil
	}
}

// WithRegion sets the S3 region
func WithRegion(region string) Opt {
	return func(o *opt) error {
		o.region = region
		return nil
	}
}

// WithProfile sets the shared AWS configuration profile
func WithProfile(profile string) Opt {
	return func(o *opt) error {
		o.profile = profile
		return nil
	}
}

// WithAnonymous sends unsigned S3 requests
func WithAnonymous() Opt {
	return func(o *opt) error {
		o.anonymous = true
		return nil
	}
}

// WithCreateDir creates the directory of a file:// backend if it doesn't exist
func WithCreateDir() Opt {
	return func(o *opt) error {
		o.createDir = true
		return nil
	}
}

// WithTracer adds a child span for every S3 API call, when the backend is
// opened with WithAWSConfig
func WithTracer(tracer trace.Tracer) Opt {
	return func(o *opt) error {
		o.tracer = tracer
		return nil
	}
}

// WithAWSConfig opens s3:// backends with cfg instead of the configuration
// read from the environment
func WithAWSConfig(cfg aws.Config) Opt {
	return func(o *opt) error {
		o.awsConfig = &cfg
		return nil
	}
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// query returns the parameters understood by the bucket URL opener for scheme
func (o *opt) query(scheme string, q url.Values) url.Values {
	set := func(key, value string) {
		if value != "" {
			q.Set(key, value)
		}
	}
	switch scheme {
	case "file":
		if o.createDir {
			set("create_dir", "true")
		}
	case "s3":
		set("region", o.region)
		set("profile", o.profile)
		if o.endpoint != nil {
			set("endpoint", o.endpoint.String())
			set("s3ForcePathStyle", "true")
			if o.endpoint.Scheme == "http" {
				set("disable_https", "true")
			}
		}
		if o.anonymous {
			set("anonymous", "true")
		}
	}
	return q
}
