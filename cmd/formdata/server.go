package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	// Packages
	config "github.com/aws/aws-sdk-go-v2/config"
	credentials "github.com/aws/aws-sdk-go-v2/credentials"
	bytesize "github.com/inhies/go-bytesize"
	backend "github.com/mutablelogic/go-formdata/pkg/backend"
	httphandler "github.com/mutablelogic/go-formdata/pkg/httphandler"
	manager "github.com/mutablelogic/go-formdata/pkg/manager"
	schema "github.com/mutablelogic/go-formdata/pkg/schema"
	version "github.com/mutablelogic/go-formdata/pkg/version"
	httprouter "github.com/mutablelogic/go-server/pkg/httprouter"
	httpserver "github.com/mutablelogic/go-server/pkg/httpserver"
	serverotel "github.com/mutablelogic/go-server/pkg/otel"
	otel "go.opentelemetry.io/otel"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type ServerCommands struct {
	Server RunServerCommand `cmd:"" name:"server" help:"Run HTTP server." group:"SERVER"`
}

type RunServerCommand struct {
	Backend []string `name:"backend" help:"Backend URL (e.g. mem://name, file://name/path, s3://bucket). May be repeated." optional:""`
	Create  bool     `name:"create" help:"Create the directory of file:// backends if it doesn't exist"`

	// AWS options for s3:// backends
	AWS struct {
		Region    string `name:"region" env:"AWS_REGION" help:"AWS region"`
		Profile   string `name:"profile" env:"AWS_PROFILE" help:"AWS shared configuration profile"`
		Endpoint  string `name:"endpoint" help:"Endpoint of an S3-compatible service"`
		AccessKey string `name:"access-key" env:"AWS_ACCESS_KEY_ID" help:"AWS access key"`
		SecretKey string `name:"secret-key" env:"AWS_SECRET_ACCESS_KEY" help:"AWS secret key"`
		Anonymous bool   `name:"anonymous" help:"Use anonymous credentials"`
	} `embed:"" prefix:"aws."`

	// Largest limits any form may request
	Limits struct {
		FieldNameSize int    `name:"fieldnamesize" help:"Maximum length of a field name"`
		FieldSize     int    `name:"fieldsize" help:"Maximum length of a field value"`
		FileSize      string `name:"filesize" help:"Maximum size of a file part (e.g. 100MB)"`
		Fields        int    `name:"fields" help:"Maximum number of fields"`
		Files         int    `name:"files" help:"Maximum number of files"`
		Parts         int    `name:"parts" help:"Maximum number of parts"`
	} `embed:"" prefix:"limit."`
}

///////////////////////////////////////////////////////////////////////////////
// COMMANDS

func (cmd *RunServerCommand) Run(ctx *Globals) error {
	limits, err := cmd.limits()
	if err != nil {
		return err
	}

	// Create manager with backends
	tracer := otel.Tracer(schema.SchemaName)
	opts := []manager.Opt{
		manager.WithLogger(ctx.logger),
		manager.WithTracer(tracer),
		manager.WithMeter(otel.Meter(schema.SchemaName)),
		manager.WithLimits(limits),
	}
	for _, backendURL := range cmd.Backend {
		backendOpts, err := cmd.backendOpts(ctx.ctx, backendURL)
		if err != nil {
			return err
		}
		opts = append(opts, manager.WithBackend(ctx.ctx, backendURL, append(backendOpts, backend.WithTracer(tracer))...))
	}
	mgr, err := manager.New(ctx.ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create manager: %w", err)
	}
	defer mgr.Close()

	return serve(ctx, mgr)
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// serve registers HTTP handlers and runs the server until context is done.
func serve(ctx *Globals, mgr *manager.Manager) error {
	// Trace and log every request
	middleware := []httprouter.HTTPMiddlewareFunc{
		serverotel.HTTPHandlerFunc(ctx.HTTP.Addr, ctx.logger.Logger),
	}

	// Create the router
	router, err := httprouter.NewRouter(ctx.ctx, ctx.HTTP.Prefix, ctx.HTTP.Origin, schema.SchemaName, version.Version(), middleware...)
	if err != nil {
		return fmt.Errorf("failed to create router: %w", err)
	}

	// Register form HTTP handlers
	if err := httphandler.RegisterHandlers(mgr, router); err != nil {
		return fmt.Errorf("failed to register handlers: %w", err)
	}

	// Create and run the HTTP server
	srv, err := httpserver.New(ctx.HTTP.Addr, http.Handler(router), nil)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx.logger.Printf(ctx.ctx, "%s@%s started on %s with backends %q", schema.SchemaName, version.Version(), ctx.HTTP.Addr, mgr.Backends())
	if err := srv.Run(ctx.ctx); err != nil {
		return err
	}
	ctx.logger.Printf(context.Background(), "%s stopped", schema.SchemaName)
	return nil
}

// backendOpts returns the options for a backend URL
func (cmd *RunServerCommand) backendOpts(ctx context.Context, backendURL string) ([]backend.Opt, error) {
	u, err := url.Parse(backendURL)
	if err != nil {
		return nil, err
	}

	var opts []backend.Opt
	switch u.Scheme {
	case "file":
		if cmd.Create {
			opts = append(opts, backend.WithCreateDir())
		}
	case "s3":
		// Load the AWS configuration, with static credentials when provided
		loadOpts := []func(*config.LoadOptions) error{}
		if cmd.AWS.Region != "" {
			loadOpts = append(loadOpts, config.WithRegion(cmd.AWS.Region))
		}
		if cmd.AWS.Profile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(cmd.AWS.Profile))
		}
		if cmd.AWS.AccessKey != "" {
			loadOpts = append(loadOpts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cmd.AWS.AccessKey, cmd.AWS.SecretKey, ""),
			))
		}
		cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("aws config: %w", err)
		}
		opts = append(opts, backend.WithAWSConfig(cfg))
		if cmd.AWS.Endpoint != "" {
			opts = append(opts, backend.WithEndpoint(cmd.AWS.Endpoint))
		}
		if cmd.AWS.Anonymous {
			opts = append(opts, backend.WithAnonymous())
		}
	}
	return opts, nil
}

func (cmd *RunServerCommand) limits() (schema.Limits, error) {
	limits := schema.Limits{
		FieldNameSize: cmd.Limits.FieldNameSize,
		FieldSize:     cmd.Limits.FieldSize,
		Fields:        cmd.Limits.Fields,
		Files:         cmd.Limits.Files,
		Parts:         cmd.Limits.Parts,
	}
	if cmd.Limits.FileSize != "" {
		size, err := bytesize.Parse(cmd.Limits.FileSize)
		if err != nil {
			return schema.Limits{}, fmt.Errorf("--limit.filesize: %w", err)
		}
		limits.FileSize = int64(size)
	}
	return limits, nil
}
