package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Packages
	logger "github.com/mutablelogic/go-formdata/pkg/logger"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type Globals struct {
	Debug bool `name:"debug" help:"Enable debug logging"`
	JSON  bool `name:"json" help:"Log as JSON"`

	// HTTP server and client options
	HTTP struct {
		Prefix  string        `name:"prefix" help:"HTTP path prefix" default:"/api/formdata"`
		Addr    string        `name:"addr" env:"FORMDATA_ADDR" help:"HTTP Listen address" default:"localhost:8080"`
		Origin  string        `name:"origin" help:"Cross-origin protection (CSRF) origin. Empty string for same-origin only, '*' to allow all origins" default:""`
		Timeout time.Duration `name:"timeout" help:"HTTP client timeout" default:"0"`
	} `embed:"" prefix:"http."`

	logger *logger.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func NewApp(app Globals) *Globals {
	// Create the logger
	format := logger.Text
	if app.JSON {
		format = logger.JSON
	}
	app.logger = logger.New(os.Stderr, format, app.Debug)

	// The context is cancelled when the process receives a SIGINT or SIGTERM
	app.ctx, app.cancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &app
}

func (app *Globals) Close() error {
	app.cancel()
	return nil
}
