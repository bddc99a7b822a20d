package main

import (
	"net"
	"net/url"
	"os"

	// Packages
	client "github.com/mutablelogic/go-client"
	httpclient "github.com/mutablelogic/go-formdata/pkg/httpclient"
	types "github.com/mutablelogic/go-server/pkg/types"
)

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Client returns a client for the server at the address and prefix of
// the HTTP flags
func (g *Globals) Client() (*httpclient.Client, error) {
	endpoint, err := g.endpoint()
	if err != nil {
		return nil, err
	}
	var opts []client.ClientOpt
	if g.Debug {
		opts = append(opts, client.OptTrace(os.Stderr, false))
	}
	if g.HTTP.Timeout > 0 {
		opts = append(opts, client.OptTimeout(g.HTTP.Timeout))
	}
	return httpclient.New(endpoint.String(), opts...)
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// endpoint returns the API URL. A server listening on all interfaces is
// reached on localhost, and port 443 implies https.
func (g *Globals) endpoint() (*url.URL, error) {
	host, port, err := net.SplitHostPort(g.HTTP.Addr)
	if err != nil {
		return nil, err
	}
	if _, err := net.LookupPort("tcp", port); err != nil {
		return nil, err
	}
	if host == "" {
		host = "localhost"
	}
	u := &url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(host, port),
		Path:   types.NormalisePath(g.HTTP.Prefix),
	}
	if port == "443" || port == "https" {
		u.Scheme = "https"
	}
	return u, nil
}
