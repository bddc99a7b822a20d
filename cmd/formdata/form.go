package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	// Packages
	bytesize "github.com/inhies/go-bytesize"
	httpclient "github.com/mutablelogic/go-formdata/pkg/httpclient"
	schema "github.com/mutablelogic/go-formdata/pkg/schema"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type FormCommands struct {
	Backends BackendsCommand `cmd:"" name:"backends" help:"List backends." group:"CLIENT"`
	Submit   SubmitCommand   `cmd:"" name:"submit" help:"Submit a multipart form." group:"CLIENT"`
	List     ListCommand     `cmd:"" name:"list" help:"List objects." group:"CLIENT"`
	Head     HeadCommand     `cmd:"" name:"head" help:"Get object metadata." group:"CLIENT"`
	Get      GetCommand      `cmd:"" name:"get" help:"Read object content." group:"CLIENT"`
	Delete   DeleteCommand   `cmd:"" name:"delete" help:"Delete an object." group:"CLIENT"`
}

type BackendsCommand struct{}

type SubmitCommand struct {
	Backend string   `arg:"" name:"backend" help:"Backend name"`
	Parts   []string `arg:"" name:"part" help:"Form parts in order, as name=value for a field or name=@file for a file"`
	Path    string   `name:"path" short:"p" help:"Base path for persisted parts"`
	Persist []string `name:"persist" help:"Names of parts to persist"`
	Field   []string `name:"field" help:"Names of fields to return"`
	Stream  string   `name:"stream" help:"Name of the part to stream"`

	FieldNameSize int    `name:"fieldnamesize" help:"Maximum length of a field name"`
	FieldSize     int    `name:"fieldsize" help:"Maximum length of a field value"`
	FileSize      string `name:"filesize" help:"Maximum size of a file part (e.g. 10MB)"`
	Fields        int    `name:"fields" help:"Maximum number of fields"`
	Files         int    `name:"files" help:"Maximum number of files"`
	Total         int    `name:"parts" help:"Maximum number of parts"`
}

type ListCommand struct {
	Backend   string `arg:"" name:"backend" help:"Backend name"`
	Path      string `arg:"" name:"path" help:"Path prefix to list" optional:"" default:"/"`
	Recursive bool   `name:"recursive" short:"r" help:"List recursively"`
}

// ObjectArgs name a stored part
type ObjectArgs struct {
	Backend string `arg:"" name:"backend" help:"Backend name"`
	Path    string `arg:"" name:"path" help:"Path of the stored part"`
}

type HeadCommand struct {
	ObjectArgs
}

type GetCommand struct {
	ObjectArgs
	Output string `name:"output" short:"o" help:"Write to a file instead of stdout, or to the uploaded filename when the output is a directory"`
}

type DeleteCommand struct {
	ObjectArgs
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (cmd *BackendsCommand) Run(ctx *Globals) error {
	c, err := ctx.Client()
	if err != nil {
		return err
	}
	resp, err := c.ListBackends(ctx.ctx)
	if err != nil {
		return err
	}
	if ctx.Debug {
		return prettyJSON(resp)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, name := range resp.Names() {
		fmt.Fprintf(w, "%s\t%s\n", name, resp.Body[name])
	}
	return w.Flush()
}

func (cmd *SubmitCommand) Run(ctx *Globals) error {
	c, err := ctx.Client()
	if err != nil {
		return err
	}
	req, err := cmd.request()
	if err != nil {
		return err
	}

	// Open the parts, closing any files on return
	parts := make([]httpclient.Part, 0, len(cmd.Parts))
	for _, arg := range cmd.Parts {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return fmt.Errorf("invalid part %q, expected name=value or name=@file", arg)
		}
		if path, isFile := strings.CutPrefix(value, "@"); isFile {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			parts = append(parts, httpclient.FilePart(name, filepath.Base(path), f))
		} else {
			parts = append(parts, httpclient.FieldPart(name, value))
		}
	}

	form, err := c.ParseForm(ctx.ctx, cmd.Backend, req, parts...)
	if err != nil {
		return err
	}
	return prettyJSON(form)
}

func (cmd *ListCommand) Run(ctx *Globals) error {
	c, err := ctx.Client()
	if err != nil {
		return err
	}
	resp, err := c.ListObjects(ctx.ctx, cmd.Backend, schema.ListObjectsRequest{
		Path:      cmd.Path,
		Recursive: cmd.Recursive,
	})
	if err != nil {
		return err
	}
	if ctx.Debug {
		return prettyJSON(resp)
	}
	return printObjects(resp.Body)
}

func (cmd *HeadCommand) Run(ctx *Globals) error {
	c, err := ctx.Client()
	if err != nil {
		return err
	}
	obj, err := c.GetObject(ctx.ctx, cmd.Backend, schema.GetObjectRequest{Path: cmd.Path})
	if err != nil {
		return err
	}
	return prettyJSON(obj)
}

func (cmd *GetCommand) Run(ctx *Globals) (err error) {
	c, err := ctx.Client()
	if err != nil {
		return err
	}
	write := func(chunk []byte) error {
		_, err := os.Stdout.Write(chunk)
		return err
	}

	// Write to a file, named after the upload when the output is a directory
	if cmd.Output != "" {
		output := cmd.Output
		if info, err := os.Stat(output); err == nil && info.IsDir() {
			obj, err := c.GetObject(ctx.ctx, cmd.Backend, schema.GetObjectRequest{Path: cmd.Path})
			if err != nil {
				return err
			}
			output = filepath.Join(output, obj.FileName())
		}
		f, createErr := os.Create(output)
		if createErr != nil {
			return createErr
		}
		write = func(chunk []byte) error {
			_, err := f.Write(chunk)
			return err
		}
		defer func() {
			if err = errors.Join(err, f.Close()); err != nil {
				os.Remove(output)
			}
		}()
	}

	_, err = c.ReadObject(ctx.ctx, cmd.Backend, schema.ReadObjectRequest{
		GetObjectRequest: schema.GetObjectRequest{Path: cmd.Path},
	}, write)
	return err
}

func (cmd *DeleteCommand) Run(ctx *Globals) error {
	c, err := ctx.Client()
	if err != nil {
		return err
	}
	obj, err := c.DeleteObject(ctx.ctx, cmd.Backend, schema.DeleteObjectRequest{Path: cmd.Path})
	if err != nil {
		return err
	}
	if ctx.Debug || obj == nil {
		return prettyJSON(obj)
	}
	return printObjects([]schema.Object{*obj})
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (cmd *SubmitCommand) request() (schema.ParseFormRequest, error) {
	req := schema.ParseFormRequest{
		Path:    cmd.Path,
		Persist: cmd.Persist,
		Fields:  cmd.Field,
		Stream:  cmd.Stream,
		Limits: schema.Limits{
			FieldNameSize: cmd.FieldNameSize,
			FieldSize:     cmd.FieldSize,
			Fields:        cmd.Fields,
			Files:         cmd.Files,
			Parts:         cmd.Total,
		},
	}
	if cmd.FileSize != "" {
		size, err := bytesize.Parse(cmd.FileSize)
		if err != nil {
			return req, fmt.Errorf("--filesize: %w", err)
		}
		req.FileSize = int64(size)
	}
	return req, nil
}

func prettyJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printObjects writes one row per object
func printObjects(objs []schema.Object) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, obj := range objs {
		fmt.Fprintf(w, "%8s\t%s\t%s\t%s\n",
			bytesize.New(float64(obj.Size)),
			obj.ModTime.Format("2006-01-02 15:04"),
			obj.ContentType,
			strings.TrimPrefix(obj.Path, "/"),
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "\n  %d object(s)\n", len(objs))
	return nil
}
