// Package parser routes the parts of a multipart stream to the handlers
// which return them as values, persist them to storage or hand them over
// as a live stream.
//
// Parts are read in order. A file part must be consumed before the next
// part is read, so the parser waits for each persisted file to be copied
// and for the live stream to be read to the end. Any failure aborts every
// handler and the parser fails with a schema.ParsingErrors.
package parser

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"slices"
	"sync"

	// Packages
	handler "github.com/mutablelogic/go-formdata/pkg/handler"
	pump "github.com/mutablelogic/go-formdata/pkg/pump"
	schema "github.com/mutablelogic/go-formdata/pkg/schema"
	uploader "github.com/mutablelogic/go-formdata/pkg/uploader"
	waiter "github.com/mutablelogic/go-formdata/pkg/waiter"
	errgroup "golang.org/x/sync/errgroup"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

type Parser struct {
	*opt
	ctx            context.Context
	fieldHandler   *handler.FieldHandler
	persistHandler *handler.PersistHandler
	streamHandler  *handler.StreamHandler
	done           *waiter.Waiter[struct{}]
	aborted        chan struct{}

	mu        sync.Mutex
	started   bool
	accepting bool
	finished  bool
	errs      []error
	nfields   int
	nfiles    int
	nparts    int
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New returns a parser which persists parts to storage. It fails with
// schema.ParsingErrors when the stream part is also persisted or returned.
func New(storage uploader.Storage, opts ...Opt) (*Parser, error) {
	self := new(Parser)
	if opt, err := apply(opts...); err != nil {
		return nil, err
	} else {
		self.opt = opt
	}

	// Create the uploader for persisted parts
	u, err := uploader.New(storage,
		uploader.WithPrefix(self.prefix),
		uploader.WithLogger(self.logger),
		uploader.WithMeter(self.meter),
	)
	if err != nil {
		return nil, err
	}

	// Create the handlers
	ctx := context.Background()
	self.ctx = ctx
	if self.fieldHandler, err = handler.NewFieldHandler(ctx, self.fields, self.limits, handler.WithLogger[schema.Field](self.logger)); err != nil {
		return nil, err
	}
	if self.persistHandler, err = handler.NewPersistHandler(ctx, u, self.persist, self.limits, handler.WithLogger[schema.FileInfo](self.logger)); err != nil {
		return nil, err
	}
	if self.streamHandler, err = handler.NewStreamHandler(ctx, self.stream, self.limits, handler.WithLogger[*pump.Detachable](self.logger)); err != nil {
		return nil, err
	}

	self.done = waiter.New[struct{}]()
	self.aborted = make(chan struct{})
	self.accepting = true

	// Return success
	return self, nil
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Start reading parts from r in the background. The parser aborts with
// the cause of ctx if ctx is cancelled before the parser settles.
func (p *Parser) Start(ctx context.Context, r *multipart.Reader) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return schema.ErrAlreadyStarted
	}
	p.started = true
	p.mu.Unlock()

	// Abort on cancel, until settled
	stop := context.AfterFunc(ctx, func() {
		p.fail(context.Cause(ctx))
	})
	go func() {
		<-p.done.Done()
		stop()
	}()

	// Abort when any handler fails
	watch(p, "fields", p.fieldHandler.Done())
	watch(p, "persist", p.persistHandler.Done())
	watch(p, "stream", p.streamHandler.Done())

	go p.run(r)
	return nil
}

// Abort parsing with err
func (p *Parser) Abort(err error) {
	if err == nil {
		err = context.Canceled
	}
	p.fail(err)
}

// Done returns the outcome of the parser
func (p *Parser) Done() waiter.Future[struct{}] {
	return p.done
}

// Wait for every part to be read and every handler to succeed
func (p *Parser) Wait(ctx context.Context) error {
	_, err := p.done.Wait(ctx)
	return err
}

// Fields waits for the fields returned as values
func (p *Parser) Fields(ctx context.Context) ([]schema.Field, error) {
	return p.fieldHandler.Wait(ctx)
}

// Files waits for the parts persisted to storage
func (p *Parser) Files(ctx context.Context) ([]schema.FileInfo, error) {
	return p.persistHandler.Wait(ctx)
}

// Stream waits for the live stream. It returns nil when no stream part
// was requested. The stream must be read to the end for parsing to
// continue.
func (p *Parser) Stream(ctx context.Context) (*pump.Detachable, error) {
	streams, err := p.streamHandler.Wait(ctx)
	if err != nil || len(streams) == 0 {
		return nil, err
	}
	return streams[0], nil
}

// StreamKey returns the name of the live stream part
func (p *Parser) StreamKey() string {
	return p.streamHandler.Key()
}

// Remove every persisted part, once in-flight uploads have settled
func (p *Parser) Remove(ctx context.Context) ([]string, error) {
	return p.persistHandler.Remove(ctx)
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func watch[T any](p *Parser, name string, f waiter.Future[T]) {
	go func() {
		<-f.Done()
		if _, _, err := f.Result(); err != nil {
			p.logger.Debugf(p.ctx, "%s: %v", name, err)
			p.fail(err)
		}
	}()
}

func (p *Parser) run(r *multipart.Reader) {
	for {
		part, err := r.NextPart()
		if errors.Is(err, io.EOF) {
			p.finish()
			return
		} else if err != nil {
			p.fail(err)
			return
		}

		err = p.onPart(part)
		part.Close()
		if err != nil {
			p.fail(err)
			return
		}

		select {
		case <-p.aborted:
			return
		default:
		}
	}
}

func (p *Parser) onPart(part *multipart.Part) error {
	file := part.FileName() != ""
	if err := p.count(file); err != nil {
		return err
	}

	p.mu.Lock()
	accepting := p.accepting
	p.mu.Unlock()
	if !accepting {
		return &schema.InvalidOrderError{Stream: p.stream, Key: part.FormName()}
	}

	if file {
		return p.onFile(part)
	}
	return p.onField(part)
}

// count a part, failing when a count limit is exceeded
func (p *Parser) count(file bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nparts++
	if p.limits.Parts > 0 && p.nparts > p.limits.Parts {
		return &schema.FieldsLimitError{Kind: "part(s)", Limit: p.limits.Parts}
	}
	if file {
		p.nfiles++
		if p.limits.Files > 0 && p.nfiles > p.limits.Files {
			return &schema.FieldsLimitError{Kind: "file(s)", Limit: p.limits.Files}
		}
	} else {
		p.nfields++
		if p.limits.Fields > 0 && p.nfields > p.limits.Fields {
			return &schema.FieldsLimitError{Kind: "field(s)", Limit: p.limits.Fields}
		}
	}
	return nil
}

func (p *Parser) onFile(part *multipart.Part) error {
	name := part.FormName()
	src := newFilePart(part, p.limits)

	switch {
	case p.persistHandler.WantFile(name):
		if _, err := p.persistHandler.StartFileTask(name, src); err != nil {
			return err
		}
	case p.streamHandler.WantFile(name):
		if _, err := p.streamHandler.StartFileTask(name, src); err != nil {
			return err
		}
		p.logger.Debugf(p.ctx, "stream %q handed over", name)
		p.finishHandlers()
	default:
		p.logger.Debugf(p.ctx, "discarding file %q", name)
		_, err := io.Copy(io.Discard, part)
		return err
	}

	// Wait for the part to be consumed before reading the next one
	select {
	case <-src.Done():
	case <-p.aborted:
	}
	return nil
}

func (p *Parser) onField(part *multipart.Part) error {
	field, err := readField(part, p.limits)
	if err != nil {
		return err
	}
	if p.persistHandler.WantField(field.Name) {
		if _, err := p.persistHandler.StartFieldTask(field.Name, field); err != nil {
			return err
		}
	}
	if p.fieldHandler.WantField(field.Name) {
		if _, err := p.fieldHandler.StartFieldTask(field.Name, field); err != nil {
			return err
		}
	}
	return nil
}

// finishHandlers stops accepting parts and finishes every handler
func (p *Parser) finishHandlers() {
	p.mu.Lock()
	p.accepting = false
	p.mu.Unlock()

	p.fieldHandler.Finish()
	p.persistHandler.Finish()
	p.streamHandler.Finish()
}

// finish is called at the end of input, and resolves the parser once
// every handler has succeeded
func (p *Parser) finish() {
	p.mu.Lock()
	if p.finished || p.isAborted() {
		p.mu.Unlock()
		return
	}
	p.finished = true
	p.mu.Unlock()

	p.finishHandlers()
	go func() {
		var g errgroup.Group
		g.Go(func() error {
			_, err := p.fieldHandler.Wait(context.Background())
			return err
		})
		g.Go(func() error {
			_, err := p.persistHandler.Wait(context.Background())
			return err
		})
		g.Go(func() error {
			_, err := p.streamHandler.Wait(context.Background())
			return err
		})
		if err := g.Wait(); err == nil {
			p.done.Resolve(struct{}{})
			p.logger.Debug(p.ctx, "parsed")
		}
	}()
}

// fail registers err and, the first time, aborts every handler. The
// parser rejects once every handler has settled.
func (p *Parser) fail(err error) {
	p.mu.Lock()
	if !slices.ContainsFunc(p.errs, func(e error) bool { return errors.Is(e, err) }) {
		p.errs = append(p.errs, err)
	}
	if p.isAborted() || p.done.IsDone() {
		p.mu.Unlock()
		return
	}
	p.accepting = false
	close(p.aborted)
	p.mu.Unlock()

	p.logger.Printf(p.ctx, "aborting: %v", err)
	p.fieldHandler.Abort(err)
	p.persistHandler.Abort(err)
	p.streamHandler.Abort(err)

	go func() {
		result := &schema.ParsingErrors{
			FieldErr:   errOf(p.fieldHandler.Done()),
			PersistErr: errOf(p.persistHandler.Done()),
			StreamErr:  errOf(p.streamHandler.Done()),
		}
		p.mu.Lock()
		result.Errs = slices.Clone(p.errs)
		p.mu.Unlock()
		p.done.Reject(result)
	}()
}

// isAborted must be called with the lock held
func (p *Parser) isAborted() bool {
	select {
	case <-p.aborted:
		return true
	default:
		return false
	}
}

func errOf[T any](f waiter.Future[T]) error {
	<-f.Done()
	_, _, err := f.Result()
	return err
}
