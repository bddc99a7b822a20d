package handler_test

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	// Packages
	handler "github.com/mutablelogic/go-formdata/pkg/handler"
	pump "github.com/mutablelogic/go-formdata/pkg/pump"
	schema "github.com/mutablelogic/go-formdata/pkg/schema"
	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"
)

const timeout = 5 * time.Second

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

func readAll(_ context.Context, key string, src pump.Source) (string, error) {
	data, err := io.ReadAll(src)
	return key + "=" + string(data), err
}

func fieldValue(_ context.Context, key string, field schema.Field) (string, error) {
	return key + "=" + field.Value, nil
}

func newHandler(t *testing.T, keys []string, opts ...handler.Opt[string]) *handler.Handler[string] {
	t.Helper()
	h, err := handler.New(context.Background(), append([]handler.Opt[string]{
		handler.WithRequired[string](keys...),
		handler.WithFileParser(readAll),
		handler.WithFieldParser(fieldValue),
	}, opts...)...)
	require.NoError(t, err)
	return h
}

func TestHandlerResolves(t *testing.T) {
	assert := assert.New(t)
	ctx := waitCtx(t)
	h := newHandler(t, []string{"a", "b"})

	assert.True(h.WantFile("a"))
	assert.True(h.WantField("b"))
	assert.False(h.WantFile("c"))

	a, err := h.StartFileTask("a", pump.StringSource("X"))
	require.NoError(t, err)
	b, err := h.StartFieldTask("b", schema.Field{Name: "b", Value: "Y"})
	require.NoError(t, err)

	results, err := h.Wait(ctx)
	require.NoError(t, err)
	assert.ElementsMatch([]string{"a=X", "b=Y"}, results)

	value, err := a.Wait(ctx)
	assert.NoError(err)
	assert.Equal("a=X", value)
	value, err = b.Wait(ctx)
	assert.NoError(err)
	assert.Equal("b=Y", value)

	assert.Empty(h.Pending())
	assert.False(h.Accepting())
	select {
	case <-h.Idle():
	case <-ctx.Done():
		t.Fatal("handler did not become idle")
	}
	assert.Error(h.Context().Err())
}

func TestHandlerNoRequiredKeys(t *testing.T) {
	assert := assert.New(t)
	h, err := handler.New[string](context.Background())
	require.NoError(t, err)

	// Settled on return
	results, ok, err := h.Done().Result()
	assert.True(ok)
	assert.NoError(err)
	assert.Empty(results)
	assert.False(h.WantField("a"))

	_, err = h.StartFieldTask("a", schema.Field{Value: "x"})
	assert.ErrorIs(err, schema.ErrUnwantedTask)
}

func TestHandlerMissingEntries(t *testing.T) {
	assert := assert.New(t)
	ctx := waitCtx(t)
	h := newHandler(t, []string{"c", "a", "b"})

	_, err := h.StartFieldTask("b", schema.Field{Value: "Y"})
	require.NoError(t, err)
	h.Finish()

	_, err = h.Wait(ctx)
	var missing *schema.MissingEntriesError
	if assert.ErrorAs(err, &missing) {
		assert.Equal([]string{"a", "c"}, missing.Keys)
	}
	assert.Equal("missing entries: a, c", err.Error())
}

func TestHandlerUnwanted(t *testing.T) {
	h := newHandler(t, []string{"a"}, handler.WithoutFiles[string]())

	t.Run("files refused", func(t *testing.T) {
		assert := assert.New(t)
		assert.False(h.WantFile("a"))
		_, err := h.StartFileTask("a", pump.StringSource("X"))
		assert.ErrorIs(err, schema.ErrUnwantedTask)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := h.StartFieldTask("z", schema.Field{Value: "Z"})
		assert.ErrorIs(t, err, schema.ErrUnwantedTask)
	})

	t.Run("key already satisfied", func(t *testing.T) {
		assert := assert.New(t)
		task, err := h.StartFieldTask("a", schema.Field{Value: "A"})
		require.NoError(t, err)
		_, err = task.Wait(waitCtx(t))
		require.NoError(t, err)
		_, err = h.StartFieldTask("a", schema.Field{Value: "A"})
		assert.ErrorIs(err, schema.ErrUnwantedTask)
	})

	t.Run("not accepting after finish", func(t *testing.T) {
		results, err := h.Wait(waitCtx(t))
		require.NoError(t, err)
		assert.Equal(t, []string{"a=A"}, results)
		_, err = h.StartFieldTask("a", schema.Field{Value: "A"})
		assert.ErrorIs(t, err, schema.ErrUnwantedTask)
	})
}

func TestHandlerDefaultParsers(t *testing.T) {
	assert := assert.New(t)
	ctx := waitCtx(t)
	h, err := handler.New(context.Background(), handler.WithRequired[int]("a"))
	require.NoError(t, err)

	task, err := h.StartFieldTask("a", schema.Field{Value: "x"})
	require.NoError(t, err)
	_, err = task.Wait(ctx)
	assert.ErrorIs(err, schema.ErrCannotParseField)

	_, err = h.Wait(ctx)
	assert.ErrorIs(err, schema.ErrCannotParseField)
}

func TestHandlerTaskFailureAborts(t *testing.T) {
	assert := assert.New(t)
	ctx := waitCtx(t)
	failure := errors.New("bad part")

	var aborted atomic.Int32
	h := newHandler(t, []string{"ok", "slow", "bad"},
		handler.WithFileParser(func(ctx context.Context, key string, src pump.Source) (string, error) {
			switch key {
			case "bad":
				return "", failure
			case "slow":
				<-ctx.Done()
				return "", context.Cause(ctx)
			default:
				return readAll(ctx, key, src)
			}
		}),
		handler.WithOnAbort[string](func(context.Context) error {
			aborted.Add(1)
			return nil
		}),
	)

	ok, err := h.StartFileTask("ok", pump.StringSource("fine"))
	require.NoError(t, err)
	_, err = ok.Wait(ctx)
	require.NoError(t, err)

	slow, err := h.StartFileTask("slow", pump.StringSource(""))
	require.NoError(t, err)
	bad, err := h.StartFileTask("bad", pump.StringSource(""))
	require.NoError(t, err)

	// The handler fails with the task's own error
	_, err = h.Wait(ctx)
	assert.ErrorIs(err, failure)
	_, err = bad.Wait(ctx)
	assert.ErrorIs(err, failure)

	// Other tasks see the cause on their context
	_, err = slow.Wait(ctx)
	assert.ErrorIs(err, failure)
	assert.ErrorIs(context.Cause(h.Context()), failure)

	select {
	case <-h.Idle():
	case <-ctx.Done():
		t.Fatal("handler did not become idle")
	}
	assert.Equal(int32(1), aborted.Load())
	assert.False(h.Accepting())
}

func TestHandlerAbortFirstWins(t *testing.T) {
	assert := assert.New(t)
	ctx := waitCtx(t)
	first, second := errors.New("first"), errors.New("second")
	h := newHandler(t, []string{"a"})

	h.Abort(first)
	h.Abort(second)
	h.Finish()

	_, err := h.Wait(ctx)
	assert.ErrorIs(err, first)
	assert.NotErrorIs(err, second)
	assert.False(h.WantField("a"))
}

func TestHandlerAbortNil(t *testing.T) {
	h := newHandler(t, []string{"a"})
	h.Abort(nil)
	_, err := h.Wait(waitCtx(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHandlerFinishWaitsForTasks(t *testing.T) {
	assert := assert.New(t)
	ctx := waitCtx(t)
	release := make(chan struct{})

	var finished atomic.Int32
	h := newHandler(t, []string{"a", "b"},
		handler.WithFieldParser(func(ctx context.Context, key string, field schema.Field) (string, error) {
			<-release
			return fieldValue(ctx, key, field)
		}),
		handler.WithOnFinish[string](func(context.Context) error {
			finished.Add(1)
			return nil
		}),
	)

	_, err := h.StartFieldTask("a", schema.Field{Value: "1"})
	require.NoError(t, err)
	_, err = h.StartFieldTask("b", schema.Field{Value: "2"})
	require.NoError(t, err)
	h.Finish()
	h.Finish()

	time.Sleep(10 * time.Millisecond)
	_, settled, _ := h.Done().Result()
	assert.False(settled)
	assert.Equal([]string{"a", "b"}, h.Pending())

	close(release)
	results, err := h.Wait(ctx)
	require.NoError(t, err)
	assert.ElementsMatch([]string{"a=1", "b=2"}, results)
	assert.Equal(int32(1), finished.Load())
	assert.Len(h.Tasks(), 2)
}

func TestHandlerOnFinishError(t *testing.T) {
	failure := errors.New("finish failed")
	h := newHandler(t, []string{"a"}, handler.WithOnFinish[string](func(context.Context) error {
		return failure
	}))
	_, err := h.StartFieldTask("a", schema.Field{Value: "1"})
	require.NoError(t, err)
	_, err = h.Wait(waitCtx(t))
	assert.ErrorIs(t, err, failure)
}

func TestHandlerParentCancel(t *testing.T) {
	assert := assert.New(t)
	cause := errors.New("request closed")
	parent, cancel := context.WithCancelCause(context.Background())

	h, err := handler.New(parent,
		handler.WithRequired[string]("a"),
		handler.WithFileParser(func(ctx context.Context, key string, _ pump.Source) (string, error) {
			<-ctx.Done()
			return "", context.Cause(ctx)
		}),
	)
	require.NoError(t, err)
	task, err := h.StartFileTask("a", pump.StringSource(""))
	require.NoError(t, err)

	cancel(cause)
	_, err = h.Wait(waitCtx(t))
	assert.ErrorIs(err, cause)
	_, err = task.Wait(waitCtx(t))
	assert.ErrorIs(err, cause)
}

func TestHandlerWaitContext(t *testing.T) {
	h := newHandler(t, []string{"a"})
	defer h.Abort(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := h.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
