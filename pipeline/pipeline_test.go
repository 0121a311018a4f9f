package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialup-inc/photobooth/camera"
	"github.com/dialup-inc/photobooth/delivery"
	"github.com/dialup-inc/photobooth/store"
)

type fakeStill struct {
	img   image.Image
	err   error
	block bool
}

func (f *fakeStill) Still(ctx context.Context) (image.Image, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.img, f.err
}

type countingWriter struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (w *countingWriter) Save(path string, img image.Image) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.paths = append(w.paths, path)
	return nil
}

func (w *countingWriter) writes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.paths)
}

func fixedNow() time.Time { return time.Date(2024, 5, 30, 14, 25, 1, 0, time.Local) }

func newPipeline(opts Options) *Pipeline {
	if opts.Camera == nil {
		opts.Camera = &fakeStill{img: image.NewRGBA(image.Rect(0, 0, 4, 4))}
	}
	if opts.Writer == nil {
		opts.Writer = &countingWriter{}
	}
	opts.Namer = store.Namer{Now: fixedNow}
	opts.Log = zerolog.Nop()
	return New(opts)
}

func recordStates(p *Pipeline) *[]State {
	var states []State
	p.AddListener(func(prev, next State) { states = append(states, next) })
	return &states
}

func nextCompletion(t *testing.T, p *Pipeline) Completion {
	t.Helper()
	select {
	case c := <-p.Completions():
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no completion")
		return Completion{}
	}
}

func TestPipeline_HappyPathWithoutDelivery(t *testing.T) {
	w := &countingWriter{}
	var saved []CapturedImage
	p := newPipeline(Options{Writer: w, OnSaved: func(c CapturedImage) { saved = append(saved, c) }})
	states := recordStates(p)

	require.NoError(t, p.Arm(TriggerKey, ""))
	cur, ok := p.Current()
	require.True(t, ok)
	assert.Equal(t, "2024-05-30-142501.jpg", cur.Path)

	require.NoError(t, p.Capture(context.Background()))
	assert.Equal(t, Capturing, p.State())

	assert.True(t, p.Complete(nextCompletion(t, p)))

	assert.Equal(t, Idle, p.State())
	assert.Equal(t, []State{Armed, Capturing, Saved, Idle}, *states)
	assert.Equal(t, []string{"2024-05-30-142501.jpg"}, w.paths)
	require.Len(t, saved, 1)
	assert.Equal(t, cur.ID, saved[0].ID)
	assert.Equal(t, cur.Path, p.Status().LastPath)
}

func TestPipeline_TagNamesFile(t *testing.T) {
	p := newPipeline(Options{})
	require.NoError(t, p.Arm(TriggerTag, "4-17-200-9"))
	cur, _ := p.Current()
	assert.Equal(t, "2024-05-30-142501_rfid_4-17-200-9.jpg", cur.Path)

	require.True(t, p.Abort())
	require.NoError(t, p.ArmAs(TriggerKey, "me.jpg"))
	cur, _ = p.Current()
	assert.Equal(t, "me.jpg", cur.Path)
}

func TestPipeline_DuplicateCompletionSavesOnce(t *testing.T) {
	w := &countingWriter{}
	p := newPipeline(Options{Writer: w})

	require.NoError(t, p.Arm(TriggerKey, ""))
	require.NoError(t, p.Capture(context.Background()))
	c := nextCompletion(t, p)

	assert.True(t, p.Complete(c))
	assert.False(t, p.Complete(c))
	assert.Equal(t, 1, w.writes())

	// a late completion for the old arming is ignored by the next one too
	require.NoError(t, p.Arm(TriggerKey, ""))
	require.NoError(t, p.Capture(context.Background()))
	fresh := nextCompletion(t, p)
	assert.False(t, p.Complete(c))
	assert.True(t, p.Complete(fresh))
	assert.Equal(t, 2, w.writes())
}

func TestPipeline_ArmWhileBusy(t *testing.T) {
	p := newPipeline(Options{Camera: &fakeStill{block: true}})

	require.NoError(t, p.Arm(TriggerKey, ""))
	assert.ErrorIs(t, p.Arm(TriggerTimer, ""), ErrBusy)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, p.Capture(ctx))
	assert.ErrorIs(t, p.Arm(TriggerKey, ""), ErrBusy)
	assert.ErrorIs(t, p.Capture(ctx), ErrNotArmed)
	assert.False(t, p.Abort())
}

func TestPipeline_CaptureFailureReturnsToIdle(t *testing.T) {
	w := &countingWriter{}
	p := newPipeline(Options{Writer: w, Camera: &fakeStill{err: camera.ErrCamNotFound}})
	states := recordStates(p)

	require.NoError(t, p.Arm(TriggerKey, ""))
	require.NoError(t, p.Capture(context.Background()))
	c := nextCompletion(t, p)
	assert.ErrorIs(t, c.Err, camera.ErrCamNotFound)
	assert.True(t, p.Complete(c))

	assert.Equal(t, Idle, p.State())
	assert.Equal(t, []State{Armed, Capturing, Idle}, *states)
	assert.Zero(t, w.writes())
	assert.Equal(t, "not found", p.Status().LastError)

	require.NoError(t, p.Arm(TriggerKey, ""), "next trigger works")
}

func TestPipeline_CaptureTimeout(t *testing.T) {
	p := newPipeline(Options{Camera: &fakeStill{block: true}, CaptureTimeout: 10 * time.Millisecond})

	require.NoError(t, p.Arm(TriggerKey, ""))
	require.NoError(t, p.Capture(context.Background()))
	c := nextCompletion(t, p)
	assert.ErrorIs(t, c.Err, camera.ErrCamTimeout)
	p.Complete(c)
	assert.Equal(t, Idle, p.State())
}

func TestPipeline_WriteFailureReturnsToIdle(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	p := New(Options{
		Camera: &fakeStill{img: image.NewRGBA(image.Rect(0, 0, 4, 4))},
		Namer:  store.Namer{Dir: blocker, Now: fixedNow},
		Writer: store.JPEGWriter{},
		Log:    zerolog.Nop(),
	})

	require.NoError(t, p.Arm(TriggerKey, ""))
	require.NoError(t, p.Capture(context.Background()))
	assert.True(t, p.Complete(nextCompletion(t, p)))

	assert.Equal(t, Idle, p.State())
	assert.Contains(t, p.Status().LastError, "write "+filepath.Join(blocker, "2024-05-30-142501.jpg"))
}

type overlayFunc func(image.Image) (image.Image, error)

func (f overlayFunc) Apply(img image.Image) (image.Image, error) { return f(img) }

func TestPipeline_Overlay(t *testing.T) {
	marked := image.NewRGBA(image.Rect(0, 0, 1, 1))
	var saved []CapturedImage
	p := newPipeline(Options{
		Overlay: overlayFunc(func(image.Image) (image.Image, error) { return marked, nil }),
		OnSaved: func(c CapturedImage) { saved = append(saved, c) },
	})

	require.NoError(t, p.Arm(TriggerKey, ""))
	require.NoError(t, p.Capture(context.Background()))
	p.Complete(nextCompletion(t, p))
	require.Len(t, saved, 1)
	assert.Same(t, marked, saved[0].Image)

	// a failing overlay still saves the plain image
	p.opts.Overlay = overlayFunc(func(image.Image) (image.Image, error) { return nil, errors.New("no cascade") })
	require.NoError(t, p.Arm(TriggerKey, ""))
	require.NoError(t, p.Capture(context.Background()))
	p.Complete(nextCompletion(t, p))
	require.Len(t, saved, 2)
	assert.NotNil(t, saved[1].Image)
}

func TestPipeline_DeliveryIsFireAndForget(t *testing.T) {
	release := make(chan struct{})
	dl := delivery.DelivererFunc(func(ctx context.Context, d delivery.Delivery) error {
		<-release
		return errors.New("collector down")
	})
	p := newPipeline(Options{Deliverer: dl})
	states := recordStates(p)

	require.NoError(t, p.Arm(TriggerKey, ""))
	require.NoError(t, p.Capture(context.Background()))
	require.True(t, p.Complete(nextCompletion(t, p)))

	// back to idle while the upload is still hanging
	assert.Equal(t, Idle, p.State())
	assert.Equal(t, []State{Armed, Capturing, Saved, Delivered, Idle}, *states)
	require.NoError(t, p.Arm(TriggerKey, ""))
	require.True(t, p.Abort())

	close(release)
	select {
	case r := <-p.DeliveryResults():
		assert.Equal(t, DeliveryFailed, p.Delivered(r))
		assert.Equal(t, DeliveryFailed, p.Status().LastDelivery)
		assert.Equal(t, Idle, p.State())
	case <-time.After(2 * time.Second):
		t.Fatal("no delivery result")
	}
}

func TestPipeline_DeliverySuccess(t *testing.T) {
	var got delivery.Delivery
	dl := delivery.DelivererFunc(func(ctx context.Context, d delivery.Delivery) error {
		got = d
		return nil
	})
	p := newPipeline(Options{Deliverer: dl})

	require.NoError(t, p.Arm(TriggerTag, "euruko"))
	require.NoError(t, p.Capture(context.Background()))
	p.Complete(nextCompletion(t, p))

	r := <-p.DeliveryResults()
	assert.Equal(t, Delivered, p.Delivered(r))
	assert.Equal(t, "euruko", got.Tag)
	assert.Equal(t, "2024-05-30-142501_rfid_euruko.jpg", got.Path)
}

func TestPipeline_UncollectedDeliveryResultDoesNotBlock(t *testing.T) {
	p := newPipeline(Options{})
	p.results = make(chan delivery.Result)

	done := make(chan struct{})
	go func() {
		p.report(delivery.Result{Delivery: delivery.Delivery{ID: uuid.New()}, Err: errors.New("collector down")})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("delivery goroutine stuck")
	}
}

func TestPipeline_StatusJSON(t *testing.T) {
	p := newPipeline(Options{})

	b, err := json.Marshal(p.Status())
	require.NoError(t, err)
	assert.NotContains(t, string(b), "last_saved_at")

	require.NoError(t, p.Arm(TriggerKey, ""))
	require.NoError(t, p.Capture(context.Background()))
	p.Complete(nextCompletion(t, p))

	st := p.Status()
	require.NotNil(t, st.LastSavedAt)
	b, err = json.Marshal(st)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"last_saved_at":`)
	assert.Contains(t, string(b), `"state":"idle"`)
}
