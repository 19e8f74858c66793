// Package capture wraps the microphone capability and owns the lifecycle of a
// single in-flight recording: acquire device, accumulate chunks, finalize into
// one encoded artifact.
package capture

import (
	"bytes"
	"context"
	"math"
	"sync"

	"github.com/rs/zerolog"

	"github.com/windfall/cicero/internal/errors"
)

// Artifact is one finalized recording: the concatenated chunk data with its
// encoding tag.
type Artifact struct {
	Data     []byte
	MimeType string
}

// Empty reports whether the capture produced no data at all.
func (a Artifact) Empty() bool {
	return len(a.Data) == 0
}

// Device is the opaque capture capability. Open prepares the device for one
// recording and reports the encoding of the chunks it will deliver; it fails
// when the device cannot be opened (permission refusal, no hardware, API
// unavailable).
type Device interface {
	Open(ctx context.Context) (mimeType string, err error)
	Close() error
}

// ChunkDevice is the default device for the HTTP surface: the remote client
// holds the real microphone and streams encoded chunks up. Opening it always
// succeeds; acquisition failures on the client side are reported as explicit
// device errors by the session API instead.
type ChunkDevice struct {
	MIME string
}

func (d *ChunkDevice) Open(ctx context.Context) (string, error) {
	if d.MIME == "" {
		return "audio/webm", nil
	}
	return d.MIME, nil
}

func (d *ChunkDevice) Close() error { return nil }

// Recording is the handle for one acquired capture. Chunks are appended via
// Push; Levels exposes a read-only amplitude tap for live visualization that
// never affects the captured artifact.
type Recording struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	mimeType string
	levels   chan float64
	closed   bool
}

// Push appends one encoded chunk and mirrors its amplitude to the level tap.
func (r *Recording) Push(chunk []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.New(errors.ErrConflict, "recording already finalized")
	}
	if len(chunk) == 0 {
		return nil
	}
	r.buf.Write(chunk)

	// Non-blocking: a slow visualizer consumer must never stall capture.
	select {
	case r.levels <- rms(chunk):
	default:
	}
	return nil
}

// Levels is the live amplitude tap. Values are dropped when nobody reads.
func (r *Recording) Levels() <-chan float64 {
	return r.levels
}

// MimeType reports the encoding tag declared by the device.
func (r *Recording) MimeType() string {
	return r.mimeType
}

// rms computes a coarse amplitude for one chunk, treating the payload as raw
// bytes. Good enough to drive a bar visualizer; this is a tap, not DSP.
func rms(chunk []byte) float64 {
	var sum float64
	for _, b := range chunk {
		v := float64(int(b) - 128)
		sum += v * v
	}
	return math.Sqrt(sum/float64(len(chunk))) / 128
}

// Controller mediates access to the capture device. Only one recording handle
// may be open at a time; a second Acquire before Finalize is a programming
// error surfaced as a conflict.
type Controller struct {
	device Device
	log    zerolog.Logger

	mu     sync.Mutex
	active *Recording
}

// NewController creates a capture controller for a device.
func NewController(device Device, log zerolog.Logger) *Controller {
	return &Controller{device: device, log: log}
}

// Acquire opens the device and returns the recording handle. Device failures
// surface as the DeviceError classification; the session stays recoverable.
func (c *Controller) Acquire(ctx context.Context) (*Recording, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		return nil, errors.New(errors.ErrConflict, "a recording is already in flight")
	}

	mimeType, err := c.device.Open(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("Capture device could not be opened")
		return nil, errors.Device("capture device unavailable", err)
	}

	rec := &Recording{
		mimeType: mimeType,
		levels:   make(chan float64, 64),
	}
	c.active = rec
	c.log.Debug().Str("mime_type", mimeType).Msg("Capture device acquired")
	return rec, nil
}

// Active returns the in-flight recording handle, if any.
func (c *Controller) Active() *Recording {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Finalize concatenates everything captured since acquisition into one encoded
// artifact and releases the device. Invoked once, on explicit stop; the
// artifact may be empty, which the caller maps to its own classification.
func (c *Controller) Finalize(ctx context.Context, rec *Recording) (Artifact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil || c.active != rec {
		return Artifact{}, errors.New(errors.ErrConflict, "recording is not in flight")
	}

	rec.mu.Lock()
	rec.closed = true
	close(rec.levels)
	artifact := Artifact{
		Data:     rec.buf.Bytes(),
		MimeType: rec.mimeType,
	}
	rec.mu.Unlock()

	c.active = nil
	if err := c.device.Close(); err != nil {
		c.log.Warn().Err(err).Msg("Capture device close failed")
	}

	c.log.Debug().Int("bytes", len(artifact.Data)).Msg("Capture finalized")
	return artifact, nil
}

// Release discards an in-flight recording without producing an artifact
// (abort path).
func (c *Controller) Release(rec *Recording) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil || c.active != rec {
		return
	}
	rec.mu.Lock()
	if !rec.closed {
		rec.closed = true
		close(rec.levels)
	}
	rec.mu.Unlock()
	c.active = nil
	_ = c.device.Close()
}
