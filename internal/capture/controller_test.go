package capture

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/windfall/cicero/internal/errors"
)

type fakeDevice struct {
	mime    string
	openErr error
	closed  int
}

func (d *fakeDevice) Open(ctx context.Context) (string, error) {
	if d.openErr != nil {
		return "", d.openErr
	}
	if d.mime == "" {
		return "audio/webm", nil
	}
	return d.mime, nil
}

func (d *fakeDevice) Close() error {
	d.closed++
	return nil
}

func TestAcquireAndFinalize(t *testing.T) {
	dev := &fakeDevice{mime: "audio/ogg"}
	c := NewController(dev, zerolog.Nop())
	ctx := context.Background()

	rec, err := c.Acquire(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.MimeType() != "audio/ogg" {
		t.Errorf("mime = %q, want audio/ogg", rec.MimeType())
	}

	if err := rec.Push([]byte("abc")); err != nil {
		t.Fatal(err)
	}
	if err := rec.Push(nil); err != nil {
		t.Fatal("empty chunks are dropped, not an error")
	}
	if err := rec.Push([]byte("def")); err != nil {
		t.Fatal(err)
	}

	artifact, err := c.Finalize(ctx, rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(artifact.Data, []byte("abcdef")) {
		t.Errorf("artifact = %q, want concatenated chunks", artifact.Data)
	}
	if artifact.MimeType != "audio/ogg" {
		t.Errorf("artifact mime = %q", artifact.MimeType)
	}
	if dev.closed != 1 {
		t.Errorf("device closed %d times, want 1", dev.closed)
	}
	if c.Active() != nil {
		t.Error("no recording should be active after finalize")
	}
}

func TestAcquireConflict(t *testing.T) {
	c := NewController(&fakeDevice{}, zerolog.Nop())
	ctx := context.Background()

	if _, err := c.Acquire(ctx); err != nil {
		t.Fatal(err)
	}
	_, err := c.Acquire(ctx)
	if errors.Classify(err).Code != errors.ErrConflict {
		t.Errorf("second acquire should conflict, got %v", err)
	}
}

func TestAcquireDeviceFailure(t *testing.T) {
	c := NewController(&fakeDevice{openErr: fmt.Errorf("permission denied")}, zerolog.Nop())

	_, err := c.Acquire(context.Background())
	if errors.Classify(err).Code != errors.ErrDevice {
		t.Errorf("expected device classification, got %v", err)
	}
	if c.Active() != nil {
		t.Error("failed acquire must not leave an active recording")
	}
}

func TestEmptyArtifact(t *testing.T) {
	c := NewController(&fakeDevice{}, zerolog.Nop())
	ctx := context.Background()

	rec, err := c.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}
	artifact, err := c.Finalize(ctx, rec)
	if err != nil {
		t.Fatalf("an empty capture finalizes cleanly: %v", err)
	}
	if !artifact.Empty() {
		t.Error("artifact should report empty")
	}
}

func TestPushAfterFinalize(t *testing.T) {
	c := NewController(&fakeDevice{}, zerolog.Nop())
	ctx := context.Background()

	rec, _ := c.Acquire(ctx)
	if _, err := c.Finalize(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if err := rec.Push([]byte("late")); errors.Classify(err).Code != errors.ErrConflict {
		t.Errorf("push after finalize should conflict, got %v", err)
	}
}

func TestLevelsTap(t *testing.T) {
	c := NewController(&fakeDevice{}, zerolog.Nop())
	ctx := context.Background()

	rec, _ := c.Acquire(ctx)
	if err := rec.Push([]byte{200, 200, 200, 200}); err != nil {
		t.Fatal(err)
	}

	select {
	case level := <-rec.Levels():
		if level <= 0 || level > 1 {
			t.Errorf("level = %v, want (0,1]", level)
		}
	default:
		t.Fatal("expected a buffered level sample")
	}

	// A full tap never blocks capture.
	for i := 0; i < 200; i++ {
		if err := rec.Push([]byte{1, 2, 3}); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := c.Finalize(ctx, rec); err != nil {
		t.Fatal(err)
	}

	closed := false
	for i := 0; i < 300; i++ {
		if _, ok := <-rec.Levels(); !ok {
			closed = true
			break
		}
	}
	if !closed {
		t.Error("levels channel should be closed after finalize")
	}
}

func TestRelease(t *testing.T) {
	dev := &fakeDevice{}
	c := NewController(dev, zerolog.Nop())

	rec, _ := c.Acquire(context.Background())
	c.Release(rec)
	if c.Active() != nil {
		t.Error("release should clear the active recording")
	}
	if dev.closed != 1 {
		t.Errorf("device closed %d times, want 1", dev.closed)
	}

	// Releasing again is a no-op.
	c.Release(rec)
	if dev.closed != 1 {
		t.Errorf("double release closed device again")
	}
}
