package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestSpinnerDrawsAndClears(t *testing.T) {
	var buf bytes.Buffer
	s := newSpinnerTo(context.Background(), &buf, "welding nodes")
	s.Start()
	time.Sleep(5 * spinnerTick)
	s.Stop()

	out := buf.String()
	if !strings.Contains(out, "welding nodes") {
		t.Errorf("output missing message: %q", out)
	}
	if !strings.Contains(out, spinnerFrames[0]) {
		t.Errorf("output missing first frame: %q", out)
	}
	// Stop clears the line with padding wide enough to cover the message.
	if !strings.HasSuffix(out, strings.Repeat(" ", len("welding nodes")+4)+"\r") {
		t.Errorf("line not cleared: %q", out)
	}
}

func TestSpinnerStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var buf bytes.Buffer
	s := newSpinnerTo(ctx, &buf, "reading features")
	s.Start()

	cancel()
	time.Sleep(2 * spinnerTick)

	if !s.Cancelled() {
		t.Error("spinner should report cancellation after context cancel")
	}
	s.Stop()
}

func TestSpinnerStopsOnContextTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), spinnerTick/2)
	defer cancel()

	var buf bytes.Buffer
	s := newSpinnerTo(ctx, &buf, "resolving")
	s.Start()
	time.Sleep(2 * spinnerTick)

	if !s.Cancelled() {
		t.Error("spinner should report cancellation after timeout")
	}
	s.Stop()
}

func TestSpinnerStopIsIdempotent(t *testing.T) {
	var buf bytes.Buffer
	s := newSpinnerTo(context.Background(), &buf, "writing chunks")
	s.Start()

	s.Stop()
	s.Stop()
	s.Stop()
}
