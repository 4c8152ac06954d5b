package indicator

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type fakeOutput struct {
	mu   sync.Mutex
	sets []bool
}

func (f *fakeOutput) Set(on bool) error {
	f.mu.Lock()
	f.sets = append(f.sets, on)
	f.mu.Unlock()
	return nil
}

func (f *fakeOutput) last() (bool, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sets) == 0 {
		return false, 0
	}
	return f.sets[len(f.sets)-1], len(f.sets)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWorker_AppliesLatest(t *testing.T) {
	out := &fakeOutput{}
	w := NewWorker(out, discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	w.Request(true)

	deadline := time.Now().Add(time.Second)
	for {
		on, n := out.last()
		if n > 0 && on {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("indicator never switched on")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// same state again is not re-applied
	w.Request(true)
	w.Request(false)

	deadline = time.Now().Add(time.Second)
	for {
		on, _ := out.last()
		if !on {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("indicator never switched off")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestLED_WritesBrightness(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "status")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "max_brightness"), []byte("255\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "brightness"), []byte("0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	led, err := OpenLED(root, "status")
	if err != nil {
		t.Fatalf("OpenLED: %v", err)
	}

	if err := led.Set(true); err != nil {
		t.Fatalf("Set: %v", err)
	}
	raw, _ := os.ReadFile(filepath.Join(dir, "brightness"))
	if string(raw) != "255" {
		t.Fatalf("brightness = %q, want 255", raw)
	}

	if err := led.Set(false); err != nil {
		t.Fatalf("Set: %v", err)
	}
	raw, _ = os.ReadFile(filepath.Join(dir, "brightness"))
	if string(raw) != "0" {
		t.Fatalf("brightness = %q, want 0", raw)
	}

	if _, err := OpenLED(root, "missing"); err == nil {
		t.Fatalf("expected error for missing led")
	}
}
