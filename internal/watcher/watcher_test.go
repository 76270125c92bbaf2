package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOp_String(t *testing.T) {
	tests := []struct {
		op   Op
		want string
	}{
		{OpCreate, "CREATE"},
		{OpWrite, "WRITE"},
		{OpRemove, "REMOVE"},
		{OpRename, "RENAME"},
		{OpChmod, "CHMOD"},
		{OpCreate | OpWrite, "CREATE|WRITE"},
		{0, "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("Op(%d).String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}

func TestOp_Has(t *testing.T) {
	op := OpWrite | OpRename
	if !op.Has(OpWrite) || !op.Has(OpRename) {
		t.Errorf("%v should have WRITE and RENAME", op)
	}
	if op.Has(OpCreate) || op.Has(0) {
		t.Errorf("%v should not have CREATE or the empty op", op)
	}
	if !(Event{Op: OpRename}).Gone() || (Event{Op: OpWrite}).Gone() {
		t.Error("Gone() mismatch")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func waitEvent(t *testing.T, w *Watcher, timeout time.Duration) (Event, bool) {
	t.Helper()
	select {
	case ev := <-w.Events():
		return ev, true
	case <-time.After(timeout):
		return Event{}, false
	}
}

func TestWatcher_WatchUnwatch(t *testing.T) {
	w, err := New()
	if err != nil {
		t.Fatalf("New error = %v", err)
	}
	defer w.Close()

	dir := t.TempDir()
	a := filepath.Join(dir, "a.fni")
	b := filepath.Join(dir, "b.fni")
	writeFile(t, a, "a")
	writeFile(t, b, "b")

	if err := w.Watch(a); err != nil {
		t.Fatalf("Watch(a) error = %v", err)
	}
	if err := w.Watch(b); err != nil {
		t.Fatalf("Watch(b) error = %v", err)
	}
	if err := w.Watch(a); err != ErrAlreadyWatching {
		t.Errorf("Watch again error = %v, want ErrAlreadyWatching", err)
	}
	if got := w.WatchedPaths(); len(got) != 2 || got[0] != a || got[1] != b {
		t.Errorf("WatchedPaths() = %v", got)
	}

	if err := w.Unwatch(a); err != nil {
		t.Fatalf("Unwatch error = %v", err)
	}
	if w.IsWatching(a) || !w.IsWatching(b) {
		t.Error("Unwatch(a) affected the wrong file")
	}
	if err := w.Unwatch(a); err != ErrNotWatching {
		t.Errorf("Unwatch again error = %v, want ErrNotWatching", err)
	}
}

func TestWatcher_BufferSize(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		want int
	}{
		{"default", nil, DefaultConfig().BufferSize},
		{"set", []Option{WithBufferSize(8)}, 8},
		{"zero ignored", []Option{WithBufferSize(0)}, DefaultConfig().BufferSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := New(tt.opts...)
			if err != nil {
				t.Fatalf("New error = %v", err)
			}
			defer w.Close()
			if got := cap(w.Events()); got != tt.want {
				t.Errorf("cap(Events()) = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWatcher_WatchNonexistent(t *testing.T) {
	w, err := New()
	if err != nil {
		t.Fatalf("New error = %v", err)
	}
	defer w.Close()

	if err := w.Watch(filepath.Join(t.TempDir(), "missing.fni")); err != ErrPathNotExist {
		t.Errorf("Watch nonexistent error = %v, want ErrPathNotExist", err)
	}
}

func TestWatcher_Closed(t *testing.T) {
	w, err := New()
	if err != nil {
		t.Fatalf("New error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "a.fni")
	writeFile(t, path, "a")
	if err := w.Watch(path); err != ErrWatcherClosed {
		t.Errorf("Watch after Close error = %v, want ErrWatcherClosed", err)
	}
	if _, ok := <-w.Events(); ok {
		t.Error("Events channel not closed")
	}
}

func TestWatcher_ReportsWrite(t *testing.T) {
	w, err := New(WithDebounceDelay(0))
	if err != nil {
		t.Fatalf("New error = %v", err)
	}
	defer w.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "doc.fni")
	writeFile(t, path, "v1")
	if err := w.Watch(path); err != nil {
		t.Fatalf("Watch error = %v", err)
	}

	// A sibling in the same directory is not reported.
	writeFile(t, filepath.Join(dir, "other.fni"), "x")
	writeFile(t, path, "v2")

	ev, ok := waitEvent(t, w, 2*time.Second)
	if !ok {
		t.Fatal("no event for watched file")
	}
	if ev.Path != path {
		t.Errorf("event path = %s, want %s", ev.Path, path)
	}
	if !ev.Op.Has(OpWrite) && !ev.Op.Has(OpCreate) {
		t.Errorf("event op = %v, want WRITE or CREATE", ev.Op)
	}
}

func TestWatcher_ReportsReplaceByRename(t *testing.T) {
	w, err := New(WithDebounceDelay(20 * time.Millisecond))
	if err != nil {
		t.Fatalf("New error = %v", err)
	}
	defer w.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "doc.fni")
	writeFile(t, path, "v1")
	if err := w.Watch(path); err != nil {
		t.Fatalf("Watch error = %v", err)
	}

	tmp := filepath.Join(dir, ".doc.fni.tmp")
	writeFile(t, tmp, "v2")
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("Rename error = %v", err)
	}

	ev, ok := waitEvent(t, w, 2*time.Second)
	if !ok {
		t.Fatal("no event after atomic replace")
	}
	if ev.Path != path {
		t.Errorf("event path = %s, want %s", ev.Path, path)
	}
}

func TestWatcher_Debounce(t *testing.T) {
	delay := 150 * time.Millisecond
	w, err := New(WithDebounceDelay(delay))
	if err != nil {
		t.Fatalf("New error = %v", err)
	}
	defer w.Close()

	path := filepath.Join(t.TempDir(), "doc.fni")
	writeFile(t, path, "v0")
	if err := w.Watch(path); err != nil {
		t.Fatalf("Watch error = %v", err)
	}

	for i := 0; i < 5; i++ {
		writeFile(t, path, "burst")
		time.Sleep(10 * time.Millisecond)
	}

	if _, ok := waitEvent(t, w, 2*time.Second); !ok {
		t.Fatal("no debounced event")
	}
	if ev, ok := waitEvent(t, w, 3*delay); ok {
		t.Errorf("burst produced a second event: %+v", ev)
	}
}

func TestWatcher_RemoveIsGone(t *testing.T) {
	w, err := New(WithDebounceDelay(0))
	if err != nil {
		t.Fatalf("New error = %v", err)
	}
	defer w.Close()

	path := filepath.Join(t.TempDir(), "doc.fni")
	writeFile(t, path, "v1")
	if err := w.Watch(path); err != nil {
		t.Fatalf("Watch error = %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("Remove error = %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-w.Events():
			if ev.Gone() {
				return
			}
		case <-deadline:
			t.Fatal("no remove event")
		}
	}
}
