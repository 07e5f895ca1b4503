package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func waitFor(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case got := <-ch:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestWatcher_ChangeAndRemove(t *testing.T) {
	root := t.TempDir()
	changes := make(chan string, 16)
	removes := make(chan string, 16)

	w := New(root, []string{".txt"},
		func(p string) { changes <- p },
		func(p string) { removes <- p },
		WithDebounce(50*time.Millisecond),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(root, "tài-liệu.txt")
	if err := os.WriteFile(path, []byte("an toàn thông tin"), 0644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changes, path)

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	waitFor(t, removes, path)
}

func TestWatcher_ExtensionFilter(t *testing.T) {
	root := t.TempDir()
	changes := make(chan string, 16)

	w := New(root, []string{"pdf", ".txt"},
		func(p string) { changes <- p },
		nil,
		WithDebounce(50*time.Millisecond),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	ignored := filepath.Join(root, "binary.exe")
	matched := filepath.Join(root, "ghi-chú.txt")
	if err := os.WriteFile(ignored, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(matched, []byte("y"), 0644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, changes, matched)
	select {
	case got := <-changes:
		if got == ignored {
			t.Errorf("filtered extension triggered callback: %s", got)
		}
	default:
	}
}

func TestWatcher_CreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "corpus")
	w := New(root, nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if _, err := os.Stat(root); err != nil {
		t.Fatalf("root was not created: %v", err)
	}
}

func TestWatcher_SyncExisting(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "có-sẵn.txt")
	if err := os.WriteFile(path, []byte("z"), 0644); err != nil {
		t.Fatal(err)
	}

	changes := make(chan string, 16)
	w := New(root, []string{".txt"}, func(p string) { changes <- p }, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	w.SyncExisting()
	waitFor(t, changes, path)
}
