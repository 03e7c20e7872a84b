package knowledge_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"entomo/internal/knowledge"
	"entomo/internal/logging"
)

func writeCatalogFiles(t *testing.T, dir, index string) (string, string) {
	t.Helper()
	storePath := filepath.Join(dir, "knowledge.json")
	indexPath := filepath.Join(dir, "index.json")
	if err := os.WriteFile(storePath, []byte(`{"1": {"label": "antlion"}, "2": {"label": "mantis"}}`), 0o644); err != nil {
		t.Fatalf("write store: %v", err)
	}
	if err := os.WriteFile(indexPath, []byte(index), 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}
	return storePath, indexPath
}

func TestCatalogServesLoadedFiles(t *testing.T) {
	storePath, indexPath := writeCatalogFiles(t, t.TempDir(), `{"antlion": 1, "mantis": 2}`)

	catalog, err := knowledge.OpenCatalog(storePath, indexPath)
	if err != nil {
		t.Fatalf("OpenCatalog: %v", err)
	}
	if idx, ok := catalog.Lookup("mantis"); !ok || idx != "2" {
		t.Fatalf("Lookup(mantis) = %q, %v", idx, ok)
	}
	if rec, ok := catalog.Record("1"); !ok || rec.Label != "antlion" {
		t.Fatalf("Record(1) = %+v, %v", rec, ok)
	}
}

func TestCatalogReloadKeepsPreviousOnError(t *testing.T) {
	storePath, indexPath := writeCatalogFiles(t, t.TempDir(), `{"antlion": 1}`)
	catalog, err := knowledge.OpenCatalog(storePath, indexPath)
	if err != nil {
		t.Fatalf("OpenCatalog: %v", err)
	}

	if err := os.WriteFile(indexPath, []byte(`[1, 2]`), 0o644); err != nil {
		t.Fatalf("rewrite index: %v", err)
	}
	if err := catalog.Reload(); err == nil {
		t.Fatal("expected reload error for non-object index")
	}
	if idx, ok := catalog.Lookup("antlion"); !ok || idx != "1" {
		t.Fatalf("previous index lost: %q, %v", idx, ok)
	}
}

func TestCatalogEmptyPaths(t *testing.T) {
	catalog, err := knowledge.OpenCatalog("", "")
	if err != nil {
		t.Fatalf("OpenCatalog: %v", err)
	}
	if catalog.Store().Len() != 0 || len(catalog.Index()) != 0 {
		t.Fatal("expected empty tables")
	}
	if _, err := knowledge.NewWatcher(catalog, nil, 0); err == nil {
		t.Fatal("expected watcher error without files")
	}
}

func TestWatcherReloadsOnChange(t *testing.T) {
	storePath, indexPath := writeCatalogFiles(t, t.TempDir(), `{"antlion": 1}`)
	catalog, err := knowledge.OpenCatalog(storePath, indexPath)
	if err != nil {
		t.Fatalf("OpenCatalog: %v", err)
	}
	watcher, err := knowledge.NewWatcher(catalog, logging.NewNop(), 20*time.Millisecond)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		watcher.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	if err := os.WriteFile(indexPath, []byte(`{"antlion": 1, "mantis": 9}`), 0o644); err != nil {
		t.Fatalf("rewrite index: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if idx, ok := catalog.Lookup("mantis"); ok && idx == "9" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("catalog was not reloaded after the index changed")
}
