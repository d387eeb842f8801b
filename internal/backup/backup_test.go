package backup_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/emberworks/codeconsole/internal/backup"
	"github.com/emberworks/codeconsole/internal/backup/local"
)

func newTestService(t *testing.T, retention time.Duration) (*backup.Service, backup.Backend) {
	t.Helper()
	backend, err := local.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return backup.NewService(backend, nil, retention), backend
}

func TestSnapshotAndList(t *testing.T) {
	svc, _ := newTestService(t, 0)

	rec1, err := svc.Snapshot("pages/Home.tsx", []byte("v1"))
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if rec1.OriginalFile != "pages/Home.tsx" {
		t.Errorf("OriginalFile = %q", rec1.OriginalFile)
	}
	if rec1.SizeBytes != 2 {
		t.Errorf("SizeBytes = %d, want 2", rec1.SizeBytes)
	}

	time.Sleep(2 * time.Millisecond)
	rec2, err := svc.Snapshot("pages/Home.tsx", []byte("v2 longer"))
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if rec2.ID == rec1.ID {
		t.Error("snapshot ids must be unique")
	}

	records, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("List returned %d records, want 2", len(records))
	}
	// Newest first.
	if records[0].ID != rec2.ID {
		t.Errorf("List[0].ID = %q, want newest %q", records[0].ID, rec2.ID)
	}
}

func TestGet(t *testing.T) {
	svc, _ := newTestService(t, 0)

	rec, err := svc.Snapshot("App.tsx", []byte("original content"))
	if err != nil {
		t.Fatal(err)
	}

	got, content, err := svc.Get(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(content) != "original content" {
		t.Errorf("content = %q", content)
	}
	if got.OriginalFile != "App.tsx" {
		t.Errorf("OriginalFile = %q", got.OriginalFile)
	}

	_, _, err = svc.Get(context.Background(), "nope.bak")
	if !errors.Is(err, backup.ErrBackupNotFound) {
		t.Errorf("Get missing = %v, want ErrBackupNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	svc, _ := newTestService(t, 0)

	rec, err := svc.Snapshot("App.tsx", []byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(context.Background(), rec.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	records, err := svc.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("List after delete = %d records", len(records))
	}

	if err := svc.Delete(context.Background(), rec.ID); !errors.Is(err, backup.ErrBackupNotFound) {
		t.Errorf("double delete = %v, want ErrBackupNotFound", err)
	}
}

func TestPurgeExpired(t *testing.T) {
	svc, backend := newTestService(t, time.Hour)
	ctx := context.Background()

	// One fresh backup through the service.
	fresh, err := svc.Snapshot("App.tsx", []byte("fresh"))
	if err != nil {
		t.Fatal(err)
	}

	// One stale object planted directly in the backend with an old
	// timestamp encoded in its id.
	old := time.Now().Add(-48 * time.Hour).UTC()
	staleKey := fmt.Sprintf("App.tsx/App.tsx.%d-beef.bak", old.UnixNano())
	if err := backend.Put(ctx, staleKey, []byte("stale")); err != nil {
		t.Fatal(err)
	}

	purged, err := svc.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if purged != 1 {
		t.Errorf("purged = %d, want 1", purged)
	}

	records, err := svc.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].ID != fresh.ID {
		t.Errorf("surviving records = %+v, want only fresh backup", records)
	}
}

func TestPurgeDisabled(t *testing.T) {
	svc, backend := newTestService(t, 0)
	ctx := context.Background()

	old := time.Now().Add(-365 * 24 * time.Hour).UTC()
	key := fmt.Sprintf("x.ts/x.ts.%d-cafe.bak", old.UnixNano())
	if err := backend.Put(ctx, key, []byte("ancient")); err != nil {
		t.Fatal(err)
	}

	purged, err := svc.PurgeExpired(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if purged != 0 {
		t.Errorf("purged = %d with retention disabled", purged)
	}
}
