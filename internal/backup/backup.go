package backup

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/emberworks/codeconsole/internal/logging"
	"github.com/emberworks/codeconsole/internal/metrics"
	"github.com/emberworks/codeconsole/pkg/models"
)

// Service stores and retrieves pre-overwrite snapshots. Objects are
// keyed as "<original path>/<id>" so a backup can always be traced
// back to the file it protects.
type Service struct {
	backend   Backend
	index     *Index // optional, nil disables the audit index
	retention time.Duration
}

// NewService returns a backup service over the given backend.
// retention of zero keeps backups forever.
func NewService(backend Backend, index *Index, retention time.Duration) *Service {
	return &Service{backend: backend, index: index, retention: retention}
}

// newID builds a backup id from the file's base name, the snapshot
// time and a short random suffix, e.g. "App.tsx.1756512000000000000-9f3a.bak".
func newID(relPath string, now time.Time) string {
	buf := make([]byte, 2)
	rand.Read(buf)
	return fmt.Sprintf("%s.%d-%s.bak", path.Base(relPath), now.UTC().UnixNano(), hex.EncodeToString(buf))
}

// parseKey splits an object key into its original file path and
// backup id, and recovers the snapshot time from the id.
func parseKey(key string) (originalFile, id string, createdAt time.Time, ok bool) {
	slash := strings.LastIndex(key, "/")
	if slash < 0 {
		return "", "", time.Time{}, false
	}
	originalFile, id = key[:slash], key[slash+1:]
	if !strings.HasSuffix(id, ".bak") {
		return "", "", time.Time{}, false
	}

	stamp := strings.TrimSuffix(id, ".bak")
	if dot := strings.LastIndex(stamp, "."); dot >= 0 {
		stamp = stamp[dot+1:]
	}
	if dash := strings.Index(stamp, "-"); dash >= 0 {
		if ns, err := strconv.ParseInt(stamp[:dash], 10, 64); err == nil {
			createdAt = time.Unix(0, ns).UTC()
		}
	}
	return originalFile, id, createdAt, true
}

// Snapshot stores a copy of content for relPath and returns its
// record. It satisfies the content store's Snapshotter interface.
func (s *Service) Snapshot(relPath string, content []byte) (models.BackupRecord, error) {
	ctx := context.Background()
	now := time.Now()
	id := newID(relPath, now)
	key := relPath + "/" + id

	if err := s.backend.Put(ctx, key, content); err != nil {
		return models.BackupRecord{}, fmt.Errorf("store backup %s: %w", id, err)
	}

	rec := models.BackupRecord{
		ID:           id,
		OriginalFile: relPath,
		SizeBytes:    int64(len(content)),
		CreatedAt:    now.UTC(),
	}

	if s.index != nil {
		if err := s.index.Insert(ctx, rec); err != nil {
			logging.Warn("backup index insert failed", zap.String("id", id), zap.Error(err))
		}
	}

	metrics.RecordBackupCreated()
	logging.Info("backup created",
		zap.String("id", id),
		zap.String("file", relPath),
		zap.Int("size", len(content)),
	)
	return rec, nil
}

// List returns all backups, newest first.
func (s *Service) List(ctx context.Context) ([]models.BackupRecord, error) {
	objects, err := s.backend.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}

	records := make([]models.BackupRecord, 0, len(objects))
	for _, obj := range objects {
		originalFile, id, createdAt, ok := parseKey(obj.Key)
		if !ok {
			continue
		}
		if createdAt.IsZero() {
			createdAt = obj.ModTime.UTC()
		}
		records = append(records, models.BackupRecord{
			ID:           id,
			OriginalFile: originalFile,
			SizeBytes:    obj.Size,
			CreatedAt:    createdAt,
		})
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// find resolves a backup id to its stored object.
func (s *Service) find(ctx context.Context, id string) (ObjectInfo, error) {
	objects, err := s.backend.List(ctx)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("list backups: %w", err)
	}
	for _, obj := range objects {
		if strings.HasSuffix(obj.Key, "/"+id) {
			return obj, nil
		}
	}
	return ObjectInfo{}, fmt.Errorf("%w: %s", ErrBackupNotFound, id)
}

// Get returns a backup's record and content.
func (s *Service) Get(ctx context.Context, id string) (models.BackupRecord, []byte, error) {
	obj, err := s.find(ctx, id)
	if err != nil {
		return models.BackupRecord{}, nil, err
	}

	content, err := s.backend.Get(ctx, obj.Key)
	if err != nil {
		return models.BackupRecord{}, nil, fmt.Errorf("get backup %s: %w", id, err)
	}

	originalFile, _, createdAt, _ := parseKey(obj.Key)
	if createdAt.IsZero() {
		createdAt = obj.ModTime.UTC()
	}
	return models.BackupRecord{
		ID:           id,
		OriginalFile: originalFile,
		SizeBytes:    int64(len(content)),
		CreatedAt:    createdAt,
	}, content, nil
}

// Delete removes a backup by id.
func (s *Service) Delete(ctx context.Context, id string) error {
	obj, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.backend.Delete(ctx, obj.Key); err != nil {
		return fmt.Errorf("delete backup %s: %w", id, err)
	}

	if s.index != nil {
		if err := s.index.Remove(ctx, id); err != nil {
			logging.Warn("backup index remove failed", zap.String("id", id), zap.Error(err))
		}
	}

	logging.Info("backup deleted", zap.String("id", id))
	return nil
}

// PurgeExpired removes backups older than the retention window and
// returns the number removed. A zero retention disables purging.
func (s *Service) PurgeExpired(ctx context.Context) (int, error) {
	if s.retention <= 0 {
		return 0, nil
	}

	records, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().Add(-s.retention)
	purged := 0
	for _, rec := range records {
		if rec.CreatedAt.After(cutoff) {
			continue
		}
		if err := s.backend.Delete(ctx, rec.OriginalFile+"/"+rec.ID); err != nil {
			logging.Warn("backup purge failed", zap.String("id", rec.ID), zap.Error(err))
			continue
		}
		if s.index != nil {
			if err := s.index.Remove(ctx, rec.ID); err != nil {
				logging.Warn("backup index remove failed", zap.String("id", rec.ID), zap.Error(err))
			}
		}
		purged++
	}

	if purged > 0 {
		metrics.RecordBackupsPurged(purged)
		logging.Info("expired backups purged", zap.Int("count", purged))
	}
	return purged, nil
}

// History returns the audit index rows, newest first. It returns nil
// when no index database is configured.
func (s *Service) History(ctx context.Context, limit int) ([]models.BackupRecord, error) {
	if s.index == nil {
		return nil, nil
	}
	return s.index.History(ctx, limit)
}
