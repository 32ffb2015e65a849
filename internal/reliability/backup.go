package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/grainflow/grainflow/internal/database"
	"github.com/rs/zerolog"
)

const (
	backupPrefix   = "grainflow-backup-"
	timestampForm  = "2006-01-02-150405"
	metadataName   = "backup-metadata.json"
	defaultRetain  = 14
	snapshotSuffix = ".db"
)

// ObjectStore is the remote side of the backup pipeline.
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader) error
	List(ctx context.Context, prefix string) ([]types.Object, error)
	Delete(ctx context.Context, key string) error
}

// BackupMetadata describes one archive: what was snapshotted and the
// checksum of each snapshot, so a restore can verify its inputs.
type BackupMetadata struct {
	CreatedAt time.Time         `json:"created_at"`
	Databases []string          `json:"databases"`
	Checksums map[string]string `json:"checksums"`
}

// BackupService snapshots every database into a staging directory,
// bundles the snapshots with a metadata manifest into a tar.gz archive,
// uploads the archive, and prunes remote archives beyond the retention
// count.
type BackupService struct {
	store     ObjectStore
	databases []*database.DB
	stagingIn string // parent directory for staging dirs
	retain    int
	log       zerolog.Logger
}

// NewBackupService wires the backup pipeline. Staging directories are
// created under dataDir and removed after each run.
func NewBackupService(store ObjectStore, databases []*database.DB, dataDir string, retain int, log zerolog.Logger) *BackupService {
	if retain <= 0 {
		retain = defaultRetain
	}
	return &BackupService{
		store:     store,
		databases: databases,
		stagingIn: dataDir,
		retain:    retain,
		log:       log.With().Str("component", "backup").Logger(),
	}
}

// Backup runs one full backup cycle.
func (s *BackupService) Backup(ctx context.Context) error {
	started := time.Now()

	staging, err := os.MkdirTemp(s.stagingIn, "backup-staging-")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	meta := BackupMetadata{
		CreatedAt: started.UTC(),
		Checksums: make(map[string]string),
	}

	for _, db := range s.databases {
		snapshot := filepath.Join(staging, db.Name()+snapshotSuffix)
		if err := snapshotDatabase(db, snapshot); err != nil {
			return fmt.Errorf("failed to snapshot %s: %w", db.Name(), err)
		}

		checksum, err := fileChecksum(snapshot)
		if err != nil {
			return fmt.Errorf("failed to checksum %s snapshot: %w", db.Name(), err)
		}

		meta.Databases = append(meta.Databases, db.Name())
		meta.Checksums[db.Name()+snapshotSuffix] = checksum
		s.log.Debug().Str("database", db.Name()).Str("sha256", checksum).Msg("Database snapshotted")
	}

	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode backup metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(staging, metadataName), metaBytes, 0644); err != nil {
		return fmt.Errorf("failed to write backup metadata: %w", err)
	}

	archiveName := backupPrefix + started.UTC().Format(timestampForm) + ".tar.gz"
	archivePath := filepath.Join(staging, archiveName)
	if err := buildArchive(staging, archivePath); err != nil {
		return fmt.Errorf("failed to build backup archive: %w", err)
	}

	archive, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open backup archive: %w", err)
	}
	defer archive.Close()

	if err := s.store.Upload(ctx, archiveName, archive); err != nil {
		return fmt.Errorf("failed to upload backup archive: %w", err)
	}

	s.log.Info().
		Str("archive", archiveName).
		Int("databases", len(meta.Databases)).
		Dur("elapsed", time.Since(started)).
		Msg("Backup uploaded")

	if err := s.prune(ctx); err != nil {
		// The fresh backup is safe, retention cleanup can wait a cycle.
		s.log.Warn().Err(err).Msg("Failed to prune old backups")
	}

	return nil
}

// snapshotDatabase writes a consistent copy of the live database using
// VACUUM INTO, which takes its own read transaction and never blocks
// writers in WAL mode. Pending WAL frames are checkpointed first so the
// snapshot carries every committed write.
func snapshotDatabase(db *database.DB, dest string) error {
	if err := db.WALCheckpoint("TRUNCATE"); err != nil {
		return fmt.Errorf("pre-snapshot checkpoint failed: %w", err)
	}
	if _, err := db.Exec("VACUUM INTO ?", dest); err != nil {
		return fmt.Errorf("vacuum into failed: %w", err)
	}
	return nil
}

func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// buildArchive packs every regular file in dir (except the archive
// itself) into a gzipped tarball at dest.
func buildArchive(dir, dest string) error {
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read staging directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == filepath.Base(dest) {
			continue
		}

		if err := addToArchive(tw, filepath.Join(dir, entry.Name()), entry.Name()); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finalize tar stream: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to finalize gzip stream: %w", err)
	}
	return nil
}

func addToArchive(tw *tar.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s for archiving: %w", name, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", name, err)
	}

	header := &tar.Header{
		Name:    name,
		Mode:    0644,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write tar header for %s: %w", name, err)
	}
	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("failed to archive %s: %w", name, err)
	}
	return nil
}

// prune deletes remote archives beyond the retention count, oldest
// first. Archive names embed their timestamp so lexical order is
// chronological order.
func (s *BackupService) prune(ctx context.Context) error {
	objects, err := s.store.List(ctx, backupPrefix)
	if err != nil {
		return fmt.Errorf("failed to list remote backups: %w", err)
	}

	var keys []string
	for _, obj := range objects {
		if obj.Key == nil || !strings.HasSuffix(*obj.Key, ".tar.gz") {
			continue
		}
		keys = append(keys, *obj.Key)
	}

	if len(keys) <= s.retain {
		return nil
	}

	sort.Strings(keys)
	for _, key := range keys[:len(keys)-s.retain] {
		if err := s.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to delete old backup %s: %w", key, err)
		}
		s.log.Info().Str("archive", key).Msg("Old backup pruned")
	}
	return nil
}
