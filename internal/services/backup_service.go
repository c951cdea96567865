package services

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// BackupManifest is written as manifest.json inside each archive
type BackupManifest struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Database  []ManifestEntry `json:"database"`
	Uploads   *ManifestEntry  `json:"uploads,omitempty"`
}

// ManifestEntry describes one file bundled into a backup archive
type ManifestEntry struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// BackupInfo describes a finished backup archive on disk
type BackupInfo struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	URL       string    `json:"url"`
}

// BackupService produces zip archives containing a pg_dump of the database
// (custom and plain formats) plus a tarball of the uploads directory, and
// prunes archives older than the retention window.
type BackupService struct {
	databaseURL string
	backupDir   string
	uploadsDir  string
	retention   time.Duration
	logger      *logrus.Logger
}

// NewBackupService creates the backup service and ensures the directory exists
func NewBackupService(databaseURL, backupDir, uploadsDir string, retentionDays int, logger *logrus.Logger) (*BackupService, error) {
	if err := os.MkdirAll(backupDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	return &BackupService{
		databaseURL: databaseURL,
		backupDir:   backupDir,
		uploadsDir:  uploadsDir,
		retention:   time.Duration(retentionDays) * 24 * time.Hour,
		logger:      logger,
	}, nil
}

// Create runs a full backup and returns the finished archive info.
// Intermediate files live in a temp dir and are removed afterwards.
func (s *BackupService) Create() (*BackupInfo, error) {
	now := time.Now()
	id := now.Format("20060102-150405")

	workDir, err := os.MkdirTemp("", "backup-"+id+"-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	manifest := BackupManifest{ID: id, CreatedAt: now}

	customDump := filepath.Join(workDir, "database.dump")
	if err := s.runPgDump("custom", customDump); err != nil {
		return nil, err
	}
	plainDump := filepath.Join(workDir, "database.sql")
	if err := s.runPgDump("plain", plainDump); err != nil {
		return nil, err
	}
	for _, name := range []string{"database.dump", "database.sql"} {
		info, err := os.Stat(filepath.Join(workDir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to stat dump: %w", err)
		}
		manifest.Database = append(manifest.Database, ManifestEntry{Name: name, Size: info.Size()})
	}

	uploadsTar := filepath.Join(workDir, "uploads.tar.gz")
	if err := tarDirectory(s.uploadsDir, uploadsTar); err != nil {
		s.logger.WithError(err).Warn("Skipping uploads in backup")
	} else if info, err := os.Stat(uploadsTar); err == nil {
		manifest.Uploads = &ManifestEntry{Name: "uploads.tar.gz", Size: info.Size()}
	}

	archivePath := filepath.Join(s.backupDir, "backup-"+id+".zip")
	if err := s.writeArchive(archivePath, workDir, &manifest); err != nil {
		os.Remove(archivePath)
		return nil, err
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat archive: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"archive": filepath.Base(archivePath),
		"size":    info.Size(),
	}).Info("Backup created")

	return &BackupInfo{
		Name:      filepath.Base(archivePath),
		Size:      info.Size(),
		CreatedAt: info.ModTime(),
		URL:       "/backups/" + filepath.Base(archivePath),
	}, nil
}

// runPgDump shells out to pg_dump. format is "custom" or "plain".
func (s *BackupService) runPgDump(format, outPath string) error {
	cmd := exec.Command("pg_dump",
		"--format="+format,
		"--no-owner",
		"--no-privileges",
		"--file="+outPath,
		s.databaseURL,
	)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("pg_dump (%s) failed: %w: %s", format, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// writeArchive bundles the work dir contents and the manifest into a zip
func (s *BackupService) writeArchive(archivePath, workDir string, manifest *BackupManifest) error {
	out, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	defer zw.Close()

	manifestBytes, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	w, err := zw.Create("manifest.json")
	if err != nil {
		return fmt.Errorf("failed to add manifest: %w", err)
	}
	if _, err := w.Write(manifestBytes); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	entries := append([]ManifestEntry{}, manifest.Database...)
	if manifest.Uploads != nil {
		entries = append(entries, *manifest.Uploads)
	}
	for _, entry := range entries {
		if err := addFileToZip(zw, filepath.Join(workDir, entry.Name), entry.Name); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return nil
}

func addFileToZip(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()

	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// tarDirectory writes dir's regular files into a gzipped tarball
func tarDirectory(dir, outPath string) error {
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create tarball: %w", err)
	}
	defer out.Close()

	gw := gzip.NewWriter(out)
	defer gw.Close()
	tw := tar.NewWriter(gw)
	defer tw.Close()

	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to archive uploads: %w", err)
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finalize tarball: %w", err)
	}
	return gw.Close()
}

// List returns the archives on disk, newest first
func (s *BackupService) List() ([]BackupInfo, error) {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	backups := []BackupInfo{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".zip") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, BackupInfo{
			Name:      entry.Name(),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
			URL:       "/backups/" + entry.Name(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}

// Delete removes a single archive by name. The name is restricted to a bare
// file name so path traversal out of the backup dir is impossible.
func (s *BackupService) Delete(name string) error {
	if name != filepath.Base(name) || !strings.HasSuffix(name, ".zip") {
		return fmt.Errorf("invalid backup name %q", name)
	}
	if err := os.Remove(filepath.Join(s.backupDir, name)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("backup %q not found", name)
		}
		return fmt.Errorf("failed to delete backup: %w", err)
	}
	return nil
}

// Sweep removes archives older than the retention window
func (s *BackupService) Sweep() error {
	if s.retention <= 0 {
		return nil
	}
	backups, err := s.List()
	if err != nil {
		return err
	}
	cutoff := time.Now().Add(-s.retention)
	for _, b := range backups {
		if b.CreatedAt.Before(cutoff) {
			if err := s.Delete(b.Name); err != nil {
				s.logger.WithError(err).WithField("backup", b.Name).Warn("Failed to prune backup")
			} else {
				s.logger.WithField("backup", b.Name).Info("Pruned expired backup")
			}
		}
	}
	return nil
}
