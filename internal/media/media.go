// Package media resolves campaign media references against Google Drive.
//
// A resolved file lives in a process-scoped temp directory and is removed
// once the campaign that needed it finishes. Media failures are soft: a
// campaign whose image or video cannot be fetched still goes out as text.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	driveapi "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"blastbot/internal/config"
	logx "blastbot/pkg/logx"
)

// DefaultMaxBytes is the delivery channel's practical attachment ceiling.
const DefaultMaxBytes = 15 * 1024 * 1024

// Handle is one downloaded media file. Release removes it from disk.
type Handle struct {
	Path string
	MIME string
	Size int64
}

// Release deletes the underlying temp file. Safe to call on nil.
func (h *Handle) Release() {
	if h == nil || h.Path == "" {
		return
	}
	_ = os.Remove(h.Path)
}

// Resolver downloads Drive files by id into a temp directory.
type Resolver struct {
	svc      *driveapi.Service
	tempDir  string
	maxBytes int64
	log      logx.Logger
}

// NewResolver builds a Resolver from the service-account key in credJSON.
// The temp directory is created eagerly so a bad path fails at startup.
func NewResolver(ctx context.Context, cfg config.MediaConfig, credJSON []byte, log logx.Logger) (*Resolver, error) {
	if len(credJSON) == 0 {
		return nil, errors.New("media: service account credentials are required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	svc, err := driveapi.NewService(ctx,
		option.WithCredentialsJSON(credJSON),
		option.WithScopes(driveapi.DriveReadonlyScope),
	)
	if err != nil {
		return nil, fmt.Errorf("media: create drive service: %w", err)
	}

	dir := strings.TrimSpace(cfg.TempDir)
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "blastbot-media")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("media: create temp dir: %w", err)
	}

	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	return &Resolver{svc: svc, tempDir: dir, maxBytes: maxBytes, log: log}, nil
}

// Resolve downloads the Drive file with the given id.
// Oversized files return (nil, nil): the campaign proceeds without media.
func (r *Resolver) Resolve(ctx context.Context, fileID string) (*Handle, error) {
	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return nil, nil
	}

	meta, err := r.svc.Files.Get(fileID).
		Fields("name", "size", "mimeType").
		SupportsAllDrives(true).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("media: stat %s: %w", fileID, err)
	}
	if meta.Size > r.maxBytes {
		r.log.Warn("media skipped: over size limit",
			logx.String("file_id", fileID),
			logx.String("name", meta.Name),
			logx.Int64("size", meta.Size),
			logx.Int64("limit", r.maxBytes))
		return nil, nil
	}

	resp, err := r.svc.Files.Get(fileID).
		SupportsAllDrives(true).
		Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("media: download %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	f, err := os.CreateTemp(r.tempDir, "m-*"+extFor(meta.MimeType))
	if err != nil {
		return nil, fmt.Errorf("media: create temp file: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(resp.Body, r.maxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("media: write %s: %w", fileID, err)
	}
	// Drive omits Size for some export types; enforce the cap on actual bytes.
	if n > r.maxBytes {
		_ = os.Remove(f.Name())
		r.log.Warn("media skipped: over size limit",
			logx.String("file_id", fileID),
			logx.Int64("limit", r.maxBytes))
		return nil, nil
	}

	return &Handle{Path: f.Name(), MIME: meta.MimeType, Size: n}, nil
}

// Cleanup removes the whole temp directory. Call on shutdown.
func (r *Resolver) Cleanup() {
	if r == nil || r.tempDir == "" {
		return
	}
	if err := os.RemoveAll(r.tempDir); err != nil {
		r.log.Warn("media temp dir cleanup failed", logx.Err(err))
	}
}

var extByMIME = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"video/mp4":       ".mp4",
	"video/mpeg":      ".mpeg",
	"video/quicktime": ".mov",
	"video/x-msvideo": ".avi",
	"application/pdf": ".pdf",
}

func extFor(mimeType string) string {
	if ext, ok := extByMIME[mimeType]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
