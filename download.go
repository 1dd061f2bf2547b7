package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DownloadStatus enumerates the per-session lifecycle of a book file on
// the device.
type DownloadStatus int

const (
	NotDownloaded DownloadStatus = iota
	Downloading
	Downloaded
	FailedDownload
)

func (s DownloadStatus) String() string {
	switch s {
	case NotDownloaded:
		return "not-downloaded"
	case Downloading:
		return "downloading"
	case Downloaded:
		return "downloaded"
	case FailedDownload:
		return "failed"
	default:
		return "unknown"
	}
}

// DownloadState is the ephemeral per-book download record for the
// current session. LocalPath is set only once the status is Downloaded.
// The filesystem stays the source of truth: states are re-derived by
// probing at view-open time.
type DownloadState struct {
	Status    DownloadStatus
	LocalPath string
	UpdatedAt time.Time
	LastError string
}

// Downloader orchestrates fetching a remote book file and persisting it
// to device storage. At most one download per book is in flight per
// session; a duplicate request while one is pending is ignored.
type Downloader struct {
	logger *zap.Logger
	config *Config
	client *http.Client
	device DeviceStorage
	perms  PermissionGuard
	opener FileOpener
	clock  Clocker
	ids    UIDHandler

	mu     sync.Mutex
	states map[string]DownloadState
}

// NewDownloader provides a ready to use download coordinator.
func NewDownloader(logger *zap.Logger, config *Config, client *http.Client, device DeviceStorage,
	perms PermissionGuard, opener FileOpener, clock Clocker, ids UIDHandler) *Downloader {
	if client == nil {
		client = &http.Client{Timeout: config.Download.FetchTimeout}
	}
	return &Downloader{
		logger: logger,
		config: config,
		client: client,
		device: device,
		perms:  perms,
		opener: opener,
		clock:  clock,
		ids:    ids,
		states: make(map[string]DownloadState),
	}
}

// LocalFileName derives the on-device file name from a book title: every
// non-alphanumeric rune stripped, lowercased, fixed extension appended.
// The derivation is deterministic so existence checks across sessions
// recompute the same path. Two distinct books sharing a title collide to
// the same name, which reproduces the source behavior.
func LocalFileName(title, extension string) string {
	var b strings.Builder
	for _, r := range title {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	name := strings.ToLower(b.String())
	if name == "" {
		name = "book"
	}
	return name + extension
}

// LocalPath returns the expected shared-storage location of a book file.
func (dl *Downloader) LocalPath(book Book) string {
	return filepath.Join(dl.config.Download.Dir, LocalFileName(book.Title, dl.config.Download.Extension))
}

// Probe re-derives the download state of a book from the filesystem.
// A pending download is left alone; otherwise the presence of the
// expected file decides between Downloaded and NotDownloaded.
func (dl *Downloader) Probe(book Book) DownloadState {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	return dl.probeLocked(book)
}

func (dl *Downloader) probeLocked(book Book) DownloadState {
	state := dl.states[book.ID]
	if state.Status == Downloading {
		return state
	}

	path := dl.LocalPath(book)
	if dl.device.Exists(path) {
		state.Status = Downloaded
		state.LocalPath = path
	} else if state.Status == Downloaded {
		// file vanished since the last probe.
		state = DownloadState{Status: NotDownloaded}
	} else {
		state.LocalPath = ""
		if state.Status != FailedDownload {
			state.Status = NotDownloaded
		}
	}
	dl.states[book.ID] = state
	return state
}

// DownloadOrOpen is the single user entry point. A downloaded book is
// handed to the platform opener instead of being fetched again; a
// pending download makes the call a no-op; anything else starts one
// download attempt which either fully succeeds or leaves no file behind.
func (dl *Downloader) DownloadOrOpen(ctx context.Context, book Book) (DownloadState, error) {
	dl.mu.Lock()
	state := dl.probeLocked(book)

	switch state.Status {
	case Downloaded:
		dl.mu.Unlock()
		if err := dl.opener.Open(state.LocalPath); err != nil {
			return state, fmt.Errorf("failed to open local file: %w", err)
		}
		return state, nil
	case Downloading:
		// one in-flight download per book per session.
		dl.mu.Unlock()
		return state, nil
	}

	fileURL, err := FileURL(dl.config, book)
	if err != nil {
		dl.mu.Unlock()
		return state, err
	}

	attemptID := dl.ids.Generate(DownloadIDPrefix)
	state = DownloadState{Status: Downloading, UpdatedAt: dl.clock.Now()}
	dl.states[book.ID] = state
	dl.mu.Unlock()

	dl.logger.Info("download: starting",
		zap.String("attempt.id", attemptID),
		zap.String("book.id", book.ID),
		zap.String("url", fileURL),
	)

	path, err := dl.fetch(ctx, fileURL, book)

	dl.mu.Lock()
	defer dl.mu.Unlock()
	if err != nil {
		state = DownloadState{Status: FailedDownload, UpdatedAt: dl.clock.Now(), LastError: err.Error()}
		dl.states[book.ID] = state
		dl.logger.Error("download: failed",
			zap.String("attempt.id", attemptID),
			zap.String("book.id", book.ID),
			zap.Error(err),
		)
		return state, err
	}

	state = DownloadState{Status: Downloaded, LocalPath: path, UpdatedAt: dl.clock.Now()}
	dl.states[book.ID] = state
	dl.logger.Info("download: completed",
		zap.String("attempt.id", attemptID),
		zap.String("book.id", book.ID),
		zap.String("path", path),
	)
	return state, nil
}

// fetch performs one attempt in two independently failable steps: the
// remote file lands in an app-private temp file first, then moves into
// shared storage once the write permission is granted. Every failure
// path removes the temp file so no partial download is ever mistaken
// for a complete one.
func (dl *Downloader) fetch(ctx context.Context, fileURL string, book Book) (string, error) {
	if err := dl.device.EnsureDir(dl.config.Download.TempDir); err != nil {
		return "", fmt.Errorf("failed to prepare temp folder: %w", err)
	}

	fileName := LocalFileName(book.Title, dl.config.Download.Extension)
	tempPath := filepath.Join(dl.config.Download.TempDir, fileName+".part")

	if err := dl.fetchToTemp(ctx, fileURL, tempPath); err != nil {
		if rerr := dl.device.Remove(tempPath); rerr != nil {
			dl.logger.Warn("download: failed to clear temp file", zap.String("path", tempPath), zap.Error(rerr))
		}
		return "", err
	}

	// Step two: shared storage. A refused permission clears the temp
	// copy explicitly rather than leaking it.
	if err := dl.perms.RequestWrite(dl.config.Download.Dir); err != nil {
		if rerr := dl.device.Remove(tempPath); rerr != nil {
			dl.logger.Warn("download: failed to clear temp file", zap.String("path", tempPath), zap.Error(rerr))
		}
		return "", err
	}

	if err := dl.device.EnsureDir(dl.config.Download.Dir); err != nil {
		dl.device.Remove(tempPath)
		return "", fmt.Errorf("failed to prepare downloads folder: %w", err)
	}

	finalPath := dl.LocalPath(book)
	if err := dl.device.Move(tempPath, finalPath); err != nil {
		dl.device.Remove(tempPath)
		return "", fmt.Errorf("failed to move file into shared storage: %w", err)
	}
	return finalPath, nil
}

// fetchToTemp streams the remote file into the temp path. A non-200
// status is a hard failure for the attempt with no automatic retry.
func (dl *Downloader) fetchToTemp(ctx context.Context, fileURL, tempPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}

	resp, err := dl.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %d", ErrRemoteUnavailable, resp.StatusCode)
	}

	out, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err = io.Copy(out, resp.Body); err != nil {
		out.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	return out.Close()
}

// Delete removes the local copy of a book file and resets its state so
// the next user action downloads again.
func (dl *Downloader) Delete(book Book) (DownloadState, error) {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	state := dl.probeLocked(book)
	if state.Status == Downloading {
		return state, errors.New("download in progress, cannot delete")
	}

	if state.Status == Downloaded {
		if err := dl.device.Remove(state.LocalPath); err != nil {
			return state, fmt.Errorf("failed to delete local file: %w", err)
		}
		dl.logger.Info("download: local file deleted", zap.String("book.id", book.ID), zap.String("path", state.LocalPath))
	}

	state = DownloadState{Status: NotDownloaded, UpdatedAt: dl.clock.Now()}
	dl.states[book.ID] = state
	return state, nil
}
