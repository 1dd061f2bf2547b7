package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// This file contains unit tests for the download coordinator.

type downloadFixture struct {
	downloader *Downloader
	config     *Config
	perms      *MockPermissionGuard
	opener     *MockFileOpener
	requests   *int32
	server     *httptest.Server
}

// newDownloadFixture wires a coordinator against a fake file backend
// and a throwaway downloads folder.
func newDownloadFixture(t *testing.T, handler httprouter.Handle) *downloadFixture {
	t.Helper()

	var requests int32
	router := httprouter.New()
	router.GET("/files/:id", func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		atomic.AddInt32(&requests, 1)
		handler(w, r, ps)
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	base := t.TempDir()
	config := &Config{
		Download: DownloadConfig{
			Dir:          filepath.Join(base, "downloads"),
			TempDir:      filepath.Join(base, "tmp"),
			Extension:    ".epub",
			FetchTimeout: 5 * time.Second,
		},
	}
	perms := &MockPermissionGuard{}
	opener := &MockFileOpener{}
	downloader := NewDownloader(
		zap.NewNop(),
		config,
		server.Client(),
		NewOSDeviceStorage(),
		perms,
		opener,
		NewMockClocker(),
		NewMockUIDHandler("0000", true),
	)
	return &downloadFixture{
		downloader: downloader,
		config:     config,
		perms:      perms,
		opener:     opener,
		requests:   &requests,
		server:     server,
	}
}

func (f *downloadFixture) book(id, title string) Book {
	return Book{ID: id, Title: title, FileURL: f.server.URL + "/files/" + id}
}

// TestDownloader_SuccessfulDownload ensures a download lands the file in
// shared storage and reports its local path.
func TestDownloader_SuccessfulDownload(t *testing.T) {
	f := newDownloadFixture(t, func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.Write([]byte("epub-bytes"))
	})
	book := f.book("b:1", "El Extraño")

	state, err := f.downloader.DownloadOrOpen(context.Background(), book)
	require.NoError(t, err)
	assert.Equal(t, Downloaded, state.Status)
	assert.Equal(t, filepath.Join(f.config.Download.Dir, "elextrao.epub"), state.LocalPath)

	content, err := os.ReadFile(state.LocalPath)
	require.NoError(t, err)
	assert.Equal(t, "epub-bytes", string(content))

	// the temp folder holds no leftover.
	leftovers, _ := os.ReadDir(f.config.Download.TempDir)
	assert.Empty(t, leftovers)
}

// TestDownloader_OpenInsteadOfRefetch ensures a downloaded book is
// handed to the platform opener on the next action, with no new fetch.
func TestDownloader_OpenInsteadOfRefetch(t *testing.T) {
	f := newDownloadFixture(t, func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.Write([]byte("epub-bytes"))
	})
	book := f.book("b:1", "El Extraño")

	_, err := f.downloader.DownloadOrOpen(context.Background(), book)
	require.NoError(t, err)

	state, err := f.downloader.DownloadOrOpen(context.Background(), book)
	require.NoError(t, err)
	assert.Equal(t, Downloaded, state.Status)
	assert.Equal(t, []string{state.LocalPath}, f.opener.Opened)
	assert.Equal(t, int32(1), atomic.LoadInt32(f.requests))
}

// TestDownloader_NonSuccessStatus ensures a non-200 response is a hard
// failure leaving no partial file, and a later retry succeeds.
func TestDownloader_NonSuccessStatus(t *testing.T) {
	var fail int32 = 1
	f := newDownloadFixture(t, func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		if atomic.LoadInt32(&fail) == 1 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("epub-bytes"))
	})
	book := f.book("b:1", "El Extraño")

	state, err := f.downloader.DownloadOrOpen(context.Background(), book)
	assert.ErrorIs(t, err, ErrRemoteUnavailable)
	assert.Equal(t, FailedDownload, state.Status)
	assert.NoFileExists(t, filepath.Join(f.config.Download.Dir, "elextrao.epub"))
	leftovers, _ := os.ReadDir(f.config.Download.TempDir)
	assert.Empty(t, leftovers)

	// failed is not terminal: the next user action retries.
	atomic.StoreInt32(&fail, 0)
	state, err = f.downloader.DownloadOrOpen(context.Background(), book)
	require.NoError(t, err)
	assert.Equal(t, Downloaded, state.Status)
}

// TestDownloader_DuplicateWhilePending ensures a second invocation while
// a download is in flight is a no-op: one fetch, one terminal state.
func TestDownloader_DuplicateWhilePending(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	f := newDownloadFixture(t, func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		close(entered)
		<-release
		w.Write([]byte("epub-bytes"))
	})
	book := f.book("b:1", "El Extraño")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = f.downloader.DownloadOrOpen(context.Background(), book)
	}()
	<-entered

	state, err := f.downloader.DownloadOrOpen(context.Background(), book)
	require.NoError(t, err)
	assert.Equal(t, Downloading, state.Status)

	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(f.requests))
	assert.Equal(t, Downloaded, f.downloader.Probe(book).Status)
}

// TestDownloader_PermissionDenied ensures a refused shared-storage
// permission aborts the second step and clears the temp copy.
func TestDownloader_PermissionDenied(t *testing.T) {
	f := newDownloadFixture(t, func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.Write([]byte("epub-bytes"))
	})
	f.perms.Err = ErrPermissionDenied
	book := f.book("b:1", "El Extraño")

	state, err := f.downloader.DownloadOrOpen(context.Background(), book)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, FailedDownload, state.Status)

	leftovers, _ := os.ReadDir(f.config.Download.TempDir)
	assert.Empty(t, leftovers, "temp copy must be cleared explicitly")
	assert.NoFileExists(t, filepath.Join(f.config.Download.Dir, "elextrao.epub"))
}

// TestDownloader_MissingFileReference ensures a book without any file
// reference fails fast without entering the downloading state.
func TestDownloader_MissingFileReference(t *testing.T) {
	f := newDownloadFixture(t, func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.Write([]byte("epub-bytes"))
	})
	book := Book{ID: "b:1", Title: "Sin archivo"}

	state, err := f.downloader.DownloadOrOpen(context.Background(), book)
	assert.ErrorIs(t, err, ErrMissingFileRef)
	assert.Equal(t, NotDownloaded, state.Status)
	assert.Equal(t, int32(0), atomic.LoadInt32(f.requests))
}

// TestDownloader_DeleteResetsState ensures deleting the local file
// returns the book to the not-downloaded state.
func TestDownloader_DeleteResetsState(t *testing.T) {
	f := newDownloadFixture(t, func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.Write([]byte("epub-bytes"))
	})
	book := f.book("b:1", "El Extraño")

	state, err := f.downloader.DownloadOrOpen(context.Background(), book)
	require.NoError(t, err)
	require.Equal(t, Downloaded, state.Status)

	state, err = f.downloader.Delete(book)
	require.NoError(t, err)
	assert.Equal(t, NotDownloaded, state.Status)
	assert.NoFileExists(t, filepath.Join(f.config.Download.Dir, "elextrao.epub"))
}

// TestDownloader_ProbeAcrossSessions ensures a fresh coordinator
// re-derives the downloaded state from the filesystem alone.
func TestDownloader_ProbeAcrossSessions(t *testing.T) {
	f := newDownloadFixture(t, func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.Write([]byte("epub-bytes"))
	})
	book := f.book("b:1", "El Extraño")

	_, err := f.downloader.DownloadOrOpen(context.Background(), book)
	require.NoError(t, err)

	fresh := NewDownloader(
		zap.NewNop(), f.config, f.server.Client(), NewOSDeviceStorage(),
		&MockPermissionGuard{}, &MockFileOpener{}, NewMockClocker(), NewMockUIDHandler("0000", true),
	)
	state := fresh.Probe(book)
	assert.Equal(t, Downloaded, state.Status)
	assert.Equal(t, filepath.Join(f.config.Download.Dir, "elextrao.epub"), state.LocalPath)
}

// TestLocalFileName ensures the title derivation is deterministic: every
// non-alphanumeric rune stripped then lowercased.
func TestLocalFileName(t *testing.T) {
	assert.Equal(t, "elextrao.epub", LocalFileName("El Extraño", ".epub"))
	assert.Equal(t, "donquijote2.epub", LocalFileName("Don Quijote (2)!", ".epub"))
	assert.Equal(t, "book.epub", LocalFileName("¡¿!?", ".epub"))
	// identical titles collide to the same local path.
	assert.Equal(t, LocalFileName("La Sombra", ".epub"), LocalFileName("la sombra", ".epub"))
}
