package main

import (
	"fmt"
	"net/url"
)

// FileURL resolves the fetchable location of a book's downloadable
// content. A direct file url wins; otherwise the url is derived from the
// file id and the configured storage bucket. The coordinator treats the
// result opaquely. A book carrying neither reference fails fast.
func FileURL(config *Config, book Book) (string, error) {
	if book.FileURL != "" {
		return book.FileURL, nil
	}
	if book.FileID != "" {
		return fmt.Sprintf("%s/storage/buckets/%s/files/%s/download?project=%s",
			config.Remote.Endpoint,
			url.PathEscape(config.Remote.BucketID),
			url.PathEscape(book.FileID),
			url.QueryEscape(config.Remote.ProjectID)), nil
	}
	return "", fmt.Errorf("%w: book %s", ErrMissingFileRef, book.ID)
}
