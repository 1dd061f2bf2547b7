package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

var _ CatalogProvider = (*CatalogClient)(nil) // ensure CatalogClient implements CatalogProvider.

// CatalogClient fetches book records from the remote document collection.
// There is no pagination and no cache: each call pulls the whole
// collection, which is the source behavior.
type CatalogClient struct {
	logger *zap.Logger
	config *Config
	client *http.Client
}

// catalogDocument mirrors the wire shape of one remote document.
type catalogDocument struct {
	ID          string `json:"$id"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description"`
	Category    string `json:"category"`
	CoverURL    string `json:"cover_url"`
	FileURL     string `json:"file_url"`
	FileID      string `json:"file_id"`
	CreatedAt   string `json:"created_at"`
}

type catalogDocumentsResponse struct {
	Total     int               `json:"total"`
	Documents []catalogDocument `json:"documents"`
}

// NewCatalogClient provides a catalog client bound to the configured
// remote project.
func NewCatalogClient(logger *zap.Logger, config *Config, client *http.Client) *CatalogClient {
	if client == nil {
		client = &http.Client{Timeout: config.Remote.RequestTimeout}
	}
	return &CatalogClient{
		logger: logger,
		config: config,
		client: client,
	}
}

// FetchAll retrieves the full catalog and maps each document field by
// field into the Book shape. Any transport failure or non-200 status is
// reported as a remote unavailability: the caller keeps whatever
// snapshot it already holds.
func (cc *CatalogClient) FetchAll(ctx context.Context) ([]Book, error) {
	url := fmt.Sprintf("%s/databases/%s/collections/%s/documents",
		cc.config.Remote.Endpoint, cc.config.Remote.DatabaseID, cc.config.Remote.CollectionID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	req.Header.Set("X-Appwrite-Project", cc.config.Remote.ProjectID)
	req.Header.Set("Content-Type", "application/json")

	resp, err := cc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrRemoteUnavailable, resp.StatusCode)
	}

	var payload catalogDocumentsResponse
	if err = json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}

	books := make([]Book, 0, len(payload.Documents))
	for _, doc := range payload.Documents {
		books = append(books, cc.mapDocument(doc))
	}
	cc.logger.Info("catalog: fetched all books", zap.Int("total", len(books)))
	return books, nil
}

// mapDocument converts one remote document into a Book. A malformed
// creation timestamp degrades to the zero time instead of dropping the
// record, so the book still renders and only its feed ordering suffers.
func (cc *CatalogClient) mapDocument(doc catalogDocument) Book {
	createdAt, err := time.Parse(time.RFC3339, doc.CreatedAt)
	if err != nil && doc.CreatedAt != "" {
		cc.logger.Warn("catalog: unparsable creation time",
			zap.String("book.id", doc.ID), zap.String("created_at", doc.CreatedAt))
	}
	return Book{
		ID:          doc.ID,
		Title:       doc.Title,
		Author:      doc.Author,
		Description: doc.Description,
		Category:    doc.Category,
		CoverURL:    doc.CoverURL,
		FileURL:     doc.FileURL,
		FileID:      doc.FileID,
		CreatedAt:   createdAt,
	}
}
