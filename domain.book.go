package main

import (
	"context"
	"time"
)

// Book represents a catalog book entity. Records are owned by the remote
// catalog and never mutated by this client.
type Book struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	CoverURL    string    `json:"coverUrl"`
	FileURL     string    `json:"fileUrl,omitempty"`
	FileID      string    `json:"fileId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CatalogProvider defines how the full set of book records is fetched
// from the remote catalog. The whole collection comes back on each call.
type CatalogProvider interface {
	FetchAll(ctx context.Context) ([]Book, error)
}

// FlagStorage defines possible operations on the persistent key/value
// store backing library membership and the session secret. Get returns
// ErrFlagNotFound when the key is absent.
type FlagStorage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// LibraryProvider defines the operations on the client-local set of
// saved book ids.
type LibraryProvider interface {
	IsSaved(ctx context.Context, bookID string) (bool, error)
	Add(ctx context.Context, bookID string) error
	Remove(ctx context.Context, bookID string) error
	Toggle(ctx context.Context, bookID string) (bool, error)
	SavedIDs(ctx context.Context) (map[string]struct{}, error)
	SavedBooks(ctx context.Context, catalog []Book) ([]Book, error)
}
