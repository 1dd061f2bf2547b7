package main

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

var _ LibraryProvider = (*LibraryService)(nil) // ensure LibraryService implements LibraryProvider.

// LibraryService owns the persisted membership flags. It is the only
// writer of the library_* namespace in the flag store.
type LibraryService struct {
	logger  *zap.Logger
	config  *Config
	storage FlagStorage
}

// NewLibraryService provides a ready to use library membership service.
func NewLibraryService(logger *zap.Logger, config *Config, storage FlagStorage) *LibraryService {
	return &LibraryService{
		logger:  logger,
		config:  config,
		storage: storage,
	}
}

// IsSaved reports whether a book id carries a membership flag. An absent
// entry means "not in library", never an error.
func (ls *LibraryService) IsSaved(ctx context.Context, bookID string) (bool, error) {
	_, err := ls.storage.Get(ctx, LibraryKey(bookID))
	if errors.Is(err, ErrFlagNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Add persists the membership flag of a book.
func (ls *LibraryService) Add(ctx context.Context, bookID string) error {
	return ls.storage.Set(ctx, LibraryKey(bookID), "true")
}

// Remove clears the membership flag of a book.
func (ls *LibraryService) Remove(ctx context.Context, bookID string) error {
	return ls.storage.Delete(ctx, LibraryKey(bookID))
}

// Toggle flips the membership flag of a book and returns the new state.
// A single store write backs the flip, so a failure leaves the prior
// state untouched.
func (ls *LibraryService) Toggle(ctx context.Context, bookID string) (bool, error) {
	saved, err := ls.IsSaved(ctx, bookID)
	if err != nil {
		return false, err
	}
	if saved {
		if err := ls.Remove(ctx, bookID); err != nil {
			return saved, err
		}
		ls.logger.Info("service: book removed from library", zap.String("book.id", bookID))
		return false, nil
	}
	if err := ls.Add(ctx, bookID); err != nil {
		return saved, err
	}
	ls.logger.Info("service: book added to library", zap.String("book.id", bookID))
	return true, nil
}

// SavedIDs returns the set of book ids carrying a membership flag.
func (ls *LibraryService) SavedIDs(ctx context.Context) (map[string]struct{}, error) {
	keys, err := ls.storage.Keys(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if id, ok := BookIDFromKey(key); ok {
			ids[id] = struct{}{}
		}
	}
	return ids, nil
}

// SavedBooks derives the "My Library" view from a catalog snapshot.
// Saved ids absent from the snapshot are silently excluded.
func (ls *LibraryService) SavedBooks(ctx context.Context, catalog []Book) ([]Book, error) {
	ids, err := ls.SavedIDs(ctx)
	if err != nil {
		return nil, err
	}
	books := []Book{}
	for _, book := range catalog {
		if _, ok := ids[book.ID]; ok {
			books = append(books, book)
		}
	}
	return books, nil
}
