package main

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// This file contains the pure derivation functions producing display
// subsets of an in-memory catalog snapshot. None of them mutates its
// input or touches the wall clock.

// NormalizeText canonicalizes a string for matching: decompose, strip
// combining marks and lowercase. With it the queries `ANGEL` and `ángel`
// both match a book titled `Ángel caído`.
func NormalizeText(s string) string {
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(folder, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// SearchBooks returns the books whose title or author contains the query,
// ignoring case and diacritics. An empty or whitespace-only query yields
// an empty result: the screen distinguishes "not searching" from
// "no matches".
func SearchBooks(books []Book, query string) []Book {
	results := []Book{}
	if strings.TrimSpace(query) == "" {
		return results
	}

	q := NormalizeText(query)
	for _, book := range books {
		if strings.Contains(NormalizeText(book.Title), q) || strings.Contains(NormalizeText(book.Author), q) {
			results = append(results, book)
		}
	}
	return results
}

// FilterByCategory returns the books whose category exactly matches the
// given selector.
func FilterByCategory(books []Book, category string) []Book {
	results := []Book{}
	for _, book := range books {
		if book.Category == category {
			results = append(results, book)
		}
	}
	return results
}

// HomeFeed derives the home screen list: books of the selected category,
// most recently added first, truncated to limit entries. The sort is
// stable so books sharing a creation time keep their catalog order.
func HomeFeed(books []Book, category string, limit int) []Book {
	feed := FilterByCategory(books, category)
	sort.SliceStable(feed, func(i, j int) bool {
		return feed[i].CreatedAt.After(feed[j].CreatedAt)
	})
	if limit > 0 && len(feed) > limit {
		feed = feed[:limit]
	}
	return feed
}
