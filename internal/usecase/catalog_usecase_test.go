package usecase

import (
	"context"
	"testing"

	"bookstore/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_ListBooks(t *testing.T) {
	db := newMemDB()
	db.addBook("A", "1.00")
	db.addBook("B", "2.00")
	u := NewCatalogUsecase(CatalogConfig{GoogleAPIKey: "key"}, memBooks{db}, memReviews{db}, nil, nil)

	page, err := u.ListBooks(context.Background())
	require.NoError(t, err)
	assert.Len(t, page.Books, 2)
	assert.Equal(t, "key", page.GoogleAPIKey)
}

func TestCatalog_BookDetail(t *testing.T) {
	db := newMemDB()
	ctx := context.Background()
	alice := db.addUser("alice", "alice@example.com")
	bob := db.addUser("bob", "bob@example.com")
	book := db.addBook("Rebecca", "9.99")
	_, err := memReviews{db}.Create(ctx, model.Review{UserID: alice.ID, BookID: book.ID, Text: "Loved it"})
	require.NoError(t, err)

	fallback := model.Location{City: "Mountain View", Latitude: 37.4, Longitude: -122.1}
	geo := fakeGeo{"72.14.207.99": fallback}
	u := NewCatalogUsecase(CatalogConfig{FallbackIP: "72.14.207.99"}, memBooks{db}, memReviews{db}, geo, nil)

	page, err := u.BookDetail(ctx, alice.ID, book.ID, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, page.CanReview)
	require.Len(t, page.Reviews, 1)
	assert.Equal(t, "alice", page.Reviews[0].Username)
	require.NotNil(t, page.Geo)
	assert.Equal(t, "Mountain View", page.Geo.City)

	page, err = u.BookDetail(ctx, bob.ID, book.ID, "")
	require.NoError(t, err)
	assert.True(t, page.CanReview)

	page, err = u.BookDetail(ctx, 0, book.ID, "")
	require.NoError(t, err)
	assert.False(t, page.CanReview)
}

func TestCatalog_BookDetailNotFound(t *testing.T) {
	db := newMemDB()
	u := NewCatalogUsecase(CatalogConfig{}, memBooks{db}, memReviews{db}, nil, nil)

	_, err := u.BookDetail(context.Background(), 0, 42, "")
	assert.ErrorIs(t, err, ErrBookNotFound)
	he, ok := AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, 404, he.Status)
}
