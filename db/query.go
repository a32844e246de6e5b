package db

import (
	"strings"

	"bookexchange/models"
)

// BookFilter holds the optional listing filters. Empty fields are ignored;
// the present ones must all match.
type BookFilter struct {
	Title    string // case-insensitive substring match
	Location string // case-insensitive substring match
	Genre    string // case-insensitive exact match
}

// QueryBooks returns the books matching every present filter, in creation
// order, each enhanced with its owner's public contact details. An empty
// result is a valid, non-nil slice.
func (db *Database) QueryBooks(filter BookFilter) []models.BookWithOwner {
	db.Database.Mu.RLock()
	defer db.Database.Mu.RUnlock()

	results := make([]models.BookWithOwner, 0)
	for _, book := range db.Database.Books {
		if !matchesFilter(book, filter) {
			continue
		}
		results = append(results, models.BookWithOwner{
			Book:      book,
			OwnerInfo: db.ownerInfoLocked(book.OwnerID),
		})
	}
	return results
}

// EnhanceBook attaches the owner's contact details to a single book. A
// missing owner record degrades to a null ownerInfo rather than an error.
func (db *Database) EnhanceBook(book models.Book) models.BookWithOwner {
	db.Database.Mu.RLock()
	defer db.Database.Mu.RUnlock()

	return models.BookWithOwner{
		Book:      book,
		OwnerInfo: db.ownerInfoLocked(book.OwnerID),
	}
}

// ownerInfoLocked resolves a book's owner to the public OwnerInfo subset.
// Returns nil when the owner record no longer exists. Callers must hold the
// document lock.
func (db *Database) ownerInfoLocked(ownerID string) *models.OwnerInfo {
	for _, user := range db.Database.Users {
		if user.ID == ownerID {
			return &models.OwnerInfo{
				Name:   user.Name,
				Email:  user.Email,
				Mobile: user.MobileNumber,
			}
		}
	}
	return nil
}

// matchesFilter applies the listing filters to a single book. Title and
// location are case-insensitive substring matches; genre is a
// case-insensitive exact match, and books without a genre never match a
// genre filter.
func matchesFilter(book models.Book, filter BookFilter) bool {
	if filter.Title != "" && !strings.Contains(strings.ToLower(book.Title), strings.ToLower(filter.Title)) {
		return false
	}
	if filter.Location != "" && !strings.Contains(strings.ToLower(book.Location), strings.ToLower(filter.Location)) {
		return false
	}
	if filter.Genre != "" && (book.Genre == "" || !strings.EqualFold(book.Genre, filter.Genre)) {
		return false
	}
	return true
}
