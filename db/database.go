package db

import (
	"bookexchange/config"
	"bookexchange/models"
	"bookexchange/utils"
	"encoding/json"
	"errors"
	"log"
	"os"
	"sync"
	"time"
)

// Sentinel errors returned by the CRUD methods. Handlers map these onto
// HTTP status codes.
var (
	// ErrNotFound is returned when no record has the requested id.
	ErrNotFound = errors.New("not found")
	// ErrEmailExists is returned when a user with the same email already exists.
	ErrEmailExists = errors.New("email already exists")
)

// Database holds all application data and synchronizes it with a single
// on-disk JSON file. We embed the models.Database struct to inherit the
// persisted document (Users, Books, Mu) and add the persistence logic here.
//
// The mutating methods release the document lock before persisting, so the
// synchronous save path never re-enters the RWMutex.
type Database struct {
	models.Database // Embedded persisted document
	config          *config.Config
	saveTimer       *time.Timer // Timer for debounced saving
	savePending     bool        // Flag to indicate if a save is queued
	saveMutex       sync.Mutex  // Mutex specifically for the save timer logic
}

// NewDatabase creates a Database instance backed by the file named in the
// configuration and loads any existing data from it.
func NewDatabase(cfg *config.Config) (*Database, error) {
	db := &Database{
		Database: models.Database{
			Users: make([]models.User, 0),
			Books: make([]models.Book, 0),
		},
		config: cfg,
	}

	log.Printf("INFO: Initializing database with file: %s", cfg.DbFilePath)
	db.Load()

	return db, nil
}

// Load reads the database state from the JSON file specified in the
// configuration. A missing, unreadable, or unparseable file falls back to an
// empty document: the failure is logged, never surfaced, and the next save
// overwrites whatever was on disk.
func (db *Database) Load() {
	db.Database.Mu.Lock()
	defer db.Database.Mu.Unlock()

	fileData, err := os.ReadFile(db.config.DbFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("INFO: Database file '%s' not found. Initializing empty database.", db.config.DbFilePath)
		} else {
			log.Printf("ERROR: Failed to read database file '%s': %v. Proceeding with empty state.", db.config.DbFilePath, err)
		}
		db.Database.Users = make([]models.User, 0)
		db.Database.Books = make([]models.Book, 0)
		return
	}

	if err := json.Unmarshal(fileData, &db.Database); err != nil {
		log.Printf("ERROR: Failed to parse JSON data from database file '%s': %v. Proceeding with empty state.", db.config.DbFilePath, err)
		db.Database.Users = make([]models.User, 0)
		db.Database.Books = make([]models.Book, 0)
		return
	}

	// Guard against a file with null or missing collections
	if db.Database.Users == nil {
		db.Database.Users = make([]models.User, 0)
	}
	if db.Database.Books == nil {
		db.Database.Books = make([]models.Book, 0)
	}

	log.Printf("INFO: Successfully loaded database from %s. Users: %d, Books: %d",
		db.config.DbFilePath, len(db.Database.Users), len(db.Database.Books))
}

// persist saves the current database state to the JSON file as a single
// pretty-printed document. The write goes through a temp file and rename so a
// crash mid-write cannot truncate the database.
func (db *Database) persist() error {
	db.Database.Mu.RLock()
	jsonData, err := json.MarshalIndent(&db.Database, "", "  ")
	db.Database.Mu.RUnlock()
	if err != nil {
		log.Printf("ERROR: Failed to marshal database state to JSON: %v", err)
		return err
	}

	tempFilePath := db.config.DbFilePath + ".tmp"
	backupFilePath := db.config.DbFilePath + ".bak"

	if err := os.WriteFile(tempFilePath, jsonData, 0644); err != nil {
		log.Printf("ERROR: Failed to write to temporary database file '%s': %v", tempFilePath, err)
		return err
	}

	if db.config.EnableBackup {
		if _, err := os.Stat(db.config.DbFilePath); err == nil {
			if err := os.Rename(db.config.DbFilePath, backupFilePath); err != nil {
				log.Printf("WARN: Failed to rename '%s' to '%s' for backup: %v. Proceeding with save.", db.config.DbFilePath, backupFilePath, err)
			}
		} else if !os.IsNotExist(err) {
			log.Printf("WARN: Error checking status of database file '%s' before backup: %v", db.config.DbFilePath, err)
		}
	}

	if err := os.Rename(tempFilePath, db.config.DbFilePath); err != nil {
		log.Printf("ERROR: Failed to rename temporary file '%s' to '%s': %v", tempFilePath, db.config.DbFilePath, err)
		_ = os.Remove(tempFilePath)
		return err
	}

	return nil
}

// requestSave is called after every write operation, with the document lock
// released. With a zero save interval the full document is rewritten before
// requestSave returns; save failures are logged and swallowed, leaving the
// in-memory state authoritative. A positive interval debounces bursts of
// writes.
func (db *Database) requestSave() {
	db.saveMutex.Lock()
	defer db.saveMutex.Unlock()

	if db.config.SaveInterval <= 0 {
		if err := db.persist(); err != nil {
			log.Printf("ERROR: Persist failed; in-memory state and disk now disagree: %v", err)
		}
		return
	}

	// Debounced save: reset the timer on every write
	if db.saveTimer != nil {
		db.saveTimer.Stop()
	}
	db.savePending = true

	db.saveTimer = time.AfterFunc(db.config.SaveInterval, func() {
		db.saveMutex.Lock()
		if !db.savePending {
			db.saveMutex.Unlock()
			return
		}
		db.savePending = false
		db.saveMutex.Unlock()

		if err := db.persist(); err != nil {
			log.Printf("ERROR: Debounced persist failed: %v", err)
		}
	})
}

// Close ensures any pending save operation is completed before shutdown.
func (db *Database) Close() error {
	var needsFinalPersist bool

	db.saveMutex.Lock()
	if db.saveTimer != nil {
		db.saveTimer.Stop()
		db.saveTimer = nil
	}
	if db.savePending {
		needsFinalPersist = true
		db.savePending = false
	}
	db.saveMutex.Unlock()

	if needsFinalPersist {
		if err := db.persist(); err != nil {
			log.Printf("ERROR: Final persist operation failed during close: %v", err)
			return err
		}
	}

	return nil
}

// --- CRUD Methods: Users ---

// CreateUser appends a new user to the collection. The email must not be in
// use already; the comparison is a case-sensitive exact match, mirroring the
// login lookup. Assigns a fresh id when none is set.
func (db *Database) CreateUser(user models.User) (models.User, error) {
	db.Database.Mu.Lock()

	for _, existing := range db.Database.Users {
		if existing.Email == user.Email {
			db.Database.Mu.Unlock()
			return models.User{}, ErrEmailExists
		}
	}

	if user.ID == "" {
		user.ID = utils.GenerateDashlessUUID()
	}

	db.Database.Users = append(db.Database.Users, user)
	db.Database.Mu.Unlock()

	log.Printf("INFO: Created User ID: %s, Email: %s, Role: %s", user.ID, user.Email, user.Role)
	db.requestSave()

	return user, nil
}

// GetUserByID retrieves a user by id.
func (db *Database) GetUserByID(id string) (models.User, bool) {
	db.Database.Mu.RLock()
	defer db.Database.Mu.RUnlock()

	for _, user := range db.Database.Users {
		if user.ID == id {
			return user, true
		}
	}
	return models.User{}, false
}

// GetUserByEmail retrieves a user by exact email match (case-sensitive).
func (db *Database) GetUserByEmail(email string) (models.User, bool) {
	db.Database.Mu.RLock()
	defer db.Database.Mu.RUnlock()

	for _, user := range db.Database.Users {
		if user.Email == email {
			return user, true
		}
	}
	return models.User{}, false
}

// GetAllUsers returns a copy of the user collection.
func (db *Database) GetAllUsers() []models.User {
	db.Database.Mu.RLock()
	defer db.Database.Mu.RUnlock()

	users := make([]models.User, len(db.Database.Users))
	copy(users, db.Database.Users)
	return users
}

// --- CRUD Methods: Books ---

// CreateBook appends a new book to the collection. Assigns a fresh id and
// defaults the status to Available when unset. The cover image URL always
// starts out null.
func (db *Database) CreateBook(book models.Book) (models.Book, error) {
	db.Database.Mu.Lock()

	if book.ID == "" {
		book.ID = utils.GenerateDashlessUUID()
	}
	if book.Status == "" {
		book.Status = models.StatusAvailable
	}
	book.CoverImageURL = nil

	db.Database.Books = append(db.Database.Books, book)
	db.Database.Mu.Unlock()

	log.Printf("INFO: Created Book ID: %s, OwnerID: %s", book.ID, book.OwnerID)
	db.requestSave()

	return book, nil
}

// GetBookByID retrieves a book by id.
func (db *Database) GetBookByID(id string) (models.Book, bool) {
	db.Database.Mu.RLock()
	defer db.Database.Mu.RUnlock()

	for _, book := range db.Database.Books {
		if book.ID == id {
			return book, true
		}
	}
	return models.Book{}, false
}

// GetAllBooks returns a copy of the book collection in creation order.
func (db *Database) GetAllBooks() []models.Book {
	db.Database.Mu.RLock()
	defer db.Database.Mu.RUnlock()

	books := make([]models.Book, len(db.Database.Books))
	copy(books, db.Database.Books)
	return books
}

// UpdateBookDetails replaces the editable fields (title, author, genre,
// location, contact) of an existing book while preserving id, ownerId,
// status, and the cover image URL.
func (db *Database) UpdateBookDetails(id string, details models.Book) (models.Book, error) {
	db.Database.Mu.Lock()

	idx := db.findBookIndexLocked(id)
	if idx == -1 {
		db.Database.Mu.Unlock()
		return models.Book{}, ErrNotFound
	}

	book := &db.Database.Books[idx]
	book.Title = details.Title
	book.Author = details.Author
	book.Genre = details.Genre
	book.Location = details.Location
	book.Contact = details.Contact
	updated := *book
	db.Database.Mu.Unlock()

	log.Printf("INFO: Updated Book ID: %s", id)
	db.requestSave()

	return updated, nil
}

// UpdateBookStatus sets the status of an existing book.
func (db *Database) UpdateBookStatus(id, status string) (models.Book, error) {
	db.Database.Mu.Lock()

	idx := db.findBookIndexLocked(id)
	if idx == -1 {
		db.Database.Mu.Unlock()
		return models.Book{}, ErrNotFound
	}

	db.Database.Books[idx].Status = status
	updated := db.Database.Books[idx]
	db.Database.Mu.Unlock()

	log.Printf("INFO: Updated status of Book ID: %s to '%s'", id, status)
	db.requestSave()

	return updated, nil
}

// SetBookCover records the public path of a freshly uploaded cover image.
func (db *Database) SetBookCover(id, coverURL string) (models.Book, error) {
	db.Database.Mu.Lock()

	idx := db.findBookIndexLocked(id)
	if idx == -1 {
		db.Database.Mu.Unlock()
		return models.Book{}, ErrNotFound
	}

	db.Database.Books[idx].CoverImageURL = &coverURL
	updated := db.Database.Books[idx]
	db.Database.Mu.Unlock()

	log.Printf("INFO: Set cover image for Book ID: %s to '%s'", id, coverURL)
	db.requestSave()

	return updated, nil
}

// DeleteBook removes a book from the collection and returns the removed
// record so the caller can clean up its cover image file.
func (db *Database) DeleteBook(id string) (models.Book, error) {
	db.Database.Mu.Lock()

	idx := db.findBookIndexLocked(id)
	if idx == -1 {
		db.Database.Mu.Unlock()
		return models.Book{}, ErrNotFound
	}

	removed := db.Database.Books[idx]
	db.Database.Books = append(db.Database.Books[:idx], db.Database.Books[idx+1:]...)
	db.Database.Mu.Unlock()

	log.Printf("INFO: Deleted Book ID: %s", id)
	db.requestSave()

	return removed, nil
}

// findBookIndexLocked returns the index of the book with the given id, or -1.
// Callers must hold the document lock.
func (db *Database) findBookIndexLocked(id string) int {
	for i, book := range db.Database.Books {
		if book.ID == id {
			return i
		}
	}
	return -1
}
