package api

import (
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"bookexchange/config"
	"bookexchange/db"
	"bookexchange/models"
	"bookexchange/utils"

	"github.com/gin-gonic/gin"
)

// forbiddenNotOwner is the shared response for every ownership failure on an
// existing book, whether the header was absent or simply didn't match.
const forbiddenNotOwner = "Forbidden: You do not own this book or user ID is missing."

// BookRequest defines the body shared by book creation and full update.
// Genre is a pointer so an omitted field can be told apart from an explicit
// empty string on update.
type BookRequest struct {
	Title    string  `json:"title"`
	Author   string  `json:"author"`
	Genre    *string `json:"genre"`
	Location string  `json:"location"`
	Contact  string  `json:"contact"`
}

// --- List Books ---

// ListBooksHandler returns all books, optionally filtered, each with owner info.
// @Summary      List and filter books
// @Description  Returns every listing, or the subset matching the given filters.
// @Description  title and location are case-insensitive substring matches; genre is a
// @Description  case-insensitive exact match. Filters combine with AND.
// @Tags         Books
// @Produce      json
// @Param        title    query  string  false  "Substring of the title."
// @Param        location query  string  false  "Substring of the location."
// @Param        genre    query  string  false  "Exact genre."
// @Success      200  {array}   models.BookWithOwner
// @Failure      500  {object}  utils.APIError
// @Router       /api/books [get]
func ListBooksHandler(c *gin.Context, database *db.Database, cfg *config.Config) {
	filter := db.BookFilter{
		Title:    c.Query("title"),
		Location: c.Query("location"),
		Genre:    c.Query("genre"),
	}

	c.JSON(http.StatusOK, database.QueryBooks(filter))
}

// --- Get Book by ID ---

// GetBookHandler returns a single book with owner info.
// @Summary      Get a book by id
// @Tags         Books
// @Produce      json
// @Param        id   path      string  true  "Book id."
// @Success      200  {object}  models.BookWithOwner
// @Failure      404  {object}  utils.APIError "No book has that id."
// @Failure      500  {object}  utils.APIError
// @Router       /api/books/{id} [get]
func GetBookHandler(c *gin.Context, database *db.Database, cfg *config.Config) {
	book, found := database.GetBookByID(c.Param("id"))
	if !found {
		utils.GinNotFound(c, "Book not found.")
		return
	}

	c.JSON(http.StatusOK, database.EnhanceBook(book))
}

// --- Create Book ---

// CreateBookHandler creates a new listing for the acting user.
// @Summary      Create a book listing
// @Description  The acting user comes from the x-user-id header and must be an
// @Description  existing user with the Owner role. The new book starts Available
// @Description  with no cover image.
// @Tags         Books
// @Accept       json
// @Produce      json
// @Param        x-user-id header string      true  "Acting user id."
// @Param        book      body   BookRequest true  "Listing details. genre is optional."
// @Success      201  {object}  models.Book
// @Failure      400  {object}  utils.APIError "Missing fields or missing x-user-id header."
// @Failure      403  {object}  utils.APIError "Acting user is not an Owner."
// @Failure      500  {object}  utils.APIError
// @Router       /api/books [post]
func CreateBookHandler(c *gin.Context, database *db.Database, cfg *config.Config) {
	var req BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.GinBadRequest(c, "Invalid data type for one or more fields (title, author, genre, location, contact must be strings).")
		return
	}

	actingID, hasIdentity := utils.ActingUserID(c)
	if req.Title == "" || req.Author == "" || req.Location == "" || req.Contact == "" || !hasIdentity {
		utils.GinBadRequest(c, "Missing required fields: title, author, location, contact, or missing x-user-id header.")
		return
	}

	owner, found := database.GetUserByID(actingID)
	if !found || owner.Role != models.RoleOwner {
		log.Printf("WARN: Attempt to add book by non-owner or invalid owner id: %s", actingID)
		utils.GinForbidden(c, "Forbidden: User is not authorized to add books or owner ID is invalid.")
		return
	}

	genre := ""
	if req.Genre != nil {
		genre = *req.Genre
	}

	book := models.Book{
		Title:    req.Title,
		Author:   req.Author,
		Genre:    genre,
		Location: req.Location,
		Contact:  req.Contact,
		OwnerID:  actingID,
		Status:   models.StatusAvailable,
	}

	created, err := database.CreateBook(book)
	if err != nil {
		utils.GinInternalServerError(c, "Internal server error adding book.")
		return
	}

	c.JSON(http.StatusCreated, created)
}

// --- Update Book (PUT) ---

// UpdateBookHandler replaces the editable fields of a listing.
// @Summary      Update a book listing
// @Description  Replaces title, author, genre, location, and contact. Id, owner,
// @Description  status, and cover image are preserved. Only the owner may update.
// @Tags         Books
// @Accept       json
// @Produce      json
// @Param        x-user-id header string      true  "Acting user id."
// @Param        id        path   string      true  "Book id."
// @Param        book      body   BookRequest true  "New listing details."
// @Success      200  {object}  models.Book
// @Failure      400  {object}  utils.APIError
// @Failure      403  {object}  utils.APIError "Acting user does not own the book."
// @Failure      404  {object}  utils.APIError
// @Failure      500  {object}  utils.APIError
// @Router       /api/books/{id} [put]
func UpdateBookHandler(c *gin.Context, database *db.Database, cfg *config.Config) {
	var req BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.GinBadRequest(c, "Invalid data type for one or more fields (title, author, genre, location, contact must be strings).")
		return
	}

	if req.Title == "" || req.Author == "" || req.Location == "" || req.Contact == "" {
		utils.GinBadRequest(c, "Missing required fields: title, author, location, contact.")
		return
	}

	bookID := c.Param("id")
	existing, found := database.GetBookByID(bookID)
	if !found {
		utils.GinNotFound(c, "Book not found.")
		return
	}

	actingID, hasIdentity := utils.ActingUserID(c)
	if !hasIdentity || existing.OwnerID != actingID {
		utils.GinForbidden(c, forbiddenNotOwner)
		return
	}

	// An omitted genre keeps the stored value; an explicit value (even "")
	// replaces it.
	genre := existing.Genre
	if req.Genre != nil {
		genre = *req.Genre
	}

	updated, err := database.UpdateBookDetails(bookID, models.Book{
		Title:    req.Title,
		Author:   req.Author,
		Genre:    genre,
		Location: req.Location,
		Contact:  req.Contact,
	})
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			utils.GinNotFound(c, "Book not found.")
			return
		}
		utils.GinInternalServerError(c, "Internal server error updating book details.")
		return
	}

	c.JSON(http.StatusOK, updated)
}

// --- Update Book Status (PATCH) ---

// StatusRequest defines the body for a status change.
type StatusRequest struct {
	Status string `json:"status"`
}

// UpdateBookStatusHandler changes a book's availability status.
// @Summary      Change a book's status
// @Description  Sets the status to Available or Rented/Exchanged. Only the owner
// @Description  may change it.
// @Tags         Books
// @Accept       json
// @Produce      json
// @Param        x-user-id header string        true  "Acting user id."
// @Param        id        path   string        true  "Book id."
// @Param        status    body   StatusRequest true  "New status."
// @Success      200  {object}  models.Book
// @Failure      400  {object}  utils.APIError "Status is not one of the two allowed values."
// @Failure      403  {object}  utils.APIError
// @Failure      404  {object}  utils.APIError
// @Failure      500  {object}  utils.APIError
// @Router       /api/books/{id}/status [patch]
func UpdateBookStatusHandler(c *gin.Context, database *db.Database, cfg *config.Config) {
	var req StatusRequest
	err := c.ShouldBindJSON(&req)
	if err != nil || (req.Status != models.StatusAvailable && req.Status != models.StatusRented) {
		utils.GinBadRequest(c, `Invalid status value. Must be the string "Available" or "Rented/Exchanged".`)
		return
	}

	bookID := c.Param("id")
	existing, found := database.GetBookByID(bookID)
	if !found {
		utils.GinNotFound(c, "Book not found.")
		return
	}

	actingID, hasIdentity := utils.ActingUserID(c)
	if !hasIdentity || existing.OwnerID != actingID {
		utils.GinForbidden(c, forbiddenNotOwner)
		return
	}

	updated, err := database.UpdateBookStatus(bookID, req.Status)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			utils.GinNotFound(c, "Book not found.")
			return
		}
		utils.GinInternalServerError(c, "Internal server error updating book status.")
		return
	}

	c.JSON(http.StatusOK, updated)
}

// --- Delete Book ---

// DeleteBookHandler removes a listing and its stored cover image.
// @Summary      Delete a book listing
// @Description  Removes the book. The stored cover image file, if any, is deleted
// @Description  in the background; a failure there never fails the request.
// @Tags         Books
// @Param        x-user-id header string true  "Acting user id."
// @Param        id        path   string true  "Book id."
// @Success      204  "Book deleted; no body."
// @Failure      403  {object}  utils.APIError
// @Failure      404  {object}  utils.APIError
// @Failure      500  {object}  utils.APIError
// @Router       /api/books/{id} [delete]
func DeleteBookHandler(c *gin.Context, database *db.Database, cfg *config.Config) {
	bookID := c.Param("id")
	existing, found := database.GetBookByID(bookID)
	if !found {
		utils.GinNotFound(c, "Book not found.")
		return
	}

	actingID, hasIdentity := utils.ActingUserID(c)
	if !hasIdentity || existing.OwnerID != actingID {
		utils.GinForbidden(c, forbiddenNotOwner)
		return
	}

	removed, err := database.DeleteBook(bookID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			utils.GinNotFound(c, "Book not found.")
			return
		}
		utils.GinInternalServerError(c, "Internal server error deleting book.")
		return
	}

	if removed.CoverImageURL != nil {
		removeCoverFile(cfg, *removed.CoverImageURL)
	}

	c.Status(http.StatusNoContent)
}

// removeCoverFile deletes a stored cover image in the background. This is an
// advisory delete: failures are logged and never joined into any request's
// result. A missing file is not a failure.
func removeCoverFile(cfg *config.Config, coverURL string) {
	path := filepath.Join(cfg.UploadsDir, filepath.Base(coverURL))
	go func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("WARN: Failed to delete cover image %s: %v", path, err)
		} else if err == nil {
			log.Printf("INFO: Deleted cover image: %s", path)
		}
	}()
}
