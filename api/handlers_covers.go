package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bookexchange/config"
	"bookexchange/db"
	"bookexchange/utils"

	"github.com/gin-gonic/gin"
)

// coverFormField is the multipart field name the cover image arrives under.
const coverFormField = "coverImage"

// UploadCoverHandler stores a cover image for a book and records its public path.
// @Summary      Upload a cover image
// @Description  Accepts a single image file in the coverImage multipart field.
// @Description  Only the book's owner may upload. A previously stored cover is
// @Description  deleted after the new one is recorded.
// @Tags         Books
// @Accept       multipart/form-data
// @Produce      json
// @Param        x-user-id  header  string  true  "Acting user id."
// @Param        id         path    string  true  "Book id."
// @Param        coverImage formData file   true  "Image file; the content type must be image/*."
// @Success      200  {object}  models.Book "The book with its new coverImageUrl."
// @Failure      400  {object}  utils.APIError "No file, or the file is not an image."
// @Failure      403  {object}  utils.APIError
// @Failure      404  {object}  utils.APIError
// @Failure      500  {object}  utils.APIError
// @Router       /api/books/{id}/cover [post]
func UploadCoverHandler(c *gin.Context, database *db.Database, cfg *config.Config) {
	fileHeader, err := c.FormFile(coverFormField)
	if err != nil {
		utils.GinBadRequest(c, "No image file uploaded or invalid file type.")
		return
	}

	// Reject non-images before anything touches the disk.
	if !strings.HasPrefix(fileHeader.Header.Get("Content-Type"), "image/") {
		utils.GinBadRequest(c, "Not an image! Please upload only images.")
		return
	}

	// Collision-resistant name: field prefix, nanosecond timestamp, original extension.
	filename := fmt.Sprintf("%s-%d%s", coverFormField, time.Now().UnixNano(), filepath.Ext(fileHeader.Filename))
	dst := filepath.Join(cfg.UploadsDir, filename)

	if err := c.SaveUploadedFile(fileHeader, dst); err != nil {
		log.Printf("ERROR: Failed to store uploaded cover image at %s: %v", dst, err)
		utils.GinInternalServerError(c, "Internal server error processing cover upload.")
		return
	}

	// Every failure from here on must clean up the file we just wrote.
	bookID := c.Param("id")
	book, found := database.GetBookByID(bookID)
	if !found {
		discardUpload(dst)
		utils.GinNotFound(c, "Book not found.")
		return
	}

	actingID, hasIdentity := utils.ActingUserID(c)
	if !hasIdentity || book.OwnerID != actingID {
		discardUpload(dst)
		utils.GinForbidden(c, forbiddenNotOwner)
		return
	}

	previousCover := book.CoverImageURL
	imageURL := "/uploads/" + filename

	updated, err := database.SetBookCover(bookID, imageURL)
	if err != nil {
		discardUpload(dst)
		if errors.Is(err, db.ErrNotFound) {
			utils.GinNotFound(c, "Book not found.")
			return
		}
		utils.GinInternalServerError(c, "Internal server error processing cover upload.")
		return
	}

	// The replaced cover is removed best-effort, after the new path is persisted.
	if previousCover != nil {
		removeCoverFile(cfg, *previousCover)
	}

	c.JSON(http.StatusOK, updated)
}

// discardUpload synchronously removes a freshly written upload whose request
// was rejected, so no orphaned file is left behind when the response goes out.
func discardUpload(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("WARN: Failed to remove rejected upload %s: %v", path, err)
	}
}
