package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/booktracker/internal/auth"
	"github.com/mrlokans/booktracker/internal/entities"
	"github.com/mrlokans/booktracker/internal/library"
	"github.com/mrlokans/booktracker/internal/store"
)

// Messages shown after book actions.
const (
	MsgBookAddedFormat   = "Book %q added to your library! Metadata will be fetched in the background."
	MsgAlreadyInLibrary  = "You have already added this book to your library."
	MsgBookEdited        = "Your book has been updated!"
	MsgBookManualUpdated = "Book details updated successfully!"
	MsgBookDeleted       = "Book deleted successfully!"
	MsgNotAuthorized     = "You are not authorized to edit this book."
	MsgBookNotFound      = "Book not found."
)

// BooksController serves the library pages.
type BooksController struct {
	library *library.Service
	pages   *pages
	log     *zap.Logger
}

func NewBooksController(lib *library.Service, p *pages, log *zap.Logger) *BooksController {
	return &BooksController{library: lib, pages: p, log: log.Named("books")}
}

func (bc *BooksController) BooksPage(c *gin.Context) {
	books, err := bc.library.ListBooks(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		respondError(c, bc.log, err, "list books")
		return
	}
	bc.pages.render(c, http.StatusOK, "books.html", gin.H{
		"Title": "My Books",
		"Books": books,
		"Count": len(books),
	})
}

func (bc *BooksController) AddBookPage(c *gin.Context) {
	bc.pages.render(c, http.StatusOK, "add_book.html", gin.H{
		"Title": "Add Book",
		"Form":  library.AddBookInput{Status: entities.ReadingStatusToRead},
	})
}

func (bc *BooksController) AddBook(c *gin.Context) {
	in, err := addBookFromForm(c)
	if err == nil {
		var result *library.AddResult
		result, err = bc.library.AddBook(c.Request.Context(), auth.GetUserID(c), in)
		if err == nil {
			bc.pages.redirectWithFlash(c, http.StatusCreated, "/books", auth.FlashSuccess,
				fmt.Sprintf(MsgBookAddedFormat, result.UserBook.Book.Title),
				gin.H{"user_book": result.UserBook, "book_created": result.BookCreated})
			return
		}
	}

	status, body := classifyError(err)
	data := gin.H{"Title": "Add Book", "Form": in, "Error": body.Error, "Details": body.Details}
	switch status {
	case http.StatusConflict:
		data["Error"] = MsgAlreadyInLibrary
	case http.StatusInternalServerError:
		respondError(c, bc.log, err, "add book")
		return
	}
	bc.pages.render(c, status, "add_book.html", data)
}

// loadOwned fetches the entry for the page handlers. Other owners are sent
// back to the list with a flash.
func (bc *BooksController) loadOwned(c *gin.Context) (*entities.UserBook, bool) {
	ub, err := bc.library.GetUserBook(c.Request.Context(), auth.GetUserID(c), c.Param("id"))
	if err == nil {
		return ub, true
	}
	bc.pageError(c, err, "load book")
	return nil, false
}

func (bc *BooksController) pageError(c *gin.Context, err error, action string) {
	switch {
	case errors.Is(err, library.ErrForbidden):
		bc.pages.redirectWithFlash(c, http.StatusForbidden, "/books", auth.FlashDanger, MsgNotAuthorized, nil)
	case errors.Is(err, store.ErrNotFound):
		bc.pages.redirectWithFlash(c, http.StatusNotFound, "/books", auth.FlashDanger, MsgBookNotFound, nil)
	default:
		respondError(c, bc.log, err, action)
	}
}

func (bc *BooksController) EditBookPage(c *gin.Context) {
	ub, ok := bc.loadOwned(c)
	if !ok {
		return
	}
	bc.pages.render(c, http.StatusOK, "edit_book.html", gin.H{
		"Title":    "Edit Book",
		"UserBook": ub,
	})
}

// EditBook handles the full edit form.
func (bc *BooksController) EditBook(c *gin.Context) {
	bc.applyEdit(c, MsgBookEdited)
}

// ManualUpdate applies whichever fields were posted.
func (bc *BooksController) ManualUpdate(c *gin.Context) {
	bc.applyEdit(c, MsgBookManualUpdated)
}

func (bc *BooksController) applyEdit(c *gin.Context, message string) {
	in, err := editBookFromForm(c)
	if err == nil {
		var ub *entities.UserBook
		ub, err = bc.library.EditBook(c.Request.Context(), auth.GetUserID(c), c.Param("id"), in)
		if err == nil {
			bc.pages.redirectWithFlash(c, http.StatusOK, "/books", auth.FlashSuccess, message, gin.H{"user_book": ub})
			return
		}
	}

	var verr *library.ValidationError
	if !errors.As(err, &verr) {
		bc.pageError(c, err, "edit book")
		return
	}

	ub, ok := bc.loadOwned(c)
	if !ok {
		return
	}
	bc.pages.render(c, http.StatusBadRequest, "edit_book.html", gin.H{
		"Title":    "Edit Book",
		"UserBook": ub,
		"Error":    "validation failed",
		"Details":  verr.Fields,
	})
}

func (bc *BooksController) DeleteBook(c *gin.Context) {
	if err := bc.library.DeleteBook(c.Request.Context(), auth.GetUserID(c), c.Param("id")); err != nil {
		bc.pageError(c, err, "delete book")
		return
	}
	bc.pages.redirectWithFlash(c, http.StatusOK, "/books", auth.FlashSuccess, MsgBookDeleted, nil)
}
