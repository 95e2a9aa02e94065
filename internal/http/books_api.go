package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/booktracker/internal/auth"
	"github.com/mrlokans/booktracker/internal/entities"
	"github.com/mrlokans/booktracker/internal/library"
)

// BooksAPIController is the JSON mirror of the library pages.
type BooksAPIController struct {
	library *library.Service
	log     *zap.Logger
}

func NewBooksAPIController(lib *library.Service, log *zap.Logger) *BooksAPIController {
	return &BooksAPIController{library: lib, log: log.Named("books_api")}
}

type AddBookResponse struct {
	UserBook    *entities.UserBook `json:"user_book"`
	BookCreated bool               `json:"book_created"`
}

func (ac *BooksAPIController) ListBooks(c *gin.Context) {
	books, err := ac.library.ListBooks(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		respondError(c, ac.log, err, "list books")
		return
	}
	c.JSON(http.StatusOK, gin.H{"books": books, "count": len(books)})
}

func (ac *BooksAPIController) GetBook(c *gin.Context) {
	ub, err := ac.library.GetUserBook(c.Request.Context(), auth.GetUserID(c), c.Param("id"))
	if err != nil {
		respondError(c, ac.log, err, "get book")
		return
	}
	c.JSON(http.StatusOK, ub)
}

func (ac *BooksAPIController) CreateBook(c *gin.Context) {
	var in library.AddBookInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBadRequest(c, "invalid JSON body")
		return
	}

	result, err := ac.library.AddBook(c.Request.Context(), auth.GetUserID(c), in)
	if err != nil {
		respondError(c, ac.log, err, "add book")
		return
	}
	c.JSON(http.StatusCreated, AddBookResponse{UserBook: result.UserBook, BookCreated: result.BookCreated})
}

// UpdateBook applies a manual edit. Omitted fields stay as they are.
func (ac *BooksAPIController) UpdateBook(c *gin.Context) {
	var in library.EditBookInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBadRequest(c, "invalid JSON body")
		return
	}

	ub, err := ac.library.EditBook(c.Request.Context(), auth.GetUserID(c), c.Param("id"), in)
	if err != nil {
		respondError(c, ac.log, err, "edit book")
		return
	}
	c.JSON(http.StatusOK, ub)
}

func (ac *BooksAPIController) DeleteBook(c *gin.Context) {
	if err := ac.library.DeleteBook(c.Request.Context(), auth.GetUserID(c), c.Param("id")); err != nil {
		respondError(c, ac.log, err, "delete book")
		return
	}
	c.Status(http.StatusNoContent)
}
