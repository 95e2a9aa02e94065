package http

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/booktracker/internal/entities"
)

func apiBook() map[string]any {
	return map[string]any{
		"isbn":   "0306406152",
		"title":  "Probability Theory",
		"author": "E. T. Jaynes",
		"rating": 5,
	}
}

func TestBooksAPI_CRUD(t *testing.T) {
	app := newTestApp(t, testOptions{})
	alice := app.login(t, "alice")

	rr := alice.json(t, http.MethodPost, "/api/books", apiBook())
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[AddBookResponse](t, rr)
	assert.True(t, created.BookCreated)
	require.NotNil(t, created.UserBook)
	assert.Equal(t, entities.SyncStatusPending, created.UserBook.SyncStatus)
	assert.Equal(t, entities.ReadingStatusToRead, created.UserBook.Status)
	id := created.UserBook.ID

	rr = alice.json(t, http.MethodGet, "/api/books", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[struct {
		Books []entities.UserBook `json:"books"`
		Count int                 `json:"count"`
	}](t, rr)
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, "Probability Theory", list.Books[0].Book.Title)

	rr = alice.json(t, http.MethodPatch, "/api/books/"+id, map[string]any{"status": "reading", "clear_rating": true})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	patched := decode[entities.UserBook](t, rr)
	assert.Equal(t, entities.ReadingStatusReading, patched.Status)
	assert.Nil(t, patched.Rating)
	assert.Equal(t, entities.SyncStatusSynced, patched.SyncStatus)
	assert.Equal(t, "Probability Theory", patched.Book.Title)

	rr = alice.json(t, http.MethodGet, "/api/books/"+id, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, id, decode[entities.UserBook](t, rr).ID)

	rr = alice.json(t, http.MethodDelete, "/api/books/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = alice.json(t, http.MethodGet, "/api/books/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, CodeNotFound, decode[ErrorResponse](t, rr).Code)
}

func TestBooksAPI_Errors(t *testing.T) {
	app := newTestApp(t, testOptions{})
	alice := app.login(t, "alice")
	bob := app.login(t, "bob")

	rr := alice.json(t, http.MethodPost, "/api/books", apiBook())
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decode[AddBookResponse](t, rr).UserBook.ID

	rr = alice.json(t, http.MethodPost, "/api/books", apiBook())
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, CodeDuplicate, decode[ErrorResponse](t, rr).Code)

	// Same book, another reader.
	rr = bob.json(t, http.MethodPost, "/api/books", apiBook())
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.False(t, decode[AddBookResponse](t, rr).BookCreated)

	for _, method := range []string{http.MethodGet, http.MethodPatch, http.MethodDelete} {
		rr = bob.json(t, method, "/api/books/"+id, map[string]any{"title": "Stolen"})
		assert.Equal(t, http.StatusForbidden, rr.Code, method)
		assert.Equal(t, CodeForbidden, decode[ErrorResponse](t, rr).Code)
	}

	bad := apiBook()
	bad["rating"] = 9
	bad["status"] = "someday"
	rr = alice.json(t, http.MethodPost, "/api/books", bad)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	resp := decode[ErrorResponse](t, rr)
	assert.Equal(t, CodeValidation, resp.Code)
	assert.Contains(t, resp.Details, "rating")
	assert.Contains(t, resp.Details, "status")

	req := formRequest(http.MethodPost, "/api/books", nil)
	req.Header.Set("Content-Type", "application/json")
	rr = alice.do(t, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
