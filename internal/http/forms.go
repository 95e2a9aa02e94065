package http

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/booktracker/internal/entities"
	"github.com/mrlokans/booktracker/internal/library"
	"github.com/mrlokans/booktracker/internal/validation"
)

// parseRating reads an optional 1-5 rating. Empty means no rating.
func parseRating(raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, validation.NewError("rating", "must be a number from 1 to 5")
	}
	return &n, nil
}

// addBookFromForm reads the add form. Unknown statuses are left to validation.
func addBookFromForm(c *gin.Context) (library.AddBookInput, error) {
	in := library.AddBookInput{
		ISBN:          c.PostForm("isbn"),
		Title:         c.PostForm("title"),
		Author:        c.PostForm("author"),
		Genre:         c.PostForm("genre"),
		CoverImageURL: c.PostForm("cover_image_url"),
		Description:   c.PostForm("description"),
		Status:        entities.ReadingStatus(c.PostForm("status")),
	}
	rating, err := parseRating(c.PostForm("rating"))
	in.Rating = rating
	return in, err
}

// editBookFromForm builds a manual edit from the fields present in the
// posted form. An empty rating field clears the rating.
func editBookFromForm(c *gin.Context) (library.EditBookInput, error) {
	var in library.EditBookInput
	for field, dst := range map[string]**string{
		"title":           &in.Title,
		"author":          &in.Author,
		"genre":           &in.Genre,
		"cover_image_url": &in.CoverImageURL,
		"description":     &in.Description,
	} {
		if v, ok := c.GetPostForm(field); ok {
			*dst = &v
		}
	}
	if v, ok := c.GetPostForm("status"); ok && v != "" {
		status := entities.ReadingStatus(v)
		in.Status = &status
	}
	if v, ok := c.GetPostForm("rating"); ok {
		rating, err := parseRating(v)
		if err != nil {
			return in, err
		}
		in.Rating = rating
		in.ClearRating = rating == nil
	}
	return in, nil
}
