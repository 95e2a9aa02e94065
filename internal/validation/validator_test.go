package validation_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/booktracker/internal/validation"
)

type bookRequest struct {
	ISBN   string `json:"isbn" validate:"required,numeric,isbn_length"`
	Title  string `form:"title" validate:"required,max=20"`
	Status string `json:"status" validate:"omitempty,oneof=to-read reading read"`
	Rating *int   `json:"rating" validate:"omitempty,gte=1,lte=5"`
}

func ptr[T any](v T) *T { return &v }

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()

	assert.NoError(t, v.Validate(bookRequest{ISBN: "9780306406157", Title: "Dune", Status: "read", Rating: ptr(5)}))
	assert.NoError(t, v.Validate(bookRequest{ISBN: "0306406152", Title: "Dune"}))
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name      string
		req       bookRequest
		wantField string
		wantMsg   string
	}{
		{"missing isbn", bookRequest{Title: "T"}, "isbn", "is required"},
		{"isbn with letters", bookRequest{ISBN: "97803064061X7", Title: "T"}, "isbn", "must contain only digits"},
		{"isbn wrong length", bookRequest{ISBN: "12345678901", Title: "T"}, "isbn", "must be 10 or 13 digits"},
		{"form tag name", bookRequest{ISBN: "0306406152"}, "title", "is required"},
		{"title too long", bookRequest{ISBN: "0306406152", Title: "a title that is far too long"}, "title", "must not exceed 20 characters"},
		{"unknown status", bookRequest{ISBN: "0306406152", Title: "T", Status: "shelved"}, "status", "must be one of: to-read reading read"},
		{"rating too high", bookRequest{ISBN: "0306406152", Title: "T", Rating: ptr(6)}, "rating", "must be less than or equal to 5"},
		{"rating too low", bookRequest{ISBN: "0306406152", Title: "T", Rating: ptr(0)}, "rating", "must be greater than or equal to 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			require.Error(t, err)

			var verr *validation.Error
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.wantMsg, verr.Fields[tt.wantField])
			assert.Contains(t, err.Error(), tt.wantField)
		})
	}
}

func TestError_MessageIsSorted(t *testing.T) {
	err := &validation.Error{Fields: map[string]string{"title": "is required", "isbn": "is required"}}
	assert.Equal(t, "validation failed: isbn is required; title is required", err.Error())
}

func TestNewError(t *testing.T) {
	err := validation.NewError("confirm_password", "must match password")
	assert.Equal(t, map[string]string{"confirm_password": "must match password"}, err.Fields)
}
