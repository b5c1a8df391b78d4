package validate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tommyfx/storefront/pkg/validate"
)

type feedbackInput struct {
	Comment   string `json:"comment"    validate:"required,max=20"`
	Rating    int    `json:"rating"     validate:"required,between=1 5"`
	ProductID string `json:"product_id" validate:"nullable,uuid"`
}

func TestValidInput(t *testing.T) {
	errs := validate.Struct(feedbackInput{Comment: "Lovely serum", Rating: 5})
	assert.False(t, validate.HasErrors(errs), "got %v", errs)
}

func TestRequired(t *testing.T) {
	errs := validate.Struct(feedbackInput{Comment: "   "})
	assert.Contains(t, errs, "comment")
	assert.Contains(t, errs, "rating")
	assert.NotContains(t, errs, "product_id", "nullable field left empty")
}

func TestBetween(t *testing.T) {
	errs := validate.Struct(feedbackInput{Comment: "ok", Rating: 6})
	assert.Equal(t, "The rating must be between 1 and 5.", errs["rating"])

	errs = validate.Struct(&feedbackInput{Comment: "ok", Rating: 3})
	assert.Empty(t, errs)
}

func TestMaxLength(t *testing.T) {
	errs := validate.Struct(feedbackInput{Comment: "this comment is far too long", Rating: 4})
	assert.Equal(t, "The comment must not exceed 20 characters.", errs["comment"])
}

func TestUUID(t *testing.T) {
	errs := validate.Struct(feedbackInput{Comment: "ok", Rating: 4, ProductID: "nope"})
	assert.Contains(t, errs, "product_id")

	errs = validate.Struct(feedbackInput{Comment: "ok", Rating: 4, ProductID: "3f2b6a4e-8c1d-4f7a-9b2e-5d6c7a8b9c0d"})
	assert.Empty(t, errs)
}

func TestEmailAndIn(t *testing.T) {
	type login struct {
		Email string `json:"email" validate:"required,email"`
		Role  string `json:"role"  validate:"nullable,in=customer admin"`
	}

	assert.Contains(t, validate.Struct(login{Email: "not-an-email"}), "email")
	assert.Contains(t, validate.Struct(login{Email: "a@b.co", Role: "root"}), "role")
	assert.Empty(t, validate.Struct(login{Email: "a@b.co", Role: "admin"}))
}

func TestMinNumeric(t *testing.T) {
	type limit struct {
		Limit int `json:"limit" validate:"min=1,max=50"`
	}
	assert.Equal(t, "The limit must be at least 1.", validate.Struct(limit{})["limit"])
	assert.Equal(t, "The limit must not be greater than 50.", validate.Struct(limit{Limit: 51})["limit"])
}

func TestNonStruct(t *testing.T) {
	assert.Empty(t, validate.Struct("plain string"))
}
