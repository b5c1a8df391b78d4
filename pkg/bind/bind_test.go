package bind

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tommyfx/storefront/config"
)

type login struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func post(body string) (*httptest.ResponseRecorder, *http.Request) {
	return httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(body))
}

func TestJSON(t *testing.T) {
	w, r := post(`{"email":"ada@example.com","password":"pw"}`)
	var dest login
	errs, err := JSON(w, r, &dest)

	require.NoError(t, err)
	assert.Nil(t, errs)
	assert.Equal(t, "ada@example.com", dest.Email)
}

func TestJSON_ValidationErrors(t *testing.T) {
	w, r := post(`{"email":"nope"}`)
	var dest login
	errs, err := JSON(w, r, &dest)

	require.NoError(t, err)
	assert.Contains(t, errs, "email")
	assert.Contains(t, errs, "password")
}

func TestJSON_BadBodies(t *testing.T) {
	var dest login

	w, r := post(``)
	_, err := JSON(w, r, &dest)
	assert.ErrorIs(t, err, ErrEmptyBody)

	w, r = post(`{"email":`)
	_, err = JSON(w, r, &dest)
	assert.ErrorContains(t, err, "invalid JSON")

	w, r = post(`{"email":"a@b.co","password":"x","admin":true}`)
	_, err = JSON(w, r, &dest)
	assert.ErrorContains(t, err, "unknown field")
}

func TestJSON_TooLarge(t *testing.T) {
	config.Set("MAX_BODY_BYTES", "16")
	defer config.Set("MAX_BODY_BYTES", "")

	w, r := post(`{"email":"ada@example.com","password":"pw"}`)
	var dest login
	_, err := JSON(w, r, &dest)
	assert.ErrorContains(t, err, "too large")
}
