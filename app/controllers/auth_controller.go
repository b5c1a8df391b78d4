package controllers

import (
	"errors"
	"net/http"

	"github.com/tommyfx/storefront/app/services"
	"github.com/tommyfx/storefront/pkg/auth"
	"github.com/tommyfx/storefront/pkg/bind"
	"github.com/tommyfx/storefront/pkg/logger"
	"github.com/tommyfx/storefront/pkg/response"
)

type AuthController struct {
	service *services.Auth
}

func NewAuthController(s *services.Auth) *AuthController {
	return &AuthController{service: s}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token    string        `json:"token"`
	Identity auth.Identity `json:"identity"`
}

// Login exchanges email and password for an access token.
func (c *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	errs, err := bind.JSON(w, r, &body)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}
	if errs != nil {
		response.ValidationError(w, errs)
		return
	}

	token, id, err := c.service.Login(r.Context(), body.Email, body.Password)
	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		response.Error(w, http.StatusUnauthorized, "Invalid email or password")
		return
	case err != nil:
		logger.WithCtx(r.Context()).Error("auth: login failed", "error", err)
		response.Error(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	logger.WithCtx(r.Context()).Info("auth: signed in", "profile_id", id.ID, "role", id.Role)
	response.Success(w, loginResponse{Token: token, Identity: id})
}

// Logout acknowledges sign-out. Tokens are stateless; the client drops its
// copy.
func (c *AuthController) Logout(w http.ResponseWriter, r *http.Request) {
	if id, ok := auth.IdentityFrom(r.Context()); ok {
		logger.WithCtx(r.Context()).Info("auth: signed out", "profile_id", id.ID)
	}
	response.WithMessage(w, http.StatusOK, "Signed out", nil)
}

// Me returns the identity carried by the token.
func (c *AuthController) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		response.Unauthorized(w)
		return
	}
	response.Success(w, id)
}
