package rest

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/ulpt/internal/common"
	"github.com/gin-gonic/gin"
)

// Error codes returned in the "code" field of every error body.
const (
	CodeUnauthenticated      = "unauthenticated"
	CodeTokenExpired         = "token_expired"
	CodeInvalidToken         = "invalid_token"
	CodeInvalidCredentials   = "invalid_credentials"
	CodeForbidden            = "forbidden"
	CodeNotFound             = "not_found"
	CodeValidation           = "validation_error"
	CodeInvalidPasswordToken = "invalid_password_token"
	CodeConflict             = "conflict"
	CodeRateLimited          = "rate_limited"
	CodeInternal             = "internal_error"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

type problem struct {
	status  int
	code    string
	message string
}

// classify maps the error taxonomy to HTTP. Validation errors keep their
// detail; everything unknown is a generic 500.
func classify(err error) problem {
	switch {
	case errors.Is(err, common.ErrTokenExpired):
		return problem{http.StatusUnauthorized, CodeTokenExpired, "token expired"}
	case errors.Is(err, common.ErrInvalidToken):
		return problem{http.StatusForbidden, CodeInvalidToken, "invalid token"}
	case errors.Is(err, common.ErrorUnauthorized):
		return problem{http.StatusUnauthorized, CodeUnauthenticated, "unauthenticated"}
	case errors.Is(err, common.ErrInvalidCredentials):
		return problem{http.StatusUnauthorized, CodeInvalidCredentials, "invalid email or password"}
	case errors.Is(err, common.ErrorForbidden):
		return problem{http.StatusForbidden, CodeForbidden, "access denied"}
	case errors.Is(err, common.ErrorNotFound):
		return problem{http.StatusNotFound, CodeNotFound, "not found"}
	case errors.Is(err, common.ErrInvalidPasswordToken):
		return problem{http.StatusBadRequest, CodeInvalidPasswordToken, "invalid or expired link"}
	case errors.Is(err, common.ErrorValidation):
		return problem{http.StatusBadRequest, CodeValidation, err.Error()}
	case errors.Is(err, common.ErrorAlreadyExists):
		return problem{http.StatusConflict, CodeConflict, "already exists"}
	case errors.Is(err, common.ErrorRateLimited):
		return problem{http.StatusTooManyRequests, CodeRateLimited, "too many requests"}
	}
	return problem{http.StatusInternalServerError, CodeInternal, "internal server error"}
}

// abortWithError writes the JSON error body for err and stops the chain.
// Unclassified errors are attached to the gin context so the request logger
// records them.
func abortWithError(c *gin.Context, err error) {
	p := classify(err)
	if p.status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(p.status, ErrorResponse{Message: p.message, Code: p.code})
}
