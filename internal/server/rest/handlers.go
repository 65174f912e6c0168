package rest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/ulpt/internal/common"
	"github.com/dmitrijs2005/ulpt/internal/server/models"
	"github.com/dmitrijs2005/ulpt/internal/server/services"
	"github.com/gin-gonic/gin"
)

// Sessions is the session lifecycle the handlers drive.
type Sessions interface {
	Login(ctx context.Context, email, password string) (*services.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, refreshToken string) error
	Status(accessToken string) services.Status
}

// Accounts is the user management the handlers drive.
type Accounts interface {
	Create(ctx context.Context, in services.UserInput) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	Get(ctx context.Context, id string) (*models.User, error)
	Update(ctx context.Context, id string, in services.UserInput) (*models.User, error)
	UpdateMe(ctx context.Context, id string, in services.UserInput) (*models.User, error)
	Delete(ctx context.Context, id string) error
	SetPassword(ctx context.Context, token, password string) error
	ResetPassword(ctx context.Context, userID string) error
}

type messageResponse struct {
	Message string `json:"message"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// sessionUser is the profile returned by login. Tokens stay in cookies.
type sessionUser struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

type loginResponse struct {
	Message string      `json:"message"`
	User    sessionUser `json:"user"`
}

type statusResponse struct {
	Message  string `json:"message"`
	LoggedIn bool   `json:"loggedIn"`
	Role     string `json:"role,omitempty"`
	Expired  bool   `json:"expired"`
}

type setPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type resetPasswordRequest struct {
	UserID string `json:"userId" binding:"required"`
}

type userRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Email     *string `json:"email"`
	Role      *string `json:"role"`
	Project   *string `json:"project"`
}

func (r userRequest) input() services.UserInput {
	return services.UserInput{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email,
		Role:      r.Role,
		Project:   r.Project,
	}
}

type userResponse struct {
	Message string       `json:"message"`
	User    *models.User `json:"user"`
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		abortWithError(c, fmt.Errorf("%w: invalid request body", common.ErrorValidation))
		return false
	}
	return true
}

type sessionHandlers struct {
	sessions Sessions
	cookies  cookieJar
}

func (h *sessionHandlers) login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.sessions.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}

	h.cookies.setAccess(c, res.AccessToken)
	h.cookies.setRefresh(c, res.RefreshToken)
	c.JSON(http.StatusOK, loginResponse{
		Message: "logged in",
		User: sessionUser{
			ID:        res.User.ID,
			FirstName: res.User.FirstName,
			LastName:  res.User.LastName,
			Role:      res.User.Role,
		},
	})
}

func (h *sessionHandlers) status(c *gin.Context) {
	st := h.sessions.Status(cookieValue(c, common.AccessTokenCookieName))

	msg := "not logged in"
	switch {
	case st.LoggedIn:
		msg = "logged in"
	case st.Expired:
		msg = "session expired"
	}
	c.JSON(http.StatusOK, statusResponse{Message: msg, LoggedIn: st.LoggedIn, Role: st.Role, Expired: st.Expired})
}

func (h *sessionHandlers) refresh(c *gin.Context) {
	access, err := h.sessions.Refresh(c.Request.Context(), cookieValue(c, common.RefreshTokenCookieName))
	if err != nil {
		abortWithError(c, err)
		return
	}

	h.cookies.setAccess(c, access)
	c.JSON(http.StatusOK, messageResponse{Message: "token refreshed"})
}

// logout clears both cookies whatever the ledger says.
func (h *sessionHandlers) logout(c *gin.Context) {
	err := h.sessions.Logout(c.Request.Context(), cookieValue(c, common.RefreshTokenCookieName))
	h.cookies.clear(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "logged out"})
}

type userHandlers struct {
	accounts Accounts
}

func (h *userHandlers) create(c *gin.Context) {
	var req userRequest
	if !bindJSON(c, &req) {
		return
	}

	u, err := h.accounts.Create(c.Request.Context(), req.input())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, userResponse{Message: "user created, an email was sent", User: u})
}

func (h *userHandlers) list(c *gin.Context) {
	users, err := h.accounts.List(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *userHandlers) get(c *gin.Context) {
	u, err := h.accounts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *userHandlers) update(c *gin.Context) {
	var req userRequest
	if !bindJSON(c, &req) {
		return
	}

	u, err := h.accounts.Update(c.Request.Context(), c.Param("id"), req.input())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, userResponse{Message: "user updated", User: u})
}

func (h *userHandlers) delete(c *gin.Context) {
	if err := h.accounts.Delete(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "user deleted"})
}

func (h *userHandlers) me(c *gin.Context) {
	u, err := h.accounts.Get(c.Request.Context(), identity(c).ID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *userHandlers) updateMe(c *gin.Context) {
	var req userRequest
	if !bindJSON(c, &req) {
		return
	}

	u, err := h.accounts.UpdateMe(c.Request.Context(), identity(c).ID, req.input())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, userResponse{Message: "profile updated", User: u})
}

func (h *userHandlers) setPassword(c *gin.Context) {
	var req setPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.accounts.SetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "password set"})
}

func (h *userHandlers) resetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.accounts.ResetPassword(c.Request.Context(), req.UserID); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "reset link sent"})
}
