package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/invoiceflow/internal/auth/domain"
)

// loginRequest carries no binding rules; empty and oversized values fail in
// Authenticate with the same answer as a wrong credential.
type loginRequest struct {
	Handle     string `json:"handle"`
	Credential string `json:"credential"`
}

type loginResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	User      *authdomain.User `json:"user"`
}

type logoutRequest struct {
	Token string `json:"token"`
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	FullName string `json:"full_name"`
	Password string `json:"password" binding:"required"`
}

// updateProfileRequest lists the only fields a user may change on their own
// account. Unknown keys such as role are dropped by the decoder.
type updateProfileRequest struct {
	Email    *string `json:"email"`
	FullName *string `json:"full_name"`
	Password *string `json:"password"`
}

func (s *Server) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, authdomain.ErrInvalidCredentials)
		return
	}

	previous, _ := s.sessions.ReadToken(c)
	result, err := s.authSvc.Login(c.Request.Context(), authdomain.LoginRequest{
		Handle:     strings.TrimSpace(req.Handle),
		Credential: req.Credential,
		Origin: authdomain.Origin{
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		},
		PreviousToken: previous,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.sessions.Set(c, result.Token.RawToken, result.Token.ExpiresAt)
	c.JSON(http.StatusOK, loginResponse{
		Token:     result.Token.RawToken,
		ExpiresAt: result.Token.ExpiresAt,
		User:      result.User,
	})
}

// Logout is idempotent: unknown, expired and missing tokens all yield 204.
func (s *Server) Logout(c *gin.Context) {
	var req logoutRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, bindingError(err))
			return
		}
	}

	token := strings.TrimSpace(req.Token)
	if token == "" {
		token, _ = s.sessions.ReadToken(c)
	}
	if err := s.authSvc.DeleteSession(c.Request.Context(), token); err != nil {
		AbortWithError(c, err)
		return
	}

	s.sessions.Clear(c)
	c.Status(http.StatusNoContent)
}

func (s *Server) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	user, err := s.authSvc.Register(c.Request.Context(), authdomain.RegisterRequest{
		Username: strings.TrimSpace(req.Username),
		Email:    strings.TrimSpace(req.Email),
		FullName: strings.TrimSpace(req.FullName),
		Password: req.Password,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user})
}

func (s *Server) Me(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	user, err := s.authSvc.GetUser(c.Request.Context(), actor.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (s *Server) UpdateMe(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	user, err := s.authSvc.UpdateProfile(c.Request.Context(), actor.UserID, authdomain.ProfileUpdate{
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}
