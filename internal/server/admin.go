package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	activitydomain "github.com/smallbiznis/invoiceflow/internal/activity/domain"
	authdomain "github.com/smallbiznis/invoiceflow/internal/auth/domain"
	invoicedomain "github.com/smallbiznis/invoiceflow/internal/invoice/domain"
	"github.com/smallbiznis/invoiceflow/pkg/db/pagination"
)

type listUsersQuery struct {
	Limit  int `form:"limit" binding:"omitempty,gte=1,lte=250"`
	Offset int `form:"offset" binding:"omitempty,gte=0"`
}

type adminUpdateUserRequest struct {
	Email    *string `json:"email"`
	FullName *string `json:"full_name"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
	IsActive *bool   `json:"is_active"`
}

type adminListInvoicesQuery struct {
	pagination.Pagination
	Status  string `form:"status"`
	OwnerID string `form:"owner_id"`
}

type adminListActivityQuery struct {
	Limit  int    `form:"limit" binding:"omitempty,gte=1,lte=1000"`
	UserID string `form:"user_id"`
	Action string `form:"action"`
	Since  string `form:"since"`
}

func (s *Server) AdminListUsers(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var query listUsersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	users, err := s.authSvc.ListUsers(c.Request.Context(), actor, authdomain.ListUsersRequest{
		Limit:  query.Limit,
		Offset: query.Offset,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (s *Server) AdminUpdateUser(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req adminUpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	user, err := s.authSvc.AdminUpdateUser(c.Request.Context(), actor, id, authdomain.AdminUserUpdate{
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
		Role:     req.Role,
		IsActive: req.IsActive,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (s *Server) AdminDeleteUser(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := s.authSvc.DeleteUser(c.Request.Context(), actor, id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) AdminListInvoices(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var query adminListInvoicesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}
	status, err := parseStatusFilter(query.Status)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	ownerID, err := parseOptionalSnowflakeID(query.OwnerID)
	if err != nil {
		AbortWithError(c, newValidationError("owner_id", "invalid_owner_id", "invalid owner_id"))
		return
	}

	req := invoicedomain.ListInvoiceRequest{
		Pagination: query.Pagination,
		Status:     status,
	}
	if ownerID != nil {
		req.OwnerID = *ownerID
	}

	resp, err := s.invoiceSvc.ListAll(c.Request.Context(), actor, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) AdminListActivity(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var query adminListActivityQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}
	userID, err := parseOptionalSnowflakeID(query.UserID)
	if err != nil {
		AbortWithError(c, newValidationError("user_id", "invalid_user_id", "invalid user_id"))
		return
	}
	since, err := parseOptionalTime(query.Since)
	if err != nil {
		AbortWithError(c, newValidationError("since", "invalid_since", "invalid since"))
		return
	}

	req := activitydomain.ListRequest{
		Limit:  query.Limit,
		Action: strings.TrimSpace(query.Action),
		Since:  since,
	}
	if userID != nil {
		req.UserID = *userID
	}

	entries, err := s.activitySvc.List(c.Request.Context(), actor, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"activity": entries})
}

func (s *Server) AdminStats(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	stats, err := s.dashboardSvc.GetSystemStats(c.Request.Context(), actor)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats})
}
