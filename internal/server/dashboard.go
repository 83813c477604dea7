package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	dashboarddomain "github.com/smallbiznis/invoiceflow/internal/dashboard/domain"
)

func (s *Server) Dashboard(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	stats, err := s.dashboardSvc.GetDashboardStats(ctx, actor, actor.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	recent, err := s.dashboardSvc.RecentInvoices(ctx, actor, actor.UserID, dashboarddomain.DefaultRecentLimit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats, "recent_invoices": recent})
}
