package server

import (
	"errors"
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/invoiceflow/internal/auth/domain"
	"github.com/smallbiznis/invoiceflow/internal/authorization"
	obscontext "github.com/smallbiznis/invoiceflow/internal/observability/context"
	"github.com/smallbiznis/invoiceflow/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	contextActorKey    = "actor"
	contextIdentityKey = "identity"
)

// AuthRequired resolves the bearer header or session cookie into an actor.
// Any failure to resolve is a 401; nothing about the cause is disclosed.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.sessions.ReadToken(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		identity, err := s.authSvc.ResolveSession(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, authdomain.ErrInvalidSession) {
				AbortWithError(c, ErrUnauthorized)
				return
			}
			AbortWithError(c, err)
			return
		}

		actor := identity.Actor()
		c.Set(contextActorKey, actor)
		c.Set(contextIdentityKey, identity)
		c.Request = c.Request.WithContext(obscontext.WithActor(c.Request.Context(), string(actor.Role), actor.UserID.String()))
		c.Next()
	}
}

// AdminRequired rejects non-admin actors with 403; the route itself is not secret.
func (s *Server) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFrom(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if err := s.guard.Check(actor, authorization.ActionAdmin, authorization.Resource{Object: authorization.ObjectSystem}); err != nil {
			AbortWithError(c, ErrForbidden)
			return
		}
		c.Next()
	}
}

// AuthRateLimit applies the per-IP token bucket of scope. Limiter errors
// fail open and are logged.
func (s *Server) AuthRateLimit(scope ratelimit.Scope) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.authLimiter.Enabled() {
			c.Next()
			return
		}

		result, err := s.authLimiter.Allow(c.Request.Context(), scope, c.ClientIP())
		if err != nil {
			s.log.Warn("rate limiter unavailable", zap.String("scope", string(scope)), zap.Error(err))
			c.Next()
			return
		}
		if result == nil || result.Allowed {
			c.Next()
			return
		}

		s.obsMetrics.RecordRateLimitDenied(c.Request.Context(), string(scope))
		if result.RetryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(result.RetryAfter.Seconds()))))
		}
		AbortWithError(c, ErrRateLimited)
	}
}

func actorFrom(c *gin.Context) (authorization.Actor, bool) {
	value, ok := c.Get(contextActorKey)
	if !ok {
		return authorization.Actor{}, false
	}
	actor, ok := value.(authorization.Actor)
	return actor, ok
}

// mustActor is for handlers behind AuthRequired.
func mustActor(c *gin.Context) (authorization.Actor, bool) {
	actor, ok := actorFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
	}
	return actor, ok
}
