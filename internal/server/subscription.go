package server

import (
	"net/http"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/backoffice/internal/actor"
	subscriptiondomain "github.com/smallbiznis/backoffice/internal/subscription/domain"
	tokenbalancedomain "github.com/smallbiznis/backoffice/internal/tokenbalance/domain"
)

func (s *Server) ActivateSubscription(c *gin.Context) {
	var req subscriptiondomain.ActivateRequest
	if !bindJSON(c, &req) {
		return
	}

	subscription, err := s.subscriptionSvc.Activate(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": subscription})
}

func (s *Server) GetSubscriptionByID(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	subscription, ok := s.visibleSubscription(c, id)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": subscription})
}

// visibleSubscription loads a subscription the caller may see. Another
// customer's subscription reads as not found.
func (s *Server) visibleSubscription(c *gin.Context, id snowflake.ID) (*subscriptiondomain.Subscription, bool) {
	subscription, err := s.subscriptionSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return nil, false
	}
	if caller := requestActor(c); caller.Role == actor.RoleCustomer && caller.ID != subscription.CustomerID {
		AbortWithError(c, subscriptiondomain.ErrSubscriptionNotFound)
		return nil, false
	}
	return subscription, true
}

func (s *Server) GetActiveSubscription(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if caller := requestActor(c); caller.Role == actor.RoleCustomer && caller.ID != id {
		AbortWithError(c, subscriptiondomain.ErrSubscriptionNotFound)
		return
	}

	subscription, err := s.subscriptionSvc.GetActiveByCustomer(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": subscription})
}

func (s *Server) UpdateSubscription(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req subscriptiondomain.SetAutoRenewRequest
	if !bindJSON(c, &req) {
		return
	}
	req.SubscriptionID = id

	subscription, err := s.subscriptionSvc.SetAutoRenew(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": subscription})
}

func (s *Server) RenewSubscription(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	subscription, err := s.subscriptionSvc.Renew(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": subscription})
}

func (s *Server) GetTokenBalance(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if _, ok := s.visibleSubscription(c, id); !ok {
		return
	}

	balance, err := s.tokenSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": balance})
}

func (s *Server) ListTokenHistory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
			return
		}
		limit = parsed
	}
	if _, ok := s.visibleSubscription(c, id); !ok {
		return
	}

	entries, err := s.tokenSvc.History(c.Request.Context(), id, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": entries})
}

func (s *Server) ConsumeTokens(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req tokenbalancedomain.ConsumeRequest
	if !bindJSON(c, &req) {
		return
	}
	req.SubscriptionID = id

	balance, err := s.tokenSvc.Consume(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": balance})
}
