package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	plandomain "github.com/smallbiznis/backoffice/internal/plan/domain"
)

func (s *Server) ListPlans(c *gin.Context) {
	var req plandomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.planSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) CreatePlan(c *gin.Context) {
	var req plandomain.CreateRequest
	if !bindJSON(c, &req) {
		return
	}

	plan, err := s.planSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": plan})
}

func (s *Server) GetPlanByID(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	plan, err := s.planSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": plan})
}

func (s *Server) RetirePlan(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	plan, err := s.planSvc.Retire(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": plan})
}
