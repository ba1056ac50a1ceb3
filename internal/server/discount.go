package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	discountdomain "github.com/smallbiznis/backoffice/internal/discount/domain"
)

func (s *Server) ListDiscountRequests(c *gin.Context) {
	var req discountdomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	quoteID, ok := queryID(c, "quote_id")
	if !ok {
		return
	}
	req.QuoteID = quoteID

	resp, err := s.discountSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) CreateDiscountRequest(c *gin.Context) {
	var req discountdomain.CreateRequest
	if !bindJSON(c, &req) {
		return
	}

	request, err := s.discountSvc.Request(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": request})
}

func (s *Server) GetDiscountRequestByID(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	request, err := s.discountSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": request})
}

func (s *Server) ApproveDiscountRequest(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req discountdomain.ApproveRequest
	if !bindJSON(c, &req) {
		return
	}
	req.RequestID = id

	request, err := s.discountSvc.Approve(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": request})
}

func (s *Server) RejectDiscountRequest(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req discountdomain.RejectRequest
	if !bindJSON(c, &req) {
		return
	}
	req.RequestID = id

	request, err := s.discountSvc.Reject(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": request})
}
