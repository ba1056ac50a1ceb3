package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/backoffice/internal/actor"
	discountdomain "github.com/smallbiznis/backoffice/internal/discount/domain"
	quotedomain "github.com/smallbiznis/backoffice/internal/quote/domain"
)

func (s *Server) ListQuotes(c *gin.Context) {
	var req quotedomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	customerID, ok := queryID(c, "customer_id")
	if !ok {
		return
	}
	req.CustomerID = customerID

	// Customers only ever see their own quotes.
	if caller := requestActor(c); caller.Role == actor.RoleCustomer {
		req.CustomerID = caller.ID
	}

	resp, err := s.quoteSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) CreateQuote(c *gin.Context) {
	var req quotedomain.CreateRequest
	if !bindJSON(c, &req) {
		return
	}

	quote, err := s.quoteSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": quote})
}

func (s *Server) GetQuoteByID(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	quote, err := s.quoteSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if caller := requestActor(c); caller.Role == actor.RoleCustomer && caller.ID != quote.CustomerID {
		AbortWithError(c, quotedomain.ErrNotQuoteOwner)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": quote})
}

func (s *Server) AcceptQuote(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req quotedomain.DecisionRequest
	if !bindJSON(c, &req) {
		return
	}
	req.QuoteID = id

	result, err := s.quoteSvc.Accept(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) RejectQuote(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req quotedomain.DecisionRequest
	if !bindJSON(c, &req) {
		return
	}
	req.QuoteID = id

	quote, err := s.quoteSvc.Reject(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": quote})
}

// InvoiceQuote returns the quote's invoice, generating it on the first call.
func (s *Server) InvoiceQuote(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	invoice, err := s.quoteSvc.ToInvoice(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) ListQuoteDiscountRequests(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req discountdomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.QuoteID = id

	resp, err := s.discountSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
