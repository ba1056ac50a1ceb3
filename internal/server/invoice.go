package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/backoffice/internal/actor"
	invoicedomain "github.com/smallbiznis/backoffice/internal/invoice/domain"
)

func (s *Server) ListInvoices(c *gin.Context) {
	var req invoicedomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	customerID, ok := queryID(c, "customer_id")
	if !ok {
		return
	}
	req.CustomerID = customerID

	if caller := requestActor(c); caller.Role == actor.RoleCustomer {
		req.CustomerID = caller.ID
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) CreateInvoice(c *gin.Context) {
	var req invoicedomain.StandaloneRequest
	if !bindJSON(c, &req) {
		return
	}

	invoice, err := s.invoiceSvc.GenerateStandalone(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": invoice})
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	invoice, err := s.invoiceSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if caller := requestActor(c); caller.Role == actor.RoleCustomer && caller.ID != invoice.CustomerID {
		AbortWithError(c, invoicedomain.ErrInvoiceNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) PayInvoice(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req invoicedomain.MarkPaidRequest
	if !bindJSON(c, &req) {
		return
	}
	req.InvoiceID = id

	invoice, err := s.invoiceSvc.MarkPaid(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoice})
}
