package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	requestdomain "github.com/shiftbd/agenthub/internal/request/domain"
	voucherdomain "github.com/shiftbd/agenthub/internal/voucher/domain"
)

type createRequestBody struct {
	Kind           string         `json:"kind" binding:"required"`
	OwnerID        string         `json:"owner_id" binding:"required"`
	Payload        map[string]any `json:"payload"`
	TransactionRef string         `json:"transaction_ref"`
}

func (s *Server) CreateRequest(c *gin.Context) {
	var body createRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	record, err := s.requestSvc.Create(c.Request.Context(), requestdomain.CreateRequest{
		Kind:           body.Kind,
		OwnerID:        body.OwnerID,
		Payload:        body.Payload,
		TransactionRef: body.TransactionRef,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, record)
}

type changeStatusBody struct {
	Status string `json:"status" binding:"required"`
	Actor  string `json:"actor"`
}

func (s *Server) ChangeRequestStatus(c *gin.Context) {
	var body changeStatusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	record, err := s.requestSvc.ChangeStatus(c.Request.Context(), requestdomain.ChangeStatusRequest{
		Kind:   c.Param("kind"),
		ID:     c.Param("id"),
		Status: body.Status,
		Actor:  body.Actor,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

func (s *Server) GetRequest(c *gin.Context) {
	record, err := s.requestSvc.GetByID(c.Request.Context(), requestdomain.GetRequest{
		Kind: c.Param("kind"),
		ID:   c.Param("id"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

type listRequestsQuery struct {
	OwnerID   string `form:"owner_id" binding:"required"`
	Kind      string `form:"kind"`
	Status    string `form:"status"`
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

func (s *Server) ListRequestsByOwner(c *gin.Context) {
	var query listRequestsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.requestSvc.ListByOwner(c.Request.Context(), requestdomain.ListByOwnerRequest{
		OwnerID:   query.OwnerID,
		Kind:      query.Kind,
		Status:    query.Status,
		PageToken: query.PageToken,
		PageSize:  query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetVoucher(c *gin.Context) {
	voucher, err := s.voucherSvc.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, voucher)
}

func (s *Server) RedeemVoucher(c *gin.Context) {
	voucher, err := s.voucherSvc.Redeem(c.Request.Context(), voucherdomain.RedeemRequest{
		Code: c.Param("code"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, voucher)
}
