package http_api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/core-coin/go-core/v2/common"
	"github.com/gin-gonic/gin"

	"github.com/core-coin/adsponsor/internal/models"
	"github.com/core-coin/adsponsor/pkg/validation"
)

// InitializeRequest is the optional body of /pool/initialize.
type InitializeRequest struct {
	Admin string `json:"admin"`
}

// AmountRequest is the body of deposit and withdraw.
type AmountRequest struct {
	Amount uint64 `json:"amount"`
}

// FeeRequest is the body of the fee setters.
type FeeRequest struct {
	Fee uint64 `json:"fee"`
}

// CreateAdRequest represents the JSON body for ad creation
type CreateAdRequest struct {
	ID              string `json:"id"`
	URL             string `json:"url"`
	Content         string `json:"content"`
	RewardAmount    uint64 `json:"reward_amount"`
	DisplayDuration int64  `json:"display_duration"`
}

// InitiateRequest represents the JSON body for opening a request
type InitiateRequest struct {
	Recipient string `json:"recipient" binding:"required"`
	Amount    uint64 `json:"amount"`
	AdID      string `json:"ad_id"`
	Nonce     uint64 `json:"nonce"`
}

// SettleRequest carries the viewer's report
type SettleRequest struct {
	AdID         string `json:"ad_id"`
	ViewDuration int64  `json:"view_duration"`
}

// caller resolves the identity header or answers 401.
func (s *HTTPServer) caller(c *gin.Context) (common.Address, bool) {
	addr, err := validation.ParseAddress(c.GetHeader(CallerHeader))
	if err != nil || validation.IsZeroAddress(addr) {
		s.logger.Debug("Invalid caller header", "value", c.GetHeader(CallerHeader))
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"code":    models.ErrorCode(models.ErrUnauthorized),
			"error":   "missing or invalid " + CallerHeader + " header",
		})
		return common.Address{}, false
	}
	return addr, true
}

func (s *HTTPServer) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		s.logger.Debug("Invalid request body", "error", err)
		s.badRequest(c, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *HTTPServer) getPool(c *gin.Context) {
	stats, err := s.sponsor.Stats(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "pool": poolFromStats(stats)})
}

func (s *HTTPServer) initialize(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	var req InitializeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		s.badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	var admin common.Address
	if req.Admin != "" {
		parsed, err := validation.ParseAddress(req.Admin)
		if err != nil {
			s.badRequest(c, "Invalid admin address: "+err.Error())
			return
		}
		admin = parsed
	}

	state, err := s.sponsor.Initialize(c.Request.Context(), caller, admin)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "pool": poolFromState(state)})
}

func (s *HTTPServer) deposit(c *gin.Context) {
	s.poolAmount(c, s.sponsor.Deposit)
}

func (s *HTTPServer) withdraw(c *gin.Context) {
	s.poolAmount(c, s.sponsor.Withdraw)
}

func (s *HTTPServer) setBaseFee(c *gin.Context) {
	s.poolFee(c, s.sponsor.SetBaseFee)
}

func (s *HTTPServer) setFeePerAd(c *gin.Context) {
	s.poolFee(c, s.sponsor.SetFeePerAd)
}

type poolOp func(ctx context.Context, caller common.Address, value uint64) (*models.PoolState, error)

func (s *HTTPServer) poolAmount(c *gin.Context, op poolOp) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	var req AmountRequest
	if !s.bind(c, &req) {
		return
	}
	s.respondPool(c, op, caller, req.Amount)
}

func (s *HTTPServer) poolFee(c *gin.Context, op poolOp) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	var req FeeRequest
	if !s.bind(c, &req) {
		return
	}
	s.respondPool(c, op, caller, req.Fee)
}

func (s *HTTPServer) respondPool(c *gin.Context, op poolOp, caller common.Address, value uint64) {
	state, err := op(c.Request.Context(), caller, value)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "pool": poolFromState(state)})
}

func (s *HTTPServer) togglePause(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	state, err := s.sponsor.TogglePause(c.Request.Context(), caller)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "pool": poolFromState(state)})
}

// quoteFee returns the fee a request for ?amount= would lock in.
func (s *HTTPServer) quoteFee(c *gin.Context) {
	amount, err := strconv.ParseUint(c.Query("amount"), 10, 64)
	if err != nil {
		s.badRequest(c, "amount must be an unsigned integer")
		return
	}
	fee, err := s.sponsor.QuoteFee(c.Request.Context(), amount)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "amount": amount, "fee": fee})
}

func (s *HTTPServer) createAd(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	var req CreateAdRequest
	if !s.bind(c, &req) {
		return
	}
	ad, err := s.sponsor.CreateAd(c.Request.Context(), caller, models.CreateAdParams{
		ID:              req.ID,
		URL:             req.URL,
		Content:         req.Content,
		RewardAmount:    req.RewardAmount,
		DisplayDuration: req.DisplayDuration,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "ad": ad})
}

func (s *HTTPServer) toggleAd(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	ad, err := s.sponsor.ToggleAd(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "ad": ad})
}

func (s *HTTPServer) getAd(c *gin.Context) {
	ad, err := s.sponsor.GetAd(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "ad": ad})
}

// listAds lists ads, only active ones with ?active=true.
func (s *HTTPServer) listAds(c *gin.Context) {
	activeOnly := false
	if raw := c.Query("active"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			s.badRequest(c, "active must be a boolean")
			return
		}
		activeOnly = parsed
	}
	ads, err := s.sponsor.ListAds(c.Request.Context(), activeOnly)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "ads": ads})
}

func (s *HTTPServer) initiate(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	var req InitiateRequest
	if !s.bind(c, &req) {
		return
	}
	recipient, err := validation.ParseAddress(req.Recipient)
	if err != nil {
		s.writeError(c, models.ErrInvalidRecipient)
		return
	}

	request, err := s.sponsor.Initiate(c.Request.Context(), caller, models.InitiateParams{
		Recipient:    recipient,
		Amount:       req.Amount,
		SelectedAdID: req.AdID,
		Nonce:        req.Nonce,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	// The ad content is returned so the client can render it right away.
	ad, err := s.sponsor.GetAd(c.Request.Context(), request.SelectedAdID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "request": requestResponse(request), "ad": ad})
}

func (s *HTTPServer) getRequest(c *gin.Context) {
	request, err := s.sponsor.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "request": requestResponse(request)})
}

// listRequests lists the requests of ?user=.
func (s *HTTPServer) listRequests(c *gin.Context) {
	user, err := validation.ParseAddress(c.Query("user"))
	if err != nil {
		s.badRequest(c, "invalid user address: "+err.Error())
		return
	}
	requests, err := s.sponsor.ListRequests(c.Request.Context(), user)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "requests": requestResponses(requests)})
}

func (s *HTTPServer) settle(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	var req SettleRequest
	if !s.bind(c, &req) {
		return
	}
	request, err := s.sponsor.Settle(c.Request.Context(), caller, models.SettleParams{
		RequestID:            c.Param("id"),
		AdID:                 req.AdID,
		ReportedViewDuration: req.ViewDuration,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "request": requestResponse(request)})
}

func (s *HTTPServer) cancel(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	request, err := s.sponsor.Cancel(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "request": requestResponse(request)})
}
