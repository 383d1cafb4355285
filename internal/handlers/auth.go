package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/jcob-sikorski/mech-mashup/internal/apierror"
	"github.com/jcob-sikorski/mech-mashup/internal/auth"
	"github.com/jcob-sikorski/mech-mashup/internal/metrics"
	"github.com/jcob-sikorski/mech-mashup/internal/services"
	"github.com/jcob-sikorski/mech-mashup/pkg/utils"
)

// AuthHandler serves the token endpoints and registration.
type AuthHandler struct {
	authService services.AuthService
	metrics     *metrics.Metrics
}

// NewAuthHandler creates a new AuthHandler. m may be nil.
func NewAuthHandler(authService services.AuthService, m *metrics.Metrics) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		metrics:     m,
	}
}

// Register handles account registration.
func (h *AuthHandler) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendAPIError(c, bindError(err))
		return
	}

	account, err := h.authService.RegisterAccount(c.Request.Context(), req)
	h.metrics.ObserveTokenEvent(metrics.EventRegister, err)
	if err != nil {
		utils.SendAPIError(c, err)
		return
	}

	c.JSON(http.StatusCreated, account)
}

// ObtainToken exchanges credentials for an access/refresh pair.
func (h *AuthHandler) ObtainToken(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendAPIError(c, bindError(err))
		return
	}

	pair, err := h.authService.Issue(c.Request.Context(), req.Username, req.Password)
	h.metrics.ObserveTokenEvent(metrics.EventIssue, err)
	if err != nil {
		logrus.WithField("client_ip", c.ClientIP()).Info("Token request rejected")
		utils.SendAPIError(c, err)
		return
	}

	c.JSON(http.StatusOK, auth.TokenResponse{Access: pair.Access, Refresh: pair.Refresh})
}

// RefreshToken mints a new access token. The response carries a new refresh
// token only when rotation is on.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req auth.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendAPIError(c, bindError(err))
		return
	}

	pair, err := h.authService.Refresh(c.Request.Context(), req.Refresh)
	h.metrics.ObserveTokenEvent(metrics.EventRefresh, err)
	if err != nil {
		utils.SendAPIError(c, err)
		return
	}

	c.JSON(http.StatusOK, auth.TokenResponse{Access: pair.Access, Refresh: pair.Refresh})
}

// VerifyToken answers 200 with an empty object for any valid token.
func (h *AuthHandler) VerifyToken(c *gin.Context) {
	var req auth.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendAPIError(c, bindError(err))
		return
	}

	err := h.authService.VerifyAny(c.Request.Context(), req.Token)
	h.metrics.ObserveTokenEvent(metrics.EventVerify, err)
	if err != nil {
		utils.SendAPIError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{})
}

// BlacklistToken revokes a refresh token (logout). Only routed when the
// blacklist is enabled.
func (h *AuthHandler) BlacklistToken(c *gin.Context) {
	var req auth.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendAPIError(c, bindError(err))
		return
	}

	err := h.authService.Blacklist(c.Request.Context(), req.Refresh)
	h.metrics.ObserveTokenEvent(metrics.EventBlacklist, err)
	if err != nil {
		utils.SendAPIError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{})
}

// bindError turns a ShouldBindJSON failure into a field-level validation
// error, or a parse error when the body is not valid JSON for the target.
func bindError(err error) error {
	if fields := utils.ValidationMessages(err); fields != nil {
		return apierror.Validation(fields)
	}
	return apierror.ParseError(err)
}
