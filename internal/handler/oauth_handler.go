package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/identity-gateway/internal/dto"
	"github.com/prperemyshlev/identity-gateway/internal/service"
	"go.uber.org/zap"
)

// Frontend routes that receive OAuth results
const (
	googleCallbackPath      = "/auth/callback"
	ringCentralCallbackPath = "/settings"
)

// OAuthHandler handles the browser redirect flows for Google sign-in and the
// RingCentral integration. Callback failures always end in a redirect.
type OAuthHandler struct {
	authService service.AuthService
	broker      service.IntegrationBroker
	frontendURL string
	logger      *zap.Logger
}

// NewOAuthHandler creates a new OAuth handler
func NewOAuthHandler(authService service.AuthService, broker service.IntegrationBroker, frontendURL string, logger *zap.Logger) *OAuthHandler {
	return &OAuthHandler{
		authService: authService,
		broker:      broker,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		logger:      logger,
	}
}

// GoogleLogin redirects to the Google consent screen
// @Summary Start Google sign-in
// @Tags oauth
// @Success 302
// @Failure 503 {object} dto.ErrorResponse
// @Router /auth/google [get]
func (h *OAuthHandler) GoogleLogin(c *gin.Context) {
	authURL, err := h.authService.GoogleAuthURL()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Redirect(http.StatusFound, authURL)
}

// GoogleCallback completes Google sign-in and hands the session to the frontend
// @Summary Google OAuth callback
// @Tags oauth
// @Param code query string false "Authorization code"
// @Param state query string false "State token"
// @Success 302
// @Router /auth/google/callback [get]
func (h *OAuthHandler) GoogleCallback(c *gin.Context) {
	if providerErr := c.Query("error"); providerErr != "" {
		h.logger.Info("Google sign-in declined", zap.String("error", providerErr))
		h.redirect(c, googleCallbackPath, url.Values{"error": {service.RedirectGoogleAuthFailed}})
		return
	}

	response, err := h.authService.GoogleCallback(c.Request.Context(), c.Query("code"), c.Query("state"))
	if err != nil {
		h.redirectError(c, googleCallbackPath, service.RedirectGoogleAuthFailed, err)
		return
	}

	user, err := json.Marshal(response.User)
	if err != nil {
		h.redirectError(c, googleCallbackPath, service.RedirectGoogleAuthFailed, err)
		return
	}

	h.redirect(c, googleCallbackPath, url.Values{
		"token": {response.Token},
		"user":  {string(user)},
	})
}

// ConnectRingCentral returns the RingCentral consent URL for the caller
// @Summary Start the RingCentral connection
// @Tags integrations
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.AuthURLResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /auth/ringcentral [post]
func (h *OAuthHandler) ConnectRingCentral(c *gin.Context) {
	identity, ok := mustIdentity(c)
	if !ok {
		return
	}

	authURL, err := h.broker.AuthorizationURL(identity.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.AuthURLResponse{AuthURL: authURL})
}

// RingCentralCallback stores the tokens and sends the browser back to the frontend
// @Summary RingCentral OAuth callback
// @Tags integrations
// @Param code query string false "Authorization code"
// @Param state query string false "State token"
// @Success 302
// @Router /auth/ringcentral/callback [get]
func (h *OAuthHandler) RingCentralCallback(c *gin.Context) {
	if providerErr := c.Query("error"); providerErr != "" {
		h.logger.Info("RingCentral authorization declined", zap.String("error", providerErr))
		h.redirect(c, ringCentralCallbackPath, url.Values{"error": {service.RedirectRingCentralFailed}})
		return
	}

	if _, err := h.broker.CompleteAuthorization(c.Request.Context(), c.Query("code"), c.Query("state")); err != nil {
		h.redirectError(c, ringCentralCallbackPath, service.RedirectRingCentralFailed, err)
		return
	}

	h.redirect(c, ringCentralCallbackPath, url.Values{"ringcentral": {"connected"}})
}

// RingCentralStatus reports whether the caller has a usable RingCentral token
// @Summary RingCentral connection status
// @Tags integrations
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.RingCentralStatusResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/ringcentral/status [get]
func (h *OAuthHandler) RingCentralStatus(c *gin.Context) {
	identity, ok := mustIdentity(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, dto.RingCentralStatusResponse{
		Connected: h.broker.IsConnected(c.Request.Context(), identity.UserID),
	})
}

// DisconnectRingCentral revokes and forgets the caller's RingCentral tokens
// @Summary Disconnect RingCentral
// @Tags integrations
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.SuccessResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/ringcentral [delete]
func (h *OAuthHandler) DisconnectRingCentral(c *gin.Context) {
	identity, ok := mustIdentity(c)
	if !ok {
		return
	}

	if err := h.broker.Disconnect(c.Request.Context(), identity.UserID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "RingCentral disconnected"})
}

func (h *OAuthHandler) redirectError(c *gin.Context, path, fallback string, err error) {
	code := fallback
	var redirectErr *service.RedirectError
	if errors.As(err, &redirectErr) {
		code = redirectErr.Code
	}

	h.logger.Warn("OAuth callback failed",
		zap.String("path", c.FullPath()),
		zap.String("code", code),
		zap.Error(err),
	)
	h.redirect(c, path, url.Values{"error": {code}})
}

func (h *OAuthHandler) redirect(c *gin.Context, path string, query url.Values) {
	c.Redirect(http.StatusFound, h.frontendURL+path+"?"+query.Encode())
}
