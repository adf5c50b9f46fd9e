package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"luckydraw/internal/services"
)

const (
	adminCookie = "admin_session"
	pidCookie   = "pid"
)

// knownErrors are the service errors whose code is safe to send to clients.
var knownErrors = []struct {
	err    error
	status int
}{
	{services.ErrInvalidState, http.StatusBadRequest},
	{services.ErrInvalidConfig, http.StatusBadRequest},
	{services.ErrInvalidChoice, http.StatusBadRequest},
	{services.ErrInvalidPID, http.StatusBadRequest},
	{services.ErrInvalidDeckSize, http.StatusBadRequest},
	{services.ErrNoPID, http.StatusBadRequest},
	{services.ErrActivityNotOpen, http.StatusForbidden},
	{services.ErrAlreadyParticipated, http.StatusConflict},
	{services.ErrConcurrentUpdate, http.StatusConflict},
	{services.ErrRoundNotFound, http.StatusNotFound},
	{services.ErrNotFound, http.StatusNotFound},
	{services.ErrAdminRequired, http.StatusUnauthorized},
	{services.ErrSessionExpired, http.StatusUnauthorized},
	{services.ErrInvalidPassword, http.StatusUnauthorized},
}

// statusFor maps err to its HTTP status and wire code. Anything unknown is a 500.
func statusFor(err error) (int, string) {
	for _, known := range knownErrors {
		if errors.Is(err, known.err) {
			return known.status, known.err.Error()
		}
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

// fail aborts the request with the JSON error body for err.
func fail(c *gin.Context, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(status, gin.H{"ok": false, "error": code})
}

func (h *HTTPHandler) setCookie(c *gin.Context, name, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, maxAge, "/", "", h.secureCookies, true)
}

func (h *HTTPHandler) clearCookie(c *gin.Context, name string) {
	h.setCookie(c, name, "", -1)
}

// readClientID returns the client identity from the X-Client-Id header, the
// cid query parameter or the cid body field, in that order.
func readClientID(c *gin.Context, bodyCID string) string {
	for _, candidate := range []string{c.GetHeader("X-Client-Id"), c.Query("cid"), bodyCID} {
		if cid := strings.TrimSpace(candidate); cid != "" {
			return cid
		}
	}
	return ""
}

// cookiePID returns the pid remembered in the pid cookie, or nil.
func cookiePID(c *gin.Context) *int {
	raw, err := c.Cookie(pidCookie)
	if err != nil {
		return nil
	}
	pid, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &pid
}
