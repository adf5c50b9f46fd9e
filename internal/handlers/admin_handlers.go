package handlers

import (
	"crypto/subtle"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"luckydraw/internal/models"
	"luckydraw/internal/services"
)

const adminExpiresAtKey = "adminExpiresAt"

// RequireAdmin rejects requests without a live admin session and slides the
// session cookie forward on every accepted request.
func (h *HTTPHandler) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(adminCookie)
		if err != nil || token == "" {
			fail(c, services.ErrAdminRequired)
			return
		}
		expiresAt, ok := h.sessions.ValidateAndRefresh(c.Request.Context(), token)
		if !ok {
			h.clearCookie(c, adminCookie)
			fail(c, services.ErrSessionExpired)
			return
		}
		h.setCookie(c, adminCookie, token, int(h.sessions.TTL().Seconds()))
		c.Set(adminExpiresAtKey, expiresAt)
	}
}

type loginRequest struct {
	Password string `json:"password"`
}

// Login checks the admin password and starts a session.
func (h *HTTPHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindOptionalJSON(c, &req, nil, "") {
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.adminPassword)) != 1 {
		logger.Warningf("admin login rejected from %s", c.ClientIP())
		fail(c, services.ErrInvalidPassword)
		return
	}

	token, expiresAt, err := h.sessions.Create(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	h.setCookie(c, adminCookie, token, int(h.sessions.TTL().Seconds()))
	logger.Infof("admin logged in from %s", c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"ok": true, "expiresAt": expiresAt.UnixMilli()})
}

// Logout ends the session named by the cookie, if any.
func (h *HTTPHandler) Logout(c *gin.Context) {
	token, _ := c.Cookie(adminCookie)
	if err := h.sessions.Destroy(c.Request.Context(), token); err != nil {
		logger.Warningf("logout: %v", err)
	}
	h.clearCookie(c, adminCookie)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Me reports the renewed session expiry.
func (h *HTTPHandler) Me(c *gin.Context) {
	expiresAt := c.GetTime(adminExpiresAtKey)
	c.JSON(http.StatusOK, gin.H{"ok": true, "expiresAt": expiresAt.UnixMilli()})
}

type setStateRequest struct {
	State string `json:"state" binding:"required,oneof=waiting open closed"`
}

var setStateMessages = bindMessages{
	"State": {
		"required": services.ErrInvalidState.Error(),
		"oneof":    services.ErrInvalidState.Error(),
	},
}

// SetState moves the activity to another state.
func (h *HTTPHandler) SetState(c *gin.Context) {
	var req setStateRequest
	if !bindJSON(c, &req, setStateMessages, services.ErrInvalidState.Error()) {
		return
	}
	state := models.ActivityState(req.State)
	if _, err := h.service.Activity.SetState(c.Request.Context(), state); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "state": state})
}

// participantItem is a participant decorated for the admin table.
type participantItem struct {
	*models.Participant
	ClientIDShort3 *string `json:"clientIdShort3"`
	Status         string  `json:"status"`
	JoinTime       string  `json:"joinTime"`
	DrawTime       string  `json:"drawTime,omitempty"`
	JoinedAgo      string  `json:"joinedAgo"`
}

const timeLayout = "2006-01-02 15:04:05"

func participantStatus(p *models.Participant) string {
	switch {
	case !p.Participated:
		return "未参与"
	case p.Won():
		return "已中奖"
	default:
		return "未中奖"
	}
}

// shortClientID returns the last three characters of clientID, left-padded
// with '0', or nil when there is no client id.
func shortClientID(clientID string) *string {
	if clientID == "" {
		return nil
	}
	runes := []rune(clientID)
	if len(runes) > 3 {
		runes = runes[len(runes)-3:]
	}
	short := strings.Repeat("0", 3-len(runes)) + string(runes)
	return &short
}

func decorate(p *models.Participant) participantItem {
	joined := time.UnixMilli(p.JoinedAt)
	item := participantItem{
		Participant:    p,
		ClientIDShort3: shortClientID(p.ClientID),
		Status:         participantStatus(p),
		JoinTime:       joined.Format(timeLayout),
		JoinedAgo:      humanize.Time(joined),
	}
	if p.DrawAt != nil {
		item.DrawTime = time.UnixMilli(*p.DrawAt).Format(timeLayout)
	}
	return item
}

// ListParticipants returns every participant with the activity summary.
func (h *HTTPHandler) ListParticipants(c *gin.Context) {
	ctx := c.Request.Context()
	participants, err := h.service.Participants.List(ctx)
	if err != nil {
		fail(c, err)
		return
	}
	items := make([]participantItem, len(participants))
	for i, p := range participants {
		items[i] = decorate(p)
	}
	stats := services.Stats(participants)
	c.JSON(http.StatusOK, gin.H{
		"total":  len(participants),
		"items":  items,
		"state":  h.service.Activity.GetState(ctx),
		"config": h.service.Activity.GetConfig(ctx),
		"stats": gin.H{
			"total":        stats.TotalParticipants,
			"participated": stats.Participated,
			"winners":      stats.Winners,
			"pending":      stats.TotalParticipants - stats.Participated,
		},
	})
}

// ExportParticipantsCSV streams the participant table as CSV.
func (h *HTTPHandler) ExportParticipantsCSV(c *gin.Context) {
	participants, err := h.service.Participants.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", "attachment;filename=participants.csv")

	// BOM so Excel reads the file as UTF-8
	c.Writer.Write([]byte("\xef\xbb\xbf"))

	w := csv.NewWriter(c.Writer)
	if err := w.Write([]string{"编号", "客户端", "状态", "加入时间", "抽奖时间"}); err != nil {
		logger.Errorf("Error writing CSV header: %v", err)
		return
	}
	for _, p := range participants {
		item := decorate(p)
		short := ""
		if item.ClientIDShort3 != nil {
			short = *item.ClientIDShort3
		}
		row := []string{strconv.Itoa(p.PID), short, item.Status, item.JoinTime, item.DrawTime}
		if err := w.Write(row); err != nil {
			logger.Errorf("Error writing CSV row: %v", err)
			return
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		logger.Errorf("Error flushing CSV writer: %v", err)
	}
}

// ResetParticipant clears the draw of the participant named by the pid path
// or query parameter.
func (h *HTTPHandler) ResetParticipant(c *gin.Context) {
	raw := c.Param("pid")
	if raw == "" {
		raw = c.Query("pid")
	}
	pid, err := strconv.Atoi(raw)
	if err != nil {
		fail(c, services.ErrInvalidPID)
		return
	}

	p, created, err := h.service.Participants.ResetOne(c.Request.Context(), pid)
	if err != nil {
		fail(c, err)
		return
	}
	message := fmt.Sprintf("已重置参与者 %d", p.PID)
	if created {
		message = fmt.Sprintf("已创建参与者 %d", p.PID)
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "pid": p.PID, "message": message})
}

// ResetAll wipes every participant and rewinds the pid counter.
func (h *HTTPHandler) ResetAll(c *gin.Context) {
	if err := h.service.Participants.ResetAll(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
