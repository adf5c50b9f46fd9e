package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"luckydraw/internal/models"
	"luckydraw/internal/services"
)

// Options carries the HTTP-level settings of the handlers.
type Options struct {
	AdminPassword   string
	PIDCookieMaxAge time.Duration
	SecureCookies   bool
	Env             string
}

// HTTPHandler holds the dependencies for the HTTP handlers, like the lottery service.
type HTTPHandler struct {
	service         *services.LotteryService
	sessions        *services.SessionService
	adminPassword   string
	pidCookieMaxAge int
	secureCookies   bool
	env             string
}

// NewHTTPHandler creates a new HTTPHandler.
func NewHTTPHandler(service *services.LotteryService, sessions *services.SessionService, opts Options) *HTTPHandler {
	maxAge := opts.PIDCookieMaxAge
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}
	return &HTTPHandler{
		service:         service,
		sessions:        sessions,
		adminPassword:   opts.AdminPassword,
		pidCookieMaxAge: int(maxAge.Seconds()),
		secureCookies:   opts.SecureCookies,
		env:             opts.Env,
	}
}

// RegisterRoutes registers all the application routes.
func (h *HTTPHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/api/health", h.Health)

	lottery := router.Group("/api/lottery")
	lottery.POST("/join", h.Join)
	lottery.POST("/draw", h.Draw)
	lottery.POST("/deal", h.Deal)
	lottery.POST("/pick", h.Pick)
	lottery.GET("/status", h.Status)
	lottery.GET("/config", h.GetConfig)
	lottery.POST("/config", h.RequireAdmin(), h.SetConfig)

	admin := router.Group("/api/admin")
	admin.POST("/login", h.Login)
	admin.POST("/logout", h.Logout)

	authed := admin.Group("", h.RequireAdmin())
	authed.GET("/me", h.Me)
	authed.POST("/set-state", h.SetState)
	authed.GET("/participants", h.ListParticipants)
	authed.GET("/participants.csv", h.ExportParticipantsCSV)
	authed.POST("/reset", h.ResetParticipant)
	authed.POST("/reset/:pid", h.ResetParticipant)
	authed.POST("/reset-all", h.ResetAll)
	authed.GET("/config", h.GetConfig)
	authed.POST("/config", h.SetConfig)

	// Action-style endpoints: /api/lottery?action=join, /api/admin?action=me.
	router.Any("/api/lottery", dispatch(map[action][]gin.HandlerFunc{
		{http.MethodPost, "join"}:   {h.Join},
		{http.MethodPost, "draw"}:   {h.Draw},
		{http.MethodPost, "deal"}:   {h.Deal},
		{http.MethodPost, "pick"}:   {h.Pick},
		{http.MethodGet, "status"}:  {h.Status},
		{http.MethodGet, "config"}:  {h.GetConfig},
		{http.MethodPost, "config"}: {h.RequireAdmin(), h.SetConfig},
	}))
	router.Any("/api/admin", dispatch(map[action][]gin.HandlerFunc{
		{http.MethodPost, "login"}:       {h.Login},
		{http.MethodPost, "logout"}:      {h.Logout},
		{http.MethodGet, "me"}:           {h.RequireAdmin(), h.Me},
		{http.MethodPost, "set-state"}:   {h.RequireAdmin(), h.SetState},
		{http.MethodGet, "participants"}: {h.RequireAdmin(), h.ListParticipants},
		{http.MethodPost, "reset"}:       {h.RequireAdmin(), h.ResetParticipant},
		{http.MethodPost, "reset-all"}:   {h.RequireAdmin(), h.ResetAll},
		{http.MethodGet, "config"}:       {h.RequireAdmin(), h.GetConfig},
		{http.MethodPost, "config"}:      {h.RequireAdmin(), h.SetConfig},
	}))
}

type action struct {
	method string
	name   string
}

// dispatch runs the handler chain registered for the request method and the
// action query parameter.
func dispatch(routes map[action][]gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Query("action")
		chain, ok := routes[action{c.Request.Method, name}]
		if !ok {
			for a := range routes {
				if a.name == name {
					c.AbortWithStatusJSON(http.StatusMethodNotAllowed, gin.H{"ok": false, "error": "METHOD_NOT_ALLOWED"})
					return
				}
			}
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"ok": false, "error": "UNKNOWN_ACTION"})
			return
		}
		for _, handler := range chain {
			handler(c)
			if c.IsAborted() {
				return
			}
		}
	}
}

// Health reports liveness.
func (h *HTTPHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"ts":      time.Now().UnixMilli(),
		"env":     h.env,
		"message": "Server is healthy",
	})
}

type clientRequest struct {
	CID      string `json:"cid"`
	ClientID string `json:"clientId"`
}

func (r clientRequest) bodyCID() string {
	if r.CID != "" {
		return r.CID
	}
	return r.ClientID
}

// Join registers the client, or returns its existing participant.
func (h *HTTPHandler) Join(c *gin.Context) {
	var req clientRequest
	if !bindOptionalJSON(c, &req, nil, "") {
		return
	}
	clientID := readClientID(c, req.bodyCID())

	p, err := h.service.Participants.Join(c.Request.Context(), clientID, cookiePID(c))
	if err != nil {
		fail(c, err)
		return
	}
	h.setCookie(c, pidCookie, strconv.Itoa(p.PID), h.pidCookieMaxAge)
	c.JSON(http.StatusOK, gin.H{
		"pid":          p.PID,
		"participated": p.Participated,
		"win":          p.Won(),
	})
}

type drawRequest struct {
	clientRequest
	Choice *int `json:"choice"`
	Pick   *int `json:"pick"`
}

// Draw performs the participant's single draw.
func (h *HTTPHandler) Draw(c *gin.Context) {
	var req drawRequest
	if !bindOptionalJSON(c, &req, nil, services.ErrInvalidChoice.Error()) {
		return
	}
	choice := 0
	if req.Choice != nil {
		choice = *req.Choice
	} else if req.Pick != nil {
		choice = *req.Pick
	}

	ctx := c.Request.Context()
	result, err := h.service.Draw(ctx, services.DrawRequest{
		ClientID:  readClientID(c, req.bodyCID()),
		CookiePID: cookiePID(c),
		Choice:    choice,
	})
	var already *services.AlreadyParticipatedError
	switch {
	case errors.As(err, &already):
		c.JSON(http.StatusConflict, gin.H{
			"ok":    false,
			"error": services.ErrAlreadyParticipated.Error(),
			"pid":   already.PID,
			"win":   already.Win,
		})
		return
	case errors.Is(err, services.ErrActivityNotOpen):
		c.JSON(http.StatusForbidden, gin.H{
			"ok":    false,
			"error": services.ErrActivityNotOpen.Error(),
			"state": h.service.Activity.GetState(ctx),
		})
		return
	case err != nil:
		fail(c, err)
		return
	}

	h.setCookie(c, pidCookie, strconv.Itoa(result.PID), h.pidCookieMaxAge)

	label := "白板"
	if result.Win {
		label = "红中"
	}
	var winIndex *int
	if result.Win {
		winIndex = &result.Choice
	} else if idx := services.WinIndex(result.Faces); idx >= 0 {
		winIndex = &idx
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":       true,
		"pid":      result.PID,
		"win":      result.Win,
		"isWinner": result.Win,
		"label":    label,
		"deck":     deckNames(result.Faces),
		"winIndex": winIndex,
	})
}

func deckNames(faces []models.Face) []string {
	names := make([]string, len(faces))
	for i, f := range faces {
		if f == models.FaceWin {
			names[i] = "hongzhong"
		} else {
			names[i] = "baiban"
		}
	}
	return names
}

type dealRequest struct {
	Size *int `json:"size" binding:"omitempty,oneof=3 9"`
}

var dealMessages = bindMessages{
	"Size": {"oneof": services.ErrInvalidDeckSize.Error()},
}

// Deal stores a single-use round and returns its faces.
func (h *HTTPHandler) Deal(c *gin.Context) {
	var req dealRequest
	if !bindOptionalJSON(c, &req, dealMessages, services.ErrInvalidDeckSize.Error()) {
		return
	}
	size := services.DeckSize
	if req.Size != nil {
		size = *req.Size
	}
	roundID, faces, err := h.service.Deal(c.Request.Context(), size)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roundId": roundID, "faces": faces})
}

type pickRequest struct {
	RoundID string `json:"roundId"`
	Index   int    `json:"index"`
}

// Pick redeems a dealt round.
func (h *HTTPHandler) Pick(c *gin.Context) {
	var req pickRequest
	if !bindOptionalJSON(c, &req, nil, "") {
		return
	}
	face, faces, err := h.service.Rounds.Pick(c.Request.Context(), req.RoundID, req.Index)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"win":   face == models.FaceWin,
		"face":  face,
		"faces": faces,
	})
}

// Status reports the public activity status.
func (h *HTTPHandler) Status(c *gin.Context) {
	state, cfg, stats, err := h.service.Status(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"open":         state == models.StateOpen,
		"state":        state,
		"redCountMode": cfg.RedCountMode,
		"config":       cfg,
		"stats":        stats,
	})
}

// GetConfig returns the draw configuration.
func (h *HTTPHandler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Activity.GetConfig(c.Request.Context()))
}

type configRequest struct {
	RedCountMode *int `json:"redCountMode" binding:"required,min=0,max=3"`
}

var configMessages = bindMessages{
	"RedCountMode": {
		"required": services.ErrInvalidConfig.Error(),
		"min":      services.ErrInvalidConfig.Error(),
		"max":      services.ErrInvalidConfig.Error(),
	},
}

// SetConfig changes the number of winning faces.
func (h *HTTPHandler) SetConfig(c *gin.Context) {
	var req configRequest
	if !bindJSON(c, &req, configMessages, services.ErrInvalidConfig.Error()) {
		return
	}
	cfg := models.ActivityConfig{RedCountMode: *req.RedCountMode}
	if _, err := h.service.Activity.SetConfig(c.Request.Context(), cfg); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "redCountMode": cfg.RedCountMode})
}
