package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/agentvoice/internal/app"
	"github.com/dkeye/agentvoice/internal/domain"
	"github.com/dkeye/agentvoice/internal/tts"
)

type handlers struct {
	deps Deps
}

// SpeechRequest is the body of the speech endpoints. PID lets a caller
// on this host have its session detected when Session is empty.
type SpeechRequest struct {
	Text    string `json:"text"`
	Voice   string `json:"voice,omitempty"`
	Session string `json:"session,omitempty"`
	PID     int    `json:"pid,omitempty"`
}

type ConnectionsResponse struct {
	HasConnections bool `json:"has_connections"`
}

type DecisionResponse struct {
	Path      domain.RoutePath `json:"path"`
	Attempted domain.RoutePath `json:"attempted"`
	Error     string           `json:"error,omitempty"`
}

type SessionRequest struct {
	Name    string `json:"name"`
	Machine string `json:"machine,omitempty"`
	Path    string `json:"path,omitempty"`
}

func healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func abortError(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func roomParam(c *gin.Context) (domain.RoomName, bool) {
	name, err := domain.ParseRoomName(c.Param("room"))
	if err != nil {
		abortError(c, http.StatusBadRequest, err)
		return "", false
	}
	return name, true
}

func bindSpeech(c *gin.Context) (SpeechRequest, bool) {
	var req SpeechRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return req, false
	}
	if strings.TrimSpace(req.Text) == "" {
		abortError(c, http.StatusBadRequest, tts.ErrEmptyText)
		return req, false
	}
	return req, true
}

// deliveryStatus maps speech delivery errors to HTTP codes.
func deliveryStatus(err error) int {
	switch {
	case errors.Is(err, app.ErrNoListeners):
		return http.StatusConflict
	case errors.Is(err, tts.ErrNoSynthesizer), errors.Is(err, tts.ErrNoPlayer):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func (h *handlers) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Orch.Rooms.List(c.Request.Context()))
}

func (h *handlers) connections(c *gin.Context) {
	room, ok := roomParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ConnectionsResponse{HasConnections: h.deps.Orch.Rooms.HasConnections(room)})
}

func (h *handlers) unlock(c *gin.Context) {
	room, ok := roomParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"released": h.deps.Orch.Mic.Release(room)})
}

func (h *handlers) getConfig(c *gin.Context) {
	room, ok := roomParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.deps.Orch.Rooms.Config(c.Request.Context(), room))
}

func (h *handlers) patchConfig(c *gin.Context) {
	room, ok := roomParam(c)
	if !ok {
		return
	}
	var patch domain.ConfigPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	if patch.Empty() {
		abortError(c, http.StatusBadRequest, errors.New("nothing to update"))
		return
	}
	cfg, err := h.deps.Orch.Rooms.UpdateConfig(c.Request.Context(), room, patch)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (h *handlers) say(c *gin.Context) {
	room, ok := roomParam(c)
	if !ok {
		return
	}
	req, ok := bindSpeech(c)
	if !ok {
		return
	}
	if err := h.deps.Speaker.Broadcast(c.Request.Context(), room, req.Text, req.Voice); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Str("room", string(room)).Msg("say failed")
		abortError(c, deliveryStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlers) localTTS(c *gin.Context) {
	room, ok := roomParam(c)
	if !ok {
		return
	}
	req, ok := bindSpeech(c)
	if !ok {
		return
	}
	if err := h.deps.Speaker.LocalSpeak(c.Request.Context(), room, req.Text, req.Voice); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Str("room", string(room)).Msg("local tts failed")
		abortError(c, deliveryStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// speak runs the full routing decision in this process.
func (h *handlers) speak(c *gin.Context) {
	req, ok := bindSpeech(c)
	if !ok {
		return
	}
	d := h.deps.Router.Speak(c.Request.Context(), req.Text, req.Voice, h.session(req))
	status := http.StatusOK
	if !d.Delivered() {
		status = http.StatusBadGateway
	}
	c.JSON(status, DecisionResponse{Path: d.Path, Attempted: d.Attempted, Error: d.Reason()})
}

func (h *handlers) session(req SpeechRequest) domain.SessionName {
	if req.Session != "" || req.PID <= 0 || h.deps.Sessions == nil {
		return domain.SessionName(req.Session)
	}
	name, ok := h.deps.Sessions.Resolve(req.PID)
	if !ok {
		return ""
	}
	log.Debug().Str("module", "adapters.http").Int("pid", req.PID).Str("session", string(name)).Msg("session detected")
	return name
}

func (h *handlers) voices(c *gin.Context) {
	voices, err := h.deps.Speaker.Voices(c.Request.Context())
	if err != nil {
		abortError(c, deliveryStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"voices": voices})
}

func (h *handlers) listSessions(c *gin.Context) {
	names, err := h.deps.Orch.Backend.ListSessions(c.Request.Context())
	if err != nil {
		abortError(c, http.StatusBadGateway, err)
		return
	}
	if names == nil {
		names = []domain.SessionName{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": names})
}

func (h *handlers) createSession(c *gin.Context) {
	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	room, err := domain.ParseRoomName(req.Name)
	if err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	ctx := c.Request.Context()
	name := domain.JoinSession(string(room), req.Machine)
	if h.deps.Orch.Backend.SessionExists(ctx, name) {
		abortError(c, http.StatusConflict, errors.New("session already exists"))
		return
	}
	if err := h.deps.Orch.Backend.CreateSession(ctx, name, req.Path); err != nil {
		abortError(c, http.StatusBadGateway, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": name})
}

func (h *handlers) deleteSession(c *gin.Context) {
	name := domain.SessionName(c.Param("name"))
	ctx := c.Request.Context()
	if !h.deps.Orch.Backend.SessionExists(ctx, name) {
		abortError(c, http.StatusNotFound, errors.New("no such session"))
		return
	}
	if err := h.deps.Orch.Backend.KillSession(ctx, name); err != nil {
		abortError(c, http.StatusBadGateway, err)
		return
	}
	c.Status(http.StatusNoContent)
}
