package http

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/agentvoice/internal/adapters/gateway"
	"github.com/dkeye/agentvoice/internal/app"
	"github.com/dkeye/agentvoice/internal/app/orch"
	"github.com/dkeye/agentvoice/internal/config"
	"github.com/dkeye/agentvoice/internal/domain"
)

const clientTokenKey = "ct"

// ClientTokenMiddleware gives every browser a stable token kept in the
// signed session cookie. It only labels connections in logs.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := sessions.Default(c)
		token, _ := s.Get(clientTokenKey).(string)
		if token == "" {
			token = uuid.NewString()
			s.Set(clientTokenKey, token)
			if err := s.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("saving session")
			}
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// SessionResolver maps a caller pid on this host to its session.
type SessionResolver interface {
	Resolve(pid int) (domain.SessionName, bool)
}

// Deps are the components the HTTP surface drives. Sessions may be nil,
// in which case speech requests must name their session themselves.
type Deps struct {
	Orch     *orch.Orchestrator
	Gateway  *gateway.Gateway
	Speaker  *app.RoomSpeaker
	Router   *app.TTSRouter
	Sessions SessionResolver
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions("AgentVoiceSession", store))
	r.Use(ClientTokenMiddleware())

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
	}

	r.GET("/healthz", healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	h := &handlers{deps: deps}
	api := r.Group("/api")

	api.GET("/ws/:room", func(c *gin.Context) {
		deps.Gateway.HandleWS(ctx, c)
	})

	api.GET("/rooms", h.listRooms)
	api.GET("/rooms/:room/connections", h.connections)
	api.POST("/rooms/:room/unlock", h.unlock)
	api.GET("/rooms/:room/config", h.getConfig)
	api.PATCH("/rooms/:room/config", h.patchConfig)

	api.POST("/say/:room", h.say)
	api.POST("/local-tts/:room", h.localTTS)
	api.POST("/speak", h.speak)
	api.GET("/voices", h.voices)

	api.GET("/sessions", h.listSessions)
	api.POST("/sessions", h.createSession)
	api.DELETE("/sessions/:name", h.deleteSession)

	return r
}
