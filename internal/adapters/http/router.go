package http

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/songroom/internal/adapters/signal"
	"github.com/dkeye/songroom/internal/app/orch"
	"github.com/dkeye/songroom/internal/config"
	"github.com/dkeye/songroom/internal/domain"
	"github.com/dkeye/songroom/internal/identity"
)

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, tokens *identity.Tokens) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: int(cfg.TokenTTL.Seconds()), HttpOnly: true})
	r.Use(sessions.Sessions("songroom", store))
	r.Use(IdentityMiddleware(tokens))

	r.Static(cfg.PublicUploadPath, cfg.UploadDir)

	h := &Handlers{Orch: o, Cfg: cfg, Tokens: tokens}
	ctl := signal.NewSignalWSController(o, signal.NewRoomRateLimiter(cfg.CommandRate, cfg.CommandWindow), signal.Options{
		PingPeriod:        cfg.PingPeriod,
		ReconcileInterval: cfg.ReconcileInterval,
		WriteTimeout:      cfg.WriteTimeout,
		ReadLimit:         cfg.ReadLimit,
		SendBuffer:        cfg.SubscriberBuffer,
	})

	log.Info().Str("module", "adapters.http").Str("uploads", cfg.UploadDir).Msg("router setup")

	api := r.Group("/api")
	api.POST("/session/guest", h.Guest)
	api.GET("/me", h.Me)

	api.GET("/rooms", h.ListRooms)
	api.POST("/rooms", h.CreateRoom)
	api.POST("/rooms/join", h.JoinRoom)

	room := api.Group("/rooms/:id")
	room.GET("", h.GetRoom)
	room.GET("/state", h.State)
	room.GET("/events", func(c *gin.Context) { h.Events(ctx, c) })
	room.GET("/ws", func(c *gin.Context) {
		ctl.HandleSignal(ctx, c, Actor(c), domain.RoomID(c.Param("id")))
	})
	room.POST("/songs", h.UploadSong)
	room.DELETE("/songs/:song_id", h.DeleteSong)
	room.POST("/playback/:cmd", h.Playback)
	room.PUT("/participants/me", h.Rename)

	return r
}
