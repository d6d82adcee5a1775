package http

import (
	"context"
	"errors"
	"io"
	nethttp "net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/songroom/internal/adapters"
	"github.com/dkeye/songroom/internal/app/orch"
	"github.com/dkeye/songroom/internal/config"
	"github.com/dkeye/songroom/internal/domain"
	"github.com/dkeye/songroom/internal/identity"
)

// multipart framing allowance on top of the file size limit
const formOverhead = 1 << 20

type Handlers struct {
	Orch   *orch.Orchestrator
	Cfg    *config.Config
	Tokens *identity.Tokens
}

type createRoomRequest struct {
	Name            string `json:"name" binding:"required,max=50"`
	Secret          string `json:"secret" binding:"required,min=4"`
	DisplayName     string `json:"display_name" binding:"omitempty,max=30"`
	MaxSongsPerUser int    `json:"max_songs_per_user" binding:"omitempty,min=1,max=1000"`
	SongsPerRound   int    `json:"songs_per_round" binding:"omitempty,min=1,max=1000"`
}

type joinRoomRequest struct {
	Code        string `json:"code" binding:"required,len=6"`
	Secret      string `json:"secret" binding:"required"`
	DisplayName string `json:"display_name" binding:"omitempty,max=30"`
}

type renameRequest struct {
	DisplayName string `json:"display_name" binding:"required,max=30"`
}

type playbackRequest struct {
	SongID  domain.SongID `json:"song_id"`
	Elapsed float64       `json:"elapsed"`
}

func fail(c *gin.Context, err error) {
	status, code := adapters.Classify(err)
	ev := log.Info()
	if status >= nethttp.StatusInternalServerError {
		ev = log.Error()
	}
	ev.Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Str("user_id", string(Actor(c))).Int("status", status).Msg("request failed")
	c.AbortWithStatusJSON(status, gin.H{"error": code})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(nethttp.StatusBadRequest, gin.H{"error": "invalid_input", "detail": err.Error()})
}

// Guest hands out an identity to a caller that has none yet.
func (h *Handlers) Guest(c *gin.Context) {
	uid := Actor(c)
	if uid == "" {
		uid = domain.UserID(uuid.NewString())
		s := sessions.Default(c)
		s.Set(sessionUserKey, string(uid))
		if err := s.Save(); err != nil {
			fail(c, err)
			return
		}
		log.Info().Str("module", "adapters.http").Str("user_id", string(uid)).Msg("guest identity issued")
	}
	token, err := h.Tokens.Issue(uid)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, gin.H{"user_id": uid, "token": token})
}

func (h *Handlers) Me(c *gin.Context) {
	uid := Actor(c)
	if uid == "" {
		fail(c, domain.ErrUnauthenticated)
		return
	}
	c.JSON(nethttp.StatusOK, gin.H{"user_id": uid})
}

// ListRooms is the caller's own directory: rooms they created or joined.
func (h *Handlers) ListRooms(c *gin.Context) {
	rooms, err := h.Orch.ListRooms(Actor(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, gin.H{"rooms": rooms})
}

func (h *Handlers) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	spec := domain.RoomSpec{
		Name:            req.Name,
		Secret:          req.Secret,
		MaxSongsPerUser: req.MaxSongsPerUser,
		SongsPerRound:   req.SongsPerRound,
	}
	if spec.MaxSongsPerUser == 0 {
		spec.MaxSongsPerUser = h.Cfg.DefaultMaxSongsPerUser
	}
	if spec.SongsPerRound == 0 {
		spec.SongsPerRound = h.Cfg.DefaultSongsPerRound
	}
	snap, err := h.Orch.CreateRoom(c.Request.Context(), Actor(c), spec, req.DisplayName)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(nethttp.StatusCreated, snap)
}

func (h *Handlers) JoinRoom(c *gin.Context) {
	var req joinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	snap, err := h.Orch.JoinRoom(c.Request.Context(), Actor(c), req.Code, req.Secret, req.DisplayName)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, snap)
}

func (h *Handlers) GetRoom(c *gin.Context) {
	snap, err := h.Orch.Snapshot(Actor(c), domain.RoomID(c.Param("id")))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, gin.H{"room": snap.Room, "participants": snap.Participants})
}

// State is the reconciliation pull: the whole room at one version.
func (h *Handlers) State(c *gin.Context) {
	snap, err := h.Orch.Snapshot(Actor(c), domain.RoomID(c.Param("id")))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, snap)
}

func (h *Handlers) UploadSong(c *gin.Context) {
	c.Request.Body = nethttp.MaxBytesReader(c.Writer, c.Request.Body, h.Cfg.MaxUploadBytes+formOverhead)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooBig *nethttp.MaxBytesError
		if errors.As(err, &tooBig) {
			c.AbortWithStatusJSON(nethttp.StatusRequestEntityTooLarge, gin.H{"error": "file_too_large"})
			return
		}
		badRequest(c, err)
		return
	}
	if fh.Size > h.Cfg.MaxUploadBytes {
		c.AbortWithStatusJSON(nethttp.StatusRequestEntityTooLarge, gin.H{"error": "file_too_large"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		fail(c, err)
		return
	}
	defer f.Close()

	song, err := h.Orch.Upload(c.Request.Context(), Actor(c), domain.RoomID(c.Param("id")), orch.Upload{
		Body:        f,
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		DisplayName: c.PostForm("display_name"),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(nethttp.StatusCreated, song)
}

func (h *Handlers) DeleteSong(c *gin.Context) {
	err := h.Orch.DeleteSong(c.Request.Context(), Actor(c), domain.RoomID(c.Param("id")), domain.SongID(c.Param("song_id")))
	if err != nil {
		fail(c, err)
		return
	}
	c.Status(nethttp.StatusNoContent)
}

func (h *Handlers) Playback(c *gin.Context) {
	var req playbackRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	id := domain.RoomID(c.Param("id"))
	cmd := orch.PlaybackCommand{Kind: c.Param("cmd"), SongID: req.SongID, Elapsed: req.Elapsed}
	if err := h.Orch.Playback(Actor(c), id, cmd); err != nil {
		fail(c, err)
		return
	}
	snap, err := h.Orch.Snapshot(Actor(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, snap.Playback)
}

func (h *Handlers) Rename(c *gin.Context) {
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.Orch.Rename(c.Request.Context(), Actor(c), domain.RoomID(c.Param("id")), req.DisplayName); err != nil {
		fail(c, err)
		return
	}
	c.Status(nethttp.StatusNoContent)
}

// Events streams the room over SSE: a snapshot first, then events, with a
// fresh snapshot every reconcile interval.
func (h *Handlers) Events(ctx context.Context, c *gin.Context) {
	id := domain.RoomID(c.Param("id"))
	sub, snap, err := h.Orch.Subscribe(Actor(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	defer sub.Close()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("snapshot", snap)
	c.Writer.Flush()

	reconcile := time.NewTicker(h.Cfg.ReconcileInterval)
	defer reconcile.Stop()
	reqCtx := c.Request.Context()

	c.Stream(func(_ io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-reqCtx.Done():
			return false
		case e, ok := <-sub.C:
			if !ok {
				return false
			}
			c.SSEvent("event", e)
			return true
		case <-reconcile.C:
			snap, err := h.Orch.Snapshot(Actor(c), id)
			if err != nil {
				return false
			}
			c.SSEvent("snapshot", snap)
			return true
		}
	})
}
