package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wfunc/if-gateway/internal/errors"
	"github.com/wfunc/if-gateway/internal/game"
)

// AdminHandler 管理接口处理器：游戏/会话/频道的查询与管理
type AdminHandler struct {
	registry *game.Registry
	orch     *game.Orchestrator
	log      *zap.Logger
}

// NewAdminHandler 创建管理处理器
func NewAdminHandler(registry *game.Registry, orch *game.Orchestrator, log *zap.Logger) *AdminHandler {
	return &AdminHandler{
		registry: registry,
		orch:     orch,
		log:      log,
	}
}

// ListGames GET /games
func (h *AdminHandler) ListGames(c *gin.Context) {
	games, err := h.registry.ListGames(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"games": games})
}

// DeleteGame DELETE /games/:ref（文件名或哈希）
func (h *AdminHandler) DeleteGame(c *gin.Context) {
	if err := h.registry.DeleteGame(c.Request.Context(), c.Param("ref")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("ref")})
}

// ListSessions GET /guilds/:guild/sessions
func (h *AdminHandler) ListSessions(c *gin.Context) {
	sessions, err := h.registry.ListSessions(c.Request.Context(), c.Param("guild"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// SessionStatus GET /guilds/:guild/sessions/:id
func (h *AdminHandler) SessionStatus(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	sessions, err := h.registry.ListSessions(c.Request.Context(), c.Param("guild"))
	if err != nil {
		h.fail(c, err)
		return
	}
	for _, sess := range sessions {
		if sess.ID != id {
			continue
		}
		state, err := h.orch.LoadState(sess)
		if err != nil {
			h.fail(c, err)
			return
		}
		resp := gin.H{"session": sess, "started": state != nil}
		if state != nil {
			resp["generation"] = state.Generation
			resp["exited"] = state.Exited
			resp["input_mode"] = state.InputMode()
		}
		c.JSON(http.StatusOK, resp)
		return
	}
	h.fail(c, errors.Newf(errors.ErrUnknownSession, "session %d", id))
}

// DeleteSession DELETE /guilds/:guild/sessions/:id
func (h *AdminHandler) DeleteSession(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	if err := h.registry.DeleteSession(c.Request.Context(), c.Param("guild"), id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// ListChannels GET /channels
func (h *AdminHandler) ListChannels(c *gin.Context) {
	channels, err := h.registry.ListChannels(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"channels": channels})
}

// EnableChannelRequest 启用频道请求
type EnableChannelRequest struct {
	GuildID   string `json:"guild_id" binding:"required"`
	ChannelID string `json:"channel_id" binding:"required"`
}

// EnableChannel POST /channels
func (h *AdminHandler) EnableChannel(c *gin.Context) {
	var req EnableChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "INVALID_REQUEST",
			"message": "guild_id and channel_id are required",
		})
		return
	}
	if err := h.registry.EnableChannel(c.Request.Context(), req.GuildID, req.ChannelID); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": true})
}

// DisableChannel DELETE /channels/:guild/:channel
func (h *AdminHandler) DisableChannel(c *gin.Context) {
	err := h.registry.DisableChannel(c.Request.Context(), c.Param("guild"), c.Param("channel"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"disabled": true})
}

// sessionID 解析路径里的会话ID
func (h *AdminHandler) sessionID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "INVALID_REQUEST",
			"message": "not a session id: " + c.Param("id"),
		})
		return 0, false
	}
	return uint(id), true
}

// fail 把应用错误映射到HTTP响应
func (h *AdminHandler) fail(c *gin.Context, err error) {
	h.log.Warn("admin request failed", zap.Error(err))
	if appErr, ok := err.(*errors.AppError); ok {
		c.JSON(appErr.HTTPStatus(), gin.H{
			"code":    int(appErr.Code),
			"message": appErr.Error(),
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    int(errors.ErrUnknown),
		"message": err.Error(),
	})
}
