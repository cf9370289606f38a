package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wfunc/if-gateway/internal/config"
	"github.com/wfunc/if-gateway/internal/utils"
)

// AuthHandler 管理员认证处理器
type AuthHandler struct {
	security   *config.SecurityConfig
	jwtManager *utils.JWTManager
	log        *zap.Logger
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(security *config.SecurityConfig, jwtManager *utils.JWTManager, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		security:   security,
		jwtManager: jwtManager,
		log:        log,
	}
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 管理员登录，口令比对配置里的Argon2哈希
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "INVALID_REQUEST",
			"message": "username and password are required",
		})
		return
	}

	if req.Username != h.security.Admin.Username || h.security.Admin.PasswordHash == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    "AUTH_FAILED",
			"message": "authentication failed",
		})
		return
	}

	ok, err := utils.VerifyPassword(req.Password, h.security.Admin.PasswordHash)
	if err != nil || !ok {
		h.log.Warn("admin login rejected",
			zap.String("username", req.Username))
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    "AUTH_FAILED",
			"message": "authentication failed",
		})
		return
	}

	token, err := h.jwtManager.GenerateToken(req.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "TOKEN_ERROR",
			"message": "failed to issue token",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
	})
}
