package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/wfunc/if-gateway/internal/api"
	"github.com/wfunc/if-gateway/internal/chat"
	"github.com/wfunc/if-gateway/internal/config"
	"github.com/wfunc/if-gateway/internal/database"
	"github.com/wfunc/if-gateway/internal/game"
	"github.com/wfunc/if-gateway/internal/gateway"
	"github.com/wfunc/if-gateway/internal/logger"
	"github.com/wfunc/if-gateway/internal/repository"
)

// 版本信息
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Server 服务器实例：聊天前端、管理API和它们共享的游戏组件
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	hub         *chat.Hub
	chatServer  *http.Server
	adminServer *http.Server
}

func main() {
	var (
		configPath  = flag.String("config", "", "配置文件路径")
		showVersion = flag.Bool("version", false, "显示版本信息")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("if-gateway %s (build %s, commit %s)\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	if err := config.Init(*configPath); err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Cleanup()

	server, err := NewServer(cfg)
	if err != nil {
		logger.Fatal("服务器初始化失败", zap.Error(err))
	}

	server.Start()

	// 配置热更新只影响下次读取的动态项
	config.Watch(func(newCfg *config.Config) {
		logger.Info("配置已重载")
	})

	server.WaitForShutdown()

	if err := server.Shutdown(); err != nil {
		logger.Error("服务器关闭失败", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("服务器已安全关闭")
}

// NewServer 组装全部组件
func NewServer(cfg *config.Config) (*Server, error) {
	log := logger.GetLogger()

	if err := database.Init(&cfg.Database); err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(); err != nil {
			return nil, err
		}
	}

	db := database.GetDB()
	sessions := repository.NewSessionRepository(db)
	channels := repository.NewPlayChannelRepository(db)
	games := repository.NewGameFileRepository(db)

	paths := game.NewPaths(&cfg.Storage)
	registry := game.NewRegistry(sessions, channels, games, paths, log)
	orch := game.NewOrchestrator(&cfg.Interp, &cfg.Chat, paths, sessions, log)
	downloader := game.NewDownloader(&cfg.Download, paths, games, log)
	attach := game.NewAttachList(cfg.Download.AttachTTL)

	svc := gateway.NewService(registry, orch, downloader, attach, log)
	hub := chat.NewHub(&cfg.Chat, svc, log)
	svc.SetSender(hub)

	chatMux := http.NewServeMux()
	chatMux.HandleFunc(cfg.Chat.Path, hub.ServeWS)
	chatServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Chat.Host, cfg.Chat.Port),
		Handler: chatMux,
	}

	router := api.NewRouter(cfg, registry, orch, log)
	adminServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Server{
		cfg:         cfg,
		logger:      log,
		hub:         hub,
		chatServer:  chatServer,
		adminServer: adminServer,
	}, nil
}

// Start 启动Hub和两个HTTP服务
func (s *Server) Start() {
	go s.hub.Run()

	go func() {
		s.logger.Info("聊天前端已启动",
			zap.String("addr", s.chatServer.Addr),
			zap.String("path", s.cfg.Chat.Path))
		if err := s.chatServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("聊天前端启动失败", zap.Error(err))
		}
	}()

	go func() {
		s.logger.Info("管理API已启动",
			zap.String("addr", s.adminServer.Addr))
		if err := s.adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("管理API启动失败", zap.Error(err))
		}
	}()
}

// WaitForShutdown 阻塞到收到退出信号
func (s *Server) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	s.logger.Info("收到退出信号", zap.String("signal", sig.String()))
}

// Shutdown 优雅关闭：先停HTTP入口，再断开客户端和数据库
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := s.adminServer.Shutdown(ctx); err != nil {
		s.logger.Error("管理API关闭失败", zap.Error(err))
	}
	if err := s.chatServer.Shutdown(ctx); err != nil {
		s.logger.Error("聊天前端关闭失败", zap.Error(err))
	}

	s.hub.Stop()
	return database.Close()
}
