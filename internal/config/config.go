package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config 全局配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Chat     ChatConfig     `mapstructure:"chat"`
	Interp   InterpConfig   `mapstructure:"interp"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Download DownloadConfig `mapstructure:"download"`
	Log      LogConfig      `mapstructure:"log"`
	Security SecurityConfig `mapstructure:"security"`
}

// ServerConfig 管理API服务器配置
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// ChatConfig 聊天适配器（WebSocket前端）配置
type ChatConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Path            string        `mapstructure:"path"`
	ReadBufferSize  int           `mapstructure:"read_buffer_size"`
	WriteBufferSize int           `mapstructure:"write_buffer_size"`
	MaxMessageSize  int64         `mapstructure:"max_message_size"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	PongTimeout     time.Duration `mapstructure:"pong_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	// 单条出站消息的长度上限（保留在平台真实上限之下的安全余量）
	MessageLimit int `mapstructure:"message_limit"`
}

// InterpConfig 解释器子进程配置
type InterpConfig struct {
	// 各格式解释器二进制路径
	GlulxBin string `mapstructure:"glulx_bin"`
	ZcodeBin string `mapstructure:"zcode_bin"`
	InkBin   string `mapstructure:"ink_bin"`
	YsBin    string `mapstructure:"ys_bin"`
	// 单回合硬超时，超时后杀掉子进程
	TurnTimeout time.Duration `mapstructure:"turn_timeout"`
	// 初始化事件上报的屏幕尺寸
	ScreenWidth  int `mapstructure:"screen_width"`
	ScreenHeight int `mapstructure:"screen_height"`
}

// StorageConfig 文件存储配置
type StorageConfig struct {
	// 按内容哈希命名的游戏文件目录
	GamesDir string `mapstructure:"games_dir"`
	// 会话自动存档目录的根（每会话一个子目录）
	AutoSaveDir string `mapstructure:"autosave_dir"`
	// 会话存档/工作目录的根（每会话一个子目录）
	SaveDir string `mapstructure:"save_dir"`
}

// DownloadConfig 游戏下载配置
type DownloadConfig struct {
	UserAgent   string        `mapstructure:"user_agent"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxFileSize int64         `mapstructure:"max_file_size"`
	// AttachList中上传记录的保留时长
	AttachTTL time.Duration `mapstructure:"attach_ttl"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level   string            `mapstructure:"level"`
	Format  string            `mapstructure:"format"`
	Output  string            `mapstructure:"output"`
	File    LogFileConfig     `mapstructure:"file"`
	Modules map[string]string `mapstructure:"modules"`
}

// LogFileConfig 日志文件配置
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	JWT   JWTConfig   `mapstructure:"jwt"`
	Admin AdminConfig `mapstructure:"admin"`
}

// JWTConfig JWT配置
type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

// AdminConfig 管理员凭据配置
type AdminConfig struct {
	Username string `mapstructure:"username"`
	// argon2id哈希后的管理口令
	PasswordHash string `mapstructure:"password_hash"`
}

var (
	cfg  *Config
	once sync.Once
	mu   sync.RWMutex
	v    *viper.Viper
)

// Init 初始化配置
func Init(configPath string) error {
	var err error
	once.Do(func() {
		v = viper.New()

		// 设置配置文件路径
		if configPath != "" {
			v.SetConfigFile(configPath)
		} else {
			v.SetConfigName("config")
			v.SetConfigType("yaml")
			v.AddConfigPath("./config")
			v.AddConfigPath(".")
		}

		// 设置环境变量前缀
		v.SetEnvPrefix("IF_GATEWAY")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()

		// 设置默认值
		setDefaults(v)

		// 读取配置文件
		if err = v.ReadInConfig(); err != nil {
			// 如果配置文件不存在，使用默认配置
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				err = nil
			} else {
				return
			}
		}

		// 解析配置到结构体
		cfg = &Config{}
		if err = v.Unmarshal(cfg); err != nil {
			return
		}
	})

	return err
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "development")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// 数据库默认配置
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/if-gateway.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.log_level", "info")
	v.SetDefault("database.auto_migrate", true)

	// 聊天适配器默认配置
	v.SetDefault("chat.host", "0.0.0.0")
	v.SetDefault("chat.port", 8081)
	v.SetDefault("chat.path", "/ws")
	v.SetDefault("chat.read_buffer_size", 1024)
	v.SetDefault("chat.write_buffer_size", 1024)
	v.SetDefault("chat.max_message_size", 8192)
	v.SetDefault("chat.ping_interval", "30s")
	v.SetDefault("chat.pong_timeout", "60s")
	v.SetDefault("chat.write_timeout", "10s")
	v.SetDefault("chat.message_limit", 1990)

	// 解释器默认配置
	v.SetDefault("interp.glulx_bin", "glulxer")
	v.SetDefault("interp.zcode_bin", "bocfelr")
	v.SetDefault("interp.ink_bin", "inkrun")
	v.SetDefault("interp.ys_bin", "ysrun")
	v.SetDefault("interp.turn_timeout", "5s")
	v.SetDefault("interp.screen_width", 800)
	v.SetDefault("interp.screen_height", 480)

	// 存储默认配置
	v.SetDefault("storage.games_dir", "./data/games")
	v.SetDefault("storage.autosave_dir", "./data/autosave")
	v.SetDefault("storage.save_dir", "./data/saves")

	// 下载默认配置
	v.SetDefault("download.user_agent", "IFGateway-Terp")
	v.SetDefault("download.timeout", "60s")
	v.SetDefault("download.max_file_size", 33554432)
	v.SetDefault("download.attach_ttl", "1h")

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "both")
	v.SetDefault("log.file.path", "./logs")
	v.SetDefault("log.file.filename", "if-gateway.log")
	v.SetDefault("log.file.max_size", 100)
	v.SetDefault("log.file.max_age", 30)
	v.SetDefault("log.file.max_backups", 7)
	v.SetDefault("log.file.compress", true)

	// 安全默认配置
	v.SetDefault("security.jwt.secret", "")
	v.SetDefault("security.jwt.expire_hours", 24)
	v.SetDefault("security.admin.username", "admin")
}

// Get 获取配置实例
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// Watch 监听配置文件变化
func Watch(callback func(*Config)) {
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		mu.Lock()
		defer mu.Unlock()

		newCfg := &Config{}
		if err := v.Unmarshal(newCfg); err != nil {
			fmt.Printf("config reload failed: %v\n", err)
			return
		}

		cfg = newCfg

		if callback != nil {
			callback(cfg)
		}
	})
}

// GetString 获取字符串配置
func GetString(key string) string {
	return v.GetString(key)
}

// GetInt 获取整数配置
func GetInt(key string) int {
	return v.GetInt(key)
}

// GetBool 获取布尔配置
func GetBool(key string) bool {
	return v.GetBool(key)
}

// GetDuration 获取时间间隔配置
func GetDuration(key string) time.Duration {
	return v.GetDuration(key)
}

// IsSet 检查配置项是否存在
func IsSet(key string) bool {
	return v.IsSet(key)
}

// Set 动态设置配置值
func Set(key string, value interface{}) {
	v.Set(key, value)
}
