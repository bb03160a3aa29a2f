package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server          ServerConfig          `mapstructure:"server"`
	Database        DatabaseConfig        `mapstructure:"database"`
	Redis           RedisConfig           `mapstructure:"redis"`
	Kafka           KafkaConfig           `mapstructure:"kafka"`
	RabbitMQ        RabbitMQConfig        `mapstructure:"rabbitmq"`
	Dispatch        DispatchConfig        `mapstructure:"dispatch"`
	JWT             JWTConfig             `mapstructure:"jwt"`
	Log             LogConfig             `mapstructure:"log"`
	Minio           MinioConfig           `mapstructure:"minio"`
	Generation      GenerationConfig      `mapstructure:"generation"`
	Publisher       PublisherConfig       `mapstructure:"publisher"`
	Batch           BatchConfig           `mapstructure:"batch"`
	Bulk            BulkConfig            `mapstructure:"bulk"`
	Worker          WorkerConfig          `mapstructure:"worker"`
	ServiceRegistry ServiceRegistryConfig `mapstructure:"service_registry"`
	Etcd            EtcdConfig            `mapstructure:"etcd"`
	GRPCServer      GRPCServerConfig      `mapstructure:"grpc_server"`
	Metrics         MetricsConfig         `mapstructure:"metrics"`
	Profiling       ProfilingConfig       `mapstructure:"profiling"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	Charset         string        `mapstructure:"charset"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	Path            string        `mapstructure:"path"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	EnableTLS    bool          `mapstructure:"enable_tls"`
}

// KafkaConfig Kafka配置
type KafkaConfig struct {
	BootstrapServers     []string          `mapstructure:"bootstrap_servers"`
	ClientID             string            `mapstructure:"client_id"`
	GroupID              string            `mapstructure:"group_id"`
	Topics               KafkaTopicsConfig `mapstructure:"topics"`
	Partitions           int               `mapstructure:"partitions"`
	ReplicationFactor    int               `mapstructure:"replication_factor"`
	CommitOnDecodeError  bool              `mapstructure:"commit_on_decode_error"`
	CommitOnProcessError bool              `mapstructure:"commit_on_process_error"`
}

type KafkaTopicsConfig struct {
	VideoJobs string `mapstructure:"video_jobs"`
}

// RabbitMQConfig RabbitMQ配置
type RabbitMQConfig struct {
	URL           string `mapstructure:"url"`
	Queue         string `mapstructure:"queue"`
	PrefetchCount int    `mapstructure:"prefetch_count"`
}

// DispatchConfig 任务分发方式: kafka | rabbitmq | memory
type DispatchConfig struct {
	Driver string `mapstructure:"driver"`
}

// JWTConfig 管理接口鉴权
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// MinioConfig MinIO配置
type MinioConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKey       string `mapstructure:"access_key"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SecretKey       string `mapstructure:"secret_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// GenerationConfig 视频生成配置
type GenerationConfig struct {
	ToolMode         string            `mapstructure:"tool_mode"`
	Language         string            `mapstructure:"language"`
	Timeout          time.Duration     `mapstructure:"timeout"`
	StuckGrace       time.Duration     `mapstructure:"stuck_grace"`
	MaxAudioDuration time.Duration     `mapstructure:"max_audio_duration"`
	MaxScriptLength  int               `mapstructure:"max_script_length"`
	WorkDir          string            `mapstructure:"work_dir"`
	OutputDir        string            `mapstructure:"output_dir"`
	BackgroundDir    string            `mapstructure:"background_dir"`
	BackgroundPolicy string            `mapstructure:"background_policy"`
	Synthesizer      SynthesizerConfig `mapstructure:"synthesizer"`
	FFmpeg           FFmpegConfig      `mapstructure:"ffmpeg"`
}

// SynthesizerConfig 语音合成命令模板，支持 {text_file} {output} {lang} 占位符
type SynthesizerConfig struct {
	BinaryPath string   `mapstructure:"binary_path"`
	Args       []string `mapstructure:"args"`
}

// FFmpegConfig FFmpeg相关配置
type FFmpegConfig struct {
	BinaryPath  string `mapstructure:"binary_path"`
	ProbePath   string `mapstructure:"probe_path"`
	VideoCodec  string `mapstructure:"video_codec"`
	VideoPreset string `mapstructure:"video_preset"`
	Width       int    `mapstructure:"width"`
	Height      int    `mapstructure:"height"`
	FPS         int    `mapstructure:"fps"`
	FontFile    string `mapstructure:"font_file"`
	FontSize    int    `mapstructure:"font_size"`
	Threads     int    `mapstructure:"threads"`
}

// PublisherConfig 视频平台发布配置
type PublisherConfig struct {
	ClientID        string        `mapstructure:"client_id"`
	ClientSecret    string        `mapstructure:"client_secret"`
	AccessToken     string        `mapstructure:"access_token"`
	RefreshToken    string        `mapstructure:"refresh_token"`
	TokenURL        string        `mapstructure:"token_url"`
	UploadURL       string        `mapstructure:"upload_url"`
	WatchURLPrefix  string        `mapstructure:"watch_url_prefix"`
	UploadTimeout   time.Duration `mapstructure:"upload_timeout"`
	RefreshTimeout  time.Duration `mapstructure:"refresh_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	CategoryID      string        `mapstructure:"category_id"`
	PrivacyStatus   string        `mapstructure:"privacy_status"`
	DefaultLanguage string        `mapstructure:"default_language"`
	DefaultTitle    string        `mapstructure:"default_title"`
	ShareTokens     bool          `mapstructure:"share_tokens"`
}

// BatchConfig 批量提交配置
type BatchConfig struct {
	Store          string        `mapstructure:"store"`
	TTL            time.Duration `mapstructure:"ttl"`
	ResolveTimeout time.Duration `mapstructure:"resolve_timeout"`
	ActivityLimit  int           `mapstructure:"activity_limit"`
	FetchTimeout   time.Duration `mapstructure:"fetch_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// BulkConfig 批量管理操作配置
type BulkConfig struct {
	ChunkSize int    `mapstructure:"chunk_size"`
	LockFile  string `mapstructure:"lock_file"`
}

// WorkerConfig Worker相关配置
type WorkerConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	WorkerID            string        `mapstructure:"worker_id"`
	MaxConcurrentTasks  int           `mapstructure:"max_concurrent_tasks"`
	QueueCapacity       int           `mapstructure:"queue_capacity"`
	StuckCheckInterval  time.Duration `mapstructure:"stuck_check_interval"`
	RetryScanInterval   time.Duration `mapstructure:"retry_scan_interval"`
	RetryBaseDelay      time.Duration `mapstructure:"retry_base_delay"`
	ShutdownGracePeriod time.Duration `mapstructure:"shutdown_grace_period"`
}

// ServiceRegistryConfig registration configuration.
type ServiceRegistryConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	ServiceName     string        `mapstructure:"service_name"`
	ServiceID       string        `mapstructure:"service_id"`
	RegisterHost    string        `mapstructure:"register_host"`
	TTL             time.Duration `mapstructure:"ttl"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// EtcdConfig etcd 连接配置
type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
}

// GRPCServerConfig gRPC server configuration.
type GRPCServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type ProfilingConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ServerAddress string `mapstructure:"server_address"`
}

var (
	globalConfig *Config
	globalMu     sync.RWMutex
)

// SetGlobalConfig 设置全局配置
func SetGlobalConfig(cfg *Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalConfig = cfg
}

// GetGlobalConfig 获取全局配置
func GetGlobalConfig() *Config {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalConfig
}

// Load 加载配置
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.SetDefault("service_registry.enabled", false)
	v.SetDefault("service_registry.service_name", "sermon-publisher")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("dispatch.driver", "kafka")
	v.SetDefault("kafka.client_id", "sermon-publisher")
	v.SetDefault("kafka.group_id", "sermon-publisher-group")
	v.SetDefault("kafka.bootstrap_servers", []string{"localhost:29092"})
	v.SetDefault("kafka.topics.video_jobs", "sermon.video.jobs")
	v.SetDefault("kafka.commit_on_decode_error", true)
	v.SetDefault("kafka.commit_on_process_error", false)
	v.SetDefault("rabbitmq.queue", "sermon.video.jobs")
	v.SetDefault("batch.store", "redis")
	v.SetDefault("generation.tool_mode", "exec")
	v.SetDefault("generation.background_policy", "first_match")
	v.SetDefault("publisher.share_tokens", true)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("worker.enabled", true)

	// 设置环境变量前缀
	v.SetEnvPrefix("SERMON_PUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.normalize()

	return &config, nil
}

// Default 返回仅包含默认值的配置，供命令行工具和测试使用
func Default() *Config {
	cfg := &Config{}
	cfg.Database.Driver = "mysql"
	cfg.Dispatch.Driver = "memory"
	cfg.Batch.Store = "memory"
	cfg.Generation.ToolMode = "mock"
	cfg.normalize()
	return cfg
}

// normalize 补全配置的默认值
func (c *Config) normalize() {
	// 兼容不同的密钥字段
	if c.Minio.AccessKeyID == "" {
		c.Minio.AccessKeyID = c.Minio.AccessKey
	}
	if c.Minio.SecretAccessKey == "" {
		c.Minio.SecretAccessKey = c.Minio.SecretKey
	}

	if c.Server.Port == 0 {
		c.Server.Port = 8083
	}
	if c.Database.Charset == "" {
		c.Database.Charset = "utf8mb4"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.Path == "" {
		c.Database.Path = "sermon-publisher.db"
	}

	// Worker相关默认值
	if c.Worker.MaxConcurrentTasks <= 0 {
		c.Worker.MaxConcurrentTasks = 3
	}
	if c.Worker.QueueCapacity <= 0 {
		c.Worker.QueueCapacity = c.Worker.MaxConcurrentTasks * 10
	}
	if c.Worker.WorkerID == "" {
		c.Worker.WorkerID = "sermon-worker"
	}
	if c.Worker.StuckCheckInterval <= 0 {
		c.Worker.StuckCheckInterval = time.Minute
	}
	if c.Worker.RetryScanInterval <= 0 {
		c.Worker.RetryScanInterval = time.Minute
	}
	if c.Worker.RetryBaseDelay <= 0 {
		c.Worker.RetryBaseDelay = 15 * time.Minute
	}
	if c.Worker.ShutdownGracePeriod == 0 {
		c.Worker.ShutdownGracePeriod = 10 * time.Second
	}

	// 生成相关默认值
	g := &c.Generation
	if g.Language == "" {
		g.Language = "ko"
	}
	if g.Timeout <= 0 {
		g.Timeout = 10 * time.Minute
	}
	if g.StuckGrace <= 0 {
		g.StuckGrace = 2 * time.Minute
	}
	if g.MaxAudioDuration <= 0 {
		g.MaxAudioDuration = 5 * time.Minute
	}
	if g.MaxScriptLength <= 0 {
		g.MaxScriptLength = 5000
	}
	if g.WorkDir == "" {
		g.WorkDir = "/tmp/sermon-publisher/work"
	}
	if g.OutputDir == "" {
		g.OutputDir = "storage/generated_videos"
	}
	if g.BackgroundDir == "" {
		g.BackgroundDir = "storage/background_videos"
	}
	if g.Synthesizer.BinaryPath == "" {
		g.Synthesizer.BinaryPath = "gtts-cli"
	}
	if len(g.Synthesizer.Args) == 0 {
		g.Synthesizer.Args = []string{"--lang", "{lang}", "--file", "{text_file}", "--output", "{output}"}
	}
	if g.FFmpeg.BinaryPath == "" {
		g.FFmpeg.BinaryPath = "ffmpeg"
	}
	if g.FFmpeg.ProbePath == "" {
		g.FFmpeg.ProbePath = "ffprobe"
	}
	if g.FFmpeg.VideoCodec == "" {
		g.FFmpeg.VideoCodec = "libx264"
	}
	if g.FFmpeg.VideoPreset == "" {
		g.FFmpeg.VideoPreset = "medium"
	}
	if g.FFmpeg.Width <= 0 {
		g.FFmpeg.Width = 1080
	}
	if g.FFmpeg.Height <= 0 {
		g.FFmpeg.Height = 1920
	}
	if g.FFmpeg.FPS <= 0 {
		g.FFmpeg.FPS = 30
	}
	if g.FFmpeg.FontSize <= 0 {
		g.FFmpeg.FontSize = 50
	}
	if g.FFmpeg.Threads < 0 {
		g.FFmpeg.Threads = 0
	}

	// 发布相关默认值
	p := &c.Publisher
	if p.TokenURL == "" {
		p.TokenURL = "https://oauth2.googleapis.com/token"
	}
	if p.UploadURL == "" {
		p.UploadURL = "https://www.googleapis.com/upload/youtube/v3/videos?uploadType=multipart&part=snippet,status"
	}
	if p.WatchURLPrefix == "" {
		p.WatchURLPrefix = "https://www.youtube.com/watch?v="
	}
	if p.UploadTimeout <= 0 {
		p.UploadTimeout = 5 * time.Minute
	}
	if p.RefreshTimeout <= 0 {
		p.RefreshTimeout = 30 * time.Second
	}
	if p.MaxRetries <= 0 {
		p.MaxRetries = 3
	}
	if p.RetryDelay <= 0 {
		p.RetryDelay = 5 * time.Second
	}
	if p.CategoryID == "" {
		p.CategoryID = "22"
	}
	if p.PrivacyStatus == "" {
		p.PrivacyStatus = "public"
	}
	if p.DefaultLanguage == "" {
		p.DefaultLanguage = g.Language
	}
	if p.DefaultTitle == "" {
		p.DefaultTitle = "Words of Truth - 자동 생성 Shorts"
	}

	if c.Batch.TTL <= 0 {
		c.Batch.TTL = 24 * time.Hour
	}
	if c.Batch.ResolveTimeout <= 0 {
		c.Batch.ResolveTimeout = 3 * time.Second
	}
	if c.Batch.ActivityLimit <= 0 {
		c.Batch.ActivityLimit = 50
	}
	if c.Batch.FetchTimeout <= 0 {
		c.Batch.FetchTimeout = 30 * time.Second
	}
	if c.Batch.UserAgent == "" {
		c.Batch.UserAgent = "Words of Truth Sermon Processor/1.0"
	}
	if c.Bulk.ChunkSize <= 0 {
		c.Bulk.ChunkSize = 50
	}
	if c.Bulk.LockFile == "" {
		c.Bulk.LockFile = "/tmp/sermon-publisher-bulk.lock"
	}

	if c.GRPCServer.Host == "" {
		c.GRPCServer.Host = "0.0.0.0"
	}
	if c.GRPCServer.Port == 0 {
		c.GRPCServer.Port = 9092
	}
	if c.ServiceRegistry.ServiceName == "" {
		c.ServiceRegistry.ServiceName = "sermon-publisher"
	}
	if c.ServiceRegistry.TTL == 0 {
		c.ServiceRegistry.TTL = 30 * time.Second
	}
	if c.ServiceRegistry.RefreshInterval == 0 {
		c.ServiceRegistry.RefreshInterval = 10 * time.Second
	}
	if c.Etcd.DialTimeout <= 0 {
		c.Etcd.DialTimeout = 5 * time.Second
	}
	if len(c.Kafka.BootstrapServers) == 0 {
		c.Kafka.BootstrapServers = []string{"localhost:29092"}
	}
	if c.Kafka.ClientID == "" {
		c.Kafka.ClientID = "sermon-publisher"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "sermon-publisher-group"
	}
	if c.Kafka.Topics.VideoJobs == "" {
		c.Kafka.Topics.VideoJobs = "sermon.video.jobs"
	}
	if c.Kafka.Partitions <= 0 {
		c.Kafka.Partitions = 3
	}
	if c.Kafka.ReplicationFactor <= 0 {
		c.Kafka.ReplicationFactor = 1
	}
	if c.RabbitMQ.Queue == "" {
		c.RabbitMQ.Queue = "sermon.video.jobs"
	}
	if c.RabbitMQ.PrefetchCount <= 0 {
		c.RabbitMQ.PrefetchCount = c.Worker.MaxConcurrentTasks
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	switch strings.ToLower(c.Driver) {
	case "postgres", "postgresql":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.Username, c.Password, c.Database, c.SSLMode)
	case "sqlite":
		return c.Path
	default:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
			c.Username, c.Password, c.Host, c.Port, c.Database, c.Charset)
	}
}

// GetRedisAddr 获取Redis地址
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// PublishBudget 一次发布允许的最长时间：每次尝试的上传与刷新超时加上重试间隔
func (p *PublisherConfig) PublishBudget() time.Duration {
	attempts := time.Duration(p.MaxRetries + 1)
	return attempts*(p.UploadTimeout+p.RefreshTimeout) + time.Duration(p.MaxRetries)*p.RetryDelay
}

// StuckThreshold processing 超过该时长视为卡住。生成和发布各自计时，取较长的一段加宽限
func (c *Config) StuckThreshold() time.Duration {
	phase := c.Generation.Timeout
	if budget := c.Publisher.PublishBudget(); budget > phase {
		phase = budget
	}
	return phase + c.Generation.StuckGrace
}
