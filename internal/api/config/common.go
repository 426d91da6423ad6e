package config

// Config 配置主体
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	DB     DBConfig     `mapstructure:"database"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Mongo  MongoConfig  `mapstructure:"mongo"`
	MinIO  MinIOConfig  `mapstructure:"minio"`
	Chat   ChatConfig   `mapstructure:"chat"`
}

// ServerConfig Server配置
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// DBConfig 数据库配置
type DBConfig struct {
	DSN         string `mapstructure:"dsn"`
	MaxIdle     int    `mapstructure:"max_idle"`
	MaxOpen     int    `mapstructure:"max_open"`
	MaxLifetime int    `mapstructure:"max_lifetime"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// MongoConfig Mongo配置
type MongoConfig struct {
	URL      string `mapstructure:"url"`
	Database string `mapstructure:"database"`
}

// MinIOConfig MinIO配置
type MinIOConfig struct {
	Endpoint   string `mapstructure:"endpoint"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	MainBucket string `mapstructure:"main_bucket"`
	UseSSL     bool   `mapstructure:"use_ssl"`
}

// ChatConfig 聊天子系统配置
type ChatConfig struct {
	TextMaxLength         int `mapstructure:"text_max_length"`          // 单条文本消息最大长度
	RejectReasonMaxLength int `mapstructure:"reject_reason_max_length"` // 拒接原因最大长度
	SendQueueSize         int `mapstructure:"send_queue_size"`          // 单连接下行队列容量
	ArchiveWorkers        int `mapstructure:"archive_workers"`          // 消息归档工作协程数
	FileTTLHours          int `mapstructure:"file_ttl_hours"`           // 未引用上传文件的保留时长
}

// ApplyDefaults 填充聊天配置的缺省值
func (c *ChatConfig) ApplyDefaults() {
	if c.TextMaxLength <= 0 {
		c.TextMaxLength = 65535
	}
	if c.RejectReasonMaxLength <= 0 {
		c.RejectReasonMaxLength = 1024
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = 256
	}
	if c.ArchiveWorkers <= 0 {
		c.ArchiveWorkers = 5
	}
	if c.FileTTLHours <= 0 {
		c.FileTTLHours = 24
	}
}
