package config

import (
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Env       string `mapstructure:"env"`
	Port      int    `mapstructure:"port"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

type MongoConfig struct {
	URI                     string `mapstructure:"uri"`
	Database                string `mapstructure:"database"`
	UsersCollection         string `mapstructure:"users_collection"`
	PrivateUsersCollection  string `mapstructure:"private_users_collection"`
	ConversationsCollection string `mapstructure:"conversations_collection"`
	MessagesCollection      string `mapstructure:"messages_collection"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type KafkaConfig struct {
	Brokers           []string `mapstructure:"brokers"`
	TopicMessageSent  string   `mapstructure:"topic_message_sent"`
	TopicImageResized string   `mapstructure:"topic_image_resized"`
	GroupID           string   `mapstructure:"group_id"`
}

type S3Config struct {
	Region     string `mapstructure:"region"`
	Bucket     string `mapstructure:"bucket"`
	PublicRead bool   `mapstructure:"public_read"`
}

type Config struct {
	App   AppConfig   `mapstructure:"app"`
	Mongo MongoConfig `mapstructure:"mongodb"`
	Redis RedisConfig `mapstructure:"redis"`
	Kafka KafkaConfig `mapstructure:"kafka"`
	S3    S3Config    `mapstructure:"s3"`

	// derived values
	RequestTimeout time.Duration
	PresenceTTL    time.Duration
	ReconcileEvery time.Duration
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	applyDefaults(&c)
	return &c, nil
}

func applyDefaults(c *Config) {
	if c.App.Port == 0 {
		c.App.Port = 8081
	}
	if c.Mongo.URI == "" {
		c.Mongo.URI = "mongodb://localhost:27017"
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "chatdb"
	}
	if c.Mongo.UsersCollection == "" {
		c.Mongo.UsersCollection = "users"
	}
	if c.Mongo.PrivateUsersCollection == "" {
		c.Mongo.PrivateUsersCollection = "private_users"
	}
	if c.Mongo.ConversationsCollection == "" {
		c.Mongo.ConversationsCollection = "conversations"
	}
	if c.Mongo.MessagesCollection == "" {
		c.Mongo.MessagesCollection = "messages"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "chat"
	}
	if len(c.Kafka.Brokers) == 0 {
		c.Kafka.Brokers = []string{"localhost:9092"}
	}
	if c.Kafka.TopicMessageSent == "" {
		c.Kafka.TopicMessageSent = "message.sent"
	}
	if c.Kafka.TopicImageResized == "" {
		c.Kafka.TopicImageResized = "image.resized"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "chat-service-group"
	}
	c.RequestTimeout = 10 * time.Second
	c.PresenceTTL = 60 * time.Second
	c.ReconcileEvery = 5 * time.Minute
}
