package delivery_worker_config

import (
	"time"

	"github.com/NordCoder/Vitalis/internal/config/shared"
	"github.com/NordCoder/Vitalis/internal/push/fcm"
	pg "github.com/NordCoder/Vitalis/internal/repository/postgres"
	rds "github.com/NordCoder/Vitalis/internal/repository/redis"
)

type Kafka struct {
	Brokers       []string `mapstructure:"brokers"`
	JobsTopic     string   `mapstructure:"jobs_topic"`
	FailuresTopic string   `mapstructure:"failures_topic"`
	GroupID       string   `mapstructure:"group_id"`
	Partitions    int      `mapstructure:"partitions"`
}

type Worker struct {
	Concurrency int    `mapstructure:"concurrency"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// Push limits apply across every worker process when Redis is enabled and
// per process otherwise.
type Push struct {
	FCM           fcm.Config    `mapstructure:"fcm"`
	RatePerSecond int           `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
	RateWindow    time.Duration `mapstructure:"rate_window"`
}

type Redis struct {
	Enable   bool   `mapstructure:"enable"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r Redis) Conn() rds.Config {
	return rds.Config{Addr: r.Addr, Password: r.Password, DB: r.DB}
}

type Outbox struct {
	Workers       int           `mapstructure:"workers"`
	BatchSize     int           `mapstructure:"batch_size"`
	WaitTime      time.Duration `mapstructure:"wait_time"`
	InProgressTTL time.Duration `mapstructure:"in_progress_ttl"`
}

type Config struct {
	App    shared.App  `mapstructure:"app"`
	DB     pg.Config   `mapstructure:"db"`
	Kafka  Kafka       `mapstructure:"kafka"`
	Worker Worker      `mapstructure:"worker"`
	Push   Push        `mapstructure:"push"`
	Redis  Redis       `mapstructure:"redis"`
	Outbox Outbox      `mapstructure:"outbox"`
	OTEL   shared.OTEL `mapstructure:"otel"`
	Log    shared.Log  `mapstructure:"log"`
}
