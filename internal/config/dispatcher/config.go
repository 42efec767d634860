package dispatcher_config

import (
	"time"

	"github.com/NordCoder/Vitalis/internal/config/shared"
	pg "github.com/NordCoder/Vitalis/internal/repository/postgres"
)

type Kafka struct {
	Brokers    []string `mapstructure:"brokers"`
	JobsTopic  string   `mapstructure:"jobs_topic"`
	Partitions int      `mapstructure:"partitions"`
}

type Dispatch struct {
	Interval    time.Duration `mapstructure:"interval"`
	BatchLimit  int           `mapstructure:"batch_limit"`
	Lease       time.Duration `mapstructure:"lease"`
	MetricsAddr string        `mapstructure:"metrics_addr"`
}

type Config struct {
	App      shared.App  `mapstructure:"app"`
	DB       pg.Config   `mapstructure:"db"`
	Kafka    Kafka       `mapstructure:"kafka"`
	Dispatch Dispatch    `mapstructure:"dispatch"`
	OTEL     shared.OTEL `mapstructure:"otel"`
	Log      shared.Log  `mapstructure:"log"`
}
