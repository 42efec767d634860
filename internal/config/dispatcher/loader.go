package dispatcher_config

import (
	"github.com/NordCoder/Vitalis/internal/config/shared"
)

func Load(path string) (*Config, error) {
	v := shared.NewViper(path)
	shared.SetCommonDefaults(v, "dispatcher")

	v.SetDefault("kafka.brokers", []string{"localhost:9094"})
	v.SetDefault("kafka.jobs_topic", "vitalis.jobs.due")
	v.SetDefault("kafka.partitions", 6)

	v.SetDefault("dispatch.interval", "1s")
	v.SetDefault("dispatch.batch_limit", 100)
	v.SetDefault("dispatch.lease", "2m")
	v.SetDefault("dispatch.metrics_addr", ":8082")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, shared.ErrConfig("kafka.brokers is required")
	}
	if cfg.Dispatch.BatchLimit <= 0 {
		return nil, shared.ErrConfig("dispatch.batch_limit must be positive")
	}
	return &cfg, nil
}
