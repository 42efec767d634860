package delivery_worker_config

import (
	"github.com/NordCoder/Vitalis/internal/config/shared"
)

func Load(path string) (*Config, error) {
	v := shared.NewViper(path)
	shared.SetCommonDefaults(v, "delivery-worker")

	v.SetDefault("kafka.brokers", []string{"localhost:9094"})
	v.SetDefault("kafka.jobs_topic", "vitalis.jobs.due")
	v.SetDefault("kafka.failures_topic", "vitalis.deliveries.failed")
	v.SetDefault("kafka.group_id", "delivery-worker")
	v.SetDefault("kafka.partitions", 6)

	v.SetDefault("worker.concurrency", 20)
	v.SetDefault("worker.metrics_addr", ":8083")

	v.SetDefault("push.fcm.project_id", "")
	v.SetDefault("push.fcm.credentials_file", "")
	v.SetDefault("push.fcm.endpoint", "")
	v.SetDefault("push.rate_per_second", 100)
	v.SetDefault("push.burst", 100)
	v.SetDefault("push.rate_window", "1s")

	v.SetDefault("redis.enable", true)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("outbox.workers", 1)
	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.wait_time", "1s")
	v.SetDefault("outbox.in_progress_ttl", "1m")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.Push.FCM.ProjectID == "" {
		return nil, shared.ErrConfig("push.fcm.project_id is required")
	}
	if cfg.Worker.Concurrency <= 0 {
		return nil, shared.ErrConfig("worker.concurrency must be positive")
	}
	return &cfg, nil
}
