package api_gateway_config

import (
	"github.com/NordCoder/Vitalis/internal/config/shared"
)

func Load(path string) (*Config, error) {
	v := shared.NewViper(path)
	shared.SetCommonDefaults(v, "api-gateway")

	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.grpc_addr", ":9090")
	v.SetDefault("server.read_timeout", "5s")
	v.SetDefault("server.write_timeout", "5s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.graceful_timeout", "15s")
	v.SetDefault("db.max_conns", 20)
	v.SetDefault("db.min_conns", 5)
	v.SetDefault("auth.jwt_secret", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.DB.URL == "" {
		return nil, shared.ErrConfig("db.url is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, shared.ErrConfig("auth.jwt_secret is required")
	}
	return &cfg, nil
}
