package api_gateway_config

import (
	"time"

	"github.com/NordCoder/Vitalis/internal/config/shared"
	pg "github.com/NordCoder/Vitalis/internal/repository/postgres"
)

type Server struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	GRPCAddr        string        `mapstructure:"grpc_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
}

type Auth struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type Config struct {
	App    shared.App  `mapstructure:"app"`
	Server Server      `mapstructure:"server"`
	DB     pg.Config   `mapstructure:"db"`
	OTEL   shared.OTEL `mapstructure:"otel"`
	Log    shared.Log  `mapstructure:"log"`
	Auth   Auth        `mapstructure:"auth"`
}
