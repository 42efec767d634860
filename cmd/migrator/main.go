package main

import (
	"flag"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/NordCoder/Vitalis/internal/obs"
	"github.com/NordCoder/Vitalis/migrations"
)

func main() {
	down := flag.Bool("down", false, "roll back the latest migration")
	flag.Parse()

	log, err := obs.NewLogger(obs.LogConfig{Level: "info", App: "vitalis/migrator"})
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	dbURL := os.Getenv("DB_DSN")
	if dbURL == "" {
		log.Fatal("DB_DSN is empty")
	}

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatal("set dialect", zap.Error(err))
	}
	db, err := goose.OpenDBWithDriver("pgx", dbURL)
	if err != nil {
		log.Fatal("open db", zap.Error(err))
	}
	defer db.Close()

	if *down {
		if err := goose.Down(db, "."); err != nil {
			log.Fatal("migrate down", zap.Error(err))
		}
		log.Info("migrations: down OK")
		return
	}
	if err := goose.Up(db, "."); err != nil {
		log.Fatal("migrate up", zap.Error(err))
	}
	log.Info("migrations: up OK")
}
