package cmd

import (
	"fmt"

	"github.com/countryhub/country-api/internal/config"
	"github.com/countryhub/country-api/internal/db"
	"github.com/countryhub/country-api/internal/image"
	"github.com/countryhub/country-api/internal/logger"
	"github.com/countryhub/country-api/internal/repository"
	"github.com/countryhub/country-api/internal/service/refresh"
	"github.com/countryhub/country-api/internal/upstream"
	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run one refresh pass from the command line",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logger.Init(cfg.Log.Level)
		defer logger.Sync()

		mysqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN(), db.MySQLOpts{
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
			PingTimeout:     cfg.MySQL.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer mysqlDB.Close()

		if err := db.EnsureSchema(cmd.Context(), mysqlDB); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}

		redisClient, err := db.NewRedisClient(db.RedisOpts{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		defer func() { _ = redisClient.Close() }()

		countriesRepo := repository.NewCountriesRepository(mysqlDB)
		metaRepo := repository.NewMetadataRepository(mysqlDB)
		fetcher := upstream.NewClient(cfg.Upstream.CountriesURL, cfg.Upstream.RatesURL, cfg.Upstream.Timeout)
		generator := image.NewGenerator(cfg.Image.Path, countriesRepo, metaRepo)
		lock := refresh.NewRedisLock(redisClient, cfg.Refresh.LockTTL)

		svc := refresh.New(mysqlDB, fetcher, countriesRepo, metaRepo, lock, generator)

		stats, err := svc.Run(cmd.Context())
		if err != nil {
			return fmt.Errorf("refresh: %w", err)
		}

		fmt.Printf("processed=%d inserted=%d updated=%d\n", stats.Processed, stats.Inserted, stats.Updated)
		return nil
	},
}
