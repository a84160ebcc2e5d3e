package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tokenkit/internal/config"
	"tokenkit/internal/events"
	"tokenkit/internal/storage/mysql"
	"tokenkit/internal/token"
	"tokenkit/internal/web3"
	"tokenkit/internal/web3/erc20"
	"tokenkit/internal/web3/provider"
	"tokenkit/pkg/logger"
)

// environment 持有一次命令执行期间打开的全部组件。
type environment struct {
	cfg      *config.Config
	registry *provider.Registry
	service  *token.Service
	closers  []func() error
}

// openEnvironment 按配置装配链注册表、台账、事件发布器与代币服务。
// withChains 为假时跳过链定义的加载，仅用于查询台账。
func openEnvironment(ctx context.Context, cfg *config.Config, dial provider.Dialer, withChains bool) (env *environment, err error) {
	env = &environment{cfg: cfg}
	defer func() {
		if err != nil {
			_ = env.Close()
			env = nil
		}
	}()

	var opts []token.Option

	if withChains {
		defs, err := web3.LoadChainDefinitions(cfg.Web3.ChainConfig)
		if err != nil {
			return env, err
		}
		registry, err := provider.NewRegistry(defs, provider.WithDialer(dial))
		if err != nil {
			return env, err
		}
		env.registry = registry

		if cfg.Web3.ArtifactPath != "" {
			artifact, err := erc20.LoadArtifact(cfg.Web3.ArtifactPath)
			if err != nil {
				return env, err
			}
			opts = append(opts, token.WithArtifact(artifact))
		}
	}

	ledger, err := openLedger(ctx, cfg)
	if err != nil {
		return env, err
	}
	env.closers = append(env.closers, ledger.Close)
	opts = append(opts, token.WithLedger(ledger))

	publisher, err := openPublisher(ctx, cfg)
	if err != nil {
		return env, err
	}
	env.closers = append(env.closers, publisher.Close)
	opts = append(opts, token.WithPublisher(publisher))

	var chains erc20.ChainRegistry
	if env.registry != nil {
		chains = env.registry
	}
	env.service = token.NewService(chains, opts...)
	return env, nil
}

func openLedger(ctx context.Context, cfg *config.Config) (mysql.OperationRepository, error) {
	switch cfg.Ledger.Driver {
	case "memory", "":
		return mysql.NewMemoryOperationRepository(cfg.Runtime.DataDir)
	case "mysql":
		return mysql.NewSQLOperationRepository(ctx, mysql.Config{
			DSN:             cfg.Ledger.DSN,
			MaxOpenConns:    cfg.Ledger.MaxOpenConns,
			MaxIdleConns:    cfg.Ledger.MaxIdleConns,
			ConnMaxLifetime: cfg.Ledger.ConnMaxLifetime(),
		})
	default:
		return nil, mysql.ErrUnsupportedDriver
	}
}

func openPublisher(ctx context.Context, cfg *config.Config) (events.Publisher, error) {
	switch cfg.Events.Driver {
	case "none", "":
		return events.NopPublisher{}, nil
	case "memory":
		return events.NewMemoryPublisher(0), nil
	case "redis":
		return events.NewRedisPublisher(ctx, events.RedisConfig{
			Address:  cfg.Events.Redis.Address,
			Password: cfg.Events.Redis.Password,
			DB:       cfg.Events.Redis.DB,
			List:     cfg.Events.Redis.List,
		})
	case "rabbitmq":
		return events.NewRabbitMQPublisher(events.RabbitMQConfig{
			URL:        cfg.Events.RabbitMQ.URL,
			Queue:      cfg.Events.RabbitMQ.Queue,
			Durable:    cfg.Events.RabbitMQ.Durable,
			AutoDelete: cfg.Events.RabbitMQ.AutoDelete,
		})
	default:
		return nil, fmt.Errorf("未知的事件驱动: %s", cfg.Events.Driver)
	}
}

// Close 逆序关闭已打开的组件。
func (e *environment) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			logger.L().Warn("关闭组件失败", slog.Any("error", err))
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}
