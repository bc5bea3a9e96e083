package main

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"unitlens/pkg/agent"
	"unitlens/pkg/api"
	"unitlens/pkg/api/middleware"
	"unitlens/pkg/auth"
	"unitlens/pkg/coordination/etcd"
	tracing "unitlens/pkg/observability"
)

const (
	shutdownTimeout = 10 * time.Second
	etcdDialTimeout = 5 * time.Second
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), a)
		},
	}
}

func runServe(ctx context.Context, a *app) error {
	cfg := a.cfg
	log := a.log
	log.Info("unitlens starting", zap.String("version", version), zap.String("port", cfg.APIPort))

	tp, err := tracing.Init(ctx, tracing.Config{
		ServiceName:    "unitlens",
		ServiceVersion: version,
		Environment:    cfg.Environment,
		Endpoint:       cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
		SamplingRate:   cfg.TracingSampleRate,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	serverCfg := api.Config{
		Port:        cfg.APIPort,
		ServiceName: "unitlens",
		Inspector:   a.inspector(),
		Logger:      log,
		RateLimit: middleware.RateLimiterConfig{
			RequestsPerMinute: cfg.RateLimitPerMinute,
			BurstSize:         cfg.RateLimitBurst,
		},
		HealthChecks: make(map[string]api.HealthCheck),
	}

	if cfg.AuthEnabled {
		jwtSvc, err := newJWTService(cfg.JWTSecret, cfg.JWTIssuer)
		if err != nil {
			return err
		}
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr()})
		defer rdb.Close()
		keys := auth.NewRedisAPIKeyStore(rdb)

		serverCfg.AuthEnabled = true
		serverCfg.JWTService = jwtSvc
		serverCfg.APIKeyStore = keys
		serverCfg.HealthChecks["redis"] = keys.Ping
		log.Info("authentication enabled", zap.String("redis", cfg.RedisAddr()))
	}

	var ag *agent.Agent
	if cfg.RegistryEnabled {
		registry, err := etcd.NewEtcdRegistry(cfg.EtcdEndpoints, etcdDialTimeout)
		if err != nil {
			return err
		}
		defer registry.Close()
		serverCfg.HealthChecks["etcd"] = registry.Ping

		ag, err = agent.New(agent.Config{
			Address:  cfg.AdvertiseAddr,
			Version:  version,
			Interval: cfg.HeartbeatInterval,
			TTL:      time.Duration(cfg.AgentTTL) * time.Second,
		}, registry, log)
		if err != nil {
			return err
		}
	}

	server := api.NewServer(serverCfg)

	// READY must not be sent unless the port is actually ours.
	ln, err := net.Listen("tcp", server.Addr())
	if err != nil {
		_ = server.Shutdown(context.Background())
		return fmt.Errorf("failed to listen on %s: %w", server.Addr(), err)
	}

	if ag != nil {
		// The agent outlives the signal context so it can withdraw itself
		// after the HTTP server has drained.
		var agentWG sync.WaitGroup
		agentCtx, stopAgent := context.WithCancel(context.Background())
		agentWG.Add(1)
		go func() {
			defer agentWG.Done()
			ag.Run(agentCtx)
		}()
		defer func() {
			stopAgent()
			agentWG.Wait()
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warn("sd_notify failed", zap.Error(err))
	} else if ok {
		log.Debug("notified service manager of readiness")
	}

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("api server stopped: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info("received shutdown signal, initiating graceful shutdown")
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown error", zap.Error(err))
	}

	log.Info("shutdown complete")
	return nil
}

func newJWTService(secret, issuer string) (*auth.JWTService, error) {
	jwtCfg := auth.DefaultJWTConfig()
	jwtCfg.SecretKey = secret
	if issuer != "" {
		jwtCfg.Issuer = issuer
	}
	return auth.NewJWTService(jwtCfg)
}
