package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"social-service/internal/auth"
	"social-service/internal/chat"
	"social-service/internal/config"
	"social-service/internal/db"
	"social-service/internal/feed"
	"social-service/internal/grpcserver"
	"social-service/internal/handlers"
	"social-service/internal/logging"
	"social-service/internal/notify"
	"social-service/internal/observability"
	"social-service/internal/rabbitmq"
	"social-service/internal/repositories"
	"social-service/internal/server"
	"social-service/internal/telemetry"
	"social-service/internal/ws"
)

const shutdownTimeout = 10 * time.Second

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "social-service",
		Short: "Ranked feed, realtime chat and notification service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
	setupFlags(rootCmd)
	rootCmd.AddCommand(issueTokenCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("grpc-address", defaults.GetString("grpc.address"), "gRPC health listen address")
	cmd.PersistentFlags().String("database-dsn", "", "PostgreSQL DSN")
	cmd.PersistentFlags().String("redis-address", "", "Redis address for the relation cache and socket broker")
	cmd.PersistentFlags().String("amqp-url", "", "RabbitMQ URL for events and push jobs")
	cmd.PersistentFlags().String("otel-endpoint", "", "OTLP gRPC collector endpoint")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Token signing secret (overrides env)")
	cmd.PersistentFlags().Bool("debug-routes", false, "Expose /debug endpoints")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "grpc.address", "grpc-address")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "redis.address", "redis-address")
	bindFlag(cmd, "amqp.url", "amqp-url")
	bindFlag(cmd, "otel.endpoint", "otel-endpoint")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "debug.enabled", "debug-routes")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func issueTokenCommand() *cobra.Command {
	var accountID int
	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Print a signed access token for an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
				SigningSecret: []byte(viper.GetString("auth.signing_secret")),
				Issuer:        viper.GetString("auth.issuer"),
				Audience:      viper.GetString("auth.audience"),
				TokenTTL:      viper.GetDuration("auth.token_ttl"),
			})
			if err != nil {
				return err
			}
			token, expiresIn, err := issuer.IssueToken(accountID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\nexpires_in=%d\n", token, expiresIn)
			return nil
		},
	}
	cmd.Flags().IntVar(&accountID, "account-id", 0, "Account id placed in the token subject")
	return cmd
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.ServiceName)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(signalCtx, appConfig.ServiceName, appConfig.OTelEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	database, err := db.Connect(signalCtx, appConfig.DatabaseDSN, logger)
	if err != nil {
		return err
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(appConfig.AMQPURL, appConfig.AMQPExchange, logger)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	logger.Info("event publisher ready", zap.String("mode", rabbitmq.PublisherMode(publisher)), zap.String("noop_reason", rabbitmq.PublisherNoopReason(publisher)))
	auditor := telemetry.NewAuditEmitter(publisher, "audit.log", appConfig.ServiceName, appConfig.Environment, logger)

	tokens, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.Auth.SigningSecret),
		Issuer:        appConfig.Auth.Issuer,
		Audience:      appConfig.Auth.Audience,
		TokenTTL:      appConfig.Auth.TokenTTL,
	})
	if err != nil {
		return err
	}

	accounts := repositories.NewAccountRepo(database)
	follows := repositories.NewFollowRepo(database)
	posts := repositories.NewPostRepo(database)
	chats := repositories.NewChatRepo(database)
	messages := repositories.NewMessageRepo(database)
	presence := repositories.NewPresenceRepo(database)
	notifications := repositories.NewNotificationRepo(database)

	hub := ws.NewHub(logger.Named("hub"))

	var relationCache feed.RelationCache = feed.NewMemoryRelationCache(appConfig.Feed.RelationsTTL, time.Now)
	var redisClient *redis.Client
	if appConfig.RedisAddress != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: appConfig.RedisAddress})
		defer redisClient.Close()
		if err := redisClient.Ping(signalCtx).Err(); err != nil {
			logger.Warn("redis unreachable, using in-process cache and local delivery", zap.Error(err))
			redisClient = nil
		}
	}
	var brokerErr chan error
	if redisClient != nil {
		relationCache = feed.NewRedisRelationCache(redisClient, appConfig.Feed.RelationsTTL)

		broker := ws.NewRedisBroker(redisClient, hub, logger.Named("broker"))
		ready := make(chan struct{})
		brokerErr = make(chan error, 1)
		go func() { brokerErr <- broker.Run(signalCtx, ready) }()
		select {
		case <-ready:
			hub.UseBroker(broker)
			logger.Info("socket broker subscribed", zap.String("channel", ws.BrokerChannel))
		case err := <-brokerErr:
			return fmt.Errorf("socket broker: %w", err)
		}
	}

	registry := ws.NewPresenceRegistry(presence, chats, hub, logger.Named("presence"))
	fanout := notify.NewFanout(notifications, presence, hub, notify.NewAMQPPusher(notifications, publisher, logger.Named("push")), logger.Named("notify"))
	fanout.UseLocalPresence(registry)

	feedService, err := feed.NewService(feed.ServiceConfig{
		Posts:           posts,
		Relations:       feed.NewRelationLoader(follows, accounts),
		Cache:           relationCache,
		DefaultPageSize: appConfig.Feed.DefaultPageSize,
		MobilePageSize:  appConfig.Feed.MobilePageSize,
		MaxPageSize:     appConfig.Feed.MaxPageSize,
		Logger:          logger.Named("feed"),
	})
	if err != nil {
		return err
	}
	graph := feed.NewGraph(feed.GraphConfig{
		Follows:     follows,
		Accounts:    accounts,
		Invalidator: feedService,
		Notifier:    fanout,
		Logger:      logger.Named("graph"),
	})
	chatService := chat.NewService(chat.ServiceConfig{
		Chats:    chats,
		Messages: messages,
		Presence: presence,
		Accounts: accounts,
		Router:   hub,
		Notifier: fanout,
		Logger:   logger.Named("chat"),
	})
	sockets := ws.NewHandler(ws.HandlerConfig{
		Hub:      hub,
		Presence: registry,
		Accounts: accounts,
		Chat:     chatService,
		Settings: ws.Settings{
			PingPeriod:      appConfig.WS.PingPeriod,
			IdleTimeout:     appConfig.WS.IdleTimeout,
			MaxMessageBytes: appConfig.WS.MaxMessageBytes,
			EventsPerSecond: appConfig.WS.EventsPerSecond,
			EventBurst:      appConfig.WS.EventBurst,
			SendBuffer:      appConfig.WS.SendBuffer,
		},
		Logger: logger.Named("ws"),
	})

	var ready atomic.Bool
	handler, err := server.NewHTTPHandler(server.Dependencies{
		ServiceName:    appConfig.ServiceName,
		AllowedOrigins: appConfig.CORSAllowedOrigins,
		Tokens:         tokens,
		Feed:           handlers.NewFeedHandler(feedService, auditor, logger.Named("http")),
		Follows:        handlers.NewFollowHandler(graph, auditor, logger.Named("http")),
		Chats:          handlers.NewChatHandler(chatService, auditor, logger.Named("http")),
		Notifications:  handlers.NewNotificationHandler(notifications, fanout, appConfig.IsAdmin, auditor, logger.Named("http")),
		Presence:       handlers.NewPresenceHandler(presence, logger.Named("http")),
		Sockets:        sockets,
		Auditor:        auditor,
		EnableDebug:    appConfig.DebugRoutes,
		Ready:          ready.Load,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	health := grpcserver.New(appConfig.ServiceName, logger.Named("grpc"))

	errCh := make(chan error, 2)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		if err := health.Serve(signalCtx, appConfig.GRPCAddress); err != nil {
			errCh <- fmt.Errorf("grpc health: %w", err)
		}
	}()
	ready.Store(true)
	health.SetServing(true)

	select {
	case <-signalCtx.Done():
	case err := <-errCh:
		logger.Error("server failed", zap.Error(err))
		stop()
		shutdownHTTP(httpServer, logger)
		return err
	case err := <-brokerErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("socket broker stopped", zap.Error(err))
			stop()
			shutdownHTTP(httpServer, logger)
			return err
		}
	}

	ready.Store(false)
	health.SetServing(false)
	logger.Info("shutting down")
	return shutdownHTTP(httpServer, logger)
}

func shutdownHTTP(httpServer *http.Server, logger *zap.Logger) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", zap.Error(err))
		return err
	}
	return nil
}
