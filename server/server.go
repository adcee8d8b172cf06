package server

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"gorm.io/gorm"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/mailgram/mailgram/api"
	"github.com/mailgram/mailgram/config"
	"github.com/mailgram/mailgram/internal/cron"
	"github.com/mailgram/mailgram/internal/crypto"
	"github.com/mailgram/mailgram/internal/kv"
	"github.com/mailgram/mailgram/internal/logger"
	"github.com/mailgram/mailgram/internal/repository"
	"github.com/mailgram/mailgram/internal/tracing"
	"github.com/mailgram/mailgram/services"
)

type Server struct {
	config       *config.Config
	log          logger.Logger
	httpServer   *http.Server
	router       *gin.Engine
	services     *services.Services
	repositories *repository.Repositories
	kvClient     kv.Client
	cronManager  *cron.CronManager
	tracerCloser io.Closer
}

func NewServer(cfg *config.Config, db *gorm.DB) (*Server, error) {
	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()

	tracer, closer, err := tracing.NewJaegerTracer(cfg.Tracing, appLogger)
	if err != nil {
		log.Fatalf("Could not initialize jaeger tracer: %s", err.Error())
	}
	opentracing.SetGlobalTracer(tracer)

	kvClient, err := kv.NewRedisClient(cfg.RedisConfig.URL)
	if err != nil {
		return nil, err
	}

	cipher, err := crypto.NewCipher(cfg.CryptoConfig.Key)
	if err != nil {
		return nil, err
	}

	cacheTTL := time.Duration(cfg.RedisConfig.CacheTTLSeconds) * time.Second
	repos := repository.InitRepositories(db, kvClient, cacheTTL)
	svcs := services.InitServices(cfg, repos, kvClient, cipher, appLogger)

	cronManager := cron.NewCronManager(cfg, appLogger, k8sClient(appLogger), svcs.RetryWorker)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Logger())
	if err := router.SetTrustedProxies(cfg.AppConfig.AllowedHosts); err != nil {
		return nil, err
	}

	return &Server{
		config:       cfg,
		log:          appLogger,
		router:       router,
		services:     svcs,
		repositories: repos,
		kvClient:     kvClient,
		cronManager:  cronManager,
		tracerCloser: closer,
		httpServer: &http.Server{
			Addr:    ":" + cfg.AppConfig.APIPort,
			Handler: router,
		},
	}, nil
}

// k8sClient builds an in-cluster client when one is available. Outside
// a cluster the cron manager falls back to local mode.
func k8sClient(log logger.Logger) kubernetes.Interface {
	clusterConfig, err := rest.InClusterConfig()
	if err != nil {
		log.Info("No in-cluster kubernetes config, cron runs in local mode")
		return nil
	}
	clientset, err := kubernetes.NewForConfig(clusterConfig)
	if err != nil {
		log.Warnf("Could not build kubernetes client: %v", err)
		return nil
	}
	return clientset
}

func (s *Server) recoverWithJaeger(name string) {
	if r := recover(); r != nil {
		span := opentracing.GlobalTracer().StartSpan(
			fmt.Sprintf("panic.%s", name),
		)
		defer span.Finish()

		ext.Error.Set(span, true)
		span.LogKV(
			"event", "panic",
			"process", name,
			"error", fmt.Sprintf("%v", r),
			"stack", string(debug.Stack()),
		)

		s.log.Errorf("Panic in %s: %v\n%s", name, r, debug.Stack())
	}
}

func (s *Server) wrapGoroutine(name string, fn func()) {
	defer s.recoverWithJaeger(name)
	fn()
}

func (s *Server) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api.RegisterRoutes(s.router, s.services, s.config.AppConfig.APIKey)

	// Relaunch workers for every persisted mailbox before accepting
	// new control requests.
	go s.wrapGoroutine("supervisor", func() {
		if err := s.services.Supervisor.RestartAll(ctx); err != nil {
			s.log.Errorf("Supervisor restart failed: %v", err)
		}
	})

	podName := os.Getenv("POD_NAME")
	namespace := os.Getenv("POD_NAMESPACE")
	if namespace == "" {
		namespace = "default"
	}
	if err := s.cronManager.Start(podName, namespace); err != nil {
		return err
	}

	go s.wrapGoroutine("http_server", func() {
		s.log.Infof("Starting HTTP server on :%s", s.config.AppConfig.APIPort)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Errorf("HTTP server error: %v", err)
		}
	})

	return s.waitForShutdown()
}

func (s *Server) waitForShutdown() error {
	defer s.recoverWithJaeger("shutdown")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	s.log.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if s.tracerCloser != nil {
		s.tracerCloser.Close()
	}

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Errorf("HTTP server shutdown error: %v", err)
	}

	s.cronManager.Stop()

	// Workers wind down through their status slots; wait briefly for
	// in-flight deliveries, then let the process exit.
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer waitCancel()
	if err := s.services.Supervisor.Wait(waitCtx); err != nil {
		s.log.Warn("Workers did not stop in time, forcing exit")
	}

	if err := s.kvClient.Close(); err != nil {
		s.log.Errorf("KV client close error: %v", err)
	}

	return nil
}
