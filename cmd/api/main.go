// @title           TenderRAG API
// @version         1.0
// @description     Question answering over tender PDFs with section level citations
// @termsOfService  http://swagger.io/terms/

// @contact.name    me lol
// @contact.url
// @contact.email

// @license.name    Apache 2.0
// @license.url     http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:3000
// @BasePath  /
// @schemes   http https
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/akolanti/TenderRAG/internal/bootstrap"
	"github.com/akolanti/TenderRAG/internal/config"
	"github.com/akolanti/TenderRAG/internal/data/redisStore"
	"github.com/akolanti/TenderRAG/internal/data/store"
	"github.com/akolanti/TenderRAG/internal/domain/jobModel"
	"github.com/akolanti/TenderRAG/internal/handlers"
	"github.com/akolanti/TenderRAG/internal/job"
	"github.com/akolanti/TenderRAG/internal/middleware"
	"github.com/akolanti/TenderRAG/internal/server"
	"github.com/akolanti/TenderRAG/internal/worker"
	"github.com/akolanti/TenderRAG/pkg/logger_i"
)

var (
	listenAddr        string
	configPath        string
	stopWorkerChannel chan bool
	workerWaitGroup   sync.WaitGroup
)

func main() {
	//config
	flag.StringVar(&listenAddr, "listen-addr", "", "server listen address")
	flag.StringVar(&configPath, "config", "", "optional YAML settings file")
	flag.Parse()

	settings, err := config.Load(configPath)
	logger_i.Init(settings.IsProd, settings.LogLevel)
	var logger = logger_i.NewLogger("main")
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	if listenAddr == "" {
		listenAddr = settings.ListenAddr
	}
	middleware.Configure(settings)

	stopWorkerChannel = make(chan bool, 1)

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	jobStore, err := newJobStore(serviceContext, settings.Redis)
	if err != nil {
		logger.Error("Job store unavailable", "error", err)
		return
	}
	logger.Info("Starting job service")
	service := job.NewService(jobStore, config.BufferLimit)

	components, err := bootstrap.New(serviceContext, settings)
	if err != nil {
		logger.Error("One or more external services failed to initialize. Shutting down.", "error", err)
		return
	}

	handlers.InitJobHandler(service)
	handlers.InitRequestHandler(components.Service, components.Documents, components.Health())

	//init worker pool
	worker.InitServices(service, components.Service)
	worker.InitWorkerPool(stopWorkerChannel, &workerWaitGroup)

	//server handling
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		WorkerStop:       stopWorkerChannel,
		Group:            &workerWaitGroup,
		CloseServices:    closeExternalServices,
	}
	httpServer := server.New(listenAddr)
	go httpServer.AwaitShutdown(shutdownParams)
	go httpServer.Serve()

	<-stopExecution
	logger.Info("Server stopped")
}

// newJobStore keeps build jobs in redis when enabled so their status survives a restart.
func newJobStore(ctx context.Context, s config.RedisSettings) (jobModel.JobStore, error) {
	if !s.Enabled {
		return store.InitInMemoryJobStore(), nil
	}
	redisStore.Configure(s)
	if redisJobs := redisStore.GetRedisStore(ctx, config.RedisJobStore); redisJobs != nil {
		return store.NewRedisJobStore(redisJobs), nil
	}
	if !config.FALLBACK_REDIS_TO_INTERNALSTORE {
		return nil, errors.New("redis job store is offline")
	}
	logger_i.NewLogger("main").Warn("Redis stores are offline, using the in-memory job store")
	return store.InitInMemoryJobStore(), nil
}
