package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	hlog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzzerolog "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/spf13/pflag"

	"resume-rag-go/internal/agent"
	"resume-rag-go/internal/api/handler"
	"resume-rag-go/internal/api/router"
	"resume-rag-go/internal/config"
	applogger "resume-rag-go/internal/logger"
	"resume-rag-go/internal/outbox"
	"resume-rag-go/internal/processor"
	"resume-rag-go/internal/storage"
	"resume-rag-go/internal/tracing"
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "", "配置文件路径，空则按默认位置查找")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		applogger.Fatal().Err(err).Msg("加载配置失败")
	}

	applogger.Init(applogger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})
	log := applogger.Logger.With().Str("app", "resume-rag").Logger()
	hlog.SetLogger(hertzzerolog.From(log))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.InitTracerProvider(ctx, cfg.Tracing.OTLPEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("初始化追踪失败")
	}

	storageManager, err := storage.NewStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("初始化存储失败")
	}
	defer storageManager.Close(log)
	log.Info().Msg("存储组件初始化完成")

	ingestor, err := processor.NewIngestorFromConfig(ctx, cfg, storageManager, log)
	if err != nil {
		log.Fatal().Err(err).Msg("初始化入库流水线失败")
	}

	// 问答依赖Qdrant，未配置时降级为纯入库服务
	var answerer *agent.Answerer
	if storageManager.Qdrant != nil {
		answerer, err = agent.NewAnswererFromConfig(cfg, storageManager, ingestor.Embedder(), log)
		if err != nil {
			log.Fatal().Err(err).Msg("初始化问答服务失败")
		}
		log.Info().Msg("问答服务初始化完成")
	} else {
		log.Warn().Msg("Qdrant未初始化，问答端点不可用")
	}

	var messageRelay *outbox.MessageRelay
	if storageManager.MySQL != nil && storageManager.RabbitMQ != nil {
		messageRelay = outbox.NewMessageRelay(storageManager.MySQL.DB(), storageManager.RabbitMQ, log)
		messageRelay.Start()

		if _, err := ingestor.StartUploadConsumer(ctx); err != nil {
			log.Fatal().Err(err).Msg("启动上传消费者失败")
		}
		log.Info().Msg("发件箱中继与上传消费者已启动")
	} else {
		log.Warn().Msg("MySQL或RabbitMQ未初始化，异步入库链路不可用")
	}

	resumeHandler := handler.NewResumeHandler(cfg, storageManager, ingestor, answerer, log)

	serverTracer, serverTracerCfg := hertztracing.NewServerTracer()
	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		serverTracer,
	)
	h.Use(hertztracing.ServerMiddleware(serverTracerCfg))

	router.RegisterRoutes(h, resumeHandler, cfg.Server.APIKeys)
	log.Info().Str("address", cfg.Server.Address).Msg("HTTP服务器启动")

	go func() {
		if err := h.Run(); err != nil {
			log.Fatal().Err(err).Msg("HTTP服务器异常退出")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("收到终止信号，开始优雅退出")

	cancel()
	if messageRelay != nil {
		messageRelay.Stop()
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP服务器关闭失败")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("追踪导出器关闭失败")
	}
	log.Info().Msg("优雅退出完成")
}
