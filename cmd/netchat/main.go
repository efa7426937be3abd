package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/harborpoint/netchat/services/chat/agent"
	"github.com/harborpoint/netchat/services/chat/exporters"
	"github.com/harborpoint/netchat/services/chat/fallback"
	"github.com/harborpoint/netchat/services/chat/routes"
	"github.com/harborpoint/netchat/services/chat/store"
	"github.com/harborpoint/netchat/services/llm"
	"github.com/harborpoint/netchat/services/toolserver"
)

const serviceName = "netchat"

func envOr(key, fallbackValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallbackValue
}

// initTracer wires the OTLP gRPC exporter. It is optional: without
// OTEL_EXPORTER_OTLP_ENDPOINT the service runs with the no-op provider.
func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		slog.Info("OTEL_EXPORTER_OTLP_ENDPOINT not set, tracing disabled")
		return func(context.Context) {}, nil
	}

	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)))
	if err != nil {
		return nil, err
	}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(traceExporter)))
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shut down OTLP exporter", "error", err)
		}
	}, nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := envOr("NETCHAT_PORT", "8080")
	dataDir := envOr("NETCHAT_DATA_DIR", "data/conversations")
	exportDir := envOr("NETCHAT_EXPORT_DIR", "exports")

	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to set up the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	conversations, err := store.OpenBadger(dataDir)
	if err != nil {
		log.Fatalf("failed to open conversation store: %v", err)
	}
	defer conversations.Close()

	serverName := envOr("TOOL_SERVER_NAME", "nautobot")
	dispatcher := toolserver.NewClient(
		serverName,
		envOr("TOOL_SERVER_URL", "http://localhost:8001"),
		envOr("TOOL_SERVER_API_KEY", "dev-mcp-key"),
	).WithFallbackCatalog(toolserver.StaticManifest())

	// With a completion backend the agent loop drives turns; without one
	// the deterministic heuristic responder substitutes.
	var responder agent.Responder
	switch backend := os.Getenv("LLM_BACKEND_TYPE"); backend {
	case "openai":
		client, err := llm.NewOpenAIClient()
		if err != nil {
			log.Fatalf("failed to initialize OpenAI client: %v", err)
		}
		slog.Info("using OpenAI completion backend")
		responder = agent.New(client, dispatcher)
	case "", "none":
		slog.Warn("LLM_BACKEND_TYPE not set, using heuristic fallback responder")
		responder = fallback.New(dispatcher, nil)
	default:
		log.Fatalf("unknown LLM_BACKEND_TYPE %q (want openai or none)", backend)
	}

	router := gin.Default()
	router.Use(otelgin.Middleware(serviceName))

	routes.SetupRoutes(router, routes.Deps{
		Conversations: conversations,
		Responders:    map[string]agent.Responder{serverName: responder},
		Exporter:      exporters.New(exportDir),
	})

	slog.Info("starting netchat", "port", port, "tool_server", serverName)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
