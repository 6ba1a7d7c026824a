// Command sheetd serves the slicing pipeline over HTTP, with the run
// manifest, debug routes and a gRPC health service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/banshee-data/itemsheet/internal/api"
	"github.com/banshee-data/itemsheet/internal/config"
	"github.com/banshee-data/itemsheet/internal/sheetdb"
	"github.com/banshee-data/itemsheet/internal/version"
)

// ServiceName is the gRPC health service name reported by sheetd.
const ServiceName = "itemsheet.Slicer"

var (
	listen      = flag.String("listen", ":8080", "HTTP listen address")
	grpcListen  = flag.String("grpc-listen", ":50051", "gRPC health listen address (empty disables)")
	dbPath      = flag.String("db", "itemsheet.db", "Path to the sqlite run manifest")
	outDir      = flag.String("out", "runs", "Directory that receives one subdirectory per run")
	configPath  = flag.String("config", "", "Path to a slice config JSON file (default: built-in defaults)")
	maxUpload   = flag.Int64("max-upload", api.DefaultMaxUploadBytes, "Maximum sheet upload size in bytes")
	gate        = flag.Bool("gate", false, "Run the quality gate on every upload")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func loadConfig(path string) (*config.SliceConfig, error) {
	if path == "" {
		return config.DefaultSliceConfig(), nil
	}
	return config.LoadSliceConfig(path)
}

// newHTTPHandler mounts the API and the admin debug routes.
func newHTTPHandler(db *sheetdb.DB, srv *api.Server) (http.Handler, error) {
	mux := http.NewServeMux()
	if err := db.AttachAdminRoutes(mux); err != nil {
		return nil, fmt.Errorf("failed to attach admin routes: %w", err)
	}
	mux.Handle("/", srv.ServeMux())
	return api.LoggingMiddleware(mux), nil
}

// newHealthServer returns a gRPC server exposing the standard health
// service with ServiceName and the overall status set to SERVING.
func newHealthServer() (*grpc.Server, *health.Server) {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	return gs, hs
}

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if *showVersion {
		fmt.Println(version.String("sheetd"))
		return
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	db, err := sheetdb.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open manifest database: %v", err)
	}
	defer db.Close()

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	srv := api.NewServer(db, cfg, *outDir)
	srv.MaxUploadBytes = *maxUpload
	srv.Gate = *gate

	handler, err := newHTTPHandler(db, srv)
	if err != nil {
		log.Fatal(err)
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// gRPC health routine
	if *grpcListen != "" {
		lis, err := net.Listen("tcp", *grpcListen)
		if err != nil {
			log.Fatalf("failed to listen on %s: %v", *grpcListen, err)
		}
		gs, hs := newHealthServer()

		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Printf("gRPC health server listening on %s", *grpcListen)
			if err := gs.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				log.Printf("gRPC server error: %v", err)
			}
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ctx.Done()
			hs.Shutdown()
			gs.GracefulStop()
			log.Printf("gRPC health server stopped")
		}()
	}

	// HTTP server routine
	wg.Add(1)
	go func() {
		defer wg.Done()

		server := &http.Server{
			Addr:              *listen,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			log.Printf("HTTP server listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
