package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	metric "github.com/etesami/camshift-tracker/pkg/metric"
	"github.com/etesami/camshift-tracker/pkg/sink"
	utils "github.com/etesami/camshift-tracker/pkg/utils"
	"github.com/etesami/camshift-tracker/svc-sink/internal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Sink failed: %v", err)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("error loading .env file: %v", err)
	}
	port := os.Getenv("SVC_SINK_PORT")
	if port == "" {
		return fmt.Errorf("SVC_SINK_PORT environment variable is not set")
	}
	host := os.Getenv("SVC_SINK_HOST")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", net.JoinHostPort(host, port))
	if err != nil {
		return fmt.Errorf("failed to listen on [%s:%s]: %v", host, port, err)
	}

	m := &metric.Metric{}
	m.RegisterMetrics(nil,
		utils.ParseBuckets(os.Getenv("SENT_DATA_BUCKETS")),
		utils.ParseBuckets(os.Getenv("PROC_TIME_BUCKETS")),
		utils.ParseBuckets(os.Getenv("RTT_TIME_BUCKETS")))
	grpcServer := grpc.NewServer()
	sink.RegisterTrackSinkServer(grpcServer, internal.NewServer(m))

	errCh := make(chan error, 2)
	go func() {
		log.Printf("Track sink listening on [%s]", listener.Addr())
		errCh <- grpcServer.Serve(listener)
	}()

	var metricServer *http.Server
	if metricPort := os.Getenv("METRIC_PORT"); metricPort != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricServer = &http.Server{
			Addr:    net.JoinHostPort(os.Getenv("METRIC_ADDR"), metricPort),
			Handler: mux,
		}
		go func() {
			log.Printf("Serving metrics on [%s]", metricServer.Addr)
			if err := metricServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("metrics server: %v", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Printf("Stopping track sink: %v", ctx.Err())
		err = nil
	case err = <-errCh:
	}

	grpcServer.GracefulStop()
	if metricServer != nil {
		if serr := metricServer.Shutdown(context.Background()); serr != nil {
			log.Printf("Error shutting down metrics server: %v", serr)
		}
	}
	return err
}
