package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync/atomic"
	"syscall"
	"time"

	metric "github.com/etesami/camshift-tracker/pkg/metric"
	"github.com/etesami/camshift-tracker/pkg/sink"
	utils "github.com/etesami/camshift-tracker/pkg/utils"
	"github.com/etesami/camshift-tracker/svc-tracker/internal/config"
	"github.com/etesami/camshift-tracker/svc-tracker/internal/cv"
	"github.com/etesami/camshift-tracker/svc-tracker/internal/session"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gocv.io/x/gocv"
	"google.golang.org/grpc"
)

func init() {
	// highgui calls must stay on the main thread
	runtime.LockOSThread()
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("Tracker failed: %v", err)
	}
}

func run() error {
	if err := config.LoadEnvFile(".env"); err != nil {
		return err
	}
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := &metric.Metric{}
	m.RegisterMetrics(nil, cfg.SentDataBuckets, cfg.ProcTimeBuckets, cfg.RttTimeBuckets)
	if cfg.MetricPort != "" {
		server := startMetricServer(cfg.MetricAddr, cfg.MetricPort)
		defer func() {
			if err := server.Shutdown(context.Background()); err != nil {
				log.Printf("Error shutting down metrics server: %v", err)
			}
		}()
	}

	sessCfg := session.DefaultConfig()
	sessCfg.SourceId = cfg.SourceId
	sessCfg.SelectDelay = cfg.SelectPollMs
	sessCfg.Metric = m

	if cfg.RemoteSink != nil {
		var connRef atomic.Pointer[grpc.ClientConn]
		go utils.MonitorConnection(ctx, *cfg.RemoteSink, &connRef, 5*time.Second)
		publisher := sink.NewPublisher(&connRef, m, 64, time.Second)
		defer publisher.Close()
		sessCfg.Publisher = publisher
	}

	capture, err := cv.OpenCapture(cfg.VideoPath, cfg.CameraDevice)
	if err != nil {
		return err
	}
	window := cv.NewWindow(&cv.WindowConfig{
		Name:               cfg.WindowName,
		SaveImage:          cfg.SaveImage,
		SaveImagePath:      cfg.SaveImagePath,
		SaveImageFrequency: cfg.SaveImageFrequency,
	})

	var tracker session.Tracker[gocv.Mat]
	switch cfg.Backend {
	case config.BackendSoftware:
		tracker = cv.NewSoftwareTracker(cfg.HistBins, cfg.Criteria)
	default:
		tracker = cv.NewCamShiftTracker(cfg.HistBins, cfg.Criteria)
	}
	log.Printf("Tracker backend [%s], bins %v, criteria %+v", cfg.Backend, cfg.HistBins, cfg.Criteria)
	log.Printf("Press [i] to select 4 ROI points, [q] to quit")

	s := session.New[gocv.Mat](sessCfg, capture, window, cv.NewCanvas(), tracker)
	return s.Run(ctx)
}

func startMetricServer(addr, port string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", addr, port),
		Handler: mux,
	}
	go func() {
		log.Printf("Starting metrics server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Metrics server stopped: %v", err)
		}
	}()
	return server
}
