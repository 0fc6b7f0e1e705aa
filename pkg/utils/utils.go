package utils

import (
	"context"
	"fmt"
	"image"
	"log"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	api "github.com/etesami/camshift-tracker/api"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
)

// CalculateRtt calculates the transit time in milliseconds from the four
// timestamps of a request/ack exchange, leaving out the time the remote side
// spent between receiving the message and sending the ack.
func CalculateRtt(msgSentTime, msgRecTime, ackSentTime, ackRecTime time.Time) (float64, error) {
	if msgSentTime.IsZero() || msgRecTime.IsZero() || ackSentTime.IsZero() || ackRecTime.IsZero() {
		return -1, fmt.Errorf("missing timestamp: (%v, %v, %v, %v)", msgSentTime, msgRecTime, ackSentTime, ackRecTime)
	}
	t1 := msgRecTime.Sub(msgSentTime)
	t2 := ackRecTime.Sub(ackSentTime)
	rtt := float64((t1 + t2).Microseconds()) / 1000.0
	return rtt, nil
}

// UnixMilliToTime converts a Unix timestamp in milliseconds to a time.Time object
func UnixMilliToTime(unixMilli int64) time.Time {
	return time.Unix(unixMilli/1000, (unixMilli%1000)*int64(time.Millisecond))
}

// ParseBuckets parses a comma-separated string of bucket values into a slice of float64
func ParseBuckets(env string) []float64 {
	if env == "" {
		return nil
	}
	parts := strings.Split(env, ",")
	var buckets []float64
	for _, p := range parts {
		if f, err := strconv.ParseFloat(strings.TrimSpace(p), 64); err == nil {
			buckets = append(buckets, f)
		} else {
			log.Printf("Error parsing bucket value '%s': %v\n", p, err)
			return nil
		}
	}
	return buckets
}

// ParseInts parses a comma-separated list of integers, e.g. "16,16".
func ParseInts(env string) ([]int, error) {
	if env == "" {
		return nil, nil
	}
	var values []int
	for _, p := range strings.Split(env, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("failed to parse value '%s': %v", p, err)
		}
		values = append(values, v)
	}
	return values, nil
}

// GetIoU calculates the Intersection over Union (IoU) of two windows.
// Returns 0.0 if either window is empty or if they do not overlap.
func GetIoU(bb1, bb2 image.Rectangle) float64 {
	if bb1.Empty() || bb2.Empty() {
		return 0.0
	}
	intersect := bb1.Intersect(bb2)
	if intersect.Empty() {
		return 0.0
	}
	interArea := intersect.Dx() * intersect.Dy()
	unionArea := bb1.Dx()*bb1.Dy() + bb2.Dx()*bb2.Dy() - interArea
	return float64(interArea) / float64(unionArea)
}

// MonitorConnection keeps a gRPC connection to targetSvc stored in connRef
// until ctx is done. An unreachable service drops the stored connection so
// callers can skip sending instead of blocking on a dead peer.
func MonitorConnection(ctx context.Context, targetSvc api.Service, connRef *atomic.Pointer[grpc.ClientConn], every time.Duration) {
	var conn *grpc.ClientConn
	defer func() {
		if conn != nil {
			connRef.Store(nil)
			conn.Close()
		}
	}()

	for {
		if err := targetSvc.ServiceReachable(); err != nil {
			if conn != nil {
				connRef.Store(nil)
				conn.Close()
				conn = nil
			}
			log.Printf("Target service [%s:%s] is not reachable: %v", targetSvc.Address, targetSvc.Port, err)
		} else if conn == nil || conn.GetState() == connectivity.Shutdown || conn.GetState() == connectivity.TransientFailure {
			if conn != nil {
				conn.Close()
			}
			newConn, err := grpc.NewClient(
				targetSvc.Address+":"+targetSvc.Port,
				grpc.WithTransportCredentials(insecure.NewCredentials()))
			if err != nil {
				log.Println("Failed to connect:", err)
				conn = nil
			} else {
				conn = newConn
				connRef.Store(conn)
				log.Printf("gRPC client connected to [%s:%s]", targetSvc.Address, targetSvc.Port)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(every):
		}
	}
}
