package internal

import (
	"context"
	"log"
	"sync"
	"time"

	api "github.com/etesami/camshift-tracker/api"
	metric "github.com/etesami/camshift-tracker/pkg/metric"
	"github.com/etesami/camshift-tracker/pkg/sink"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Server collects track events and keeps the latest one per session.
type Server struct {
	Metric *metric.Metric

	mu   sync.Mutex
	last map[string]api.TrackEvent
}

func NewServer(m *metric.Metric) *Server {
	return &Server{
		Metric: m,
		last:   make(map[string]api.TrackEvent),
	}
}

// Publish handles incoming events from tracker services
func (s *Server) Publish(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	recTime := time.Now()
	ev, sentTime, err := sink.DecodeEvent(in)
	if err != nil {
		log.Printf("Error decoding event: %v", err)
		return nil, status.Errorf(codes.InvalidArgument, "invalid event: %v", err)
	}

	s.Metric.AddReceivedEvent(string(ev.State))
	s.Metric.AddProcessingTime(float64(recTime.Sub(sentTime).Microseconds()) / 1000.0)

	switch ev.State {
	case api.StateLost:
		log.Printf("Received [%s] from [%s]: session [%s] lost target at frame [%d]", ev.State, ev.SourceId, ev.SessionId, ev.FrameId)
	case api.StateSelected:
		log.Printf("Received [%s] from [%s]: session [%s] started with window [%v]", ev.State, ev.SourceId, ev.SessionId, ev.Window)
	default:
		log.Printf("Received [%s] from [%s]: session [%s] frame [%d] window [%v] angle [%.1f]", ev.State, ev.SourceId, ev.SessionId, ev.FrameId, ev.Window, ev.Region.Angle)
	}

	s.mu.Lock()
	s.last[ev.SessionId] = ev
	s.mu.Unlock()

	return sink.NewAck(recTime, time.Now()), nil
}

// Last returns the most recent event of a session.
func (s *Server) Last(sessionId string) (api.TrackEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.last[sessionId]
	return ev, ok
}

// Sessions returns the number of sessions seen so far.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.last)
}
