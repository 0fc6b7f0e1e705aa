package internal

import (
	"context"
	"image"
	"testing"
	"time"

	api "github.com/etesami/camshift-tracker/api"
	"github.com/etesami/camshift-tracker/pkg/sink"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func publish(t *testing.T, s *Server, ev api.TrackEvent) *structpb.Struct {
	t.Helper()
	msg, err := sink.EncodeEvent(ev, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	ack, err := s.Publish(context.Background(), msg)
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	return ack
}

func TestServerKeepsLastEventPerSession(t *testing.T) {
	s := NewServer(nil)
	base := api.TrackEvent{Timestamp: time.Now(), SourceId: "camera", SessionId: "a", State: api.StateSelected, Window: image.Rect(60, 60, 100, 100)}

	publish(t, s, base)
	next := base
	next.FrameId, next.State, next.Window = 2, api.StateTracking, image.Rect(56, 56, 104, 104)
	ack := publish(t, s, next)
	other := base
	other.SessionId = "b"
	publish(t, s, other)

	if ack.GetFields()["status"].GetStringValue() != "ok" {
		t.Errorf("ack: %v", ack)
	}
	if s.Sessions() != 2 {
		t.Errorf("sessions: %d, expected: 2", s.Sessions())
	}
	last, ok := s.Last("a")
	if !ok || last.State != api.StateTracking || last.Window != next.Window {
		t.Errorf("last event of session a: %+v", last)
	}
	if _, ok := s.Last("missing"); ok {
		t.Errorf("unexpected event for unknown session")
	}
}

func TestServerRejectsInvalidEvent(t *testing.T) {
	s := NewServer(nil)
	msg, _ := structpb.NewStruct(map[string]interface{}{"state": "unknown"})
	_, err := s.Publish(context.Background(), msg)
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("error code: %v, expected: InvalidArgument", status.Code(err))
	}
	if s.Sessions() != 0 {
		t.Errorf("invalid event stored")
	}
}
