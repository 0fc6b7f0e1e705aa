package sink

import (
	"image"
	"time"

	api "github.com/etesami/camshift-tracker/api"
	"github.com/etesami/camshift-tracker/pkg/utils"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/types/known/structpb"
)

// EncodeEvent converts ev into the wire struct, stamping it with sentTime.
func EncodeEvent(ev api.TrackEvent, sentTime time.Time) (*structpb.Struct, error) {
	corners := make([]interface{}, 0, len(ev.Region.Corners))
	for _, p := range ev.Region.Corners {
		corners = append(corners, map[string]interface{}{"x": p.X, "y": p.Y})
	}
	s, err := structpb.NewStruct(map[string]interface{}{
		"timestamp_ms": ev.Timestamp.UnixMilli(),
		"sent_ms":      sentTime.UnixMilli(),
		"source_id":    ev.SourceId,
		"session_id":   ev.SessionId,
		"frame_id":     ev.FrameId,
		"state":        string(ev.State),
		"window": map[string]interface{}{
			"min_x": ev.Window.Min.X,
			"min_y": ev.Window.Min.Y,
			"max_x": ev.Window.Max.X,
			"max_y": ev.Window.Max.Y,
		},
		"region": map[string]interface{}{
			"center_x": ev.Region.CenterX,
			"center_y": ev.Region.CenterY,
			"width":    ev.Region.Width,
			"height":   ev.Region.Height,
			"angle":    ev.Region.Angle,
			"corners":  corners,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "error encoding track event")
	}
	return s, nil
}

// DecodeEvent is the inverse of EncodeEvent; it also returns the sent time.
func DecodeEvent(s *structpb.Struct) (api.TrackEvent, time.Time, error) {
	f := s.GetFields()
	state := api.TrackState(f["state"].GetStringValue())
	switch state {
	case api.StateSelected, api.StateTracking, api.StateLost:
	default:
		return api.TrackEvent{}, time.Time{}, errors.Errorf("unknown track state [%s]", state)
	}

	w := f["window"].GetStructValue().GetFields()
	r := f["region"].GetStructValue().GetFields()
	var corners []image.Point
	for _, v := range r["corners"].GetListValue().GetValues() {
		p := v.GetStructValue().GetFields()
		corners = append(corners, image.Pt(intField(p, "x"), intField(p, "y")))
	}

	ev := api.TrackEvent{
		Timestamp: utils.UnixMilliToTime(int64(f["timestamp_ms"].GetNumberValue())),
		SourceId:  f["source_id"].GetStringValue(),
		SessionId: f["session_id"].GetStringValue(),
		FrameId:   int64(f["frame_id"].GetNumberValue()),
		State:     state,
		Window:    image.Rect(intField(w, "min_x"), intField(w, "min_y"), intField(w, "max_x"), intField(w, "max_y")),
		Region: api.Region{
			CenterX: r["center_x"].GetNumberValue(),
			CenterY: r["center_y"].GetNumberValue(),
			Width:   r["width"].GetNumberValue(),
			Height:  r["height"].GetNumberValue(),
			Angle:   r["angle"].GetNumberValue(),
			Corners: corners,
		},
	}
	return ev, utils.UnixMilliToTime(int64(f["sent_ms"].GetNumberValue())), nil
}

// NewAck builds the reply a sink sends for every event.
func NewAck(recTime, ackSentTime time.Time) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"status":      structpb.NewStringValue("ok"),
		"received_ms": structpb.NewNumberValue(float64(recTime.UnixMilli())),
		"ack_sent_ms": structpb.NewNumberValue(float64(ackSentTime.UnixMilli())),
	}}
}

// AckTimes returns the receive and ack-send times carried by an ack. A missing
// field yields the zero time.
func AckTimes(ack *structpb.Struct) (time.Time, time.Time) {
	f := ack.GetFields()
	return timeField(f, "received_ms"), timeField(f, "ack_sent_ms")
}

func timeField(f map[string]*structpb.Value, key string) time.Time {
	v, ok := f[key]
	if !ok {
		return time.Time{}
	}
	if _, isNum := v.GetKind().(*structpb.Value_NumberValue); !isNum {
		return time.Time{}
	}
	return utils.UnixMilliToTime(int64(v.GetNumberValue()))
}

func intField(f map[string]*structpb.Value, key string) int {
	return int(f[key].GetNumberValue())
}
