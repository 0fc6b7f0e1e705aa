package api

import (
	"fmt"
	"image"
	"net"
	"time"
)

type TrackState string

const (
	StateSelected TrackState = "selected"
	StateTracking TrackState = "tracking"
	StateLost     TrackState = "lost"
)

// Region is the rotated rectangle reported by the mode-seeking search.
// Width and Height are the box side lengths in pixels, Angle is in degrees.
type Region struct {
	CenterX float64
	CenterY float64
	Width   float64
	Height  float64
	Angle   float64
	Corners []image.Point
}

// Degenerate reports whether the region collapsed below one pixel on either side,
// which is how a lost target shows up.
func (r Region) Degenerate() bool {
	return r.Width < 1 || r.Height < 1
}

// TrackEvent is what a tracker publishes for every frame it processes
// while a target is selected.
type TrackEvent struct {
	Timestamp time.Time
	SourceId  string
	SessionId string
	FrameId   int64
	State     TrackState
	Window    image.Rectangle
	Region    Region
}

type Service struct {
	Address string
	Port    string
}

func (s *Service) ServiceReachable() error {
	if s.Address == "" || s.Port == "" {
		return fmt.Errorf("service address or port is not set")
	}
	address := fmt.Sprintf("%s:%s", s.Address, s.Port)
	conn, err := net.DialTimeout("tcp", address, 3*time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()
	return nil
}
