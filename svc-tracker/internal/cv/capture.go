// Package cv adapts gocv to the session's source, display, canvas and
// tracker contracts.
package cv

import (
	"fmt"
	"log"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Capture reads frames from a camera or a video file.
type Capture struct {
	capture *gocv.VideoCapture
	source  string
	frames  int
}

// OpenCapture opens videoPath when it is set, camera deviceID otherwise.
func OpenCapture(videoPath string, deviceID int) (*Capture, error) {
	var (
		capture *gocv.VideoCapture
		err     error
		source  string
	)
	if videoPath != "" {
		source = videoPath
		capture, err = gocv.VideoCaptureFile(videoPath)
	} else {
		source = fmt.Sprintf("camera %d", deviceID)
		capture, err = gocv.VideoCaptureDevice(deviceID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "error opening video source [%s]", source)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, errors.Errorf("video source [%s] is not opened", source)
	}
	log.Printf("Opened video source: [%s]", source)
	return &Capture{capture: capture, source: source}, nil
}

// Read returns a new Mat for every frame; the caller owns it.
func (c *Capture) Read() (gocv.Mat, bool) {
	img := gocv.NewMat()
	if ok := c.capture.Read(&img); !ok || img.Empty() {
		img.Close()
		return gocv.Mat{}, false
	}
	c.frames++
	return img, true
}

func (c *Capture) Close() error {
	log.Printf("Closing video source [%s] after [%d] frames", c.source, c.frames)
	return c.capture.Close()
}
