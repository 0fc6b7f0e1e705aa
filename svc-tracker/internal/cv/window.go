package cv

import (
	"fmt"
	"log"
	"time"

	"github.com/etesami/camshift-tracker/svc-tracker/internal/session"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

type WindowConfig struct {
	Name               string
	SaveImage          bool
	SaveImagePath      string
	SaveImageFrequency int
}

// Window is a highgui window. With SaveImage set, every SaveImageFrequency-th
// shown frame is also written to SaveImagePath.
type Window struct {
	config *WindowConfig
	window *gocv.Window
	shown  int
}

func NewWindow(config *WindowConfig) *Window {
	if config.SaveImageFrequency <= 0 {
		config.SaveImageFrequency = 1
	}
	return &Window{
		config: config,
		window: gocv.NewWindow(config.Name),
	}
}

func (w *Window) Show(frame gocv.Mat) error {
	if frame.Empty() {
		return fmt.Errorf("empty frame for window [%s]", w.config.Name)
	}
	if err := w.window.IMShow(frame); err != nil {
		return errors.Wrapf(err, "error showing frame in window [%s]", w.config.Name)
	}
	w.shown++
	if w.config.SaveImage && w.shown%w.config.SaveImageFrequency == 0 {
		timestamp := time.Now().UnixNano()
		filename := fmt.Sprintf("%s/%d_tracker.jpg", w.config.SaveImagePath, timestamp)
		if ok := gocv.IMWrite(filename, frame); !ok {
			log.Printf("Failed to write frame to file [%s]", filename)
		}
	}
	return nil
}

// IsOpen reports false once the user has closed the window.
func (w *Window) IsOpen() bool {
	return w.window.IsOpen() && w.window.GetWindowProperty(gocv.WindowPropertyVisible) != 0
}

func (w *Window) WaitKey(delay int) int {
	return w.window.WaitKey(delay)
}

func (w *Window) SetMouseHandler(handler func(event session.MouseEvent, x, y int)) {
	w.window.SetMouseHandler(func(event, x, y, flags int, userdata interface{}) {
		handler(session.MouseEvent(event), x, y)
	}, nil)
}

func (w *Window) Close() error {
	return w.window.Close()
}
