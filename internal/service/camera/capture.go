package camera

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"alertcam/internal/service/camera/udpframe"

	"gocv.io/x/gocv"
)

// ErrEndOfStream is returned by NextFrame when the source has no more
// frames or cannot be read any more.
var ErrEndOfStream = errors.New("end of stream")

// Source produces frames for the detection loop. Every frame returned by
// NextFrame must be given back with Release.
type Source interface {
	NextFrame(ctx context.Context) (gocv.Mat, error)
	Release(frame gocv.Mat)
	Close() error
}

// Open picks a source for device: "udp://:9000" listens for JPEG frames
// pushed over UDP, a number is a local camera index, anything else is a
// file or stream URL understood by OpenCV.
func Open(ctx context.Context, device string) (Source, error) {
	if addr, ok := strings.CutPrefix(device, "udp://"); ok {
		src, err := ListenUDP(ctx, addr)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
	capture, err := OpenCapture(device)
	if err != nil {
		return nil, err
	}
	return capture, nil
}

// Capture reads frames from an OpenCV VideoCapture.
type Capture struct {
	vc *gocv.VideoCapture
}

func OpenCapture(device string) (*Capture, error) {
	var id interface{} = device
	if index, err := strconv.Atoi(device); err == nil {
		id = index
	}

	vc, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %s: %w", device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("camera %s is not available", device)
	}
	return &Capture{vc: vc}, nil
}

func (c *Capture) NextFrame(ctx context.Context) (gocv.Mat, error) {
	if err := ctx.Err(); err != nil {
		return gocv.Mat{}, err
	}

	mat := gocv.NewMat()
	if ok := c.vc.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return gocv.Mat{}, ErrEndOfStream
	}
	return mat, nil
}

func (c *Capture) Release(frame gocv.Mat) {
	frame.Close()
}

func (c *Capture) Close() error {
	return c.vc.Close()
}

// UDPSource decodes JPEG frames received by a udpframe.Listener.
type UDPSource struct {
	listener *udpframe.Listener
	cancel   context.CancelFunc
}

func ListenUDP(ctx context.Context, addr string) (*UDPSource, error) {
	listener, err := udpframe.Listen(addr, 4)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	go listener.Run(runCtx)

	return &UDPSource{listener: listener, cancel: cancel}, nil
}

func (s *UDPSource) NextFrame(ctx context.Context) (gocv.Mat, error) {
	for {
		select {
		case <-ctx.Done():
			return gocv.Mat{}, ctx.Err()
		case frame, ok := <-s.listener.Frames():
			if !ok {
				return gocv.Mat{}, ErrEndOfStream
			}
			mat, err := gocv.IMDecode(frame.Data, gocv.IMReadColor)
			if err != nil {
				continue
			}
			if mat.Empty() {
				// Corrupted datagrams: wait for the next frame.
				mat.Close()
				continue
			}
			return mat, nil
		}
	}
}

func (s *UDPSource) Release(frame gocv.Mat) {
	frame.Close()
}

func (s *UDPSource) Close() error {
	s.cancel()
	return s.listener.Close()
}
