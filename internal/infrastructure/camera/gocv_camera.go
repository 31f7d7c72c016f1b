//go:build gocv
// +build gocv

package camera

import (
	"context"
	"errors"
	"fmt"

	"gocv.io/x/gocv"

	"ivsite-bot/internal/domain/entity"
	"ivsite-bot/internal/domain/port"
)

// Open открывает устройство через OpenCV.
func (o *Opener) Open(ctx context.Context, facing port.Facing) (port.CameraStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := o.deviceFor(facing)
	if err := probeDevice(id); err != nil {
		return nil, err
	}

	vc, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, &entity.CameraUnavailableError{Reason: entity.CameraOther, Err: err}
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, &entity.CameraUnavailableError{
			Reason: entity.CameraBusy,
			Err:    fmt.Errorf("%s cannot be started", devicePath(id)),
		}
	}

	return &gocvStream{vc: vc, frame: gocv.NewMat()}, nil
}

// gocvStream открытый VideoCapture и буфер кадра.
type gocvStream struct {
	vc    *gocv.VideoCapture
	frame gocv.Mat
}

// Ready устройство сообщило размеры кадра.
func (s *gocvStream) Ready() bool {
	return s.vc.IsOpened() && s.vc.Get(gocv.VideoCaptureFrameWidth) > 0
}

// Grab читает текущий кадр и кодирует его в JPEG.
func (s *gocvStream) Grab(quality int) ([]byte, int, int, error) {
	if ok := s.vc.Read(&s.frame); !ok || s.frame.Empty() {
		return nil, 0, 0, nil
	}
	if s.frame.Cols() == 0 || s.frame.Rows() == 0 {
		return nil, 0, 0, nil
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, s.frame, []int{int(gocv.IMWriteJpegQuality), quality})
	if err != nil {
		return nil, 0, 0, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	// Буфер OpenCV освобождается, копируем байты.
	data := append([]byte(nil), buf.GetBytes()...)
	if len(data) == 0 {
		return nil, 0, 0, errors.New("empty jpeg")
	}
	return data, s.frame.Cols(), s.frame.Rows(), nil
}

// Close останавливает устройство и освобождает буфер.
func (s *gocvStream) Close() error {
	matErr := s.frame.Close()
	vcErr := s.vc.Close()
	return errors.Join(vcErr, matErr)
}
