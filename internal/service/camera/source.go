package camera

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"
	"yorae/internal/logger"
)

var (
	ErrNoFrame    = errors.New("no frame received from camera")
	ErrStaleFrame = errors.New("latest camera frame is too old")
)

var (
	jpegHeader = []byte{0xFF, 0xD8}
	jpegFooter = []byte{0xFF, 0xD9}
)

// Viewer receives preview frames for connected viewers.
type Viewer interface {
	BroadcastFrame(camera string, frame []byte)
}

// Frame is the latest complete JPEG received from one camera.
type Frame struct {
	Camera     string
	Data       []byte
	ReceivedAt time.Time
}

// Source keeps the newest frame per camera and hands it out as a captured still.
type Source struct {
	frames        map[string]Frame
	defaultCamera string
	maxAge        time.Duration
	viewer        Viewer
	now           func() time.Time
	mu            sync.RWMutex
	logger        *logger.Logger
}

// NewSource creates a Source. An empty defaultCamera makes AcquireStill use
// the newest frame of any camera; a zero maxAge disables the staleness check.
func NewSource(defaultCamera string, maxAge time.Duration, viewer Viewer, logger *logger.Logger) *Source {
	return &Source{
		frames:        make(map[string]Frame),
		defaultCamera: defaultCamera,
		maxAge:        maxAge,
		viewer:        viewer,
		now:           time.Now,
		logger:        logger,
	}
}

// SetClock replaces the time source.
func (s *Source) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Push stores a complete frame and relays it to viewers. Payloads that are
// not JPEG are dropped.
func (s *Source) Push(camera string, frame []byte) bool {
	if !bytes.HasPrefix(frame, jpegHeader) {
		s.logger.Warning("Dropping non-JPEG frame from camera %s (%d bytes)", camera, len(frame))
		return false
	}

	data := make([]byte, len(frame))
	copy(data, frame)

	s.mu.Lock()
	s.frames[camera] = Frame{Camera: camera, Data: data, ReceivedAt: s.now()}
	s.mu.Unlock()

	if s.viewer != nil {
		s.viewer.BroadcastFrame(camera, data)
	}
	return true
}

// Latest returns the newest frame of the given camera.
func (s *Source) Latest(camera string) (Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.frames[camera]
	return f, ok
}

// Cameras lists the cameras that have delivered at least one frame.
func (s *Source) Cameras() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.frames))
	for name := range s.frames {
		names = append(names, name)
	}
	return names
}

// AcquireStill returns a copy of the default camera's newest frame.
func (s *Source) AcquireStill(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	frame, ok := s.pickLocked()
	now := s.now()
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNoFrame
	}
	if s.maxAge > 0 && now.Sub(frame.ReceivedAt) > s.maxAge {
		return nil, ErrStaleFrame
	}

	out := make([]byte, len(frame.Data))
	copy(out, frame.Data)
	return out, nil
}

func (s *Source) pickLocked() (Frame, bool) {
	if s.defaultCamera != "" {
		f, ok := s.frames[s.defaultCamera]
		return f, ok
	}

	var newest Frame
	found := false
	for _, f := range s.frames {
		if !found || f.ReceivedAt.After(newest.ReceivedAt) {
			newest = f
			found = true
		}
	}
	return newest, found
}
