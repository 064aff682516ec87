package camera

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strconv"
	"yorae/internal/logger"
)

// maxFrameSize bounds a frame being reassembled; larger streams are dropped.
const maxFrameSize = 8 << 20

// Reassembler rebuilds JPEG frames from a stream of UDP packets. A packet
// starting with SOI opens a frame, a packet ending with EOI completes it.
type Reassembler struct {
	buf bytes.Buffer
}

// Feed appends one packet and returns the completed frame, if any.
func (r *Reassembler) Feed(packet []byte) ([]byte, bool) {
	if bytes.HasPrefix(packet, jpegHeader) {
		r.buf.Reset()
	}
	if r.buf.Len() == 0 && !bytes.HasPrefix(packet, jpegHeader) {
		return nil, false // środek ramki bez początku
	}
	if r.buf.Len()+len(packet) > maxFrameSize {
		r.buf.Reset()
		return nil, false
	}
	r.buf.Write(packet)

	if !bytes.HasSuffix(packet, jpegFooter) {
		return nil, false
	}

	frame := make([]byte, r.buf.Len())
	copy(frame, r.buf.Bytes())
	r.buf.Reset()
	return frame, true
}

// UDPIngress listens for camera packets and pushes complete frames into a Source.
type UDPIngress struct {
	source *Source
	names  map[string]string // ip -> nazwa kamery
	logger *logger.Logger
}

func NewUDPIngress(source *Source, names map[string]string, logger *logger.Logger) *UDPIngress {
	return &UDPIngress{source: source, names: names, logger: logger}
}

// ListenAndServe binds the UDP port and serves until ctx is cancelled.
func (u *UDPIngress) ListenAndServe(ctx context.Context, port int) error {
	addr, err := net.ResolveUDPAddr("udp", ":"+strconv.Itoa(port))
	if err != nil {
		u.logger.Error("Failed to resolve UDP address: %v", err)
		return err
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		u.logger.Error("Failed to listen on UDP port %d: %v", port, err)
		return err
	}

	u.logger.Info("UDP camera ingress started on port %d", port)
	return u.Serve(ctx, conn)
}

// Serve reads packets from conn until ctx is cancelled. It closes conn.
func (u *UDPIngress) Serve(ctx context.Context, conn *net.UDPConn) error {
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	defer conn.Close()

	buffer := make([]byte, 65535)
	reassemblers := make(map[string]*Reassembler)

	for {
		n, remoteAddr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			u.logger.Error("Error reading UDP packet: %v", err)
			continue
		}

		cameraName := u.cameraName(remoteAddr.IP.String())
		r, ok := reassemblers[cameraName]
		if !ok {
			r = &Reassembler{}
			reassemblers[cameraName] = r
		}

		if frame, done := r.Feed(buffer[:n]); done {
			u.source.Push(cameraName, frame)
		}
	}
}

func (u *UDPIngress) cameraName(ip string) string {
	if name, ok := u.names[ip]; ok {
		return name
	}
	return "unknown_" + ip
}
