// Package udpframe reassembles JPEG frames that cameras push over UDP, one
// datagram at a time, between the SOI and EOI markers.
package udpframe

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"sync/atomic"
)

var (
	jpegHeader = []byte{0xFF, 0xD8}
	jpegFooter = []byte{0xFF, 0xD9}
)

// Frame is one complete JPEG image and the address that sent it.
type Frame struct {
	Source string
	Data   []byte
}

// Assembler rebuilds frames from datagrams, keeping one buffer per sender.
// It is not safe for concurrent use.
type Assembler struct {
	buffers map[string]*bytes.Buffer
}

func NewAssembler() *Assembler {
	return &Assembler{buffers: make(map[string]*bytes.Buffer)}
}

// Write adds a datagram from source and returns a frame when the datagram
// completed one.
func (a *Assembler) Write(source string, data []byte) (*Frame, bool) {
	buf, ok := a.buffers[source]
	if !ok {
		buf = new(bytes.Buffer)
		a.buffers[source] = buf
	}

	if bytes.HasPrefix(data, jpegHeader) {
		buf.Reset()
	}
	// Datagrams of a frame whose header was lost are useless.
	if buf.Len() == 0 && !bytes.HasPrefix(data, jpegHeader) {
		return nil, false
	}
	buf.Write(data)

	if !bytes.HasSuffix(data, jpegFooter) {
		return nil, false
	}
	frame := &Frame{Source: source, Data: make([]byte, buf.Len())}
	copy(frame.Data, buf.Bytes())
	buf.Reset()
	return frame, true
}

// Listener receives datagrams on a UDP socket and delivers complete frames.
// When the consumer falls behind, new frames are dropped.
type Listener struct {
	conn    *net.UDPConn
	frames  chan Frame
	Dropped atomic.Uint64
}

// Listen opens a UDP socket on addr, e.g. ":9000".
func Listen(addr string, queue int) (*Listener, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}
	if queue < 1 {
		queue = 1
	}
	return &Listener{conn: conn, frames: make(chan Frame, queue)}, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// Frames is closed when Run returns.
func (l *Listener) Frames() <-chan Frame {
	return l.frames
}

// Run reads datagrams until ctx is done or the socket is closed.
func (l *Listener) Run(ctx context.Context) error {
	defer close(l.frames)

	go func() {
		<-ctx.Done()
		l.conn.Close()
	}()

	assembler := NewAssembler()
	buffer := make([]byte, 65535)
	for {
		n, remoteAddr, err := l.conn.ReadFromUDP(buffer)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		ip := strings.Split(remoteAddr.String(), ":")[0]
		frame, ok := assembler.Write(ip, buffer[:n])
		if !ok {
			continue
		}
		select {
		case l.frames <- *frame:
		default:
			l.Dropped.Add(1)
		}
	}
}

// Close stops Run.
func (l *Listener) Close() error {
	return l.conn.Close()
}
