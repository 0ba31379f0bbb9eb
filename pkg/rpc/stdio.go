package rpc

import (
	"bufio"
	"context"
	"io"
	"sync"

	"github.com/kardianos/service"

	"github.com/BingHanLin/vscode-oneDev-browser/pkg/host"
	"github.com/BingHanLin/vscode-oneDev-browser/pkg/protocol"
)

// Stdio serves a controller over a pair of streams: one intent per input
// line, one envelope per output line. This is how an editor extension talks
// to a host it spawned.
type Stdio struct {
	r      io.Reader
	sink   *lineSink
	ctrl   *host.Controller
	logger service.Logger

	m       sync.Mutex
	closed  bool
	inbound chan host.Inbound
}

// NewStdio creates a stdio server reading intents from r and writing
// envelopes to w.
func NewStdio(r io.Reader, w io.Writer, ctrl *host.Controller, lg service.Logger) *Stdio {
	return &Stdio{
		r:       r,
		sink:    newLineSink(w),
		ctrl:    ctrl,
		logger:  lg,
		inbound: make(chan host.Inbound),
	}
}

// Serve reads intents until the input ends or ctx is done, then waits for
// the intents in flight to settle.
func (s *Stdio) Serve(ctx context.Context) error {
	runDone := make(chan struct{})
	go func() {
		s.ctrl.Run(ctx, s.inbound)
		close(runDone)
	}()

	scanner := bufio.NewScanner(s.r)
	scanner.Buffer(make([]byte, 0, 64<<10), maxIntentSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		in, err := protocol.DecodeIntent(line)
		if err != nil {
			_ = s.logger.Warningf("rejected intent: %s", err)
			continue
		}
		if !s.Inject(ctx, in) {
			break
		}
	}

	s.m.Lock()
	s.closed = true
	close(s.inbound)
	s.m.Unlock()

	<-runDone
	return scanner.Err()
}

// Inject handles an intent as if it had been read from the input, e.g. to
// push fresh credentials after the settings file changed. It reports whether
// the intent was accepted.
func (s *Stdio) Inject(ctx context.Context, in protocol.Intent) bool {
	s.m.Lock()
	defer s.m.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.inbound <- host.Inbound{Intent: in, Sink: s.sink}:
		return true
	case <-ctx.Done():
		return false
	}
}
