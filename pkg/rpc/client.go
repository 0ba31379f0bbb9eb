package rpc

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/BingHanLin/vscode-oneDev-browser/pkg/host"
	"github.com/BingHanLin/vscode-oneDev-browser/pkg/protocol"
)

// Client sends intents to a host
type Client interface {
	Send(ctx context.Context, in protocol.Intent) ([]protocol.Envelope, error)
}

// SocketClient is a client that talks to a host on a local socket
type SocketClient struct {
	socketPath string
	httpClient *http.Client
}

// slack on top of the host's own request timeout, so the host reports its
// timeout before the client gives up
const socketSlack = 5 * time.Second

// maximum size of a single envelope line; a full page of records fits easily
const maxLineSize = 16 << 20

// NewClient creates a new SocketClient for the host listening on socketPath.
// requestTimeout is the host's oneDev request timeout; zero means no limit.
func NewClient(socketPath string, requestTimeout time.Duration) *SocketClient {
	var timeout time.Duration
	if requestTimeout > 0 {
		timeout = requestTimeout + socketSlack
	}
	return &SocketClient{
		socketPath: socketPath,
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					d := net.Dialer{}
					return d.DialContext(ctx, "unix", socketPath)
				},
			},
			Timeout: timeout,
		},
	}
}

// Send posts an intent and collects every message it produced.
func (sc *SocketClient) Send(ctx context.Context, in protocol.Intent) ([]protocol.Envelope, error) {
	var envs []protocol.Envelope
	err := sc.Stream(ctx, in, func(env protocol.Envelope) {
		envs = append(envs, env)
	})
	return envs, err
}

// Stream posts an intent and calls fn with each message as it arrives.
func (sc *SocketClient) Stream(ctx context.Context, in protocol.Intent, fn func(protocol.Envelope)) error {
	if len(sc.socketPath) == 0 {
		return fmt.Errorf("no socket path configured")
	}

	body, err := protocol.EncodeIntent(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://onedev-browser/intents", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := sc.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("host error: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("host error: %s", resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineSize)
	for scanner.Scan() {
		if len(bytes.TrimSpace(scanner.Bytes())) == 0 {
			continue
		}
		var env protocol.Envelope
		if err := json.Unmarshal(scanner.Bytes(), &env); err != nil {
			return fmt.Errorf("host response error: %w", err)
		}
		fn(env)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("host response error: %w", err)
	}
	return nil
}

// State fetches the host's controller snapshot.
func (sc *SocketClient) State(ctx context.Context) (host.Snapshot, error) {
	var snap host.Snapshot

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://onedev-browser/state", nil)
	if err != nil {
		return snap, err
	}
	resp, err := sc.httpClient.Do(req)
	if err != nil {
		return snap, fmt.Errorf("host error: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return snap, fmt.Errorf("host error: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return snap, fmt.Errorf("unmarshal error: %w", err)
	}
	return snap, nil
}
