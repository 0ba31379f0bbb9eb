package rpc

import (
	"context"

	"github.com/BingHanLin/vscode-oneDev-browser/pkg/host"
	"github.com/BingHanLin/vscode-oneDev-browser/pkg/protocol"
)

// LocalClient runs intents against a controller in the same process, for
// when no host daemon is running.
type LocalClient struct {
	ctrl *host.Controller
}

// NewLocalClient creates a client around ctrl.
func NewLocalClient(ctrl *host.Controller) *LocalClient {
	return &LocalClient{ctrl: ctrl}
}

// Send handles the intent and returns its messages.
func (lc *LocalClient) Send(ctx context.Context, in protocol.Intent) ([]protocol.Envelope, error) {
	var envs []protocol.Envelope
	lc.ctrl.Handle(ctx, in, host.SinkFunc(func(env protocol.Envelope) error {
		envs = append(envs, env)
		return nil
	}))
	return envs, nil
}
