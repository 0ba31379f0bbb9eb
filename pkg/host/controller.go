// Package host runs the privileged side of the browser: it owns the credential
// store and the oneDev client, and turns intents from a UI into messages.
package host

import (
	"context"
	"errors"
	"sync"

	"github.com/kardianos/service"

	"github.com/BingHanLin/vscode-oneDev-browser/pkg/onedev"
	"github.com/BingHanLin/vscode-oneDev-browser/pkg/protocol"
	"github.com/BingHanLin/vscode-oneDev-browser/pkg/settings"
)

// Messages shown to the user. Error messages are followed by the cause.
const (
	SavedMessage           = "oneDev credentials saved successfully!"
	ErrSavingCredentials   = "Error saving credentials: "
	ErrFetchingProjectID   = "Error fetching project ID: "
	ErrFetchingPullRequest = "Error fetching pull requests: "
	ErrFetchingIssues      = "Error fetching issues: "
)

// QueryClient is the subset of *onedev.Client the controller uses.
type QueryClient interface {
	ResolveProjectID(ctx context.Context, creds onedev.Credentials) (int, error)
	FetchPullRequests(ctx context.Context, creds onedev.Credentials) ([]onedev.PullRequest, error)
	FetchIssues(ctx context.Context, creds onedev.Credentials) ([]onedev.Issue, error)
}

// Sink receives the messages produced by an intent, in order.
type Sink interface {
	Post(protocol.Envelope) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(protocol.Envelope) error

// Post calls f.
func (f SinkFunc) Post(env protocol.Envelope) error { return f(env) }

// Controller handles intents. It is safe for concurrent use: intents may be
// handled in parallel, and each one posts its own messages in order.
type Controller struct {
	store  settings.Store
	client QueryClient
	logger service.Logger

	m            sync.Mutex
	seq          map[string]uint64
	projectID    int
	pullRequests int
	issues       int
}

// NewController creates a controller around a store and a oneDev client.
func NewController(store settings.Store, client QueryClient, logger service.Logger) *Controller {
	return &Controller{
		store:        store,
		client:       client,
		logger:       logger,
		seq:          make(map[string]uint64),
		pullRequests: -1,
		issues:       -1,
	}
}

// Snapshot is the controller's last known state.
type Snapshot struct {
	ProjectID    int               `json:"projectId"`
	PullRequests int               `json:"pullRequests"`
	Issues       int               `json:"issues"`
	Seq          map[string]uint64 `json:"seq"`
}

// Snapshot returns a copy of the controller's last known state. Counts are
// -1 until the first successful fetch, and ProjectID is 0 until a save
// resolved one.
func (c *Controller) Snapshot() Snapshot {
	c.m.Lock()
	defer c.m.Unlock()

	seq := make(map[string]uint64, len(c.seq))
	for k, v := range c.seq {
		seq[k] = v
	}
	return Snapshot{
		ProjectID:    c.projectID,
		PullRequests: c.pullRequests,
		Issues:       c.issues,
		Seq:          seq,
	}
}

func (c *Controller) next(command string) uint64 {
	c.m.Lock()
	defer c.m.Unlock()
	c.seq[command]++
	return c.seq[command]
}

// Handle processes one intent to completion, posting every resulting message
// to sink. Faults are reported to the sink as messages, never returned.
func (c *Controller) Handle(ctx context.Context, in protocol.Intent, sink Sink) {
	seq := c.next(in.Command())
	_ = c.logger.Infof("intent %s #%d received", in.Command(), seq)

	post := func(msg protocol.Message) {
		if err := sink.Post(protocol.Envelope{Seq: seq, Message: msg}); err != nil {
			_ = c.logger.Errorf("could not post %s #%d: %s", msg.Command(), seq, err)
		}
	}
	fail := func(prefix string, err error) {
		_ = c.logger.Warningf("intent %s #%d failed (%s): %s", in.Command(), seq, classify(err), err)
		post(protocol.ShowErrorMessage{Message: prefix + err.Error()})
	}

	switch in := in.(type) {
	case protocol.GetCredentials:
		creds, err := c.store.Load()
		if err != nil {
			_ = c.logger.Warningf("could not load credentials: %s", err)
			creds = onedev.Credentials{}
		}
		post(protocol.SetCredentials{Credentials: creds})

	case protocol.SaveCredentials:
		// the intent's values are authoritative, so resolution goes ahead even
		// if they could not be stored
		saved := true
		if err := c.store.Save(in.Credentials); err != nil {
			fail(ErrSavingCredentials, err)
			saved = false
		}
		if err := in.Validate(); err != nil {
			fail(ErrFetchingProjectID, err)
			return
		}
		id, err := c.client.ResolveProjectID(ctx, in.Credentials)
		if err != nil {
			fail(ErrFetchingProjectID, err)
			return
		}
		c.m.Lock()
		c.projectID = id
		c.m.Unlock()
		post(protocol.SetProjectID{ProjectID: id})
		if saved {
			post(protocol.ShowSuccessMessage{Message: SavedMessage})
		}

	case protocol.FetchPullRequests:
		if err := in.Validate(); err != nil {
			fail(ErrFetchingPullRequest, err)
			return
		}
		prs, err := c.client.FetchPullRequests(ctx, in.Credentials)
		if err != nil {
			fail(ErrFetchingPullRequest, err)
			return
		}
		if prs == nil {
			prs = []onedev.PullRequest{}
		}
		c.m.Lock()
		c.pullRequests = len(prs)
		c.m.Unlock()
		post(protocol.SetPullRequests{PullRequests: prs})

	case protocol.FetchIssues:
		if err := in.Validate(); err != nil {
			fail(ErrFetchingIssues, err)
			return
		}
		issues, err := c.client.FetchIssues(ctx, in.Credentials)
		if err != nil {
			fail(ErrFetchingIssues, err)
			return
		}
		if issues == nil {
			issues = []onedev.Issue{}
		}
		c.m.Lock()
		c.issues = len(issues)
		c.m.Unlock()
		post(protocol.SetIssues{Issues: issues})

	default:
		_ = c.logger.Errorf("unhandled intent %T", in)
		return
	}

	_ = c.logger.Infof("intent %s #%d settled", in.Command(), seq)
}

// classify names the kind of fault for the log.
func classify(err error) string {
	var (
		precondition *onedev.PreconditionError
		transport    *onedev.TransportError
		status       *onedev.HTTPError
		parse        *onedev.ParseError
		notFound     *onedev.NotFoundError
		local        *settings.LocalFault
	)
	switch {
	case errors.As(err, &precondition):
		return "precondition"
	case errors.As(err, &transport):
		return "transport"
	case errors.As(err, &status):
		return "http"
	case errors.As(err, &parse):
		return "parse"
	case errors.As(err, &notFound):
		return "not found"
	case errors.As(err, &local):
		return "local"
	}
	return "unknown"
}

// Inbound is an intent together with the sink its messages go to.
type Inbound struct {
	Intent protocol.Intent
	Sink   Sink
}

// Run handles intents from inbound until it is closed or ctx is done, then
// waits for the intents in flight. Each intent is handled on its own
// goroutine, so a slow request never delays receiving the next one.
func (c *Controller) Run(ctx context.Context, inbound <-chan Inbound) {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-inbound:
			if !ok {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.Handle(ctx, req.Intent, req.Sink)
			}()
		}
	}
}
