// Package protocol defines the messages exchanged between a UI surface and
// the host. Every message is a JSON object with a "command" discriminator.
// Intents flow from the UI to the host; messages flow back, wrapped in an
// Envelope that carries the sequence number of the intent that produced them.
package protocol

import (
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/BingHanLin/vscode-oneDev-browser/pkg/onedev"
)

// Intent commands, UI to host.
const (
	CmdGetCredentials    = "getCredentials"
	CmdSaveCredentials   = "saveCredentials"
	CmdFetchPullRequests = "fetchPullRequests"
	CmdFetchIssues       = "fetchIssues"
)

// Message commands, host to UI.
const (
	CmdSetCredentials     = "setCredentials"
	CmdSetProjectID       = "setProjectId"
	CmdShowSuccessMessage = "showSuccessMessage"
	CmdShowErrorMessage   = "showErrorMessage"
	CmdSetPullRequests    = "setPullRequests"
	CmdSetIssues          = "setIssues"
)

// Intent is a request from the UI. The set of implementations is closed.
type Intent interface {
	Command() string
	isIntent()
}

// GetCredentials asks for the stored credentials.
type GetCredentials struct{}

// SaveCredentials stores credentials and resolves the project id.
type SaveCredentials struct {
	onedev.Credentials
}

// FetchPullRequests asks for the pull requests awaiting review.
type FetchPullRequests struct {
	onedev.Credentials
}

// FetchIssues asks for the project's issues.
type FetchIssues struct {
	onedev.Credentials
}

func (GetCredentials) Command() string    { return CmdGetCredentials }
func (SaveCredentials) Command() string   { return CmdSaveCredentials }
func (FetchPullRequests) Command() string { return CmdFetchPullRequests }
func (FetchIssues) Command() string       { return CmdFetchIssues }

func (GetCredentials) isIntent()    {}
func (SaveCredentials) isIntent()   {}
func (FetchPullRequests) isIntent() {}
func (FetchIssues) isIntent()       {}

// Message is a state update pushed to the UI. The set of implementations is
// closed.
type Message interface {
	Command() string
	isMessage()
}

type SetCredentials struct {
	onedev.Credentials
}

type SetProjectID struct {
	ProjectID int `json:"projectId"`
}

type ShowSuccessMessage struct {
	Message string `json:"message"`
}

type ShowErrorMessage struct {
	Message string `json:"message"`
}

type SetPullRequests struct {
	PullRequests []onedev.PullRequest `json:"pullRequests"`
}

type SetIssues struct {
	Issues []onedev.Issue `json:"issues"`
}

func (SetCredentials) Command() string     { return CmdSetCredentials }
func (SetProjectID) Command() string       { return CmdSetProjectID }
func (ShowSuccessMessage) Command() string { return CmdShowSuccessMessage }
func (ShowErrorMessage) Command() string   { return CmdShowErrorMessage }
func (SetPullRequests) Command() string    { return CmdSetPullRequests }
func (SetIssues) Command() string          { return CmdSetIssues }

func (SetCredentials) isMessage()     {}
func (SetProjectID) isMessage()       {}
func (ShowSuccessMessage) isMessage() {}
func (ShowErrorMessage) isMessage()   {}
func (SetPullRequests) isMessage()    {}
func (SetIssues) isMessage()          {}

// Envelope is a Message as it travels to the UI. Seq is the sequence number
// the host assigned to the intent that produced it. It increases per intent
// command for the life of the host process and starts over when the host
// restarts.
type Envelope struct {
	Seq     uint64
	Message Message
}

// UnknownCommandError is returned when decoding a command outside the
// protocol.
type UnknownCommandError struct {
	Command string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command %q", e.Command)
}

type header struct {
	Command string `json:"command"`
	Seq     uint64 `json:"seq"`
}

// EncodeIntent renders an intent as a flat JSON object.
func EncodeIntent(in Intent) ([]byte, error) {
	return flatten(in, in.Command(), nil)
}

// DecodeIntent parses a JSON object into the intent named by its command.
func DecodeIntent(data []byte) (Intent, error) {
	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, err
	}

	var in Intent
	var err error
	switch h.Command {
	case CmdGetCredentials:
		in = GetCredentials{}
	case CmdSaveCredentials:
		var v SaveCredentials
		err = json.Unmarshal(data, &v)
		in = v
	case CmdFetchPullRequests:
		var v FetchPullRequests
		err = json.Unmarshal(data, &v)
		in = v
	case CmdFetchIssues:
		var v FetchIssues
		err = json.Unmarshal(data, &v)
		in = v
	default:
		return nil, &UnknownCommandError{Command: h.Command}
	}
	if err != nil {
		return nil, err
	}
	return in, nil
}

// MarshalJSON renders the envelope as the message's own fields plus
// "command" and "seq".
func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.Message == nil {
		return nil, fmt.Errorf("envelope %d has no message", e.Seq)
	}
	seq := e.Seq
	return flatten(e.Message, e.Message.Command(), &seq)
}

// UnmarshalJSON parses a flat message object back into an envelope.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		return err
	}

	var msg Message
	var err error
	switch h.Command {
	case CmdSetCredentials:
		var v SetCredentials
		err = json.Unmarshal(data, &v)
		msg = v
	case CmdSetProjectID:
		var v SetProjectID
		err = json.Unmarshal(data, &v)
		msg = v
	case CmdShowSuccessMessage:
		var v ShowSuccessMessage
		err = json.Unmarshal(data, &v)
		msg = v
	case CmdShowErrorMessage:
		var v ShowErrorMessage
		err = json.Unmarshal(data, &v)
		msg = v
	case CmdSetPullRequests:
		var v SetPullRequests
		err = json.Unmarshal(data, &v)
		msg = v
	case CmdSetIssues:
		var v SetIssues
		err = json.Unmarshal(data, &v)
		msg = v
	default:
		return &UnknownCommandError{Command: h.Command}
	}
	if err != nil {
		return err
	}

	e.Seq = h.Seq
	e.Message = msg
	return nil
}

// flatten marshals v, then merges the command (and seq, if given) into the
// resulting object.
func flatten(v interface{}, command string, seq *uint64) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}

	if fields["command"], err = json.Marshal(command); err != nil {
		return nil, err
	}
	if seq != nil {
		if fields["seq"], err = json.Marshal(*seq); err != nil {
			return nil, err
		}
	}
	return json.Marshal(fields)
}
