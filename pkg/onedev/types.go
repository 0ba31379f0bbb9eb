package onedev

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

// Credentials are everything needed to talk to a oneDev project.
type Credentials struct {
	URL         string `json:"url" yaml:"url"`
	Email       string `json:"email" yaml:"email"`
	Token       string `json:"token" yaml:"token"`
	ProjectPath string `json:"projectPath" yaml:"projectPath"`
}

// Validate checks that every field is set. The first empty field is reported
// as a PreconditionError.
func (c Credentials) Validate() error {
	switch {
	case len(c.URL) == 0:
		return &PreconditionError{Field: "url"}
	case len(c.Email) == 0:
		return &PreconditionError{Field: "email"}
	case len(c.Token) == 0:
		return &PreconditionError{Field: "token"}
	case len(c.ProjectPath) == 0:
		return &PreconditionError{Field: "projectPath"}
	}
	return nil
}

// String never includes the token.
func (c Credentials) String() string {
	token := ""
	if len(c.Token) > 0 {
		token = "<redacted>"
	}
	return fmt.Sprintf("{url:%s email:%s token:%s projectPath:%s}", c.URL, c.Email, token, c.ProjectPath)
}

// Activity is the last thing that happened on a pull request or issue.
type Activity struct {
	UserID      int       `json:"userId"`
	Date        Timestamp `json:"date"`
	Description string    `json:"description"`
}

// PullRequest is a snapshot of a oneDev pull request, keyed by Number.
type PullRequest struct {
	Number       int       `json:"number"`
	Title        string    `json:"title"`
	SourceBranch string    `json:"sourceBranch"`
	TargetBranch string    `json:"targetBranch"`
	SubmitterID  int       `json:"submitterId"`
	SubmitDate   Timestamp `json:"submitDate"`
	LastActivity Activity  `json:"lastActivity"`
	CommentCount int       `json:"commentCount"`
	State        string    `json:"state"`
}

// Issue is a snapshot of a oneDev issue, keyed by Number.
type Issue struct {
	Number       int       `json:"number"`
	Title        string    `json:"title"`
	State        string    `json:"state"`
	SubmitterID  int       `json:"submitterId"`
	SubmitDate   Timestamp `json:"submitDate"`
	LastActivity Activity  `json:"lastActivity"`
	CommentCount int       `json:"commentCount"`
}

func (pr PullRequest) GetState() string         { return pr.State }
func (pr PullRequest) GetSubmitDate() time.Time { return pr.SubmitDate.Time }
func (pr PullRequest) GetCommentCount() int     { return pr.CommentCount }
func (pr PullRequest) GetTitle() string         { return pr.Title }

func (i Issue) GetState() string         { return i.State }
func (i Issue) GetSubmitDate() time.Time { return i.SubmitDate.Time }
func (i Issue) GetCommentCount() int     { return i.CommentCount }
func (i Issue) GetTitle() string         { return i.Title }

// Timestamp is a point in time as oneDev serializes it: either an RFC 3339
// string or epoch milliseconds. Parsed values are always UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
}

// UnmarshalJSON accepts a quoted timestamp, a number of milliseconds, or null.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	if b[0] != '"' {
		ms, err := strconv.ParseInt(string(b), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid timestamp %s", b)
		}
		t.Time = time.UnixMilli(ms).UTC()
		return nil
	}

	s, err := strconv.Unquote(string(b))
	if err != nil {
		return fmt.Errorf("invalid timestamp %s", b)
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}

// MarshalJSON writes an RFC 3339 string, or null for the zero time.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(t.UTC().Format(time.RFC3339Nano))), nil
}
