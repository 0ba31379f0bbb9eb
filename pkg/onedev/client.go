package onedev

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// Only the first page is ever requested.
const (
	pageOffset = 0
	pageSize   = 100
)

// Client issues search requests against the oneDev REST API. It keeps no
// per-request state and is safe for concurrent use.
type Client struct {
	httpClient *http.Client
}

// NewClient returns a Client whose requests are bounded by timeout. A zero
// timeout leaves requests unbounded.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NewClientWithHTTPClient wraps an existing http.Client, e.g. one with a
// custom transport.
func NewClientWithHTTPClient(hc *http.Client) *Client {
	return &Client{httpClient: hc}
}

type project struct {
	ID int `json:"id"`
}

// ResolveProjectID looks up the numeric id of creds.ProjectPath.
func (c *Client) ResolveProjectID(ctx context.Context, creds Credentials) (int, error) {
	var projects []project
	query := `"Path" is ` + quote(creds.ProjectPath)
	if err := c.search(ctx, creds, "projects", query, &projects); err != nil {
		return 0, err
	}
	if len(projects) == 0 {
		return 0, &NotFoundError{ProjectPath: creds.ProjectPath}
	}
	return projects[0].ID, nil
}

// FetchPullRequests lists the open pull requests from creds.ProjectPath that
// are waiting for the authenticated user's review.
func (c *Client) FetchPullRequests(ctx context.Context, creds Credentials) ([]PullRequest, error) {
	var pulls []PullRequest
	query := `"Source Project" is ` + quote(creds.ProjectPath) + " and open and to be reviewed by me"
	if err := c.search(ctx, creds, "pulls", query, &pulls); err != nil {
		return nil, err
	}
	return pulls, nil
}

// FetchIssues lists the issues of creds.ProjectPath.
func (c *Client) FetchIssues(ctx context.Context, creds Credentials) ([]Issue, error) {
	var issues []Issue
	query := `"Project" is ` + quote(creds.ProjectPath)
	if err := c.search(ctx, creds, "issues", query, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}

// PullURL is the web page of a pull request.
func PullURL(creds Credentials, number int) string {
	return webURL(creds, "~pulls", number)
}

// IssueURL is the web page of an issue.
func IssueURL(creds Credentials, number int) string {
	return webURL(creds, "~issues", number)
}

func webURL(creds Credentials, kind string, number int) string {
	return strings.TrimRight(creds.URL, "/") + "/" + creds.ProjectPath + "/" + kind + "/" + strconv.Itoa(number)
}

// search performs a single GET of {url}/~api/{resource} and decodes the JSON
// array in the response into out.
func (c *Client) search(ctx context.Context, creds Credentials, resource, query string, out interface{}) error {
	if err := creds.Validate(); err != nil {
		return err
	}

	endpoint, err := searchURL(creds.URL, resource, query)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &PreconditionError{Field: "url", Reason: err.Error()}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", basicAuth(creds.Email, creds.Token))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Err: stripURL(err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Err: err}
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return &ParseError{Err: errors.New("expected a JSON array")}
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return &ParseError{Err: err}
	}
	return nil
}

var queryEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// quote makes a string literal of the oneDev query language. Only the quote
// and the backslash are escaped; everything else is taken as is.
func quote(s string) string {
	return `"` + queryEscaper.Replace(s) + `"`
}

func searchURL(base, resource, query string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/") + "/~api/" + resource)
	if err != nil {
		return "", &PreconditionError{Field: "url", Reason: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", &PreconditionError{Field: "url", Reason: "scheme must be http or https"}
	}

	v := url.Values{}
	v.Set("query", query)
	v.Set("offset", strconv.Itoa(pageOffset))
	v.Set("count", strconv.Itoa(pageSize))
	u.RawQuery = v.Encode()
	return u.String(), nil
}

func basicAuth(email, token string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(email+":"+token))
}

// stripURL drops the request URL from a *url.Error so error messages carry
// only the underlying cause.
func stripURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}
