package rpc

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BingHanLin/vscode-oneDev-browser/pkg/host"
	"github.com/BingHanLin/vscode-oneDev-browser/pkg/onedev"
	"github.com/BingHanLin/vscode-oneDev-browser/pkg/protocol"
)

var creds = onedev.Credentials{
	URL:         "https://onedev.example.com",
	Email:       "a@b.com",
	Token:       "s3cret",
	ProjectPath: "group/proj",
}

type testLogger struct {
	m     sync.Mutex
	lines []string
}

func (l *testLogger) log(s string) error {
	l.m.Lock()
	defer l.m.Unlock()
	l.lines = append(l.lines, s)
	return nil
}

func (l *testLogger) Error(v ...interface{}) error   { return l.log(fmt.Sprint(v...)) }
func (l *testLogger) Warning(v ...interface{}) error { return l.log(fmt.Sprint(v...)) }
func (l *testLogger) Info(v ...interface{}) error    { return l.log(fmt.Sprint(v...)) }
func (l *testLogger) Errorf(format string, a ...interface{}) error {
	return l.log(fmt.Sprintf(format, a...))
}
func (l *testLogger) Warningf(format string, a ...interface{}) error {
	return l.log(fmt.Sprintf(format, a...))
}
func (l *testLogger) Infof(format string, a ...interface{}) error {
	return l.log(fmt.Sprintf(format, a...))
}

type memStore struct {
	m     sync.Mutex
	creds onedev.Credentials
}

func (s *memStore) Load() (onedev.Credentials, error) {
	s.m.Lock()
	defer s.m.Unlock()
	return s.creds, nil
}

func (s *memStore) Save(c onedev.Credentials) error {
	s.m.Lock()
	defer s.m.Unlock()
	s.creds = c
	return nil
}

type fakeClient struct{}

func (fakeClient) ResolveProjectID(context.Context, onedev.Credentials) (int, error) {
	return 42, nil
}

func (fakeClient) FetchPullRequests(context.Context, onedev.Credentials) ([]onedev.PullRequest, error) {
	return nil, &onedev.HTTPError{StatusCode: 401}
}

func (fakeClient) FetchIssues(context.Context, onedev.Credentials) ([]onedev.Issue, error) {
	return []onedev.Issue{{Number: 3, Title: "Crash", State: "Open"}}, nil
}

func newHandler() (*Handler, *testLogger) {
	lg := &testLogger{}
	ctrl := host.NewController(&memStore{creds: creds}, fakeClient{}, lg)
	return NewHandler(ctrl, lg), lg
}

func newRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	h.Mount(r)
	return r
}

func decodeLines(t *testing.T, body string) []protocol.Envelope {
	t.Helper()
	var envs []protocol.Envelope
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		var env protocol.Envelope
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &env), scanner.Text())
		envs = append(envs, env)
	}
	return envs
}

func post(t *testing.T, r http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/intents", strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIntentHandler(t *testing.T) {
	h, _ := newHandler()
	r := newRouter(h)

	w := post(t, r, `{"command":"saveCredentials","url":"https://onedev.example.com","email":"a@b.com","token":"s3cret","projectPath":"group/proj"}`)
	assert.Equal(t, 200, w.Code)
	assert.Equal(t, ContentType, w.Header().Get("Content-Type"))

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"command":"setProjectId","seq":1,"projectId":42}`, lines[0])
	assert.JSONEq(t, `{"command":"showSuccessMessage","seq":1,"message":"oneDev credentials saved successfully!"}`, lines[1])
}

func TestIntentHandlerFault(t *testing.T) {
	h, _ := newHandler()
	r := newRouter(h)

	w := post(t, r, `{"command":"fetchPullRequests","url":"https://onedev.example.com","email":"a@b.com","token":"s3cret","projectPath":"group/proj"}`)
	assert.Equal(t, 200, w.Code, "faults are messages, not statuses")

	envs := decodeLines(t, w.Body.String())
	require.Len(t, envs, 1)
	assert.Equal(t, protocol.ShowErrorMessage{Message: "Error fetching pull requests: http error: status 401 Unauthorized"}, envs[0].Message)
}

func TestIntentHandlerRejects(t *testing.T) {
	h, lg := newHandler()
	r := newRouter(h)

	for _, body := range []string{`{"command":"setIssues","issues":[]}`, `not json`, `{}`} {
		w := post(t, r, body)
		assert.Equal(t, 400, w.Code, body)
	}
	assert.Len(t, lg.lines, 3)

	req := httptest.NewRequest(http.MethodGet, "/intents", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestStateHandler(t *testing.T) {
	h, _ := newHandler()
	r := newRouter(h)
	post(t, r, `{"command":"fetchIssues","url":"https://onedev.example.com","email":"a@b.com","token":"s3cret","projectPath":"group/proj"}`)

	req := httptest.NewRequest(http.MethodGet, "/state", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, 200, w.Code)
	assert.JSONEq(t, `{"projectId":0,"pullRequests":-1,"issues":1,"seq":{"fetchIssues":1}}`, w.Body.String())
}

func TestSocketClient(t *testing.T) {
	// unix socket paths are length-limited, so stay out of t.TempDir
	dir, err := os.MkdirTemp("", "rpc")
	require.NoError(t, err)
	defer func() { _ = os.RemoveAll(dir) }()
	socketPath := filepath.Join(dir, "host.sock")

	sock, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	h, _ := newHandler()
	server := &http.Server{Handler: newRouter(h)}
	go func() { _ = server.Serve(sock) }()
	defer func() { _ = server.Close() }()

	client := NewClient(socketPath, time.Second)
	ctx := context.Background()

	envs, err := client.Send(ctx, protocol.GetCredentials{})
	require.NoError(t, err)
	require.Len(t, envs, 1)
	assert.Equal(t, protocol.Envelope{Seq: 1, Message: protocol.SetCredentials{Credentials: creds}}, envs[0])

	envs, err = client.Send(ctx, protocol.FetchIssues{Credentials: creds})
	require.NoError(t, err)
	require.Len(t, envs, 1)
	issues, ok := envs[0].Message.(protocol.SetIssues)
	require.True(t, ok, "got %T", envs[0].Message)
	assert.Equal(t, 3, issues.Issues[0].Number)

	snap, err := client.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Issues)
}

func TestSocketClientNoHost(t *testing.T) {
	client := NewClient(filepath.Join(t.TempDir(), "missing.sock"), time.Second)
	_, err := client.Send(context.Background(), protocol.GetCredentials{})
	assert.Error(t, err)

	_, err = NewClient("", 0).Send(context.Background(), protocol.GetCredentials{})
	assert.EqualError(t, err, "no socket path configured")
}

func TestStdio(t *testing.T) {
	lg := &testLogger{}
	store := &memStore{}
	ctrl := host.NewController(store, fakeClient{}, lg)

	input := strings.Join([]string{
		`{"command":"saveCredentials","url":"https://onedev.example.com","email":"a@b.com","token":"s3cret","projectPath":"group/proj"}`,
		``,
		`{"command":"bogus"}`,
		`{"command":"fetchIssues","url":"https://onedev.example.com","email":"a@b.com","token":"s3cret","projectPath":"group/proj"}`,
	}, "\n")
	var out bytes.Buffer

	s := NewStdio(strings.NewReader(input), &out, ctrl, lg)
	require.NoError(t, s.Serve(context.Background()))

	envs := decodeLines(t, out.String())
	require.Len(t, envs, 3)

	var commands []string
	for _, env := range envs {
		commands = append(commands, env.Message.Command())
	}
	assert.ElementsMatch(t, []string{"setProjectId", "showSuccessMessage", "setIssues"}, commands)
	assert.Less(t, indexOf(commands, "setProjectId"), indexOf(commands, "showSuccessMessage"),
		"messages of one intent stay in order")

	assert.Equal(t, creds, store.creds)
	assert.Contains(t, lg.lines, `rejected intent: unknown command "bogus"`)

	assert.False(t, s.Inject(context.Background(), protocol.GetCredentials{}), "closed after input ends")
}

func indexOf(xs []string, s string) int {
	for i, x := range xs {
		if x == s {
			return i
		}
	}
	return -1
}

func TestLocalClient(t *testing.T) {
	ctrl := host.NewController(&memStore{creds: creds}, fakeClient{}, &testLogger{})
	client := NewLocalClient(ctrl)

	envs, err := client.Send(context.Background(), protocol.SaveCredentials{Credentials: creds})
	require.NoError(t, err)
	assert.Equal(t, []protocol.Envelope{
		{Seq: 1, Message: protocol.SetProjectID{ProjectID: 42}},
		{Seq: 1, Message: protocol.ShowSuccessMessage{Message: host.SavedMessage}},
	}, envs)
}
