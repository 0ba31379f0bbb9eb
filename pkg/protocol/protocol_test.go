package protocol

import (
	"errors"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BingHanLin/vscode-oneDev-browser/pkg/onedev"
)

var creds = onedev.Credentials{
	URL:         "https://x",
	Email:       "a@b.com",
	Token:       "t",
	ProjectPath: "proj",
}

func TestDecodeIntent(t *testing.T) {
	for _, tc := range []struct {
		input string
		want  Intent
	}{
		{
			input: `{"command":"getCredentials"}`,
			want:  GetCredentials{},
		},
		{
			input: `{"command":"saveCredentials","url":"https://x","email":"a@b.com","token":"t","projectPath":"proj"}`,
			want:  SaveCredentials{creds},
		},
		{
			input: `{"command":"fetchPullRequests","url":"https://x","email":"a@b.com","token":"t","projectPath":"proj"}`,
			want:  FetchPullRequests{creds},
		},
		{
			input: `{"command":"fetchIssues","url":"https://x","email":"a@b.com","token":"t","projectPath":"proj"}`,
			want:  FetchIssues{creds},
		},
		{
			// older surfaces send fetches without a project path
			input: `{"command":"fetchIssues","url":"https://x","email":"a@b.com","token":"t"}`,
			want:  FetchIssues{onedev.Credentials{URL: "https://x", Email: "a@b.com", Token: "t"}},
		},
	} {
		t.Run(tc.input, func(t *testing.T) {
			got, err := DecodeIntent([]byte(tc.input))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecodeIntentErrors(t *testing.T) {
	_, err := DecodeIntent([]byte(`{"command":"deletePullRequest"}`))
	var uc *UnknownCommandError
	require.True(t, errors.As(err, &uc), "got %v", err)
	assert.Equal(t, "deletePullRequest", uc.Command)

	_, err = DecodeIntent([]byte(`{"command":`))
	assert.Error(t, err)

	_, err = DecodeIntent([]byte(`{}`))
	assert.True(t, errors.As(err, &uc), "a missing command is unknown")
}

func TestEncodeIntent(t *testing.T) {
	b, err := EncodeIntent(FetchPullRequests{creds})
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"command":"fetchPullRequests","url":"https://x","email":"a@b.com","token":"t","projectPath":"proj"}`,
		string(b))

	b, err = EncodeIntent(GetCredentials{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"command":"getCredentials"}`, string(b))
}

func TestIntentRoundTrip(t *testing.T) {
	for _, in := range []Intent{
		GetCredentials{},
		SaveCredentials{creds},
		FetchPullRequests{creds},
		FetchIssues{creds},
	} {
		b, err := EncodeIntent(in)
		require.NoError(t, err)
		out, err := DecodeIntent(b)
		require.NoError(t, err)
		assert.Equal(t, in, out, in.Command())
	}
}

func TestEnvelopeEncoding(t *testing.T) {
	for _, tc := range []struct {
		env  Envelope
		want string
	}{
		{
			Envelope{Seq: 1, Message: SetCredentials{creds}},
			`{"command":"setCredentials","seq":1,"url":"https://x","email":"a@b.com","token":"t","projectPath":"proj"}`,
		},
		{
			Envelope{Seq: 2, Message: SetProjectID{ProjectID: 42}},
			`{"command":"setProjectId","seq":2,"projectId":42}`,
		},
		{
			Envelope{Seq: 2, Message: ShowSuccessMessage{Message: "saved"}},
			`{"command":"showSuccessMessage","seq":2,"message":"saved"}`,
		},
		{
			Envelope{Seq: 3, Message: ShowErrorMessage{Message: "Error fetching issues: http error: status 401 Unauthorized"}},
			`{"command":"showErrorMessage","seq":3,"message":"Error fetching issues: http error: status 401 Unauthorized"}`,
		},
		{
			Envelope{Seq: 4, Message: SetIssues{Issues: []onedev.Issue{}}},
			`{"command":"setIssues","seq":4,"issues":[]}`,
		},
	} {
		t.Run(tc.env.Message.Command(), func(t *testing.T) {
			b, err := json.Marshal(tc.env)
			require.NoError(t, err)
			assert.JSONEq(t, tc.want, string(b))

			var back Envelope
			require.NoError(t, json.Unmarshal(b, &back))
			assert.Equal(t, tc.env, back)
		})
	}
}

func TestEnvelopeCarriesRecords(t *testing.T) {
	submitted := onedev.Timestamp{Time: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	env := Envelope{Seq: 9, Message: SetPullRequests{PullRequests: []onedev.PullRequest{
		{Number: 7, Title: "Add widget", SubmitDate: submitted, CommentCount: 2, State: "Open"},
	}}}

	b, err := json.Marshal(env)
	require.NoError(t, err)

	var back Envelope
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, uint64(9), back.Seq)

	msg, ok := back.Message.(SetPullRequests)
	require.True(t, ok, "got %T", back.Message)
	require.Len(t, msg.PullRequests, 1)
	assert.Equal(t, 7, msg.PullRequests[0].Number)
	assert.True(t, submitted.Equal(msg.PullRequests[0].SubmitDate.Time))
}

func TestEnvelopeDecodeUnknown(t *testing.T) {
	var env Envelope
	err := json.Unmarshal([]byte(`{"command":"getCredentials","seq":1}`), &env)
	if assert.Error(t, err, "intents are not messages") {
		assert.Contains(t, err.Error(), `unknown command "getCredentials"`)
	}
}

func TestEnvelopeWithoutMessage(t *testing.T) {
	_, err := json.Marshal(Envelope{Seq: 1})
	assert.Error(t, err)
}
