package onedev

import (
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampUnmarshal(t *testing.T) {
	want := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	for _, tc := range []struct {
		input string
		want  time.Time
	}{
		{`"2024-03-01T10:00:00Z"`, want},
		{`"2024-03-01T10:00:00.000+00:00"`, want},
		{`"2024-03-01T18:00:00+08:00"`, want},
		{`"2024-03-01T10:00:00.000+0000"`, want},
		{`1709287200000`, want},
		{`null`, time.Time{}},
	} {
		t.Run(tc.input, func(t *testing.T) {
			var ts Timestamp
			require.NoError(t, json.Unmarshal([]byte(tc.input), &ts))
			assert.True(t, tc.want.Equal(ts.Time), "got %v", ts.Time)
			if !ts.IsZero() {
				assert.Equal(t, time.UTC, ts.Location())
			}
		})
	}
}

func TestTimestampUnmarshalInvalid(t *testing.T) {
	for _, input := range []string{`"yesterday"`, `true`, `"2024-13-01"`} {
		var ts Timestamp
		assert.Error(t, json.Unmarshal([]byte(input), &ts), input)
	}
}

func TestTimestampMarshal(t *testing.T) {
	b, err := json.Marshal(Timestamp{time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	assert.Equal(t, `"2024-03-01T10:00:00Z"`, string(b))

	b, err = json.Marshal(Timestamp{})
	require.NoError(t, err)
	assert.Equal(t, `null`, string(b))
}

func TestCredentialsRedacted(t *testing.T) {
	creds := Credentials{URL: "https://x", Email: "a@b.com", Token: "secret", ProjectPath: "proj"}
	assert.NotContains(t, creds.String(), "secret")
	assert.Contains(t, creds.String(), "https://x")
}

func TestCredentialsValidate(t *testing.T) {
	assert.NoError(t, Credentials{URL: "u", Email: "e", Token: "t", ProjectPath: "p"}.Validate())

	err := Credentials{URL: "u", Email: "e", ProjectPath: "p"}.Validate()
	if assert.Error(t, err) {
		assert.Equal(t, "missing credential field: token", err.Error())
	}
}
