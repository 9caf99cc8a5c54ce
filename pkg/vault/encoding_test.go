package vault

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSerialize_RoundTrip(t *testing.T) {
	s := newTestStore()
	s.Add(Fields{Site: "a.com", Username: "alice", Password: "p,1", Notes: `quote " and, comma`})
	s.Add(Fields{Site: "b.com", Username: "bob", Password: "p2"})
	s.Add(Fields{Site: "日本.jp", Username: "carol", Password: "p3", Notes: "line1\nline2"})

	text, err := s.Serialize()
	require.NoError(t, err)

	restored := NewStore()
	n := restored.Restore(text)

	assert.Equal(t, 3, n)
	assert.Equal(t, s.Records(), restored.Records())
}

func TestSerialize_Format(t *testing.T) {
	s := newTestStore()
	text, err := s.Serialize()
	require.NoError(t, err)

	data, err := base64.StdEncoding.DecodeString(text)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))

	s.Add(Fields{Site: "a.com", Username: "alice", Password: "pw"})
	text, err = s.Serialize()
	require.NoError(t, err)
	data, err = base64.StdEncoding.DecodeString(text)
	require.NoError(t, err)

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, 1)
	for _, key := range []string{"id", "site", "username", "password", "notes", "createdAt", "updatedAt"} {
		assert.Contains(t, raw[0], key)
	}
}

func TestRestore_Degrades(t *testing.T) {
	encode := func(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

	tests := []struct {
		name string
		text string
		want int
		logs int
	}{
		{"empty", "", 0, 0},
		{"whitespace", "  \n", 0, 0},
		{"not base64", "%%%not-base64%%%", 0, 1},
		{"not json", encode("{oops"), 0, 1},
		{"not an array", encode(`{"id":"x"}`), 0, 1},
		{
			name: "drops invalid records",
			text: encode(`[
				{"id":"1","site":"a","username":"u","password":"p"},
				{"id":"","site":"b","username":"u","password":"p"},
				{"id":"2","site":"","username":"u","password":"p"},
				{"id":"1","site":"c","username":"u","password":"p"},
				{"id":"3","site":"d","username":"u","password":"p"}
			]`),
			want: 2,
			logs: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.WarnLevel)
			s := NewStore(WithLogger(zap.New(core)))
			s.Add(Fields{Site: "pre", Username: "existing", Password: "p"})

			n := s.Restore(tt.text)
			assert.Equal(t, tt.want, n)
			assert.Equal(t, tt.want, s.Len())
			assert.Equal(t, tt.logs, logs.Len())
		})
	}
}

func TestRestore_KeepsOrder(t *testing.T) {
	text := base64.StdEncoding.EncodeToString([]byte(`[
		{"id":"z","site":"z","username":"u","password":"p"},
		{"id":"a","site":"a","username":"u","password":"p"},
		{"id":"m","site":"m","username":"u","password":"p"}
	]`))

	s := NewStore()
	s.Restore(text)

	var ids []string
	for _, r := range s.Records() {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"z", "a", "m"}, ids)

	_, err := s.Get("a")
	assert.NoError(t, err)
}
