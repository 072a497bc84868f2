package gateway

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/notedapp/noted-sync/internal/domain"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

func TestDecodeNoteDesktopSchema(t *testing.T) {
	raw := []byte(`{"title":"groceries","content":"milk\neggs","last_modified":1700000100.5,"origin":"desktop"}`)

	n, err := decodeNote("item1", raw, 1690000000)
	require.NoError(t, err)
	require.Equal(t, "item1", n.RemoteID)
	require.Equal(t, "milk\neggs", n.Body)
	require.Equal(t, int64(1700000100), n.ModifiedAt)
	// No created field, so creation falls back to the modified time.
	require.Equal(t, int64(1700000100), n.CreatedAt)
	require.Equal(t, "desktop", n.Origin)
}

func TestDecodeNoteMobileSchema(t *testing.T) {
	raw := []byte(`{"note_id":"abc-123","text":"call mom","created":"2023-11-14T10:00:00Z","modified":"2023-11-14T22:15:00Z"}`)

	n, err := decodeNote("item2", raw, 0)
	require.NoError(t, err)
	require.Equal(t, "abc-123", n.ID)
	require.Equal(t, "call mom", n.Body)
	require.Equal(t, int64(1699956000), n.CreatedAt)
	require.Equal(t, int64(1700000100), n.ModifiedAt)
}

func TestDecodeNoteBodyPrecedence(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"content wins over text", `{"content":"from desktop","text":"from mobile"}`, "from desktop"},
		{"text used when content absent", `{"text":"from mobile"}`, "from mobile"},
		{"both empty", `{}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := decodeNote("x", []byte(tt.raw), 0)
			require.NoError(t, err)
			require.Equal(t, tt.want, n.Body)
		})
	}
}

func TestDecodeNoteTimestampFallback(t *testing.T) {
	// A payload without any timestamp inherits the listing's timestamp.
	n, err := decodeNote("x", []byte(`{"content":"hi"}`), 1700000000)
	require.NoError(t, err)
	require.Equal(t, int64(1700000000), n.ModifiedAt)

	// Epoch beats ISO when both are present.
	raw := []byte(`{"content":"hi","modified":"2020-01-01T00:00:00Z","last_modified":1700000000}`)
	n, err = decodeNote("x", raw, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1700000000), n.ModifiedAt)
}

func TestDecodeNoteCorrupt(t *testing.T) {
	_, err := decodeNote("x", []byte(`{not json`), 0)
	require.Error(t, err)
}

var noteFixture = domain.Note{
	ID:         "n1",
	RemoteID:   "item9",
	Title:      "t",
	Body:       "shared body",
	CreatedAt:  1700000000,
	ModifiedAt: 1700000100,
	Origin:     "cli",
}

func TestEncodeNoteWritesBothSchemas(t *testing.T) {
	raw, err := encodeNote(&noteFixture)
	require.NoError(t, err)

	// Either historical client must be able to read the file.
	for _, field := range []string{`"content":"shared body"`, `"text":"shared body"`, `"last_modified":`, `"modified":`, `"note_id":"n1"`} {
		require.True(t, strings.Contains(string(raw), field), "missing %s in %s", field, raw)
	}

	n, err := decodeNote("item9", raw, 0)
	require.NoError(t, err)
	require.Equal(t, "n1", n.ID)
	require.Equal(t, "shared body", n.Body)
	require.Equal(t, int64(1700000100), n.ModifiedAt)
	require.Equal(t, int64(1700000000), n.CreatedAt)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("decode inverts encode for body and timestamps", prop.ForAll(
		func(body string, created, modified int64) bool {
			in := noteFixture
			in.Body = body
			in.CreatedAt = created
			in.ModifiedAt = modified

			raw, err := encodeNote(&in)
			if err != nil {
				return false
			}
			out, err := decodeNote(in.RemoteID, raw, 0)
			if err != nil {
				return false
			}
			return out.Body == body && out.ModifiedAt == modified && out.CreatedAt == created
		},
		gen.AnyString().WithLabel("body"),
		gen.Int64Range(1, 4102444800).WithLabel("created"),
		gen.Int64Range(1, 4102444800).WithLabel("modified"),
	))

	properties.TestingRun(t)
}

func TestBodyFieldNamesAreEquivalent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("content and text normalize to the same body", prop.ForAll(
		func(body string) bool {
			asContent, err := json.Marshal(map[string]string{"content": body})
			if err != nil {
				return false
			}
			asText, err := json.Marshal(map[string]string{"text": body})
			if err != nil {
				return false
			}
			a, err := decodeNote("x", asContent, 0)
			if err != nil {
				return false
			}
			b, err := decodeNote("x", asText, 0)
			if err != nil {
				return false
			}
			return a.Body == body && a.Body == b.Body
		},
		gen.AnyString().WithLabel("body"),
	))

	properties.TestingRun(t)
}
