package emit_test

import (
	"encoding/json"
	"testing"

	"github.com/static-dev/contentful/internal/collection"
	"github.com/static-dev/contentful/internal/emit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSink map[string][]byte

func (s memSink) Add(name string, content []byte) {
	s[name] = content
}

func TestEmit(t *testing.T) {
	t.Parallel()

	dogs := []any{
		map[string]any{"name": "Rex", "tags": []any{"good", "<b>boy</b>"}},
		map[string]any{"name": "Fido", "age": 3.0},
	}

	tests := map[string]struct {
		m          collection.Map
		globalName string
		perType    map[string]string

		wantAssets []string
		wantErr    bool
	}{
		"Global asset": {
			m:          collection.Map{"dogs": dogs},
			globalName: "data.json",
			wantAssets: []string{"data.json"},
		},
		"Per content type assets": {
			m:          collection.Map{"dogs": dogs, "cats": {}},
			perType:    map[string]string{"dogs": "dogs.json", "cats": "cats.json"},
			wantAssets: []string{"dogs.json", "cats.json"},
		},
		"Global and per content type assets": {
			m:          collection.Map{"dogs": dogs},
			globalName: "data.json",
			perType:    map[string]string{"dogs": "dogs.json"},
			wantAssets: []string{"data.json", "dogs.json"},
		},
		"No asset": {
			m:       collection.Map{"dogs": dogs},
			perType: map[string]string{"dogs": ""},
		},

		"Error on unknown content type": {
			m:          collection.Map{"dogs": dogs},
			globalName: "data.json",
			perType:    map[string]string{"birds": "birds.json"},
			wantAssets: []string{"data.json"},
			wantErr:    true,
		},
		"Error on non serializable collection only fails its asset": {
			m:          collection.Map{"dogs": dogs, "broken": {func() {}}},
			globalName: "data.json",
			perType:    map[string]string{"dogs": "dogs.json", "broken": "broken.json"},
			wantAssets: []string{"dogs.json"},
			wantErr:    true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			sink := memSink{}
			err := emit.Emit(sink, tc.m, tc.globalName, tc.perType)
			if tc.wantErr {
				require.Error(t, err, "Emit should return an error")
			} else {
				require.NoError(t, err, "Emit should not return an error")
			}

			var got []string
			for k := range sink {
				got = append(got, k)
			}
			assert.ElementsMatch(t, tc.wantAssets, got, "Emit should register the expected assets")
		})
	}
}

func TestEmitRoundTrip(t *testing.T) {
	t.Parallel()

	m := collection.Map{"dogs": {
		map[string]any{"name": "Rex", "bio": "<p>good & loyal</p>"},
		map[string]any{"name": "Fido", "age": 3.0, "owner": nil},
	}}

	sink := memSink{}
	require.NoError(t, emit.Emit(sink, m, "data.json", map[string]string{"dogs": "dogs.json"}), "Emit should not return an error")

	var global map[string]any
	require.NoError(t, json.Unmarshal(sink["data.json"], &global), "Global asset should be valid JSON")
	require.Equal(t, map[string]any{"dogs": []any(m["dogs"])}, global, "Global asset should round trip")

	var dogs []any
	require.NoError(t, json.Unmarshal(sink["dogs.json"], &dogs), "Per type asset should be valid JSON")
	require.Equal(t, m["dogs"], dogs, "Per type asset should round trip")

	assert.Contains(t, string(sink["dogs.json"]), "<p>good & loyal</p>", "HTML should not be escaped")
}

func TestMarshal(t *testing.T) {
	t.Parallel()

	got, err := emit.Marshal(map[string]any{"dogs": []any{map[string]any{"name": "Rex"}}})
	require.NoError(t, err, "Marshal should not return an error")
	require.Equal(t, "{\n  \"dogs\": [\n    {\n      \"name\": \"Rex\"\n    }\n  ]\n}", string(got), "Marshal should indent by two spaces")
}
