package config_test

import (
	"testing"

	"github.com/static-dev/contentful/internal/config"
	"github.com/stretchr/testify/require"
)

func TestOutputPattern(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		pattern string
		item    any

		want      string
		wantParse bool
		wantErr   bool
	}{
		"Plain field":        {pattern: "posts/{{ .slug }}.html", item: map[string]any{"slug": "hello"}, want: "posts/hello.html"},
		"Slug function":      {pattern: "{{ slug .title }}.html", item: map[string]any{"title": "Hello World!"}, want: "hello-world.html"},
		"Sprig function":     {pattern: "{{ .title | lower }}.html", item: map[string]any{"title": "ABC"}, want: "abc.html"},
		"Nested field":       {pattern: "{{ .author.name }}/index.html", item: map[string]any{"author": map[string]any{"name": "jane"}}, want: "jane/index.html"},
		"Surrounding spaces": {pattern: "  {{ .id }}.html\n", item: map[string]any{"id": "a"}, want: "a.html"},

		"Error on invalid pattern": {pattern: "{{ .slug ", wantParse: true},
		"Error on missing key":     {pattern: "{{ .slug }}.html", item: map[string]any{"title": "x"}, wantErr: true},
		"Error on empty output":    {pattern: "{{ .slug }}", item: map[string]any{"slug": ""}, wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			out, err := config.OutputPattern(tc.pattern)
			if tc.wantParse {
				require.Error(t, err, "OutputPattern should return an error")
				return
			}
			require.NoError(t, err, "OutputPattern should not return an error")

			got, err := out(tc.item)
			if tc.wantErr {
				require.Error(t, err, "Output should return an error")
				return
			}
			require.NoError(t, err, "Output should not return an error")
			require.Equal(t, tc.want, got, "Output should render the pattern")
		})
	}
}

func TestParseTransform(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		in any

		want    config.TransformMode
		wantErr bool
	}{
		"Nil":              {in: nil, want: config.TransformNormalize},
		"True":             {in: true, want: config.TransformNormalize},
		"False":            {in: false, want: config.TransformDisabled},
		"Normalize":        {in: "normalize", want: config.TransformNormalize},
		"Default":          {in: "Default", want: config.TransformNormalize},
		"None":             {in: "none", want: config.TransformDisabled},
		"Disabled":         {in: " disabled ", want: config.TransformDisabled},
		"Error on unknown": {in: "custom", wantErr: true},
		"Error on number":  {in: 1, wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := config.ParseTransform(tc.in)
			if tc.wantErr {
				require.Error(t, err, "ParseTransform should return an error")
				return
			}
			require.NoError(t, err, "ParseTransform should not return an error")
			require.Equal(t, tc.want, got.Mode(), "ParseTransform should select the mode")
		})
	}
}

func TestCustomTransform(t *testing.T) {
	t.Parallel()

	tr := config.Custom(func(e any) (any, error) { return e, nil })
	require.Equal(t, config.TransformCustom, tr.Mode(), "Custom should select the custom mode")
	require.NotNil(t, tr.Func(), "Custom should keep the function")

	require.Equal(t, config.TransformDisabled, config.Custom(nil).Mode(), "A nil function should disable the transform")
	require.Equal(t, "custom", config.TransformCustom.String(), "Mode should have a name")
}
