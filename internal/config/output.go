package config

import (
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/gosimple/slug"
)

// OutputPattern compiles a text/template pattern, executed against an item, into an OutputFunc.
//
// Besides the sprig functions, patterns can use slug. Referencing a missing key is an error.
func OutputPattern(pattern string) (OutputFunc, error) {
	funcs := sprig.TxtFuncMap()
	funcs["slug"] = slug.Make

	tmpl, err := template.New("output").Funcs(funcs).Option("missingkey=error").Parse(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid output pattern %q: %v", pattern, err)
	}

	return func(item any) (string, error) {
		var sb strings.Builder
		if err := tmpl.Execute(&sb, item); err != nil {
			return "", err
		}
		out := strings.TrimSpace(sb.String())
		if out == "" {
			return "", errors.New("output pattern produced an empty path")
		}
		return out, nil
	}, nil
}
