package render

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"html/template"
	"strings"

	"github.com/Masterminds/sprig/v3"
	"github.com/gosimple/slug"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/microcosm-cc/bluemonday"
	"github.com/russross/blackfriday"
)

// Engine renders a template source with the given locals.
type Engine interface {
	Render(name, src string, locals map[string]any) (string, error)
}

const defaultCacheSize = 128

// HTMLEngine renders html/template sources.
//
// Besides the sprig functions, templates can use markdown, which converts markdown to sanitized HTML,
// and slug. Parsed templates are cached by name and source.
type HTMLEngine struct {
	cache  *lru.Cache[string, *template.Template]
	funcs  template.FuncMap
	policy *bluemonday.Policy
}

// NewHTMLEngine returns an engine caching up to size parsed templates. A size lower than 1 uses the default.
func NewHTMLEngine(size int) (*HTMLEngine, error) {
	if size < 1 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, *template.Template](size)
	if err != nil {
		return nil, fmt.Errorf("could not create template cache: %v", err)
	}

	e := &HTMLEngine{
		cache:  cache,
		policy: bluemonday.UGCPolicy(),
	}
	e.funcs = sprig.FuncMap()
	e.funcs["slug"] = slug.Make
	e.funcs["markdown"] = e.markdown
	return e, nil
}

// Render parses src, or reuses its cached parse, and executes it against locals.
func (e *HTMLEngine) Render(name, src string, locals map[string]any) (string, error) {
	tmpl, err := e.parse(name, src)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, locals); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Cached returns the number of parsed templates in the cache.
func (e *HTMLEngine) Cached() int {
	return e.cache.Len()
}

func (e *HTMLEngine) parse(name, src string) (*template.Template, error) {
	sum := sha256.Sum256([]byte(src))
	key := name + "@" + hex.EncodeToString(sum[:])
	if tmpl, ok := e.cache.Get(key); ok {
		return tmpl, nil
	}

	tmpl, err := template.New(name).Funcs(e.funcs).Parse(src)
	if err != nil {
		return nil, err
	}
	e.cache.Add(key, tmpl)
	return tmpl, nil
}

func (e *HTMLEngine) markdown(v any) template.HTML {
	var src string
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		src = s
	default:
		src = fmt.Sprint(s)
	}
	// #nosec:G203 The output is sanitized by the UGC policy.
	return template.HTML(e.policy.SanitizeBytes(blackfriday.MarkdownCommon([]byte(src))))
}
