package config

import (
	"fmt"
	"maps"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Document holds the parts of a configuration file whose keys are case sensitive:
// content type definitions and template locals.
//
// The file is YAML, or JSON which is read as YAML.
type Document struct {
	ContentTypes []ContentTypeSpec `mapstructure:"contentTypes"`
	Locals       map[string]any    `mapstructure:"locals"`
}

// ContentTypeSpec is the configuration file form of a ContentType.
type ContentTypeSpec struct {
	Name      string         `mapstructure:"name"`
	ID        string         `mapstructure:"id"`
	Ordered   bool           `mapstructure:"ordered"`
	Filters   map[string]any `mapstructure:"filters"`
	Transform Transform      `mapstructure:"transform"`
	Template  *TemplateSpec  `mapstructure:"template"`
	JSON      string         `mapstructure:"json"`
}

// TemplateSpec is the configuration file form of a Template. Output is an OutputPattern.
type TemplateSpec struct {
	Path   string `mapstructure:"path"`
	Output string `mapstructure:"output"`
}

// ReadDocument reads the content types and locals of the configuration file at path.
func ReadDocument(fs afero.Fs, path string) (doc Document, err error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml", ".json", "":
	default:
		return Document{}, fmt.Errorf("unsupported configuration file format %q: use YAML or JSON", ext)
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Document{}, fmt.Errorf("could not read configuration file: %v", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Document{}, fmt.Errorf("could not parse configuration file %q: %v", path, err)
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: TransformHook(),
		Result:     &doc,
	})
	if err != nil {
		return Document{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return Document{}, &Error{Option: "contentTypes", Reason: fmt.Sprintf("could not be decoded: %v", err)}
	}

	return doc, nil
}

// ContentType converts s into a ContentType, compiling its output pattern.
func (s ContentTypeSpec) ContentType() (ContentType, error) {
	ct := ContentType{
		Name:      s.Name,
		ID:        s.ID,
		Ordered:   s.Ordered,
		Filters:   maps.Clone(s.Filters),
		Transform: s.Transform,
		JSON:      s.JSON,
	}

	if s.Template == nil {
		return ct, nil
	}

	ct.Template = &Template{Path: s.Template.Path}
	if s.Template.Output == "" {
		return ct, nil
	}
	out, err := OutputPattern(s.Template.Output)
	if err != nil {
		return ContentType{}, &Error{Option: s.Name + ".template.output", Reason: err.Error()}
	}
	ct.Template.Output = out

	return ct, nil
}

// Apply sets the content types of d on c.
func (d Document) Apply(c *Config) error {
	types := make([]ContentType, 0, len(d.ContentTypes))
	for _, s := range d.ContentTypes {
		ct, err := s.ContentType()
		if err != nil {
			return err
		}
		types = append(types, ct)
	}
	c.ContentTypes = types
	return nil
}
