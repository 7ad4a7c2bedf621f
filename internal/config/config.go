// Package config defines the configuration of a contentful build and its validation.
package config

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/static-dev/contentful/internal/constants"
	"github.com/static-dev/contentful/internal/locals"
)

// ErrInvalid is matched by every configuration error.
var ErrInvalid = errors.New("invalid configuration")

// Error is a configuration error naming the offending option.
type Error struct {
	Option string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: option %q %s", ErrInvalid, e.Option, e.Reason)
}

// Is reports whether target is ErrInvalid.
func (e *Error) Is(target error) bool {
	return target == ErrInvalid
}

// Config is the configuration of a contentful build.
type Config struct {
	AccessToken string `option:"accessToken" validate:"required"`
	SpaceID     string `option:"spaceId" validate:"required"`
	Preview     bool   `option:"preview"`
	Environment string `option:"environment"`
	Host        string `option:"host" validate:"omitempty,url"`

	// AddDataTo receives the collection map under the contentful key after each successful fetch.
	AddDataTo *locals.Store `option:"addDataTo" validate:"required"`

	JSON              string `option:"json"`
	AggressiveRefresh bool   `option:"aggressiveRefresh"`
	IncludeLevel      int    `option:"includeLevel" validate:"min=0,max=10"`
	Concurrency       int    `option:"concurrency" validate:"min=0"`

	ContentTypes []ContentType `option:"contentTypes" validate:"unique=Name,dive"`
}

// Default returns a configuration holding the default values.
func Default() Config {
	return Config{
		Environment:  constants.DefaultEnvironment,
		IncludeLevel: constants.DefaultIncludeLevel,
		Concurrency:  constants.DefaultConcurrency,
	}
}

// ContentType describes one remote collection and how it is transformed and rendered.
type ContentType struct {
	Name string `option:"name" validate:"required"`
	// ID is the remote content type identifier. It defaults to Name.
	ID      string `option:"id"`
	Ordered bool   `option:"ordered"`
	// Filters are extra query parameters. The limit filter defaults to 100.
	Filters   map[string]any `option:"filters"`
	Transform Transform      `option:"transform"`
	Template  *Template      `option:"template"`
	JSON      string         `option:"json"`
}

// RemoteID returns the remote content type identifier.
func (ct ContentType) RemoteID() string {
	if ct.ID == "" {
		return ct.Name
	}
	return ct.ID
}

// Limit returns the maximum number of items retrieved for the content type.
func (ct ContentType) Limit() int {
	if n, ok := asInt(ct.Filters["limit"]); ok {
		return n
	}
	return constants.DefaultLimit
}

// Template renders every item of a content type into its own artifact.
type Template struct {
	// Path is the template source, relative to the project root.
	Path string
	// Output names the artifact of an item.
	Output OutputFunc
}

// OutputFunc computes the output path of an item.
type OutputFunc func(item any) (string, error)

// Validate fills in the defaults of c and checks it.
//
// The returned error, if any, is an *Error naming the first offending option.
func (c *Config) Validate() error {
	if c.Environment == "" {
		c.Environment = constants.DefaultEnvironment
	}
	if c.Concurrency == 0 {
		c.Concurrency = constants.DefaultConcurrency
	}

	types := make([]ContentType, len(c.ContentTypes))
	for i, ct := range c.ContentTypes {
		if ct.ID == "" {
			ct.ID = ct.Name
		}
		ct.Filters = maps.Clone(ct.Filters)
		if ct.Filters == nil {
			ct.Filters = make(map[string]any)
		}
		if _, ok := ct.Filters["limit"]; !ok {
			ct.Filters["limit"] = constants.DefaultLimit
		}
		types[i] = ct
	}
	c.ContentTypes = types

	if err := validate.Struct(c); err != nil {
		return fromValidationError(err)
	}

	for i, ct := range c.ContentTypes {
		if err := checkLimit(ct.Filters["limit"]); err != nil {
			err.Option = fmt.Sprintf("contentTypes[%d].filters.limit", i)
			return err
		}
	}

	return ValidateTemplates(c.ContentTypes)
}

// ValidateTemplates checks that every templated content type has both a path and an output function.
func ValidateTemplates(types []ContentType) error {
	for _, ct := range types {
		if ct.Template == nil {
			continue
		}
		if ct.Template.Path == "" {
			return &Error{Option: ct.Name + ".template", Reason: `must have a "path" property`}
		}
		if ct.Template.Output == nil {
			return &Error{Option: ct.Name + ".template", Reason: `must have an "output" function`}
		}
	}
	return nil
}

func checkLimit(v any) *Error {
	n, ok := asInt(v)
	if !ok {
		return &Error{Reason: "must be an integer"}
	}
	if n < constants.MinLimit {
		return &Error{Reason: fmt.Sprintf("must be greater than or equal to %d", constants.MinLimit)}
	}
	if n > constants.MaxLimit {
		return &Error{Reason: fmt.Sprintf("must be less than or equal to %d", constants.MaxLimit)}
	}
	return nil
}

// asInt converts the integral numbers produced by configuration decoders.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := f.Tag.Get("option")
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

func fromValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &Error{Option: "config", Reason: err.Error()}
	}

	fe := verrs[0]
	option := fe.Namespace()
	if _, after, ok := strings.Cut(option, "."); ok {
		option = after
	}

	var reason string
	switch fe.Tag() {
	case "required":
		reason = "is required"
	case "min":
		reason = "must be greater than or equal to " + fe.Param()
	case "max":
		reason = "must be less than or equal to " + fe.Param()
	case "url":
		reason = "must be a valid URL"
	case "unique":
		reason = "must have unique names"
	default:
		reason = fmt.Sprintf("failed on the %q rule", fe.Tag())
	}

	return &Error{Option: option, Reason: reason}
}
