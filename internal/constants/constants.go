// Package constants is responsible for defining the constants used in the application.
package constants

import (
	"log/slog"
	"time"
)

var (
	// Version is the version of the application. Set at build time.
	Version = "Dev"
)

const (
	// CmdName is the name of the command line tool.
	CmdName = "contentful-build"

	// DefaultLogLevel is the default log level selected without any verbosity flags.
	DefaultLogLevel = slog.LevelWarn

	// LocalsKey is the key under which the collection map is published into the shared locals.
	LocalsKey = "contentful"

	// ItemKey is the reserved locals key holding the current item during a template render.
	ItemKey = "item"

	// DeliveryHost is the Contentful content delivery API host.
	DeliveryHost = "cdn.contentful.com"

	// PreviewHost is the Contentful content preview API host.
	PreviewHost = "preview.contentful.com"

	// DefaultEnvironment is the space environment used when none is configured.
	DefaultEnvironment = "master"

	// DefaultIncludeLevel is the number of link levels resolved inline by default.
	DefaultIncludeLevel = 1

	// MaxIncludeLevel is the maximum link depth the delivery API accepts.
	MaxIncludeLevel = 10

	// DefaultLimit is the default page size of a content type query.
	DefaultLimit = 100

	// MinLimit is the smallest accepted page size.
	MinLimit = 1

	// MaxLimit is the largest page size the delivery API accepts.
	MaxLimit = 1000

	// DefaultConcurrency is the default number of content types fetched, or items rendered, at once.
	DefaultConcurrency = 4

	// DefaultOutputDir is the default directory assets are committed to.
	DefaultOutputDir = "public"

	// DefaultDebounce is the default delay between a file change and the rebuild it triggers.
	DefaultDebounce = 500 * time.Millisecond

	// DefaultRequestTimeout is the default timeout of a single API request.
	DefaultRequestTimeout = 30 * time.Second
)
