package treetable

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Option configures an Adapter.
type Option func(*options)

type options struct {
	log               logrus.FieldLogger
	rootVisible       bool
	strict            bool
	childrenAscending bool
	ordering          any
}

func defaultOptions() options {
	return options{
		log:         discardLogger(),
		rootVisible: true,
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithRootVisible controls whether the source root occupies row 0.
func WithRootVisible(visible bool) Option {
	return func(o *options) { o.rootVisible = visible }
}

// WithStrictContracts makes contract violations panic instead of
// being logged.
func WithStrictContracts(strict bool) Option {
	return func(o *options) { o.strict = strict }
}

// WithSortChildrenAscending sorts every level below the top ascending.
func WithSortChildrenAscending(on bool) Option {
	return func(o *options) { o.childrenAscending = on }
}

// WithOrdering sets the initial sibling ordering.
func WithOrdering[P comparable](ord Ordering[P]) Option {
	return func(o *options) { o.ordering = ord }
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
