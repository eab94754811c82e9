package xlbuild

import "github.com/sirupsen/logrus"

// Options holds configuration for a Builder.
type Options struct {
	logger        *logrus.Logger
	data          map[string]any
	notationBegin string
	notationEnd   string
	evaluator     ExpressionEvaluator
}

func defaultOptions() *Options {
	return &Options{
		logger:        logrus.StandardLogger(),
		notationBegin: "${",
		notationEnd:   "}",
	}
}

// Option configures a Builder.
type Option func(*Options)

// WithLogger sets the logger used for debug and warning output
// (default: the logrus standard logger).
func WithLogger(l *logrus.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithData sets the variables visible to expressions in AppendEach templates.
func WithData(data map[string]any) Option {
	return func(o *Options) { o.data = data }
}

// WithExpressionNotation sets the expression delimiters (default: "${", "}").
func WithExpressionNotation(begin, end string) Option {
	return func(o *Options) {
		o.notationBegin = begin
		o.notationEnd = end
	}
}

// WithEvaluator sets a custom expression evaluator.
func WithEvaluator(ev ExpressionEvaluator) Option {
	return func(o *Options) { o.evaluator = ev }
}
