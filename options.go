package livebind

import (
	"log"

	"golang.org/x/net/html"

	"github.com/livefir/livebind/internal/async"
	"github.com/livefir/livebind/internal/binding"
	"github.com/livefir/livebind/internal/metrics"
	"github.com/livefir/livebind/internal/schedule"
)

// AfterAddEvent is passed to the after-add hook once new or moved nodes are in
// the document.
type AfterAddEvent struct {
	Nodes   []*html.Node
	ForEach *ForEach
}

// BeforeRemoveEvent is passed to the before-remove hook. Returning a promise
// defers removal until it resolves; returning nil leaves removal to the hook.
type BeforeRemoveEvent struct {
	Nodes   []*html.Node
	ForEach *ForEach
}

// Config holds foreach configuration options
type Config struct {
	Name             string // Id of a template element used instead of the bound element's children
	As               string // Alias for each item in the child context
	Applier          binding.Applier
	Scheduler        schedule.Scheduler // Runs queued flushes; nil flushes synchronously
	AfterAdd         func(AfterAddEvent)
	BeforeRemove     func(BeforeRemoveEvent) *async.Promise
	BeforeQueueFlush func([]Change)
	AfterQueueFlush  func([]Change)
	ErrorHandler     func(error)
	Metrics          *metrics.Collector
	Logger           *log.Logger
}

// Option is a functional option for configuring a ForEach
type Option func(*Config)

// WithName renders the template element with the given id for each item
func WithName(id string) Option {
	return func(c *Config) {
		c.Name = id
	}
}

// WithAs exposes each item under alias in addition to $data
func WithAs(alias string) Option {
	return func(c *Config) {
		c.As = alias
	}
}

// WithApplier sets how bindings are applied to each instantiated template
func WithApplier(a binding.Applier) Option {
	return func(c *Config) {
		c.Applier = a
	}
}

// WithScheduler sets the frame scheduler used to defer queue flushes
func WithScheduler(s schedule.Scheduler) Option {
	return func(c *Config) {
		c.Scheduler = s
	}
}

// WithAfterAdd sets a hook invoked after nodes are inserted
func WithAfterAdd(fn func(AfterAddEvent)) Option {
	return func(c *Config) {
		c.AfterAdd = fn
	}
}

// WithBeforeRemove sets a hook that can delay or take over node removal
func WithBeforeRemove(fn func(BeforeRemoveEvent) *async.Promise) Option {
	return func(c *Config) {
		c.BeforeRemove = fn
	}
}

// WithBeforeQueueFlush sets a hook invoked with the queue before it is applied
func WithBeforeQueueFlush(fn func([]Change)) Option {
	return func(c *Config) {
		c.BeforeQueueFlush = fn
	}
}

// WithAfterQueueFlush sets a hook invoked with the queue after it is applied
func WithAfterQueueFlush(fn func([]Change)) Option {
	return func(c *Config) {
		c.AfterQueueFlush = fn
	}
}

// WithErrorHandler sets the sink for failures that must not abort a flush
func WithErrorHandler(fn func(error)) Option {
	return func(c *Config) {
		c.ErrorHandler = fn
	}
}

// WithMetrics records reconciliation activity in collector
func WithMetrics(collector *metrics.Collector) Option {
	return func(c *Config) {
		c.Metrics = collector
	}
}

// WithLogger sets the logger used by the default error handler
func WithLogger(l *log.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

func newConfig(opts []Option) Config {
	config := Config{
		Scheduler: schedule.Sync{},
		Logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Scheduler == nil {
		config.Scheduler = schedule.Sync{}
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}
	if config.ErrorHandler == nil {
		logger := config.Logger
		config.ErrorHandler = func(err error) {
			logger.Printf("livebind: %v", err)
		}
	}
	if config.Applier == nil {
		applier := binding.NewTemplateApplier(nil)
		applier.OnError = config.ErrorHandler
		config.Applier = applier
	}
	return config
}
