package scenario

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/net/html"

	"github.com/livefir/livebind"
	"github.com/livefir/livebind/internal/binding"
	"github.com/livefir/livebind/internal/dom"
	"github.com/livefir/livebind/internal/mapping"
	"github.com/livefir/livebind/internal/metrics"
	"github.com/livefir/livebind/internal/observable"
	"github.com/livefir/livebind/internal/schedule"
)

// maxFramesPerFlush bounds how many frames a flush step may run, so a
// scenario whose hooks keep rescheduling still terminates.
const maxFramesPerFlush = 100

// Item is the value rendered for a name in object scenarios.
type Item struct {
	Name string
}

func (i *Item) String() string { return i.Name }

// Frame is the container's markup after a flush.
type Frame struct {
	Step int    `json:"step"`
	Op   string `json:"op"`
	HTML string `json:"html"`
}

// Result is what a run produced.
type Result struct {
	Frames  []Frame
	HTML    string
	Metrics metrics.ReconcileMetrics
}

// Options tunes Run.
type Options struct {
	// Minify strips insignificant whitespace from captured markup.
	Minify bool
	// Interval pauses between steps.
	Interval time.Duration
	// OnFrame is called after every flush; an error stops the run.
	OnFrame func(Frame) error
	Logger  *log.Logger
}

type runner struct {
	s    *Scenario
	opts Options

	doc       *dom.Document
	container *html.Node
	frames    *schedule.FrameQueue
	scheduler schedule.Scheduler
	arr       *observable.Array[any]
	pool      map[string]*Item
	collector *metrics.Collector
	forEach   *livebind.ForEach

	errs   error
	result Result
}

// Run replays s and returns every captured frame. Errors reported by the
// reconciler during the run are combined into the returned error alongside
// the result.
func Run(ctx context.Context, s *Scenario, opts Options) (*Result, error) {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	r := &runner{
		s:         s,
		opts:      opts,
		frames:    schedule.NewFrameQueue(),
		pool:      make(map[string]*Item),
		collector: metrics.NewCollector(),
	}
	if err := r.bind(); err != nil {
		return nil, err
	}

	if err := r.flush(0, "init"); err != nil {
		return nil, err
	}
	for i, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.apply(step); err != nil {
			return nil, fmt.Errorf("steps[%d] %s: %w", i, step.Op, err)
		}
		if step.Op == OpFlush {
			if err := r.flush(i+1, step.Op); err != nil {
				return nil, err
			}
		}
		if opts.Interval > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(opts.Interval):
			}
		}
	}
	if err := r.flush(len(s.Steps)+1, "end"); err != nil {
		return nil, err
	}

	if r.forEach != nil {
		r.forEach.Dispose()
	}
	r.result.Metrics = r.collector.GetMetrics()
	return &r.result, r.errs
}

func (r *runner) bind() error {
	doc, err := dom.ParseString("<html><body>" + r.s.Template + "</body></html>")
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}
	container := dom.FindElement(doc.Body(), func(n *html.Node) bool {
		return n.Parent != nil && n.Parent.Type == html.ElementNode && n.Parent.Data == "body"
	})
	if container == nil {
		return fmt.Errorf("template has no container element")
	}
	r.doc, r.container = doc, container

	r.scheduler = r.frames
	if r.s.Sync {
		r.scheduler = schedule.Sync{}
	}
	var arrOpts []observable.ArrayOption
	if r.s.Deferred {
		arrOpts = append(arrOpts, observable.WithDeferred(r.scheduler))
	}
	r.arr = observable.NewArray(r.values(r.s.Items), arrOpts...)

	root := binding.NewRootContext(doc, nil)
	if r.s.Engine == EngineMapping {
		r.bindMapping(root)
		return nil
	}

	reg := binding.NewRegistry()
	applier := binding.NewTemplateApplier(reg)
	applier.OnError = r.fail
	livebind.Register(reg, livebind.WithScheduler(r.scheduler), livebind.WithMetrics(r.collector),
		livebind.WithApplier(applier), livebind.WithErrorHandler(r.fail))
	r.forEach, err = livebind.New(root, container, r.arr,
		livebind.WithScheduler(r.scheduler),
		livebind.WithApplier(applier),
		livebind.WithMetrics(r.collector),
		livebind.WithLogger(r.opts.Logger),
		livebind.WithErrorHandler(r.fail),
	)
	return err
}

// bindMapping renders the whole array through the mapping primitive,
// once per scheduled change notification.
func (r *runner) bindMapping(root *binding.Context) {
	template := dom.NewContainer()
	dom.MoveChildren(r.doc, r.container, template)
	applier := binding.NewTemplateApplier(nil)
	applier.OnError = r.fail

	mapItem := func(value any, index *observable.Observable[int]) ([]*html.Node, error) {
		clone := dom.CloneNode(template, true)
		ctx := root.CreateChild(value, binding.ChildOptions{Index: index, List: r.arr})
		p := applier.ApplyBindingsToDescendants(ctx, clone)
		if p.Settled() && p.Err() != nil {
			return nil, p.Err()
		}
		r.collector.IncrementTemplateInstantiated()
		return dom.Children(clone), nil
	}

	scheduled := false
	render := func() {
		scheduled = false
		err := mapping.SetDomNodeChildrenFromArrayMapping(r.doc, r.container, r.arr.Items(), mapItem, mapping.Options{})
		r.collector.RecordFlush(1)
		r.fail(err)
	}
	r.arr.SubscribeArrayChange(func([]observable.Record) {
		if !scheduled {
			scheduled = true
			r.scheduler.Schedule(render)
		}
	})
	render()
}

func (r *runner) fail(err error) {
	if err == nil {
		return
	}
	r.opts.Logger.Printf("scenario %s: %v", r.s.Name, err)
	r.errs = multierr.Append(r.errs, err)
}

func (r *runner) flush(step int, op string) error {
	r.frames.Drain(maxFramesPerFlush)

	var (
		markup string
		err    error
	)
	if r.opts.Minify {
		markup, err = dom.RenderMinified(dom.ChildNodes(r.container)...)
	} else {
		markup, err = dom.RenderChildren(r.container)
	}
	if err != nil {
		return fmt.Errorf("failed to render: %w", err)
	}

	frame := Frame{Step: step, Op: op, HTML: markup}
	r.result.Frames = append(r.result.Frames, frame)
	r.result.HTML = markup
	if r.opts.OnFrame != nil {
		return r.opts.OnFrame(frame)
	}
	return nil
}

func (r *runner) apply(step Step) error {
	values := r.values(step.Values)
	switch step.Op {
	case OpPush:
		r.arr.Push(values...)
	case OpPop:
		r.arr.Pop()
	case OpShift:
		r.arr.Shift()
	case OpUnshift:
		r.arr.Unshift(values...)
	case OpSplice:
		if step.Index > r.arr.Len() {
			return fmt.Errorf("index %d out of range for %d items", step.Index, r.arr.Len())
		}
		r.arr.Splice(step.Index, step.Count, values...)
	case OpInsert:
		if step.Index > r.arr.Len() {
			return fmt.Errorf("index %d out of range for %d items", step.Index, r.arr.Len())
		}
		r.arr.Insert(step.Index, values...)
	case OpRemove:
		r.arr.RemoveAll(values...)
	case OpSet:
		r.arr.Set(values)
	case OpReverse:
		r.arr.Reverse()
	case OpSort:
		r.arr.Sort(func(x, y any) int { return strings.Compare(fmt.Sprint(x), fmt.Sprint(y)) })
	case OpFlush:
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	return nil
}

// values resolves names to array values: the names themselves, or one
// shared *Item per name in object scenarios.
func (r *runner) values(names []string) []any {
	out := make([]any, len(names))
	for i, name := range names {
		if !r.s.Objects {
			out[i] = name
			continue
		}
		it, ok := r.pool[name]
		if !ok {
			it = &Item{Name: name}
			r.pool[name] = it
		}
		out[i] = it
	}
	return out
}
