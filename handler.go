package livebind

import (
	"fmt"

	"golang.org/x/net/html"

	"github.com/livefir/livebind/internal/async"
	"github.com/livefir/livebind/internal/binding"
)

// HandlerName is the directive name Register installs.
const HandlerName = "foreach"

// ParseBindingValue interprets a foreach binding value. It is either the
// array itself or a map with the keys data, name, as, afterAdd, beforeRemove,
// afterQueueFlush and beforeQueueFlush.
func ParseBindingValue(value any) (data any, opts []Option, err error) {
	m, ok := value.(map[string]any)
	if !ok {
		if _, _, err := arrayOf(value); err != nil {
			return nil, nil, err
		}
		return value, nil, nil
	}

	for key, v := range m {
		switch key {
		case "data":
			data = v
		case "name":
			s, ok := v.(string)
			if !ok {
				return nil, nil, fmt.Errorf("%w: name must be a string, got %T", ErrInvalidBinding, v)
			}
			opts = append(opts, WithName(s))
		case "as":
			s, ok := v.(string)
			if !ok {
				return nil, nil, fmt.Errorf("%w: as must be a string, got %T", ErrInvalidBinding, v)
			}
			opts = append(opts, WithAs(s))
		case "afterAdd":
			fn, ok := v.(func(AfterAddEvent))
			if !ok {
				return nil, nil, fmt.Errorf("%w: afterAdd has type %T", ErrInvalidBinding, v)
			}
			opts = append(opts, WithAfterAdd(fn))
		case "beforeRemove":
			fn, ok := v.(func(BeforeRemoveEvent) *async.Promise)
			if !ok {
				return nil, nil, fmt.Errorf("%w: beforeRemove has type %T", ErrInvalidBinding, v)
			}
			opts = append(opts, WithBeforeRemove(fn))
		case "afterQueueFlush":
			fn, ok := v.(func([]Change))
			if !ok {
				return nil, nil, fmt.Errorf("%w: afterQueueFlush has type %T", ErrInvalidBinding, v)
			}
			opts = append(opts, WithAfterQueueFlush(fn))
		case "beforeQueueFlush":
			fn, ok := v.(func([]Change))
			if !ok {
				return nil, nil, fmt.Errorf("%w: beforeQueueFlush has type %T", ErrInvalidBinding, v)
			}
			opts = append(opts, WithBeforeQueueFlush(fn))
		default:
			return nil, nil, fmt.Errorf("%w: unknown option %q", ErrInvalidBinding, key)
		}
	}
	if _, _, err := arrayOf(data); err != nil {
		return nil, nil, err
	}
	return data, opts, nil
}

// Register installs the foreach directive in reg, so templates can nest
// lists with data-foreach="Items" or <!-- lb foreach: Items -->. Directive
// parameters "as" and "name" map to WithAs and WithName. opts apply to every
// instance the directive creates; unless they set an applier, items are bound
// with a TemplateApplier over reg.
func Register(reg *binding.Registry, opts ...Option) {
	base := append([]Option{WithApplier(binding.NewTemplateApplier(reg))}, opts...)
	reg.Register(HandlerName, func(ctx *binding.Context, node *html.Node, value any, params map[string]string) (*async.Promise, error) {
		data, valueOpts, err := ParseBindingValue(value)
		if err != nil {
			return nil, err
		}
		instanceOpts := append(append([]Option{}, base...), valueOpts...)
		if as, ok := params["as"]; ok {
			instanceOpts = append(instanceOpts, WithAs(as))
		}
		if name, ok := params["name"]; ok {
			instanceOpts = append(instanceOpts, WithName(name))
		}
		f, err := New(ctx, node, data, instanceOpts...)
		if err != nil {
			return nil, err
		}
		return f.BindingComplete(), nil
	})
}
