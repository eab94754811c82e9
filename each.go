package xlbuild

import (
	"fmt"
	"maps"
	"reflect"
)

// IndexVar is the name bound to the 0-based item index in AppendEach templates.
const IndexVar = "index"

// AppendEach appends one row per element of items, a slice or array. For
// every row, varName is bound to the element and IndexVar to its index,
// and string values and keys of the template cells are evaluated as
// expressions ("${item.Name}"). A value that is a single expression keeps
// the result's type. A row is written only after all of its cells
// evaluated successfully. An empty varName means "item".
func (b *Builder) AppendEach(items any, varName string, template ...Cell) *Builder {
	return b.appendEach(items, varName, template, b.options().data)
}

func (b *Builder) appendEach(items any, varName string, template []Cell, data map[string]any) *Builder {
	if b.err != nil {
		return b
	}
	list, err := toSlice(items)
	if err != nil {
		return b.fail(fmt.Errorf("append each: %w", err))
	}
	if varName == "" {
		varName = "item"
	}

	env := make(map[string]any, len(data)+2)
	maps.Copy(env, data)

	for i, item := range list {
		env[varName] = item
		env[IndexVar] = i
		row, err := b.evaluateCells(template, env)
		if err != nil {
			return b.fail(fmt.Errorf("append each item %d: %w", i, err))
		}
		if b.AppendRow(row...).err != nil {
			return b
		}
	}
	return b
}

func (b *Builder) options() *Options {
	if b.opts == nil {
		b.opts = defaultOptions()
	}
	return b.opts
}

func (b *Builder) evaluator() ExpressionEvaluator {
	o := b.options()
	if o.evaluator == nil {
		o.evaluator = NewExpressionEvaluator()
	}
	return o.evaluator
}

// evaluateCells returns a copy of template with expressions evaluated against env.
func (b *Builder) evaluateCells(template []Cell, env map[string]any) ([]Cell, error) {
	o := b.options()
	ev := b.evaluator()
	cells := make([]Cell, len(template))
	for i, c := range template {
		if s, ok := c.Value.(string); ok {
			val, err := evaluateString(ev, s, o.notationBegin, o.notationEnd, env)
			if err != nil {
				return nil, fmt.Errorf("cell %d value: %w", i, err)
			}
			c.Value = val
		}
		if c.Key != "" {
			key, err := evaluateString(ev, c.Key, o.notationBegin, o.notationEnd, env)
			if err != nil {
				return nil, fmt.Errorf("cell %d key: %w", i, err)
			}
			c.Key = ""
			if key != nil {
				c.Key = fmt.Sprint(key)
			}
		}
		cells[i] = c
	}
	return cells, nil
}

// toSlice converts a slice or array into []any. nil yields no items.
func toSlice(val any) ([]any, error) {
	if val == nil {
		return nil, nil
	}
	if s, ok := val.([]any); ok {
		return s, nil
	}
	v := reflect.ValueOf(val)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		result := make([]any, v.Len())
		for i := 0; i < v.Len(); i++ {
			result[i] = v.Index(i).Interface()
		}
		return result, nil
	default:
		return nil, fmt.Errorf("cannot iterate over %T", val)
	}
}
