package attributes

import (
	"fmt"
	"log"
	"reflect"

	"threadcatch/internal/config"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"go.opentelemetry.io/otel/attribute"
)

// CaptureContext is the expression environment for one catch.
type CaptureContext struct {
	// Thread is the display name of the walked (writing) thread.
	Thread string
	// Name is the caught thread name.
	Name string
	// Frames holds the rendered frame lines.
	Frames []string
	// Depth is the captured frame count.
	Depth int
}

// Evaluator handles compilation and evaluation of custom attribute
// expressions.
type Evaluator struct {
	customAttrs []config.CustomAttribute
	compiled    []*vm.Program
}

// NewEvaluator creates a new attribute evaluator.
// It pre-compiles all custom attribute expressions for efficiency.
func NewEvaluator(customAttrs []config.CustomAttribute) (*Evaluator, error) {
	exprEnv := environment(CaptureContext{})

	compiled := make([]*vm.Program, len(customAttrs))
	for i, attr := range customAttrs {
		program, err := expr.Compile(attr.Expression, expr.Env(exprEnv))
		if err != nil {
			return nil, fmt.Errorf("failed to compile expression for attribute %q: %w", attr.Name, err)
		}
		compiled[i] = program
	}

	return &Evaluator{
		customAttrs: customAttrs,
		compiled:    compiled,
	}, nil
}

// environment builds the expression environment for a capture.
func environment(ctx CaptureContext) map[string]interface{} {
	return map[string]interface{}{
		"thread": ctx.Thread,
		"name":   ctx.Name,
		"frames": ctx.Frames,
		"depth":  ctx.Depth,
	}
}

// Evaluate runs the pre-compiled expressions against one capture.
// A failing expression is logged and skipped.
func (e *Evaluator) Evaluate(ctx CaptureContext) []attribute.KeyValue {
	if len(e.customAttrs) == 0 {
		return nil
	}

	env := environment(ctx)

	var attrs []attribute.KeyValue
	for i, customAttr := range e.customAttrs {
		output, err := expr.Run(e.compiled[i], env)
		if err != nil {
			log.Printf("failed to evaluate expression for attribute %q: %v", customAttr.Name, err)
			continue
		}
		attrs = append(attrs, expand(customAttr.Name, output)...)
	}

	return attrs
}

// expand converts an expression result into attributes. Map results are
// flattened into one attribute per key with dot notation.
func expand(name string, output interface{}) []attribute.KeyValue {
	v := reflect.ValueOf(output)
	if !v.IsValid() || v.Kind() != reflect.Map {
		return []attribute.KeyValue{attribute.String(name, fmt.Sprint(output))}
	}

	var attrs []attribute.KeyValue
	for _, key := range v.MapKeys() {
		attrName := name + "." + sanitizeAttributeName(fmt.Sprintf("%v", key.Interface()))
		attrs = append(attrs, attribute.String(attrName, fmt.Sprint(v.MapIndex(key).Interface())))
	}
	return attrs
}

// sanitizeAttributeName replaces non-alphanumeric characters with underscores.
// This ensures attribute names are safe for OpenTelemetry.
func sanitizeAttributeName(name string) string {
	result := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			result[i] = c
		} else {
			result[i] = '_'
		}
	}
	return string(result)
}
