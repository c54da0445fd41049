package registry

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/specialistvlad/gridflow/internal/operation"
)

// TagName is the struct tag binding parameter fields to manifest inputs.
const TagName = "flow"

// RegisteredOperation holds the compiled Go parts of an operation's
// on_create lifecycle event.
type RegisteredOperation struct {
	// NewInput returns a pointer to a fresh parameter struct. Values set on
	// it act as defaults for optional inputs.
	NewInput  func() any
	InputType reflect.Type
	Fn        func(ctx context.Context, input any) (operation.Operation, error)
}

// RegisterOperation registers a Go constructor for an operation's on_create
// lifecycle event.
func (r *Registry) RegisterOperation(name string, handler *RegisteredOperation) {
	if _, exists := r.HandlerRegistry[name]; exists {
		panic(fmt.Sprintf("operation handler with name '%s' already registered", name))
	}
	r.HandlerRegistry[name] = handler
}

// RegisterManifest registers the manifest source shipped with a module.
func (r *Registry) RegisterManifest(filename string, src []byte) {
	r.manifests = append(r.manifests, Manifest{Filename: filename, Src: src})
}

// ParamName returns the manifest input field is bound to by its TagName tag,
// or "" when the field is not bound.
func ParamName(field reflect.StructField) string {
	name := strings.Split(field.Tag.Get(TagName), ",")[0]
	if name == "-" {
		return ""
	}
	return name
}
