package registry

import (
	"reflect"

	"github.com/specialistvlad/gridflow/internal/config"
)

// Module is the interface that all operation modules must implement to be
// registered.
type Module interface {
	Register(r *Registry)
}

// Manifest is the raw source of an operation manifest shipped with a module.
type Manifest struct {
	Filename string
	Src      []byte
}

// Registry holds all the registered handlers, manifests, and definitions for
// a single application instance.
type Registry struct {
	HandlerRegistry    map[string]*RegisteredOperation
	DefinitionRegistry map[string]*config.OperationDefinition
	manifests          []Manifest
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		HandlerRegistry:    make(map[string]*RegisteredOperation),
		DefinitionRegistry: make(map[string]*config.OperationDefinition),
	}
}

// Manifests returns the manifests registered by modules, in registration
// order.
func (r *Registry) Manifests() []Manifest {
	return append([]Manifest(nil), r.manifests...)
}

// PopulateDefinitionsFromModel copies the loaded operation definitions from
// the config model into the registry for easy access while assembling.
func (r *Registry) PopulateDefinitionsFromModel(model *config.Model) {
	for key, val := range model.Operations {
		r.DefinitionRegistry[key] = val
	}
}

// inputFields maps the `flow` tags of a parameter struct onto its fields.
func inputFields(t reflect.Type) map[string]reflect.StructField {
	fields := make(map[string]reflect.StructField)
	if t == nil || t.Kind() != reflect.Struct {
		return fields
	}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		if name := ParamName(field); name != "" {
			fields[name] = field
		}
	}
	return fields
}
