// Package schema derives JSON Schema documents from Go types, in the shape
// expected by function-calling APIs and MCP tool registration.
package schema

import (
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/invopop/jsonschema"
	"github.com/therealnoof/mcp-server-lab/pkg/llmutils"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var (
	cache   = make(map[reflect.Type]*Schema)
	cacheMu sync.RWMutex
)

type Schema struct {
	*jsonschema.Schema
	// Parameters represents the Function parameters definition
	Parameters any
}

// New creates a new schema from the given type.
// Schemas are cached per type.
func New(t reflect.Type) (*Schema, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	if s, ok := cache[t]; ok {
		return s, nil
	}

	s, err := buildSchema(t)
	if err != nil {
		return nil, err
	}
	cache[t] = s

	return s, nil
}

func (s *Schema) String() string {
	return llmutils.ToJSONIndent(s.Parameters)
}

func buildSchema(t reflect.Type) (*Schema, error) {
	schema := JSONSchema(t)

	funcDef := ToFunctionSchema(t, schema)
	s := &Schema{
		Schema:     schema,
		Parameters: funcDef,
	}

	return s, nil
}

// ToFunctionSchema flattens the reflected schema into a single object schema
// with all $defs references resolved inline, which is the shape the
// function-calling and MCP tool surfaces expect.
func ToFunctionSchema(tType reflect.Type, tSchema *jsonschema.Schema) *jsonschema.Schema {
	refID := strings.TrimPrefix(tSchema.Ref, "#/$defs/")

	var defs = make(map[string]*jsonschema.Schema)
	var root *jsonschema.Schema

	for name, def := range tSchema.Definitions {
		if name == refID {
			root = def
		} else {
			defs[name] = def
		}
	}
	if root == nil {
		return tSchema
	}

	res := &jsonschema.Schema{
		Type:       root.Type,
		Properties: root.Properties,
		Required:   root.Required,
	}

	resolveRefs(res.Properties, defs)

	return res
}

func resolveRefs(props *orderedmap.OrderedMap[string, *jsonschema.Schema], defs map[string]*jsonschema.Schema) {
	if props == nil {
		return
	}
	for pair := props.Oldest(); pair != nil; pair = pair.Next() {
		child := pair.Value
		if child.Ref != "" {
			name := strings.TrimPrefix(child.Ref, "#/$defs/")
			if def, ok := defs[name]; ok {
				pair.Value = def
				child = def
			}
		}
		if child.Properties != nil {
			resolveRefs(child.Properties, defs)
		}
		if child.Items != nil && child.Items.Ref != "" {
			name := strings.TrimPrefix(child.Items.Ref, "#/$defs/")
			if def, ok := defs[name]; ok {
				child.Items = def
			}
		}
	}
}

func (s *Schema) NameFromRef() string {
	return strings.Split(s.Ref, "/")[2] // ex: '#/$defs/MyStruct'
}

// JSONSchema returns the reflected json schema of the given type.
func JSONSchema(t reflect.Type) *jsonschema.Schema {
	r := new(jsonschema.Reflector)

	// Struct names may collide across packages, which would produce wrong
	// `$ref` entries; qualify the name with a hash of the package path.
	r.Namer = func(t reflect.Type) string {
		name := t.Name()
		if t.Kind() == reflect.Struct {
			v := reflect.New(t)
			vt := v.Elem().Type()
			fullname := vt.PkgPath() + "/" + vt.Name()
			name = vt.Name() + "@" + strconv.FormatUint(xxhash.Sum64String(fullname), 10)
		}
		return name
	}

	return r.ReflectFromType(t)
}
