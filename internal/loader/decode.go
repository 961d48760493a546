package loader

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/kode4food/miniscript/pkg/api"
)

// Decode parses a YAML or JSON document into generic values. Mapping keys
// are always strings
func Decode(data []byte) (any, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return normalize(doc), nil
}

// AsVars converts a decoded document into variables. An empty document
// gives no variables
func AsVars(doc any) (api.Vars, error) {
	switch d := doc.(type) {
	case nil:
		return api.Vars{}, nil
	case map[string]any:
		return api.Vars(d), nil
	default:
		return nil, fmt.Errorf("%w, got %T", ErrVarsNotMapping, doc)
	}
}

func normalize(value any) any {
	switch v := value.(type) {
	case map[string]any:
		for k, item := range v {
			v[k] = normalize(item)
		}
		return v
	case map[any]any:
		res := make(map[string]any, len(v))
		for k, item := range v {
			res[fmt.Sprint(k)] = normalize(item)
		}
		return res
	case []any:
		for i, item := range v {
			v[i] = normalize(item)
		}
		return v
	default:
		return value
	}
}
