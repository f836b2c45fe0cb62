package loader

import (
	"gopkg.in/yaml.v3"

	"github.com/frherrer/GoE2E-LocoRunner/internal/domain"
	"github.com/frherrer/GoE2E-LocoRunner/internal/registry"
	"github.com/frherrer/GoE2E-LocoRunner/internal/values"
)

// parseHeader validates the first document of a file: a case or template
// definition.
func (l *Loader) parseHeader(file string, node *yaml.Node) (*domain.Header, error) {
	entries, err := l.mappingEntries(file, node)
	if err != nil {
		return nil, err
	}

	header := &domain.Header{Metadata: domain.Metadata{}}
	specSeen := false

	for _, entry := range entries {
		key, value := entry[0], entry[1]
		switch key.Value {
		case "spec":
			spec, err := scalarString(file, l, value, "spec")
			if err != nil {
				return nil, err
			}
			switch spec {
			case string(domain.KindCase):
				header.Kind = domain.KindCase
			case string(domain.KindTemplate):
				header.Kind = domain.KindTemplate
			case string(domain.KindStep):
				return nil, l.parseError(file, value, "file must start with a case or template document")
			default:
				return nil, l.parseError(file, value, "unknown spec %q", spec)
			}
			specSeen = true
		case "title":
			if header.Title, err = scalarString(file, l, value, "title"); err != nil {
				return nil, err
			}
		case "description":
			if header.Description, err = scalarString(file, l, value, "description"); err != nil {
				return nil, err
			}
		case "metadata":
			if header.Metadata, err = l.parseMetadata(file, value); err != nil {
				return nil, err
			}
		case "vars":
			if header.Vars, err = l.compileBindings(file, value, "vars"); err != nil {
				return nil, err
			}
		case "params":
			if header.Params, err = l.parseParams(file, value); err != nil {
				return nil, err
			}
		case "envs":
			if header.Envs, err = l.parseEnvs(file, value); err != nil {
				return nil, err
			}
		default:
			return nil, l.parseError(file, key, "unknown header field %q", key.Value)
		}
	}

	if !specSeen {
		return nil, l.parseError(file, node, "first document must declare spec: case or spec: template")
	}
	return header, nil
}

func (l *Loader) parseMetadata(file string, node *yaml.Node) (domain.Metadata, error) {
	var decoded map[string]any
	if err := node.Decode(&decoded); err != nil {
		return nil, l.parseError(file, node, "metadata must be a mapping")
	}
	normalized, err := values.Normalize(decoded)
	if err != nil {
		return nil, l.parseError(file, node, "invalid metadata: %v", err)
	}
	meta := domain.Metadata(normalized.(map[string]any))
	if raw, ok := meta["tags"]; ok {
		tags, isList := raw.([]any)
		if !isList {
			return nil, l.parseError(file, node, "metadata.tags must be a sequence of strings")
		}
		for _, tag := range tags {
			if _, isString := tag.(string); !isString {
				return nil, l.parseError(file, node, "metadata.tags must be a sequence of strings")
			}
		}
	}
	return meta, nil
}

// paramDecl mirrors one entry of the params sequence.
type paramDecl struct {
	Name        string     `yaml:"name"`
	Type        string     `yaml:"type"`
	Default     *yaml.Node `yaml:"default"`
	Secret      bool       `yaml:"secret"`
	Description string     `yaml:"description"`
}

func (l *Loader) parseParams(file string, node *yaml.Node) ([]domain.Param, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, l.parseError(file, node, "params must be a sequence of declarations")
	}
	var params []domain.Param
	seen := map[string]bool{}
	for _, item := range node.Content {
		var decl paramDecl
		if err := item.Decode(&decl); err != nil {
			return nil, l.parseError(file, item, "invalid parameter declaration: %v", err)
		}
		if !registry.ValidVariableName(decl.Name) {
			return nil, l.parseError(file, item, "invalid parameter name %q", decl.Name)
		}
		if seen[decl.Name] {
			return nil, l.parseError(file, item, "duplicate parameter %q", decl.Name)
		}
		seen[decl.Name] = true

		if decl.Type == "" {
			decl.Type = string(registry.TypeString)
		}
		if !registry.KnownFieldType(decl.Type) {
			return nil, l.parseError(file, item, "parameter %q has unknown type %q", decl.Name, decl.Type)
		}
		fieldType := registry.FieldType(decl.Type)
		if decl.Secret && fieldType != registry.TypeString {
			return nil, l.parseError(file, item, "parameter %q: secret requires type str", decl.Name)
		}

		param := domain.Param{
			Name:        decl.Name,
			Type:        fieldType,
			Secret:      decl.Secret,
			Description: decl.Description,
		}
		if decl.Default != nil {
			var raw any
			if err := decl.Default.Decode(&raw); err != nil {
				return nil, l.parseError(file, decl.Default, "parameter %q has invalid default", decl.Name)
			}
			normalized, err := values.Normalize(raw)
			if err != nil {
				return nil, l.parseError(file, decl.Default, "parameter %q has invalid default: %v", decl.Name, err)
			}
			coerced, err := registry.CoerceValue(fieldType, normalized)
			if err != nil {
				return nil, l.parseError(file, decl.Default, "parameter %q default does not match type %s: %v",
					decl.Name, fieldType, err)
			}
			param.Default = coerced
			param.HasDefault = true
		}
		params = append(params, param)
	}
	return params, nil
}

func (l *Loader) parseEnvs(file string, node *yaml.Node) ([]domain.EnvBinding, error) {
	if node.Kind != yaml.MappingNode {
		return nil, l.parseError(file, node, "envs must be a mapping of variable to environment name")
	}
	var envs []domain.EnvBinding
	seen := map[string]bool{}
	for i := 0; i < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if key.Kind != yaml.ScalarNode || !registry.ValidVariableName(key.Value) {
			return nil, l.parseError(file, key, "invalid envs variable name %q", key.Value)
		}
		if seen[key.Value] {
			return nil, l.parseError(file, key, "duplicate envs variable %q", key.Value)
		}
		seen[key.Value] = true
		envName, err := scalarString(file, l, value, "envs value")
		if err != nil {
			return nil, err
		}
		envs = append(envs, domain.EnvBinding{Name: key.Value, EnvVar: envName})
	}
	return envs, nil
}
