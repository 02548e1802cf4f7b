package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// providerFile is the on-disk shape of one provider definition.
type providerFile struct {
	Provider string             `yaml:"provider"`
	Actions  []actionDefinition `yaml:"actions"`
}

type actionDefinition struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Endpoint    string          `yaml:"endpoint"`
	Method      string          `yaml:"method"`
	Parameters  []parameterSpec `yaml:"parameters"`
}

type parameterSpec struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Required    *bool  `yaml:"required"`
	Description string `yaml:"description"`
	Default     any    `yaml:"default"`
}

// Doer issues HTTP requests on behalf of action handlers. Satisfied by
// *http.Client and by breaker-guarded wrappers.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Loader reads provider definition files and turns each entry into an
// Action whose handler relays validated parameters to the provider's HTTP
// endpoint and returns the response body as an opaque string.
type Loader struct {
	http   Doer
	logger *zap.Logger
}

// NewLoader creates a definition loader. A nil client falls back to a
// timeout-bearing HTTP client.
func NewLoader(client Doer, logger *zap.Logger) *Loader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{http: client, logger: logger}
}

// LoadDirectory scans root recursively for *.yaml / *.yml provider files
// and returns the actions they define, in file then declaration order.
// A missing directory is not an error; it yields no actions.
func (l *Loader) LoadDirectory(root string) ([]Action, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat definitions dir %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	var out []Action
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		acts, err := l.loadFile(path)
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		out = append(out, acts...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (l *Loader) loadFile(path string) ([]Action, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pf providerFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if pf.Provider == "" {
		return nil, fmt.Errorf("missing provider name")
	}

	out := make([]Action, 0, len(pf.Actions))
	for _, def := range pf.Actions {
		act, err := l.buildAction(pf.Provider, def)
		if err != nil {
			return nil, fmt.Errorf("action %q: %w", def.Name, err)
		}
		out = append(out, act)
	}
	l.logger.Info("Loaded provider definitions",
		zap.String("provider", pf.Provider),
		zap.Int("actions", len(out)),
		zap.String("file", path),
	)
	return out, nil
}

func (l *Loader) buildAction(provider string, def actionDefinition) (Action, error) {
	if def.Endpoint == "" {
		return Action{}, fmt.Errorf("missing endpoint")
	}
	schema, err := buildSchema(def.Parameters)
	if err != nil {
		return Action{}, err
	}
	method := def.Method
	if method == "" {
		method = http.MethodPost
	}
	endpoint := def.Endpoint
	client := l.http

	return New(Definition{
		Name:        provider + "_" + def.Name,
		Description: def.Description,
		Schema:      schema,
		Handler: func(ctx context.Context, params map[string]any) (string, error) {
			body, err := json.Marshal(params)
			if err != nil {
				return "", fmt.Errorf("encode params: %w", err)
			}
			req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
			if err != nil {
				return "", err
			}
			req.Header.Set("Content-Type", "application/json")
			resp, err := client.Do(req)
			if err != nil {
				return "", err
			}
			defer resp.Body.Close()
			payload, err := io.ReadAll(resp.Body)
			if err != nil {
				return "", err
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return "", fmt.Errorf("provider endpoint status %d: %s", resp.StatusCode, string(payload))
			}
			return string(payload), nil
		},
	})
}

func buildSchema(specs []parameterSpec) (*Schema, error) {
	fields := make([]Field, 0, len(specs))
	for _, p := range specs {
		if p.Name == "" {
			return nil, fmt.Errorf("parameter with empty name")
		}
		var node *Schema
		switch ParamType(p.Type) {
		case TypeString, "":
			node = String()
		case TypeNumber:
			node = Number()
		case TypeBoolean:
			node = Boolean()
		case TypeArray:
			node = Array(nil)
		case TypeObject:
			node = Object()
		default:
			node = Unknown()
		}
		if p.Description != "" {
			node.Describe(p.Description)
		}
		if p.Default != nil {
			node = WithDefault(node, p.Default)
		} else if p.Required != nil && !*p.Required {
			node = Optional(node)
		}
		fields = append(fields, F(p.Name, node))
	}
	return Object(fields...), nil
}
