// Package manifest reads compose-style project files into desired services.
//
// Only the subset of the compose format lighthouse acts on is modelled:
// image, command, environment, build and deploy.{replicas,update_config.order}.
package manifest

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/distribution/reference"
	"github.com/mattn/go-shellwords"
	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/melih/lighthouse/internal/core/domain"
)

// Schema modes, set with x-lighthouse.schema_mode.
const (
	// SchemaDefault ignores unknown compose fields but rejects unknown
	// fields inside x-lighthouse.
	SchemaDefault = "default"
	// SchemaLoose ignores every unknown field.
	SchemaLoose = "loose"
	// SchemaStrict rejects every unknown field.
	SchemaStrict = "strict"
)

type Project struct {
	Name       string             `yaml:"name"`
	Services   map[string]Service `yaml:"services"`
	Lighthouse Extension          `yaml:"x-lighthouse"`
}

// Extension holds the lighthouse specific settings of a project.
type Extension struct {
	SchemaMode      string `yaml:"schema_mode"`
	RemoteWorkbench string `yaml:"remote_workbench"`
}

type Service struct {
	Image       string      `yaml:"image"`
	Command     Command     `yaml:"command"`
	Environment Environment `yaml:"environment"`
	Build       *Build      `yaml:"build"`
	Deploy      Deploy      `yaml:"deploy"`
}

// Build describes how to produce the service image from a git repository.
type Build struct {
	Git        string `yaml:"git"`
	Ref        string `yaml:"ref"`
	Dockerfile string `yaml:"dockerfile"`
}

type Deploy struct {
	Replicas     *int         `yaml:"replicas"`
	UpdateConfig UpdateConfig `yaml:"update_config"`
}

type UpdateConfig struct {
	Order string `yaml:"order"`
}

// Command accepts both the list and the string form. The string form is
// split into words the way a shell would.
type Command []string

func (c *Command) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		words, err := shellwords.Parse(value.Value)
		if err != nil {
			return errors.Wrapf(err, "line %d: invalid command %q", value.Line, value.Value)
		}
		*c = words
		return nil
	}
	var list []string
	if err := value.Decode(&list); err != nil {
		return err
	}
	*c = list
	return nil
}

// Environment accepts both the mapping and the KEY=VALUE list form. A bare
// KEY in the list form takes its value from the environment of lighthouse
// and is left out when unset there.
type Environment map[string]string

func (e *Environment) UnmarshalYAML(value *yaml.Node) error {
	env := map[string]string{}
	switch value.Kind {
	case yaml.MappingNode:
		if err := value.Decode(&env); err != nil {
			return err
		}
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		for _, kv := range list {
			k, v, ok := strings.Cut(kv, "=")
			if k == "" {
				return errors.Errorf("line %d: invalid environment entry %q", value.Line, kv)
			}
			if !ok {
				if v, ok = os.LookupEnv(k); !ok {
					continue
				}
			}
			env[k] = v
		}
	default:
		return errors.Errorf("line %d: environment must be a mapping or a list", value.Line)
	}
	*e = env
	return nil
}

// StdinPath names standard input as the manifest source.
const StdinPath = "-"

// Load reads and parses the manifest at path, or stdin when path is
// StdinPath. It also returns the raw bytes for forwarding to another host.
func Load(path string, stdin io.Reader) ([]byte, *Project, error) {
	var (
		data []byte
		err  error
	)
	if path == StdinPath {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, nil, errors.Wrapf(err, "unable to open manifest %s", path)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "unable to load manifest %s", path)
	}
	return data, p, nil
}

// Parse decodes a manifest honouring its schema mode.
func Parse(data []byte) (*Project, error) {
	var probe struct {
		Extension yaml.Node `yaml:"x-lighthouse"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, errors.Wrap(err, "unable to deserialize manifest")
	}

	var ext Extension
	if probe.Extension.Kind != 0 {
		raw, err := yaml.Marshal(&probe.Extension)
		if err != nil {
			return nil, errors.Wrap(err, "unable to read x-lighthouse")
		}
		if err := decode(raw, &ext, true); err != nil {
			return nil, errors.Wrap(err, "unable to deserialize x-lighthouse")
		}
	}

	mode := ext.SchemaMode
	switch mode {
	case "":
		mode = SchemaDefault
	case SchemaDefault, SchemaLoose, SchemaStrict:
	default:
		return nil, errors.Errorf("unknown schema mode %q", mode)
	}

	var p Project
	if err := decode(data, &p, mode == SchemaStrict); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("manifest is empty")
		}
		return nil, errors.Wrap(err, "unable to deserialize manifest")
	}
	p.Lighthouse.SchemaMode = mode
	return &p, nil
}

func decode(data []byte, v any, strict bool) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(strict)
	return dec.Decode(v)
}

// Desired converts the project into desired services.
func (p *Project) Desired() (domain.DesiredServices, error) {
	desired := make(domain.DesiredServices, len(p.Services))
	for name, s := range p.Services {
		definition, err := s.definition()
		if err != nil {
			return nil, errors.Wrapf(err, "service %q", name)
		}
		desired[name] = definition
	}
	return desired, nil
}

func (s Service) definition() (domain.DesiredServiceDefinition, error) {
	hash, err := s.ConfigHash()
	if err != nil {
		return domain.DesiredServiceDefinition{}, err
	}

	replicas := 1
	if s.Deploy.Replicas != nil {
		replicas = *s.Deploy.Replicas
	}
	if replicas < 0 {
		return domain.DesiredServiceDefinition{}, errors.Errorf("replicas must not be negative, got %d", replicas)
	}

	var order domain.UpdateOrder
	if err := order.UnmarshalText([]byte(s.Deploy.UpdateConfig.Order)); err != nil {
		return domain.DesiredServiceDefinition{}, err
	}

	return domain.DesiredServiceDefinition{
		ReplicaCount:      replicas,
		ServiceConfigHash: hash.String(),
		UpdateOrder:       order,
		Template: domain.ContainerTemplate{
			Image:       s.Image,
			Command:     s.Command,
			Environment: s.Environment,
		},
	}, nil
}

// ConfigHash fingerprints what a replica runs. Replica count and update
// order are not part of it: changing them does not make containers stale.
func (s Service) ConfigHash() (digest.Digest, error) {
	if s.Image == "" {
		return "", errors.New("image is required")
	}
	named, err := reference.ParseNormalizedNamed(s.Image)
	if err != nil {
		return "", errors.Wrapf(err, "invalid image reference %q", s.Image)
	}

	command := s.Command
	if len(command) == 0 {
		command = nil
	}
	env := s.Environment
	if len(env) == 0 {
		env = nil
	}
	canonical, err := json.Marshal(struct {
		Image       string            `json:"image"`
		Command     []string          `json:"command"`
		Environment map[string]string `json:"environment"`
	}{
		Image:       reference.TagNameOnly(named).String(),
		Command:     command,
		Environment: env,
	})
	if err != nil {
		return "", err
	}
	return digest.FromBytes(canonical), nil
}
