package detection

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
	"github.com/saturnino-fabrica-de-software/proctor/internal/provider"
)

//go:embed default_policy.yaml
var defaultPolicyYAML []byte

// Expansion grows a box before face extraction. Up and Down are multiples
// of the box height, Sides a multiple of its width.
type Expansion struct {
	Up    float64 `yaml:"up"`
	Sides float64 `yaml:"sides"`
	Down  float64 `yaml:"down"`
}

// Policy decides which detections are acted on.
type Policy struct {
	Thresholds       map[domain.Class]float64
	DefaultThreshold float64
	Expansions       map[domain.Class]Expansion
	Violations       map[domain.Class]bool
}

// Decision is the outcome of classifying one detection.
type Decision struct {
	Accepted  bool
	Box       domain.Box
	Violation bool
}

type classEntry struct {
	Name      string     `yaml:"name"`
	Threshold *float64   `yaml:"threshold"`
	Violation bool       `yaml:"violation"`
	Expand    *Expansion `yaml:"expand"`
}

type policyFile struct {
	DefaultThreshold float64            `yaml:"default_threshold"`
	Classes          map[int]classEntry `yaml:"classes"`
}

// DefaultPolicy returns the built-in class table and its labels.
func DefaultPolicy() (Policy, provider.Labels) {
	policy, labels, err := ParsePolicy(defaultPolicyYAML)
	if err != nil {
		panic("failed to parse embedded default_policy.yaml: " + err.Error())
	}
	return policy, labels
}

// LoadPolicy reads a policy file. An empty path returns DefaultPolicy.
func LoadPolicy(path string) (Policy, provider.Labels, error) {
	if path == "" {
		p, l := DefaultPolicy()
		return p, l, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, nil, fmt.Errorf("read policy file: %w", err)
	}

	policy, labels, err := ParsePolicy(data)
	if err != nil {
		return Policy{}, nil, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	return policy, labels, nil
}

// ParsePolicy decodes a YAML policy document.
func ParsePolicy(data []byte) (Policy, provider.Labels, error) {
	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Policy{}, nil, err
	}

	if file.DefaultThreshold < 0 || file.DefaultThreshold > 1 {
		return Policy{}, nil, fmt.Errorf("default_threshold %v out of range", file.DefaultThreshold)
	}

	policy := Policy{
		Thresholds:       make(map[domain.Class]float64),
		DefaultThreshold: file.DefaultThreshold,
		Expansions:       make(map[domain.Class]Expansion),
		Violations:       make(map[domain.Class]bool),
	}
	labels := make(provider.Labels, len(file.Classes))

	ids := make([]int, 0, len(file.Classes))
	for id := range file.Classes {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		entry := file.Classes[id]
		if entry.Name == "" {
			return Policy{}, nil, fmt.Errorf("class %d has no name", id)
		}
		class := domain.Class(entry.Name)
		labels[id] = class

		if entry.Threshold != nil {
			if *entry.Threshold < 0 || *entry.Threshold > 1 {
				return Policy{}, nil, fmt.Errorf("class %s threshold %v out of range", class, *entry.Threshold)
			}
			policy.Thresholds[class] = *entry.Threshold
		}
		if entry.Violation {
			policy.Violations[class] = true
		}
		if entry.Expand != nil {
			policy.Expansions[class] = *entry.Expand
		}
	}

	return policy, labels, nil
}

// Threshold returns the minimum confidence for class.
func (p Policy) Threshold(class domain.Class) float64 {
	if t, ok := p.Thresholds[class]; ok {
		return t
	}
	return p.DefaultThreshold
}

// Accept reports whether d clears its class threshold.
func (p Policy) Accept(d domain.Detection) bool {
	return d.Confidence >= p.Threshold(d.Class)
}

// IsViolation reports whether class triggers face matching and alerts.
func (p Policy) IsViolation(class domain.Class) bool {
	return p.Violations[class]
}

// Adjust expands the box of d when its class has an expansion and clips it
// to the frame. Offsets are truncated toward zero.
func (p Policy) Adjust(d domain.Detection, width, height int) domain.Box {
	b := d.Box
	if e, ok := p.Expansions[d.Class]; ok {
		w, h := b.Width(), b.Height()
		b = domain.Box{
			X1: b.X1 - int(float64(w)*e.Sides),
			Y1: b.Y1 - int(float64(h)*e.Up),
			X2: b.X2 + int(float64(w)*e.Sides),
			Y2: b.Y2 + int(float64(h)*e.Down),
		}
	}
	return b.Clip(width, height)
}

// Classify gates, adjusts and flags one detection.
func (p Policy) Classify(d domain.Detection, width, height int) Decision {
	if !p.Accept(d) {
		return Decision{}
	}
	return Decision{
		Accepted:  true,
		Box:       p.Adjust(d, width, height),
		Violation: p.IsViolation(d.Class),
	}
}
