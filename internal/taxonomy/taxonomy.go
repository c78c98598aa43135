// Package taxonomy maps survey questions to characteristic flags.
//
// The mapping is a declarative table (characteristics.yaml, embedded) rather
// than code, so a new question/flag pair needs no control-flow change. A
// Taxonomy is bound to the characteristic store once per import; any entry
// without a persisted characteristic aborts the whole import.
package taxonomy

import (
	"context"
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/sitesurvey-cli/internal/facility"
	"github.com/sells-group/sitesurvey-cli/internal/survey"
)

//go:embed characteristics.yaml
var defaultTable []byte

// Coercion selects how an answer becomes a boolean.
type Coercion string

const (
	CoerceYesNo   Coercion = "yes_no"
	CoerceYesNoNA Coercion = "yes_no_na"
)

// Definition maps one survey question to one characteristic property.
type Definition struct {
	Question     string   `yaml:"question"`
	Match        string   `yaml:"match"` // "exact" (default) or "prefix"
	PropertyName string   `yaml:"property"`
	Name         string   `yaml:"name"`
	Coercion     Coercion `yaml:"coercion"`

	Service string `yaml:"-"`
	Model   string `yaml:"-"`
}

// QuestionMatch returns the matcher for the definition's question.
func (d Definition) QuestionMatch() survey.QuestionMatch {
	if d.Match == "prefix" {
		return survey.StartsWith(d.Question)
	}
	return survey.Exact(d.Question)
}

type table struct {
	Service  string       `yaml:"service"`
	Premises []Definition `yaml:"premises"`
	Rooms    []Definition `yaml:"rooms"`
}

// Taxonomy is the ordered list of definitions for premises and rooms.
type Taxonomy struct {
	service  string
	premises []Definition
	rooms    []Definition
}

// Default returns the embedded taxonomy.
func Default() (*Taxonomy, error) {
	return Parse(defaultTable)
}

// LoadFile reads a taxonomy table from path.
func LoadFile(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "taxonomy: read %s", path)
	}
	return Parse(data)
}

// Parse decodes and validates a taxonomy table.
func Parse(data []byte) (*Taxonomy, error) {
	var tbl table
	if err := yaml.Unmarshal(data, &tbl); err != nil {
		return nil, eris.Wrap(err, "taxonomy: decode")
	}
	if tbl.Service == "" {
		tbl.Service = facility.ServiceApprovedPremises
	}

	premises, err := normalize(tbl.Premises, tbl.Service, facility.ModelPremises)
	if err != nil {
		return nil, err
	}
	rooms, err := normalize(tbl.Rooms, tbl.Service, facility.ModelRoom)
	if err != nil {
		return nil, err
	}
	return &Taxonomy{service: tbl.Service, premises: premises, rooms: rooms}, nil
}

func normalize(defs []Definition, service, model string) ([]Definition, error) {
	seen := make(map[string]bool, len(defs))
	out := make([]Definition, 0, len(defs))
	for i, d := range defs {
		if d.Question == "" || d.PropertyName == "" {
			return nil, eris.Errorf("taxonomy: %s entry %d needs question and property", model, i)
		}
		if seen[d.PropertyName] {
			return nil, eris.Errorf("taxonomy: duplicate %s property %q", model, d.PropertyName)
		}
		seen[d.PropertyName] = true

		switch d.Match {
		case "", "exact", "prefix":
		default:
			return nil, eris.Errorf("taxonomy: %s: unknown match %q", d.PropertyName, d.Match)
		}
		switch d.Coercion {
		case "":
			d.Coercion = CoerceYesNo
		case CoerceYesNo, CoerceYesNoNA:
		default:
			return nil, eris.Errorf("taxonomy: %s: unknown coercion %q", d.PropertyName, d.Coercion)
		}
		if d.Name == "" {
			d.Name = d.Question
		}
		d.Service = service
		d.Model = model
		out = append(out, d)
	}
	return out, nil
}

// WithService returns a copy of t scoped to service.
func (t *Taxonomy) WithService(service string) *Taxonomy {
	if service == "" || service == t.service {
		return t
	}
	c := &Taxonomy{service: service}
	for _, d := range t.premises {
		d.Service = service
		c.premises = append(c.premises, d)
	}
	for _, d := range t.rooms {
		d.Service = service
		c.rooms = append(c.rooms, d)
	}
	return c
}

// Service returns the service scope of every definition.
func (t *Taxonomy) Service() string { return t.service }

// Definitions returns the ordered definitions for a model scope.
func (t *Taxonomy) Definitions(model string) []Definition {
	switch model {
	case facility.ModelPremises:
		return t.premises
	case facility.ModelRoom:
		return t.rooms
	default:
		return nil
	}
}

// Characteristics returns one unsaved characteristic per definition, for
// seeding the store.
func (t *Taxonomy) Characteristics() []facility.Characteristic {
	var out []facility.Characteristic
	for _, defs := range [][]Definition{t.premises, t.rooms} {
		for _, d := range defs {
			out = append(out, facility.Characteristic{
				PropertyName: d.PropertyName,
				Name:         d.Name,
				ServiceScope: d.Service,
				ModelScope:   d.Model,
			})
		}
	}
	return out
}

// Finder resolves a characteristic by property name and scopes.
type Finder interface {
	FindCharacteristic(ctx context.Context, propertyName, serviceScope, modelScope string) (*facility.Characteristic, error)
}

// Binding pairs a definition with its persisted characteristic.
type Binding struct {
	Definition
	Characteristic facility.Characteristic
}

// Bound is a taxonomy whose every definition resolved to a stored characteristic.
type Bound struct {
	premises []Binding
	rooms    []Binding
}

// Bind resolves every definition against the store. The first definition with
// no stored characteristic fails the bind with UnknownCharacteristic.
func (t *Taxonomy) Bind(ctx context.Context, finder Finder) (*Bound, error) {
	premises, err := bind(ctx, finder, t.premises)
	if err != nil {
		return nil, err
	}
	rooms, err := bind(ctx, finder, t.rooms)
	if err != nil {
		return nil, err
	}
	return &Bound{premises: premises, rooms: rooms}, nil
}

func bind(ctx context.Context, finder Finder, defs []Definition) ([]Binding, error) {
	out := make([]Binding, 0, len(defs))
	for _, d := range defs {
		c, err := finder.FindCharacteristic(ctx, d.PropertyName, d.Service, d.Model)
		if err != nil {
			return nil, eris.Wrapf(err, "taxonomy: find characteristic %s", d.PropertyName)
		}
		if c == nil {
			return nil, survey.UnknownCharacteristic(d.PropertyName, d.Service, d.Model)
		}
		out = append(out, Binding{Definition: d, Characteristic: *c})
	}
	return out, nil
}

// Bindings returns the bindings for a model scope.
func (b *Bound) Bindings(model string) []Binding {
	switch model {
	case facility.ModelPremises:
		return b.premises
	case facility.ModelRoom:
		return b.rooms
	default:
		return nil
	}
}

// Apply answers every question of the model scope for one unit column and
// returns the characteristics answered true.
func (b *Bound) Apply(g *survey.Grid, model string, col int) (facility.Characteristics, error) {
	var set []facility.Characteristic
	for _, binding := range b.Bindings(model) {
		a, err := g.Lookup(binding.QuestionMatch(), col)
		if err != nil {
			return nil, err
		}
		var on bool
		if binding.Coercion == CoerceYesNoNA {
			on, err = a.YesNoOrNA()
		} else {
			on, err = a.YesNo()
		}
		if err != nil {
			return nil, err
		}
		if on {
			set = append(set, binding.Characteristic)
		}
	}
	return facility.NewCharacteristics(set...), nil
}
