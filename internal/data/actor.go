package data

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidTemplate is returned when an actor template fails validation.
var ErrInvalidTemplate = errors.New("invalid actor template")

//go:embed actors.yaml
var defaultActors []byte

// Role separates the single player template from the hostile pool.
type Role string

const (
	RolePlayer  Role = "player"
	RoleHostile Role = "hostile"
)

// ActorTemplate holds the static stats an actor is built from.
type ActorTemplate struct {
	Name           string        `yaml:"name"`
	Role           Role          `yaml:"role"`
	MaxHealth      float32       `yaml:"max_health"`
	DamageCooldown time.Duration `yaml:"damage_cooldown"` // 0 = every hit applies
	Speed          float32       `yaml:"speed"`           // units per second
	HurtRadius     float32       `yaml:"hurt_radius"`
	ContactDamage  float32       `yaml:"contact_damage"` // dealt to the player on contact
	RegenPerSecond float32       `yaml:"regen_per_second"`
	Weight         int           `yaml:"weight"` // relative spawn weight among hostiles
}

type actorListFile struct {
	Actors []ActorTemplate `yaml:"actors"`
}

// ActorTable holds every template indexed by name, plus the hostile pool in
// file order.
type ActorTable struct {
	templates   map[string]*ActorTemplate
	player      *ActorTemplate
	hostiles    []*ActorTemplate
	totalWeight int
}

// LoadActorTable loads actor templates from a YAML file. An empty path loads
// the built-in table.
func LoadActorTable(path string) (*ActorTable, error) {
	raw := defaultActors
	if path != "" {
		var err error
		raw, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read actor_list: %w", err)
		}
	}
	return ParseActorTable(raw)
}

// ParseActorTable parses and validates an actor list document.
func ParseActorTable(raw []byte) (*ActorTable, error) {
	var f actorListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse actor_list: %w", err)
	}
	t := &ActorTable{templates: make(map[string]*ActorTemplate, len(f.Actors))}
	for i := range f.Actors {
		a := &f.Actors[i]
		if err := a.validate(); err != nil {
			return nil, err
		}
		if _, dup := t.templates[a.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate name %q", ErrInvalidTemplate, a.Name)
		}
		t.templates[a.Name] = a
		switch a.Role {
		case RolePlayer:
			if t.player != nil {
				return nil, fmt.Errorf("%w: second player template %q", ErrInvalidTemplate, a.Name)
			}
			t.player = a
		case RoleHostile:
			t.hostiles = append(t.hostiles, a)
			t.totalWeight += a.Weight
		}
	}
	if t.player == nil {
		return nil, fmt.Errorf("%w: no player template", ErrInvalidTemplate)
	}
	if len(t.hostiles) == 0 {
		return nil, fmt.Errorf("%w: no hostile template", ErrInvalidTemplate)
	}
	return t, nil
}

func (a *ActorTemplate) validate() error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w %q: %s", ErrInvalidTemplate, a.Name, fmt.Sprintf(format, args...))
	}
	switch {
	case a.Name == "":
		return fmt.Errorf("%w: missing name", ErrInvalidTemplate)
	case a.Role != RolePlayer && a.Role != RoleHostile:
		return bad("unknown role %q", a.Role)
	case !(a.MaxHealth > 0):
		return bad("max_health must be > 0, got %v", a.MaxHealth)
	case a.DamageCooldown < 0:
		return bad("damage_cooldown must be >= 0, got %v", a.DamageCooldown)
	case !(a.Speed >= 0):
		return bad("speed must be >= 0, got %v", a.Speed)
	case !(a.HurtRadius >= 0):
		return bad("hurt_radius must be >= 0, got %v", a.HurtRadius)
	case !(a.ContactDamage >= 0):
		return bad("contact_damage must be >= 0, got %v", a.ContactDamage)
	case !(a.RegenPerSecond >= 0):
		return bad("regen_per_second must be >= 0, got %v", a.RegenPerSecond)
	case a.Weight < 0:
		return bad("weight must be >= 0, got %d", a.Weight)
	}
	if a.Role == RoleHostile && a.Weight == 0 {
		a.Weight = 1
	}
	return nil
}

// Get returns a template by name, or nil if not found.
func (t *ActorTable) Get(name string) *ActorTemplate {
	return t.templates[name]
}

// Player returns the player template.
func (t *ActorTable) Player() *ActorTemplate { return t.player }

// Hostiles returns the hostile templates in file order.
func (t *ActorTable) Hostiles() []*ActorTemplate { return t.hostiles }

// PickHostile maps roll in [0, TotalWeight()) to a hostile template by weight.
func (t *ActorTable) PickHostile(roll int) *ActorTemplate {
	for _, h := range t.hostiles {
		if roll < h.Weight {
			return h
		}
		roll -= h.Weight
	}
	return t.hostiles[len(t.hostiles)-1]
}

// TotalWeight returns the sum of hostile weights.
func (t *ActorTable) TotalWeight() int { return t.totalWeight }

// MaxHurtRadius returns the largest hostile hurt radius, used as the
// projectile query radius when no explicit hit radius is configured.
func (t *ActorTable) MaxHurtRadius() float32 {
	var r float32
	for _, h := range t.hostiles {
		if h.HurtRadius > r {
			r = h.HurtRadius
		}
	}
	return r
}

// Count returns the number of loaded templates.
func (t *ActorTable) Count() int {
	return len(t.templates)
}
