package profile

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/viper"

	"github.com/ja7ad/procwatch/pkg/types"
)

// Set is the list of profiles found in one configuration file.
type Set []Profile

// Get returns the profile with the given name.
func (s Set) Get(name string) (Profile, error) {
	for _, p := range s {
		if p.Name == name {
			return p.Clone(), nil
		}
	}
	return Profile{}, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
}

// Names lists profile names in file order.
func (s Set) Names() []string {
	out := make([]string, 0, len(s))
	for _, p := range s {
		out = append(out, p.Name)
	}
	return out
}

type fileRule struct {
	Name         string        `mapstructure:"name"`
	Metric       string        `mapstructure:"metric"`
	Operator     string        `mapstructure:"operator"`
	Limit        float64       `mapstructure:"limit"`
	SustainedFor time.Duration `mapstructure:"sustained_for"`
	Target       string        `mapstructure:"target"`
	Enabled      *bool         `mapstructure:"enabled"`
}

type fileProfile struct {
	Name           string        `mapstructure:"name"`
	SampleInterval time.Duration `mapstructure:"sample_interval"`
	Rules          []fileRule    `mapstructure:"rules"`
}

type fileConfig struct {
	Profiles []fileProfile `mapstructure:"profiles"`
}

// LoadFile reads profiles from a YAML, TOML or JSON file (by extension).
func LoadFile(path string) (Set, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("profile: read %s: %w", path, err)
	}
	return Decode(v)
}

// Load reads profiles from r in the given format ("yaml", "toml", "json").
func Load(r io.Reader, format string) (Set, error) {
	v := viper.New()
	v.SetConfigType(format)
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("profile: read: %w", err)
	}
	return Decode(v)
}

// Decode converts an already-read viper instance into a validated Set.
// Memory limits are given in MiB in the file and converted to bytes.
func Decode(v *viper.Viper) (Set, error) {
	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, fmt.Errorf("profile: decode: %w", err)
	}
	if len(fc.Profiles) == 0 {
		return nil, fmt.Errorf("%w: no profiles defined", ErrStaleProfile)
	}

	set := make(Set, 0, len(fc.Profiles))
	names := make(map[string]struct{}, len(fc.Profiles))
	for _, fp := range fc.Profiles {
		p, err := fp.toProfile()
		if err != nil {
			return nil, err
		}
		if _, dup := names[p.Name]; dup {
			return nil, fmt.Errorf("profile: duplicate profile name %q", p.Name)
		}
		names[p.Name] = struct{}{}
		set = append(set, p)
	}
	return set, nil
}

func (fp fileProfile) toProfile() (Profile, error) {
	if fp.Name == "" {
		return Profile{}, errors.New("profile: profile without a name")
	}
	p := Profile{Name: fp.Name, SampleInterval: fp.SampleInterval}
	for _, fr := range fp.Rules {
		r, err := fr.toRule()
		if err != nil {
			return Profile{}, fmt.Errorf("profile %q: %w", fp.Name, err)
		}
		p.Rules = append(p.Rules, r)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (fr fileRule) toRule() (Rule, error) {
	metric, err := ParseMetric(fr.Metric)
	if err != nil {
		return Rule{}, err
	}
	op, err := ParseOperator(fr.Operator)
	if err != nil {
		return Rule{}, err
	}
	target, err := ParseTarget(fr.Target)
	if err != nil {
		return Rule{}, err
	}
	limit := fr.Limit
	if metric == MetricMemory {
		if limit < 0 {
			return Rule{}, fmt.Errorf("%w: rule %q: negative limit", ErrInvalidRule, fr.Name)
		}
		limit = float64(types.FromMiB(fr.Limit))
	}
	r := Rule{
		Name:         fr.Name,
		Metric:       metric,
		Operator:     op,
		Limit:        limit,
		SustainedFor: fr.SustainedFor,
		Target:       target,
		Disabled:     fr.Enabled != nil && !*fr.Enabled,
	}
	return r, r.Validate()
}
