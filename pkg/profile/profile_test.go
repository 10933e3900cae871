package profile

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ja7ad/procwatch/pkg/types"
)

func cpuRule(name string, limit float64, sustained time.Duration) Rule {
	return Rule{Name: name, Metric: MetricCPU, Operator: OpGreater, Limit: limit, SustainedFor: sustained}
}

func TestProfile_Validate(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		p := Profile{Name: "p", SampleInterval: time.Second, Rules: []Rule{cpuRule("a", 80, 0)}}
		require.NoError(t, p.Validate())
	})
	t.Run("zero_interval_is_stale", func(t *testing.T) {
		p := Profile{Name: "p", Rules: []Rule{cpuRule("a", 80, 0)}}
		assert.True(t, errors.Is(p.Validate(), ErrStaleProfile))
	})
	t.Run("no_rules_is_stale", func(t *testing.T) {
		p := Profile{Name: "p", SampleInterval: time.Second}
		assert.True(t, errors.Is(p.Validate(), ErrStaleProfile))
	})
	t.Run("duplicate_rule_names", func(t *testing.T) {
		p := Profile{Name: "p", SampleInterval: time.Second, Rules: []Rule{cpuRule("a", 1, 0), cpuRule("a", 2, 0)}}
		assert.True(t, errors.Is(p.Validate(), ErrDuplicateRule))
	})
}

func TestRule_Validate(t *testing.T) {
	cases := map[string]Rule{
		"missing_name":       {Metric: MetricCPU, Operator: OpGreater},
		"unknown_metric":     {Name: "x", Operator: OpGreater},
		"bad_operator":       {Name: "x", Metric: MetricCPU, Operator: "<"},
		"negative_limit":     {Name: "x", Metric: MetricCPU, Operator: OpGreater, Limit: -1},
		"negative_sustained": {Name: "x", Metric: MetricCPU, Operator: OpGreater, SustainedFor: -time.Second},
		"exit_on_everything": {Name: "x", Metric: MetricExit},
	}
	for name, r := range cases {
		t.Run(name, func(t *testing.T) {
			assert.True(t, errors.Is(r.Validate(), ErrInvalidRule))
		})
	}
	assert.NoError(t, cpuRule("ok", 50, time.Second).Validate())
	assert.NoError(t, Rule{Name: "db-died", Metric: MetricExit,
		Target: Target{Kind: TargetPattern, Pattern: "postgres"}}.Validate(), "exit rules need no operator")
}

func TestRule_String(t *testing.T) {
	cases := []struct {
		name string
		rule Rule
		want string
	}{
		{"cpu", cpuRule("hot", 80, 3*time.Second), "hot: cpu > 80% for 3s on *"},
		{"memory", Rule{Name: "fat", Metric: MetricMemory, Operator: OpGreater, Limit: float64(2 * types.GiB),
			SustainedFor: 10 * time.Second}, "fat: memory > 2.00 GB for 10s on *"},
		{"exit", Rule{Name: "db-died", Metric: MetricExit,
			Target: Target{Kind: TargetPattern, Pattern: "postgres"}}, "db-died: exit of postgres"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.rule.String())
		})
	}
}

func TestTarget(t *testing.T) {
	t.Run("all", func(t *testing.T) {
		tg, err := ParseTarget("*")
		require.NoError(t, err)
		assert.True(t, tg.Matches(1, "anything"))
		assert.Equal(t, "*", tg.String())
	})
	t.Run("pid", func(t *testing.T) {
		tg, err := ParseTarget("pid:7")
		require.NoError(t, err)
		assert.True(t, tg.Matches(7, "x"))
		assert.False(t, tg.Matches(8, "x"))
		assert.Equal(t, "pid:7", tg.String())
	})
	t.Run("bad_pid", func(t *testing.T) {
		_, err := ParseTarget("pid:zero")
		assert.True(t, errors.Is(err, ErrInvalidRule))
	})
	t.Run("pattern", func(t *testing.T) {
		tg, err := ParseTarget("postgres")
		require.NoError(t, err)
		assert.True(t, tg.Matches(1, "postgres: writer"))
		assert.False(t, tg.Matches(1, "nginx"))
	})
}

func TestParseMetricAndOperator(t *testing.T) {
	m, err := ParseMetric("CPU")
	require.NoError(t, err)
	assert.Equal(t, MetricCPU, m)
	m, err = ParseMetric("rss")
	require.NoError(t, err)
	assert.Equal(t, MetricMemory, m)
	m, err = ParseMetric("exit")
	require.NoError(t, err)
	assert.Equal(t, MetricExit, m)
	assert.Equal(t, "exit", m.String())
	_, err = ParseMetric("io")
	assert.True(t, errors.Is(err, ErrInvalidRule))

	op, err := ParseOperator("")
	require.NoError(t, err)
	assert.True(t, op.Exceeds(81, 80))
	assert.False(t, op.Exceeds(80, 80), "limit itself is not a violation")
	_, err = ParseOperator("<=")
	assert.True(t, errors.Is(err, ErrInvalidRule))
}

func TestProfile_CloneIsolated(t *testing.T) {
	p := Profile{Name: "p", SampleInterval: time.Second, Rules: []Rule{cpuRule("a", 80, 0)}}
	c := p.Clone()
	c.Rules[0].Limit = 1
	assert.Equal(t, 80.0, p.Rules[0].Limit)

	r, ok := p.Rule("a")
	assert.True(t, ok)
	assert.Equal(t, "a", r.Name)
	_, ok = p.Rule("b")
	assert.False(t, ok)
}
