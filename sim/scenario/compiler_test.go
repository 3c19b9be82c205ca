package scenario

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/pedflow-sim/pedflow-sim/sim"
)

func compileSample(t *testing.T, seed uint64, periodIndex int) []profileSnapshot {
	t.Helper()
	spec, err := Parse([]byte(sampleScenario))
	require.NoError(t, err)
	profiles, err := Compile(spec, rand.New(rand.NewSource(seed)), periodIndex)
	require.NoError(t, err)

	snaps := make([]profileSnapshot, len(profiles))
	for i, p := range profiles {
		snaps[i] = profileSnapshot{
			ID:       p.ID,
			Role:     p.Role,
			Speed:    p.SpeedBase,
			Stairs:   p.StairsPenalty,
			Beta:     p.OptimalityBeta,
			Interval: p.RerouteIntervalTicks,
			Detour:   p.DetourProbability,
			Departs:  departTimes(p.Schedule),
		}
	}
	return snaps
}

type profileSnapshot struct {
	ID       string
	Role     string
	Speed    float64
	Stairs   float64
	Beta     float64
	Interval int
	Detour   float64
	Departs  []float64
}

func departTimes(entries []sim.ScheduleEntry) []float64 {
	times := make([]float64, len(entries))
	for i, e := range entries {
		times[i] = e.DepartTime
	}
	return times
}

func TestCompile_DeterministicUnderSeed(t *testing.T) {
	first := compileSample(t, 1337, WholeScenario)
	second := compileSample(t, 1337, WholeScenario)
	assert.Equal(t, first, second, "same seed and spec must reproduce a bit-identical population")

	third := compileSample(t, 7, WholeScenario)
	assert.NotEqual(t, first, third, "a different seed must move the drawn parameters")
}

func TestCompile_PopulationShape(t *testing.T) {
	spec, err := Parse([]byte(sampleScenario))
	require.NoError(t, err)
	profiles, err := Compile(spec, rand.New(rand.NewSource(1)), WholeScenario)
	require.NoError(t, err)

	// 40 standalone + 10 chained + 5 staff = 55 agents; the chain's second
	// movement extends existing agents instead of creating new ones.
	require.Len(t, profiles, 55)

	chained := 0
	for _, p := range profiles {
		assert.NotEmpty(t, p.ID)
		assert.GreaterOrEqual(t, p.SpeedBase, 0.3)
		assert.LessOrEqual(t, p.SpeedBase, 3.0)
		assert.GreaterOrEqual(t, p.DetourProbability, 0.0)
		assert.LessOrEqual(t, p.DetourProbability, 1.0)
		if len(p.Schedule) == 2 {
			chained++
			assert.Equal(t, "lab_a", p.Schedule[1].Origin)
			assert.InDelta(t, 120.0, p.Schedule[1].DepartTime-p.Schedule[0].DepartTime, 1e-9,
				"chained legs carry the cumulative delay offset")
		}
	}
	assert.Equal(t, 10, chained)
}

func TestCompile_WholeScenarioNormalizesToEarliestPeriod(t *testing.T) {
	spec, err := Parse([]byte(sampleScenario))
	require.NoError(t, err)
	profiles, err := Compile(spec, rand.New(rand.NewSource(1)), WholeScenario)
	require.NoError(t, err)

	// The "change" period starts 50 minutes after "morning".
	var staffDeparts []float64
	for _, p := range profiles {
		if p.Role == "staff" {
			staffDeparts = append(staffDeparts, p.Schedule[0].DepartTime)
		}
	}
	require.Len(t, staffDeparts, 5)
	for _, d := range staffDeparts {
		assert.GreaterOrEqual(t, d, 3000.0)
		assert.Less(t, d, 3000.0+DefaultSpreadS)
	}
}

func TestCompile_SinglePeriodUsesOwnStart(t *testing.T) {
	spec, err := Parse([]byte(sampleScenario))
	require.NoError(t, err)
	profiles, err := Compile(spec, rand.New(rand.NewSource(1)), 1)
	require.NoError(t, err)

	require.Len(t, profiles, 5)
	for _, p := range profiles {
		assert.Equal(t, "staff", p.Role)
		assert.Less(t, p.Schedule[0].DepartTime, DefaultSpreadS,
			"single-period runs normalize to the period's own start")
	}
}

func TestCompile_PeriodIndexOutOfRange(t *testing.T) {
	spec, err := Parse([]byte(sampleScenario))
	require.NoError(t, err)
	_, err = Compile(spec, rand.New(rand.NewSource(1)), 5)
	assert.Error(t, err)
}

func TestCompile_DepartureFlattening(t *testing.T) {
	doc := `
tick_seconds: 1
transition_window_s: 600
periods:
  - id: p
    start_time: "09:00"
    movements:
      - {population: crowd, count: 100, origin: a, destination: b, spread_s: 60}
behaviour:
  speed: {type: fixed, value: 1.35}
`
	spec, err := Parse([]byte(doc))
	require.NoError(t, err)
	profiles, err := Compile(spec, rand.New(rand.NewSource(42)), WholeScenario)
	require.NoError(t, err)
	require.Len(t, profiles, 100)

	// 100 departures over 60 s into 5 s bins: theoretical minimum per bin is
	// ceil(100/12) = 9; stratified spreading must stay within +1 of it.
	bins := make(map[int]int)
	for _, p := range profiles {
		d := p.Schedule[0].DepartTime
		require.GreaterOrEqual(t, d, 0.0)
		require.Less(t, d, 60.0)
		bins[int(math.Floor(d/5))]++
	}
	for bin, count := range bins {
		assert.LessOrEqual(t, count, 10, "bin %d overloaded", bin)
	}
}

func TestDist_Resolve(t *testing.T) {
	src := rand.NewSource(3)

	s, err := Dist{Type: "fixed", Value: 2.5}.Resolve(src)
	require.NoError(t, err)
	assert.Equal(t, 2.5, s.Sample())
	assert.Equal(t, 2.5, s.Sample())

	s, err = Dist{Type: "uniform", Low: 1, High: 2}.Resolve(src)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		v := s.Sample()
		assert.GreaterOrEqual(t, v, 1.0)
		assert.Less(t, v, 2.0)
	}

	s, err = Dist{Type: "lognormal", Mean: 0, Sigma: 0.5}.Resolve(src)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		assert.Greater(t, s.Sample(), 0.0)
	}

	_, err = Dist{Type: "zipf"}.Resolve(src)
	assert.Error(t, err)

	_, err = Dist{Type: "uniform", Low: 2, High: 1}.Resolve(src)
	assert.Error(t, err)
}

func TestEngineConfigFromSpec(t *testing.T) {
	spec, err := Parse([]byte(sampleScenario))
	require.NoError(t, err)
	cfg := spec.EngineConfig()
	assert.Equal(t, 1.0, cfg.TickSeconds)
	assert.Equal(t, 600.0, cfg.TransitionWindowS)
	assert.NoError(t, cfg.Validate())
}
