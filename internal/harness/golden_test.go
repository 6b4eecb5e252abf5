package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenarios_Golden runs every scenario under testdata/scenarios and
// compares its trace with testdata/golden. Regenerate with -update.
func TestScenarios_Golden(t *testing.T) {
	scenarios, _, err := LoadScenarios(filepath.Join("testdata", "scenarios"), "")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestTraceSnapshot_Marshal(t *testing.T) {
	snapshot := TraceSnapshot{
		ScenarioName: "tiny",
		Trace: []TraceStep{{
			Seq:      1,
			Event:    "disconnect",
			Accepted: false,
			From:     "Unsubscribed",
			To:       "Unsubscribed",
		}},
	}

	data, err := snapshot.Marshal()
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"tiny","trace":[{"accepted":false,"event":"disconnect","from":"Unsubscribed","invocations":[],"seq":1,"to":"Unsubscribed"}]}`,
		string(data))
}

func TestAssertGolden_ReusesResult(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "stale_results.yaml"))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.NoError(t, AssertGolden(t, "stale_results", result))
}
