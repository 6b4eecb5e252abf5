package harness

// SuiteResult summarizes a directory of scenarios.
type SuiteResult struct {
	TotalScenarios int               `json:"total_scenarios"`
	Passed         int               `json:"passed"`
	Failed         int               `json:"failed"`
	Scenarios      []ScenarioSummary `json:"scenarios"`
}

// ScenarioSummary is the outcome of one scenario in a suite.
type ScenarioSummary struct {
	Name   string   `json:"name"`
	Path   string   `json:"path"`
	Pass   bool     `json:"pass"`
	Steps  int      `json:"steps"`
	Source string   `json:"source"`
	Digest string   `json:"digest,omitempty"`
	Errors []string `json:"errors,omitempty"`
}

// RunSuite loads every scenario in dir matching pattern and runs it.
// A scenario that cannot be executed counts as failed with the execution
// error as its message.
func (h *Harness) RunSuite(dir, pattern string) (*SuiteResult, error) {
	scenarios, paths, err := LoadScenarios(dir, pattern)
	if err != nil {
		return nil, err
	}

	suite := &SuiteResult{Scenarios: []ScenarioSummary{}}
	for i, s := range scenarios {
		summary := ScenarioSummary{Name: s.Name, Path: paths[i], Source: s.Source}

		result, err := h.Run(s)
		switch {
		case err != nil:
			summary.Errors = []string{err.Error()}
		default:
			summary.Pass = result.Pass
			summary.Steps = len(result.Trace)
			summary.Errors = result.Errors
			if digest, err := result.Digest(); err == nil {
				summary.Digest = digest
			}
		}

		suite.TotalScenarios++
		if summary.Pass {
			suite.Passed++
		} else {
			suite.Failed++
		}
		suite.Scenarios = append(suite.Scenarios, summary)
	}
	return suite, nil
}
