package store

import (
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestHistory(t *testing.T) *History {
	t.Helper()
	h, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestBeginRunCreatesRow(t *testing.T) {
	h := openTestHistory(t)

	runID, err := h.BeginRun()
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	count, err := h.RunCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSaveAndReadResults(t *testing.T) {
	h := openTestHistory(t)

	runID, err := h.BeginRun()
	require.NoError(t, err)

	rec := ResultRecord{
		Scenario:   "case2",
		Salary:     dec("8000"),
		Allowances: dec("1000"),
		Relief:     dec("200"),
		NetIncome:  dec("7300"),
		Resolved:   true,
		Note:       "Rule-based allocation (fallback).",
		ReportPath: "/tmp/budget_case2.pdf",
	}
	require.NoError(t, h.SaveResult(runID, rec))
	require.NoError(t, h.FinishRun(runID))

	results, err := h.ResultsForRun(runID)
	require.NoError(t, err)
	require.Len(t, results, 1)

	got := results[0]
	assert.Equal(t, "case2", got.Scenario)
	assert.True(t, got.Salary.Equal(dec("8000")))
	assert.True(t, got.NetIncome.Equal(dec("7300")))
	assert.True(t, got.Resolved)
	assert.Equal(t, rec.Note, got.Note)
	assert.Equal(t, rec.ReportPath, got.ReportPath)
}

func TestResultsOrderedByScenario(t *testing.T) {
	h := openTestHistory(t)

	runID, err := h.BeginRun()
	require.NoError(t, err)

	for _, name := range []string{"case3", "case1", "case2"} {
		require.NoError(t, h.SaveResult(runID, ResultRecord{
			Scenario:  name,
			Salary:    dec("1000"),
			NetIncome: dec("900"),
			Resolved:  true,
		}))
	}

	results, err := h.ResultsForRun(runID)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "case1", results[0].Scenario)
	assert.Equal(t, "case2", results[1].Scenario)
	assert.Equal(t, "case3", results[2].Scenario)
}

func TestSaveResultReplacesDuplicate(t *testing.T) {
	h := openTestHistory(t)

	runID, err := h.BeginRun()
	require.NoError(t, err)

	rec := ResultRecord{Scenario: "case1", Salary: dec("4000"), NetIncome: dec("0")}
	require.NoError(t, h.SaveResult(runID, rec))
	rec.NetIncome = dec("3500")
	rec.Resolved = true
	require.NoError(t, h.SaveResult(runID, rec))

	results, err := h.ResultsForRun(runID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].NetIncome.Equal(dec("3500")))
	assert.True(t, results[0].Resolved)
}

func TestRunsIsolated(t *testing.T) {
	h := openTestHistory(t)

	first, err := h.BeginRun()
	require.NoError(t, err)
	second, err := h.BeginRun()
	require.NoError(t, err)

	require.NoError(t, h.SaveResult(first, ResultRecord{
		Scenario: "case1", Salary: dec("4000"), NetIncome: dec("3500"),
	}))

	results, err := h.ResultsForRun(second)
	require.NoError(t, err)
	assert.Empty(t, results)
}
