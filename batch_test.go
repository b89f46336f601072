package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRunner(runOne func(context.Context, credential) (bool, error)) (*runner, *[]time.Duration) {
	cfg := defaultConfig()
	cfg.CooldownSeconds = 7
	r := newRunner(cfg, nil, testLogger())
	r.runOne = runOne
	sleeps := &[]time.Duration{}
	r.sleep = func(d time.Duration) { *sleeps = append(*sleeps, d) }
	return r, sleeps
}

func TestRunAllKeepsOrderAndCoolsDownBetweenAccounts(t *testing.T) {
	var seen []string
	r, sleeps := testRunner(func(_ context.Context, cred credential) (bool, error) {
		seen = append(seen, cred.Username)
		return cred.Username != "b", nil
	})

	creds := []credential{
		{Username: "a", Password: "p"},
		{Username: "b", Password: "p"},
		{Username: "c", Password: "p"},
	}
	report := r.runAll(context.Background(), creds)

	assert.Equal(t, []string{"a", "b", "c"}, seen)
	require.Len(t, report.Results, 3)
	assert.Equal(t, 2, report.successCount())
	assert.Equal(t, 1, report.failCount())

	// cool-down between accounts only, never after the last
	require.Len(t, *sleeps, 2)
	assert.Equal(t, 7*time.Second, (*sleeps)[0])
}

func TestRunAllSingleAccountHasNoCooldown(t *testing.T) {
	r, sleeps := testRunner(func(context.Context, credential) (bool, error) { return true, nil })
	report := r.runAll(context.Background(), []credential{{Username: "a", Password: "p"}})
	assert.Equal(t, 1, report.successCount())
	assert.Empty(t, *sleeps)
}

func TestRunAllRecordsErrorsWithoutAborting(t *testing.T) {
	r, _ := testRunner(func(_ context.Context, cred credential) (bool, error) {
		if cred.Username == "a" {
			return false, errors.New("browser crashed")
		}
		return true, nil
	})

	report := r.runAll(context.Background(), []credential{
		{Username: "a", Password: "p"},
		{Username: "b", Password: "p"},
	})

	require.Len(t, report.Results, 2)
	assert.False(t, report.Results[0].Success)
	assert.Equal(t, "browser crashed", report.Results[0].Err)
	assert.True(t, report.Results[1].Success)
}

func TestRunAllConvertsPanicsToFailedResults(t *testing.T) {
	r, _ := testRunner(func(_ context.Context, cred credential) (bool, error) {
		if cred.Username == "boom" {
			panic("element vanished mid-click")
		}
		return true, nil
	})

	report := r.runAll(context.Background(), []credential{
		{Username: "boom", Password: "p"},
		{Username: "ok", Password: "p"},
	})

	require.Len(t, report.Results, 2)
	assert.False(t, report.Results[0].Success)
	assert.Contains(t, report.Results[0].Err, "unexpected fault")
	assert.Contains(t, report.Results[0].Err, "element vanished")
	assert.True(t, report.Results[1].Success)
}

func TestBatchReportCounts(t *testing.T) {
	report := &batchReport{Results: []runResult{
		{Username: "a", Success: true},
		{Username: "b"},
		{Username: "c", Success: true},
	}}
	assert.Equal(t, 2, report.successCount())
	assert.Equal(t, 1, report.failCount())

	empty := &batchReport{}
	assert.Zero(t, empty.successCount())
	assert.Zero(t, empty.failCount())
}

func TestRunCheckInFailsFastWithoutAccounts(t *testing.T) {
	t.Setenv("RAINYUN_ACCOUNTS", "")
	t.Setenv("RAINYUN_USERNAME", "")
	t.Setenv("RAINYUN_PASSWORD", "")

	configPath := filepath.Join(t.TempDir(), "absent.json")
	err := runCheckIn(context.Background(), testLogger(), []string{"--config", configPath})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no accounts configured")
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	err := run(context.Background(), testLogger(), []string{"frobnicate"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}
