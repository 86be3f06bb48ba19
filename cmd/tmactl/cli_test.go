package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akiwumi/typemyaudio/internal/dataset"
	"github.com/akiwumi/typemyaudio/internal/quota"
	"github.com/akiwumi/typemyaudio/internal/store"
	"github.com/akiwumi/typemyaudio/internal/types"
)

func executeCLI(t *testing.T, statePath string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("STATE_PATH", "")

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(append([]string{"--state", statePath}, args...))

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func openState(t *testing.T, path string) *store.Store {
	t.Helper()
	v := viper.New()
	v.Set(store.StatePathKey, path)
	st, err := store.NewFile(v)
	require.NoError(t, err)
	return st
}

func writeStateFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.toml")
	st := openState(t, path)
	ctx := context.Background()
	require.NoError(t, st.SaveProfile(ctx, types.Profile{AccountID: "acc-1", Tier: types.TierStarter}))
	require.NoError(t, st.CreateJob(ctx, types.Job{
		ID: "job-1", AccountID: "acc-1", Title: "Weekly sync", Status: types.StatusCompleted,
		FormattedText: "Good morning everyone.", DetectedLanguage: "en", CreatedAt: time.Now().UTC(),
	}))
	return path
}

func TestSetTierCreatesProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.toml")

	stdout, _, err := executeCLI(t, path, "set-tier", "--account", "new-acc", "--tier", "annual", "--subscription-end", "2027-01-31")
	require.NoError(t, err)
	assert.Contains(t, stdout, "new-acc is now on annual")

	p, err := openState(t, path).GetProfile(context.Background(), "new-acc")
	require.NoError(t, err)
	assert.Equal(t, types.TierAnnual, p.Tier)
	assert.Equal(t, time.Date(2027, 1, 31, 0, 0, 0, 0, time.UTC), p.SubscriptionEnd)
}

func TestSetTierRejectsUnknownTier(t *testing.T) {
	_, _, err := executeCLI(t, writeStateFixture(t), "set-tier", "--account", "acc-1", "--tier", "platinum")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown tier "platinum"`)
}

func TestGrantTokensIsIdempotentPerPayment(t *testing.T) {
	path := writeStateFixture(t)

	stdout, _, err := executeCLI(t, path, "grant-tokens", "--account", "acc-1", "--quantity", "5", "--payment-id", "pi_1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "granted 5 tokens to acc-1")

	stdout, _, err = executeCLI(t, path, "grant-tokens", "--account", "acc-1", "--quantity", "5", "--payment-id", "pi_1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "already applied")

	p, err := openState(t, path).GetProfile(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, 5, p.PurchasedTokens)
}

func TestGrantTokensRequiresQuantity(t *testing.T) {
	_, _, err := executeCLI(t, writeStateFixture(t), "grant-tokens", "--account", "acc-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "quantity" not set`)
}

func TestUsageJSONAndWorkbook(t *testing.T) {
	path := writeStateFixture(t)
	xlsx := filepath.Join(t.TempDir(), "usage.xlsx")

	stdout, _, err := executeCLI(t, path, "usage", "--account", "acc-1", "--json", "--xlsx", xlsx)
	require.NoError(t, err)

	var sum quota.Summary
	require.NoError(t, json.Unmarshal([]byte(stdout), &sum))
	assert.Equal(t, quota.Summary{Tier: types.TierStarter, Used: 0, Limit: 15, Remaining: 15}, sum)

	f, err := os.Open(xlsx)
	require.NoError(t, err)
	defer f.Close()
	wb, err := dataset.ReadWorkbook(f)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", wb.Fields["Account"])
	assert.Equal(t, 1, wb.Jobs)
}

func TestUsageTable(t *testing.T) {
	stdout, _, err := executeCLI(t, writeStateFixture(t), "usage", "--account", "acc-1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "tier:")
	assert.Contains(t, stdout, "starter")
	assert.Contains(t, stdout, "15")
}

func TestUsageUnknownAccount(t *testing.T) {
	_, _, err := executeCLI(t, writeStateFixture(t), "usage", "--account", "ghost")
	assert.ErrorIs(t, err, quota.ErrProfileNotFound)
}

func TestJobsList(t *testing.T) {
	stdout, _, err := executeCLI(t, writeStateFixture(t), "jobs")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "job-1")
	assert.Contains(t, lines[1], "Weekly sync")
}

func TestExportWritesFile(t *testing.T) {
	path := writeStateFixture(t)
	out := filepath.Join(t.TempDir(), "sync.txt")

	stdout, _, err := executeCLI(t, path, "export", "--account", "acc-1", "--job", "job-1", "--format", "txt", "-o", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "wrote "+out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Good morning everyone.")
}

func TestExportGatedFormat(t *testing.T) {
	_, _, err := executeCLI(t, writeStateFixture(t), "export", "--account", "acc-1", "--job", "job-1", "--format", "srt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SRT export is available on Annual and Enterprise plans.")
}

func TestReportReadsUsageWorkbook(t *testing.T) {
	path := writeStateFixture(t)
	xlsx := filepath.Join(t.TempDir(), "usage.xlsx")
	_, _, err := executeCLI(t, path, "usage", "--account", "acc-1", "--xlsx", xlsx)
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, path, "report", xlsx)
	require.NoError(t, err)
	assert.Contains(t, stdout, "acc-1")
	assert.Regexp(t, `(?m)^usage records:\s+0$`, stdout)
	assert.Regexp(t, `(?m)^jobs:\s+1$`, stdout)
}

func TestReportMissingFile(t *testing.T) {
	_, _, err := executeCLI(t, writeStateFixture(t), "report", filepath.Join(t.TempDir(), "nope.xlsx"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
