package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whharris917/atlas-sub000/internal/analysis"
	"github.com/whharris917/atlas-sub000/internal/catalog"
)

func sampleRun() (*catalog.Catalog, []*analysis.ModuleReport) {
	cat := catalog.New()
	cat.Classes["app.models.User"] = &catalog.ClassEntry{FQN: "app.models.User"}
	cat.Functions["app.models.User.rename"] = &catalog.FunctionEntry{FQN: "app.models.User.rename"}
	cat.State["app.main.settings"] = &catalog.StateEntry{FQN: "app.main.settings", Type: catalog.Primitive("dict")}

	reports := []*analysis.ModuleReport{
		{
			Module: "app.main",
			Functions: []analysis.FunctionReport{
				{
					Name:           "handler",
					Calls:          []string{"app.models.User.rename"},
					Instantiations: []string{"app.models.User"},
					AccessedState:  []string{"app.main.settings"},
				},
			},
			Classes: []analysis.ClassReport{
				{
					Name: "Service",
					Methods: []analysis.FunctionReport{
						{Name: "run", Calls: []string{"app.models.User.rename"}},
					},
				},
			},
		},
	}
	return cat, reports
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "atlas.db"), "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestSaveRunAndQueryUsers(t *testing.T) {
	st := openTestStore(t)
	cat, reports := sampleRun()

	runID, err := st.SaveRun(cat, reports)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	users, err := st.Users(runID, "app.models.User.rename")
	require.NoError(t, err)
	require.Len(t, users, 2)

	functions := map[string]bool{}
	for _, rec := range users {
		assert.Equal(t, BucketCall, rec.Bucket)
		assert.Equal(t, "app.main", rec.Module)
		functions[rec.Function] = true
	}
	assert.True(t, functions["app.main.handler"])
	assert.True(t, functions["app.main.Service.run"])

	state, err := st.Users(runID, "app.main.settings")
	require.NoError(t, err)
	require.Len(t, state, 1)
	assert.Equal(t, BucketState, state[0].Bucket)
}

func TestLatestRun(t *testing.T) {
	st := openTestStore(t)
	cat, reports := sampleRun()

	latest, err := st.LatestRun()
	require.NoError(t, err)
	assert.Empty(t, latest, "empty store has no latest run")

	_, err = st.SaveRun(cat, reports)
	require.NoError(t, err)
	second, err := st.SaveRun(cat, reports)
	require.NoError(t, err)

	latest, err = st.LatestRun()
	require.NoError(t, err)
	assert.Equal(t, second, latest)
}

func TestDeleteRunsBefore(t *testing.T) {
	st := openTestStore(t)
	cat, reports := sampleRun()

	runID, err := st.SaveRun(cat, reports)
	require.NoError(t, err)

	require.NoError(t, st.DeleteRunsBefore(time.Now().Add(time.Hour)))

	latest, err := st.LatestRun()
	require.NoError(t, err)
	assert.Empty(t, latest)

	users, err := st.Users(runID, "app.models.User.rename")
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestOpenRejectsBadPaths(t *testing.T) {
	_, err := Open("", "test")
	assert.Error(t, err)

	_, err = Open(t.TempDir(), "test")
	assert.Error(t, err)
}
