package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govatlas/catalog-cli/internal/model"
)

func TestMemoryStore_EnsureSourceIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	id1, err := m.EnsureSource(ctx, model.Source{ID: "us-fed-grants-gov"})
	require.NoError(t, err)
	id2, err := m.EnsureSource(ctx, model.Source{ID: "us-fed-grants-gov", Entrypoint: "https://changed"})
	require.NoError(t, err)
	assert.Equal(t, id1, id2, "re-registering a source keeps its row id")

	id3, err := m.EnsureSource(ctx, model.Source{ID: "ca-on-grants"})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id3)
}

func TestMemoryStore_RunLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	srcID, _ := m.EnsureSource(ctx, model.Source{ID: "s"})
	started := time.Now().UnixMilli()

	runID, err := m.StartRun(ctx, srcID, started)
	require.NoError(t, err)

	runs, err := m.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunOK, runs[0].Status, "runs open with provisional ok")

	require.NoError(t, m.FinalizeRun(ctx, model.Run{
		ID:          runID,
		SourceRowID: srcID,
		StartedAt:   started,
		EndedAt:     started + 1500,
		Status:      model.RunPartial,
		Fetched:     10,
		Errors:      1,
		Message:     "ingest_error:http_503",
	}))

	runs, _ = m.ListRuns(ctx, 10)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunPartial, runs[0].Status)
	assert.Equal(t, "ingest_error:http_503", runs[0].Message)
}

func TestMemoryStore_LastSuccess(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	srcID, _ := m.EnsureSource(ctx, model.Source{ID: "s"})

	got, err := m.LastSuccess(ctx, srcID)
	require.NoError(t, err)
	assert.Nil(t, got, "no runs yet")

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	for i, status := range []model.RunStatus{model.RunOK, model.RunError, model.RunOK, model.RunPartial} {
		id, _ := m.StartRun(ctx, srcID, base+int64(i)*1000)
		require.NoError(t, m.FinalizeRun(ctx, model.Run{
			ID: id, SourceRowID: srcID,
			StartedAt: base + int64(i)*1000,
			EndedAt:   base + int64(i)*1000 + 500,
			Status:    status,
		}))
	}

	got, err = m.LastSuccess(ctx, srcID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, time.UnixMilli(base+2500).UTC(), *got, "only ok runs count")
}

func TestMemoryStore_ListRunsOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	srcID, _ := m.EnsureSource(ctx, model.Source{ID: "s"})

	for i := 0; i < 5; i++ {
		_, err := m.StartRun(ctx, srcID, int64(1000+i))
		require.NoError(t, err)
	}

	runs, err := m.ListRuns(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, int64(1004), runs[0].StartedAt, "newest first")
	assert.Equal(t, int64(1002), runs[2].StartedAt)
}

func TestMemoryStore_SourceStatuses(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	bID, _ := m.EnsureSource(ctx, model.Source{ID: "b-source", Authority: model.AuthorityState})
	_, _ = m.EnsureSource(ctx, model.Source{ID: "a-source", Authority: model.AuthorityFederal})

	runID, _ := m.StartRun(ctx, bID, 1000)
	require.NoError(t, m.FinalizeRun(ctx, model.Run{ID: runID, SourceRowID: bID, StartedAt: 1000, EndedAt: 2000, Status: model.RunError}))

	statuses, err := m.SourceStatuses(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	assert.Equal(t, "a-source", statuses[0].Name, "sorted by name")
	assert.Nil(t, statuses[0].LastRun)

	assert.Equal(t, "b-source", statuses[1].Name)
	require.NotNil(t, statuses[1].LastRun)
	assert.Equal(t, model.RunError, statuses[1].Status)
}

func TestMemoryStore_ProgramsClonedOnReadAndWrite(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	p := &model.NormalizedProgram{UID: "p-abc", Title: "Original"}
	require.NoError(t, m.InsertProgram(ctx, p))
	p.Title = "caller mutation"

	got, err := m.GetProgram(ctx, "p-abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Original", got.Title)

	got.Title = "reader mutation"
	again, _ := m.GetProgram(ctx, "p-abc")
	assert.Equal(t, "Original", again.Title)
}

func TestMemoryStore_GetProgramMissing(t *testing.T) {
	m := NewMemory()
	got, err := m.GetProgram(context.Background(), "p-nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStore_UpdateProgram(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.InsertProgram(ctx, &model.NormalizedProgram{UID: "p-abc", Title: "Old"}))
	require.NoError(t, m.UpdateProgram(ctx, &model.NormalizedProgram{UID: "p-abc", Title: "New"}, []string{"title"}))

	got, _ := m.GetProgram(ctx, "p-abc")
	assert.Equal(t, "New", got.Title)
}
