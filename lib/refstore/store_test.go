package refstore

import (
	"context"
	"testing"
	"time"

	"refassist-backend/lib/editorial"
	"refassist-backend/lib/telemetry"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundtrip(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:refstore")
	defer cleanup()

	store, err := Open(":memory:")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	manuscripts := []editorial.Manuscript{
		{
			ID:             "M172838",
			Title:          "On the Stability of a Thing",
			Authors:        []string{"A. Author"},
			Status:         "Under Review",
			SubmissionDate: "2025-07-10",
			Editors:        []string{"E. Editor"},
			Referees: []editorial.Referee{
				{
					Name:        "Ferrari, Marco",
					Email:       "marco.ferrari@univ.it",
					Status:      editorial.StatusAccepted,
					RawStatus:   "Agreed",
					InvitedDate: "2025-07-12",
				},
				{
					Name:      "Smith, John",
					Status:    editorial.StatusDeclined,
					RawStatus: "Declined",
				},
			},
			Documents: []editorial.Document{
				{Name: "ms.pdf", Kind: editorial.DocManuscript, Pages: 31},
			},
		},
		{
			ID:    "M172901",
			Title: "Another Result",
		},
	}

	runId, err := store.Push(ctx, "sicon", time.Unix(1_750_000_000, 0), manuscripts)
	require.NoError(t, err)
	require.NotEmpty(t, runId)

	runs, err := store.ListRuns(ctx, "sicon")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, runId, runs[0].ID)

	run, err := store.Pull(ctx, runId)
	require.NoError(t, err)
	require.Equal(t, "sicon", run.Journal)
	if diff := cmp.Diff(manuscripts, run.Manuscripts); diff != "" {
		t.Fatalf("manuscripts mismatch (-want +got):\n%s", diff)
	}

	runs, err = store.ListRuns(ctx, "sifin")
	require.NoError(t, err)
	require.Len(t, runs, 0)
}

func TestRunsAreImmutable(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)

	ctx := context.Background()

	first, err := store.Push(ctx, "mf", time.Unix(100, 0), []editorial.Manuscript{{ID: "MF-1", Title: "v1"}})
	require.NoError(t, err)
	_, err = store.Push(ctx, "mf", time.Unix(200, 0), []editorial.Manuscript{{ID: "MF-1", Title: "v2"}})
	require.NoError(t, err)

	run, err := store.Pull(ctx, first)
	require.NoError(t, err)
	require.Equal(t, "v1", run.Manuscripts[0].Title)

	runs, err := store.ListRuns(ctx, "mf")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	// most recent first
	require.Equal(t, int64(200), runs[0].Time.Unix())
}
