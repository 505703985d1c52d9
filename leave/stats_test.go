package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// AGGREGATION HELPERS
// =============================================================================

func approvedRequest(id, userID int, start, end, evaluatedAt time.Time) leave.Request {
	evaluator := 999
	at := evaluatedAt
	return leave.Request{
		ID:          id,
		UserID:      userID,
		CategoryID:  1,
		StartDate:   start,
		EndDate:     end,
		Status:      leave.StatusApproved,
		EvaluatorID: &evaluator,
		EvaluatedAt: &at,
	}
}

// =============================================================================
// AGGREGATION TESTS
// =============================================================================

func TestAggregateStatistics_SingleApprovedRequest(t *testing.T) {
	// GIVEN: One approved request spanning 2024-03-01..2024-03-03
	// WHEN: Aggregating with no filter
	// THEN: One row with count 1 and 3 days requested and approved

	users := map[int]leave.User{
		1: {ID: 1, Nome: "Mario", Cognome: "Rossi", Email: "mario@example.com"},
	}
	requests := []leave.Request{
		approvedRequest(1, 1,
			date(2024, time.March, 1), date(2024, time.March, 3),
			date(2024, time.March, 10)),
	}

	rows := leave.AggregateStatistics(requests, users, leave.StatsFilter{})
	require.Len(t, rows, 1)

	assert.Equal(t, 1, rows[0].UserID)
	assert.Equal(t, "Mario", rows[0].Nome)
	assert.Equal(t, "Rossi", rows[0].Cognome)
	assert.Equal(t, 3, rows[0].Month)
	assert.Equal(t, 2024, rows[0].Year)
	assert.Equal(t, 1, rows[0].RequestCount)
	assert.Equal(t, 3, rows[0].DaysRequested)
	assert.Equal(t, 3, rows[0].DaysApproved)
}

func TestAggregateStatistics_GroupsByEvaluationPeriod(t *testing.T) {
	// GIVEN: Two approved requests for the same user, evaluated in
	//        different months
	// WHEN: Aggregating
	// THEN: Two rows, one per evaluation month, regardless of leave dates

	users := map[int]leave.User{
		1: {ID: 1, Nome: "Mario", Cognome: "Rossi"},
	}
	requests := []leave.Request{
		approvedRequest(1, 1,
			date(2024, time.March, 1), date(2024, time.March, 2),
			date(2024, time.March, 20)),
		approvedRequest(2, 1,
			date(2024, time.March, 28), date(2024, time.March, 29),
			date(2024, time.April, 2)),
	}

	rows := leave.AggregateStatistics(requests, users, leave.StatsFilter{})
	require.Len(t, rows, 2)
	assert.Equal(t, 3, rows[0].Month)
	assert.Equal(t, 4, rows[1].Month)
}

func TestAggregateStatistics_SkipsUnapprovedAndUnevaluated(t *testing.T) {
	users := map[int]leave.User{1: {ID: 1}}
	requests := []leave.Request{
		{ID: 1, UserID: 1, Status: leave.StatusPending,
			StartDate: date(2024, time.March, 1), EndDate: date(2024, time.March, 2)},
		{ID: 2, UserID: 1, Status: leave.StatusRejected,
			StartDate: date(2024, time.March, 1), EndDate: date(2024, time.March, 2)},
		// Approved but missing its evaluation timestamp: no period to
		// attribute it to, so it is skipped too.
		{ID: 3, UserID: 1, Status: leave.StatusApproved,
			StartDate: date(2024, time.March, 1), EndDate: date(2024, time.March, 2)},
	}

	rows := leave.AggregateStatistics(requests, users, leave.StatsFilter{})
	assert.Empty(t, rows)
}

func TestAggregateStatistics_Filters(t *testing.T) {
	// GIVEN: Approved requests from two users across two periods
	// WHEN: Filtering by user, month, year
	// THEN: Only matching groups remain

	users := map[int]leave.User{
		1: {ID: 1, Nome: "Mario", Cognome: "Rossi"},
		2: {ID: 2, Nome: "Luca", Cognome: "Bianchi"},
	}
	requests := []leave.Request{
		approvedRequest(1, 1,
			date(2024, time.March, 1), date(2024, time.March, 2),
			date(2024, time.March, 20)),
		approvedRequest(2, 2,
			date(2024, time.March, 5), date(2024, time.March, 6),
			date(2024, time.March, 21)),
		approvedRequest(3, 1,
			date(2025, time.January, 1), date(2025, time.January, 1),
			date(2025, time.January, 7)),
	}

	userID := 1
	rows := leave.AggregateStatistics(requests, users, leave.StatsFilter{UserID: &userID})
	assert.Len(t, rows, 2)

	year := 2025
	rows = leave.AggregateStatistics(requests, users, leave.StatsFilter{Year: &year})
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].UserID)

	month := 3
	rows = leave.AggregateStatistics(requests, users, leave.StatsFilter{Month: &month})
	assert.Len(t, rows, 2)
}

func TestAggregateStatistics_RowOrderIsDeterministic(t *testing.T) {
	// GIVEN: Groups for users whose surnames sort differently from ids
	// WHEN: Aggregating twice
	// THEN: Rows come back sorted by Cognome, then Nome, then id

	users := map[int]leave.User{
		1: {ID: 1, Nome: "Mario", Cognome: "Rossi"},
		2: {ID: 2, Nome: "Luca", Cognome: "Bianchi"},
	}
	requests := []leave.Request{
		approvedRequest(1, 1,
			date(2024, time.March, 1), date(2024, time.March, 2),
			date(2024, time.March, 20)),
		approvedRequest(2, 2,
			date(2024, time.March, 5), date(2024, time.March, 6),
			date(2024, time.March, 21)),
	}

	rows := leave.AggregateStatistics(requests, users, leave.StatsFilter{})
	require.Len(t, rows, 2)
	assert.Equal(t, "Bianchi", rows[0].Cognome)
	assert.Equal(t, "Rossi", rows[1].Cognome)

	again := leave.AggregateStatistics(requests, users, leave.StatsFilter{})
	assert.Equal(t, rows, again)
}

func TestSpanDays_Inclusive(t *testing.T) {
	assert.Equal(t, int64(1),
		leave.SpanDays(date(2024, time.March, 1), date(2024, time.March, 1)).IntPart())
	assert.Equal(t, int64(3),
		leave.SpanDays(date(2024, time.March, 1), date(2024, time.March, 3)).IntPart())
	// Truncation: times within the same days do not change the span.
	assert.Equal(t, int64(2), leave.SpanDays(
		time.Date(2024, time.March, 1, 23, 0, 0, 0, time.UTC),
		time.Date(2024, time.March, 2, 1, 0, 0, 0, time.UTC)).IntPart())
}

// =============================================================================
// SERVICE-LEVEL STATISTICS TESTS
// =============================================================================

func TestStatistics_ManagerOnly(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	emp := seedUser(t, mem, "Mario", "Rossi", "mario@example.com", leave.RoleEmployee)

	_, err := svc.Statistics(ctx, &emp, leave.StatsFilter{})
	assert.ErrorIs(t, err, leave.ErrForbidden)

	_, err = svc.Statistics(ctx, nil, leave.StatsFilter{})
	assert.ErrorIs(t, err, leave.ErrUnauthenticated)
}

func TestStatistics_EndToEnd(t *testing.T) {
	// GIVEN: An approved 3-day request and a pending one
	// WHEN: A manager queries statistics
	// THEN: Only the approved request contributes

	svc, mem := newTestService(t)
	ctx := context.Background()
	emp := seedUser(t, mem, "Mario", "Rossi", "mario@example.com", leave.RoleEmployee)
	mgr := seedUser(t, mem, "Anna", "Verdi", "anna@example.com", leave.RoleManager)
	seedCategory(t, mem, 1, "Ferie")

	svc.Now = func() time.Time { return date(2024, time.March, 15) }

	approved, err := svc.CreateRequest(ctx, &emp, leave.CreateRequestInput{
		UserID: emp.ID, CategoryID: 1,
		StartDate: date(2024, time.March, 1), EndDate: date(2024, time.March, 3),
	})
	require.NoError(t, err)
	_, err = svc.CreateRequest(ctx, &emp, leave.CreateRequestInput{
		UserID: emp.ID, CategoryID: 1,
		StartDate: date(2024, time.April, 1), EndDate: date(2024, time.April, 5),
	})
	require.NoError(t, err)

	_, err = svc.Evaluate(ctx, &mgr, approved.ID, leave.StatusApproved)
	require.NoError(t, err)

	rows, err := svc.Statistics(ctx, &mgr, leave.StatsFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, emp.ID, rows[0].UserID)
	assert.Equal(t, 1, rows[0].RequestCount)
	assert.Equal(t, 3, rows[0].DaysRequested)
	assert.Equal(t, 3, rows[0].DaysApproved)
	assert.Equal(t, 3, rows[0].Month)
	assert.Equal(t, 2024, rows[0].Year)
}
