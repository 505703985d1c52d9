/*
stats.go - Statistics aggregation over approved requests

PURPOSE:
  Derives per-employee, per-period counts and day totals from the set of
  approved requests. Pure read path: no side effects, deterministic for
  identical input.

GROUPING:
  Rows are grouped by (requester, month, year) using the request's
  EVALUATION date, not the creation date. The mese/anno filters apply to
  the same evaluation period.

DAY TOTALS:
  "Days requested" is the sum of (endDate - startDate + 1) over the
  matched requests. "Days approved" is the same sum restricted to the
  approved subset - identical here because the input is pre-filtered to
  approved requests, but computed independently so the code stays correct
  if the filter ever widens.
*/
package leave

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

// Statistics aggregates approved requests per requester and evaluation
// period. Manager-only.
func (s *Service) Statistics(ctx context.Context, caller *User, f StatsFilter) ([]StatRow, error) {
	if err := Authorize(caller, ActionViewStatistics); err != nil {
		return nil, err
	}

	approved := StatusApproved
	requests, err := s.store.ListRequests(ctx, RequestFilter{UserID: f.UserID, Status: &approved})
	if err != nil {
		return nil, err
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	byUser := make(map[int]User, len(users))
	for _, u := range users {
		byUser[u.ID] = u
	}
	return AggregateStatistics(requests, byUser, f), nil
}

// AggregateStatistics groups approved requests by (requester, month, year)
// of the evaluation timestamp and sums day spans. Requests that are not
// approved or not yet evaluated are skipped. Deterministic row order:
// Cognome, Nome, UserID, Anno, Mese.
func AggregateStatistics(requests []Request, users map[int]User, f StatsFilter) []StatRow {
	type groupKey struct {
		userID int
		month  int
		year   int
	}
	type totals struct {
		count     int
		requested decimal.Decimal
		approved  decimal.Decimal
	}

	groups := make(map[groupKey]*totals)
	for _, r := range requests {
		if r.Status != StatusApproved || r.EvaluatedAt == nil {
			continue
		}
		month := int(r.EvaluatedAt.Month())
		year := r.EvaluatedAt.Year()

		if f.UserID != nil && r.UserID != *f.UserID {
			continue
		}
		if f.Month != nil && month != *f.Month {
			continue
		}
		if f.Year != nil && year != *f.Year {
			continue
		}

		k := groupKey{userID: r.UserID, month: month, year: year}
		g := groups[k]
		if g == nil {
			g = &totals{requested: decimal.Zero, approved: decimal.Zero}
			groups[k] = g
		}
		g.count++
		g.requested = g.requested.Add(r.Days())
		if r.Status == StatusApproved {
			g.approved = g.approved.Add(r.Days())
		}
	}

	rows := make([]StatRow, 0, len(groups))
	for k, g := range groups {
		row := StatRow{
			UserID:        k.userID,
			Month:         k.month,
			Year:          k.year,
			RequestCount:  g.count,
			DaysRequested: int(g.requested.IntPart()),
			DaysApproved:  int(g.approved.IntPart()),
		}
		if u, ok := users[k.userID]; ok {
			row.Nome = u.Nome
			row.Cognome = u.Cognome
			row.Email = u.Email
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Cognome != b.Cognome {
			return a.Cognome < b.Cognome
		}
		if a.Nome != b.Nome {
			return a.Nome < b.Nome
		}
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Month < b.Month
	})
	return rows
}
