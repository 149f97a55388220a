package ledger

import (
	"fmt"
	"math"
	"sort"
	"time"

	"SignalGate/internal/domain/models"
)

const (
	topReasonsLimit    = 10
	categoryShareLimit = 50.0
	symbolShareLimit   = 20.0
	hourlyPauseLimit   = 20
)

// Analytics aggregates a snapshot of the buffer. Output ordering is deterministic.
func (l *Ledger) Analytics() models.RejectionAnalytics {
	return Analyze(l.snapshot(), l.now())
}

// Analyze aggregates records as of now.
func Analyze(records []models.RejectionRecord, now time.Time) models.RejectionAnalytics {
	a := models.RejectionAnalytics{
		TotalRejections: len(records),
		ByCategory:      make(map[models.RejectionCategory]int),
		BySymbol:        make(map[string]int),
		ByStrategy:      make(map[string]int),
		TopReasons:      []models.ReasonCount{},
		Suggestions:     []models.Suggestion{},
	}
	if len(records) == 0 {
		return a
	}

	reasons := make(map[string]int)
	hourAgo := now.Add(-time.Hour)
	lastHour := 0
	for _, r := range records {
		a.ByCategory[r.Category]++
		a.BySymbol[r.Symbol]++
		for _, id := range models.SplitLedgerID(r.StrategyID) {
			a.ByStrategy[id]++
		}
		reasons[r.Reason]++

		ts := r.Timestamp.UTC()
		a.Trends.Hourly[ts.Hour()]++
		a.Trends.Daily[ts.Weekday()]++
		if ts.After(hourAgo) && !ts.After(now) {
			lastHour++
		}
	}

	a.TopReasons = ranked(reasons, topReasonsLimit)
	a.Suggestions = suggest(a, lastHour)
	return a
}

func ranked(counts map[string]int, limit int) []models.ReasonCount {
	out := make([]models.ReasonCount, 0, len(counts))
	for reason, n := range counts {
		out = append(out, models.ReasonCount{Reason: reason, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Reason < out[j].Reason
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func percent(n, total int) float64 {
	return math.Round(float64(n)/float64(total)*1000) / 10
}

func suggest(a models.RejectionAnalytics, lastHour int) []models.Suggestion {
	total := a.TotalRejections
	out := []models.Suggestion{}

	for _, cat := range models.RejectionCategories {
		n := a.ByCategory[cat]
		if float64(n)/float64(total)*100 <= categoryShareLimit {
			continue
		}
		pct := percent(n, total)
		out = append(out, models.Suggestion{
			Type:       models.SuggestionTuneFilter,
			Category:   cat,
			Percentage: pct,
			Count:      n,
			Message:    fmt.Sprintf("%.1f%% of rejections are %s; consider loosening the %s filter", pct, cat, cat),
		})
	}

	symbols := ranked(a.BySymbol, len(a.BySymbol))
	for _, s := range symbols {
		if float64(s.Count)/float64(total)*100 <= symbolShareLimit {
			break
		}
		pct := percent(s.Count, total)
		out = append(out, models.Suggestion{
			Type:       models.SuggestionExcludeSymbol,
			Symbol:     s.Reason,
			Percentage: pct,
			Count:      s.Count,
			Message:    fmt.Sprintf("%s accounts for %.1f%% of rejections; consider excluding it temporarily", s.Reason, pct),
		})
	}

	if lastHour > hourlyPauseLimit {
		out = append(out, models.Suggestion{
			Type:       models.SuggestionPauseScanning,
			Percentage: percent(lastHour, total),
			Count:      lastHour,
			Message:    fmt.Sprintf("%d rejections in the last hour; consider pausing scans", lastHour),
		})
	}
	return out
}
