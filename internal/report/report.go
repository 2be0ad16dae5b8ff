// Package report derives read-only views from a document snapshot: filtered
// absence logs with summary statistics, and the live dashboard.
//
// Logs reference workers softly. A log whose worker no longer exists is
// still reported, with an empty name and pc number, and never matches a
// name, team or self-only filter.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/shiftguard/internal/model"
)

// All matches every team or reason in a Filter.
const All = "ALL"

// Filter selects absence logs. Empty fields match everything.
type Filter struct {
	// Date is a YYYY-MM-DD day compared with the log's closing date.
	Date string `json:"date,omitempty" form:"date"`
	// Name is a case-insensitive substring of the worker's name.
	Name string `json:"name,omitempty" form:"name"`
	// Team is a team letter or All.
	Team string `json:"team,omitempty" form:"team"`
	// Reason is an absence reason or All.
	Reason string `json:"reason,omitempty" form:"reason"`
}

// Viewer is the account a report is produced for.
type Viewer struct {
	Username string
	Role     model.Role
}

// Entry is an absence log joined with its worker.
type Entry struct {
	model.AbsenceLog
	WorkerName string     `json:"workerName"`
	PCNumber   string     `json:"pcNumber"`
	Team       model.Team `json:"team,omitempty"`
}

// Stats summarizes a set of entries.
type Stats struct {
	Count          int          `json:"count"`
	TotalSeconds   int64        `json:"totalSeconds"`
	AverageSeconds int64        `json:"averageSeconds"`
	TopReason      model.Reason `json:"topReason,omitempty"`
}

// Report is a filtered log listing with its statistics.
type Report struct {
	Filter  Filter  `json:"filter"`
	Entries []Entry `json:"entries"`
	Stats   Stats   `json:"stats"`
}

func join(doc *model.Document, log model.AbsenceLog) (Entry, bool) {
	e := Entry{AbsenceLog: log}
	i := doc.FindWorker(log.WorkerID)
	if i < 0 {
		return e, false
	}
	w := doc.Workers[i]
	e.WorkerName = w.Name
	e.PCNumber = w.PCNumber
	e.Team = w.Team
	return e, true
}

func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Build filters doc's logs for viewer. A viewer with role User only sees
// logs of the worker whose name equals its username.
func Build(doc model.Document, f Filter, viewer Viewer) Report {
	name := strings.ToLower(f.Name)
	entries := []Entry{}

	for _, log := range doc.Logs {
		e, known := join(&doc, log)

		if viewer.Role == model.RoleUser && (!known || !sameName(e.WorkerName, viewer.Username)) {
			continue
		}
		if f.Date != "" && log.Date != f.Date {
			continue
		}
		if name != "" && (!known || !strings.Contains(strings.ToLower(e.WorkerName), name)) {
			continue
		}
		if f.Team != "" && f.Team != All && (!known || string(e.Team) != f.Team) {
			continue
		}
		if f.Reason != "" && f.Reason != All && string(log.Reason) != f.Reason {
			continue
		}
		entries = append(entries, e)
	}

	return Report{Filter: f, Entries: entries, Stats: Summarize(entries)}
}

// Summarize computes count, total, integer average and the most frequent
// reason. Ties go to the reason seen first.
func Summarize(entries []Entry) Stats {
	s := Stats{Count: len(entries)}
	counts := make(map[model.Reason]int)
	best := 0
	for _, e := range entries {
		s.TotalSeconds += e.Duration
		counts[e.Reason]++
		if counts[e.Reason] > best {
			best = counts[e.Reason]
			s.TopReason = e.Reason
		}
	}
	if s.Count > 0 {
		s.AverageSeconds = s.TotalSeconds / int64(s.Count)
	}
	return s
}

// FormatSeconds renders a duration as "1h 2m" (hours present) or "2m 3s".
func FormatSeconds(sec int64) string {
	if sec >= 3600 {
		return fmt.Sprintf("%dh %dm", sec/3600, (sec%3600)/60)
	}
	return fmt.Sprintf("%dm %ds", sec/60, sec%60)
}

// Dashboard constants.
const (
	FirstHour   = 8
	HourBuckets = 12
	RecentCount = 5
)

// HourCount is the number of absences that started in one clock hour.
type HourCount struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// Dashboard is the live overview.
type Dashboard struct {
	Total        int         `json:"total"`
	Active       int         `json:"active"`
	Away         int         `json:"away"`
	Productivity int         `json:"productivity"`
	Hourly       []HourCount `json:"hourly"`
	Recent       []Entry     `json:"recent"`
}

// BuildDashboard computes the overview. Start hours are read in loc; a nil
// loc means UTC.
func BuildDashboard(doc model.Document, loc *time.Location) Dashboard {
	if loc == nil {
		loc = time.UTC
	}
	d := Dashboard{Total: len(doc.Workers)}
	for _, w := range doc.Workers {
		switch w.Status {
		case model.StatusActive:
			d.Active++
		case model.StatusAway:
			d.Away++
		}
	}
	if d.Total > 0 {
		// Rounded half up.
		d.Productivity = (d.Active*200 + d.Total) / (d.Total * 2)
	}

	d.Hourly = make([]HourCount, HourBuckets)
	for i := range d.Hourly {
		d.Hourly[i].Hour = FirstHour + i
	}
	for _, log := range doc.Logs {
		h := time.UnixMilli(log.StartTime).In(loc).Hour() - FirstHour
		if h >= 0 && h < HourBuckets {
			d.Hourly[h].Count++
		}
	}

	d.Recent = []Entry{}
	for _, log := range doc.Logs[:min(RecentCount, len(doc.Logs))] {
		e, _ := join(&doc, log)
		d.Recent = append(d.Recent, e)
	}
	return d
}
