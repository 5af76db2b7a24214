package report

import (
	"encoding/json"
	"time"
)

// DateRange is an inclusive range of calendar days
type DateRange struct {
	Preset string    `json:"preset"`
	Label  string    `json:"label"`
	Start  time.Time `json:"-"`
	End    time.Time `json:"-"`
}

const (
	PresetToday       = "today"
	PresetYesterday   = "yesterday"
	PresetThisWeek    = "this_week"
	PresetLastWeek    = "last_week"
	PresetThisMonth   = "this_month"
	PresetLastMonth   = "last_month"
	PresetThisQuarter = "this_quarter"
	PresetLastQuarter = "last_quarter"
	PresetThisYear    = "this_year"
	PresetLastYear    = "last_year"
	PresetLast30Days  = "last_30_days"
	PresetLast90Days  = "last_90_days"
	PresetLast365Days = "last_365_days"
	PresetAllTime     = "all_time"
	PresetCustom      = "custom"
)

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func quarterStart(t time.Time) time.Time {
	q := (int(t.Month()) - 1) / 3
	return time.Date(t.Year(), time.Month(q*3+1), 1, 0, 0, 0, 0, time.UTC)
}

// FromPreset resolves a preset relative to today; unknown presets fall back to the last 30 days
func FromPreset(preset string, today time.Time) DateRange {
	today = day(today)
	// Monday based week
	weekday := (int(today.Weekday()) + 6) % 7
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	lastMonthEnd := monthStart.AddDate(0, 0, -1)
	qs := quarterStart(today)

	r := DateRange{Preset: preset}
	switch preset {
	case PresetToday:
		r.Start, r.End, r.Label = today, today, "Today"
	case PresetYesterday:
		y := today.AddDate(0, 0, -1)
		r.Start, r.End, r.Label = y, y, "Yesterday"
	case PresetThisWeek:
		r.Start, r.End, r.Label = today.AddDate(0, 0, -weekday), today, "This Week"
	case PresetLastWeek:
		r.Start, r.End, r.Label = today.AddDate(0, 0, -weekday-7), today.AddDate(0, 0, -weekday-1), "Last Week"
	case PresetThisMonth:
		r.Start, r.End, r.Label = monthStart, today, "This Month"
	case PresetLastMonth:
		r.Start = time.Date(lastMonthEnd.Year(), lastMonthEnd.Month(), 1, 0, 0, 0, 0, time.UTC)
		r.End, r.Label = lastMonthEnd, "Last Month"
	case PresetThisQuarter:
		r.Start, r.End, r.Label = qs, today, "This Quarter"
	case PresetLastQuarter:
		r.Start, r.End, r.Label = qs.AddDate(0, -3, 0), qs.AddDate(0, 0, -1), "Last Quarter"
	case PresetThisYear:
		r.Start = time.Date(today.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		r.End, r.Label = today, "This Year"
	case PresetLastYear:
		r.Start = time.Date(today.Year()-1, 1, 1, 0, 0, 0, 0, time.UTC)
		r.End = time.Date(today.Year()-1, 12, 31, 0, 0, 0, 0, time.UTC)
		r.Label = "Last Year"
	case PresetLast90Days:
		r.Start, r.End, r.Label = today.AddDate(0, 0, -90), today, "Last 90 Days"
	case PresetLast365Days:
		r.Start, r.End, r.Label = today.AddDate(0, 0, -365), today, "Last 365 Days"
	case PresetAllTime:
		r.Start, r.End, r.Label = today.AddDate(0, 0, -3650), today, "All Time"
	default:
		r.Preset = PresetLast30Days
		r.Start, r.End, r.Label = today.AddDate(0, 0, -30), today, "Last 30 Days"
	}
	return r
}

// Custom builds a range from explicit bounds
func Custom(start, end time.Time) (DateRange, error) {
	start, end = day(start), day(end)
	if end.Before(start) {
		return DateRange{}, ErrInvalidDateRange
	}
	return DateRange{
		Preset: PresetCustom,
		Label:  start.Format("Jan 2, 2006") + " - " + end.Format("Jan 2, 2006"),
		Start:  start,
		End:    end,
	}, nil
}

// Resolve picks a custom range when both bounds are given, else the preset
func Resolve(preset, startDate, endDate string, today time.Time) (DateRange, error) {
	if startDate == "" || endDate == "" {
		return FromPreset(preset, today), nil
	}
	start, err := time.Parse(time.DateOnly, startDate)
	if err != nil {
		return DateRange{}, ErrInvalidDateRange
	}
	end, err := time.Parse(time.DateOnly, endDate)
	if err != nil {
		return DateRange{}, ErrInvalidDateRange
	}
	return Custom(start, end)
}

// Params is the canonical parameter map of the range, used in cache keys and shared links
func (r DateRange) Params() map[string]string {
	return map[string]string{
		"preset":     r.Preset,
		"start_date": r.Start.Format(time.DateOnly),
		"end_date":   r.End.Format(time.DateOnly),
	}
}

func (r DateRange) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Preset    string `json:"preset"`
		Label     string `json:"label"`
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}{r.Preset, r.Label, r.Start.Format(time.DateOnly), r.End.Format(time.DateOnly)})
}

func (r *DateRange) UnmarshalJSON(data []byte) error {
	var raw struct {
		Preset    string `json:"preset"`
		Label     string `json:"label"`
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Preset, r.Label = raw.Preset, raw.Label
	r.Start, _ = time.Parse(time.DateOnly, raw.StartDate)
	r.End, _ = time.Parse(time.DateOnly, raw.EndDate)
	return nil
}
