package store

import (
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"consulting-calendar/internal/calendar"
)

var rruleWeekdays = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// ExpandRules turns weekly rules into dated open slots over month. Windows
// overlapping an unavailable rule or a booked appointment are left out.
func ExpandRules(rules []AvailabilityRule, month calendar.Month, booked dayWindows) ([]calendar.OpenSlot, error) {
	blocked := dayWindows{}
	var candidates []slotKey
	ends := map[slotKey]int{}

	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("rule %d: %w", r.ID, err)
		}
		days, err := ruleDays(r.DayOfWeek, month)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", r.ID, err)
		}
		start, _ := calendar.ClockMinutes(r.StartTime)
		end, _ := calendar.ClockMinutes(r.EndTime)

		for _, d := range days {
			if !r.Available {
				blocked.add(d, window{start: start, end: end})
				continue
			}
			for s := start; s+r.SlotLengthMins <= end; s += r.SlotLengthMins {
				k := slotKey{day: d, start: s}
				if _, dup := ends[k]; dup {
					continue
				}
				ends[k] = s + r.SlotLengthMins
				candidates = append(candidates, k)
			}
		}
	}

	out := make([]calendar.OpenSlot, 0, len(candidates))
	for _, k := range candidates {
		w := window{start: k.start, end: ends[k]}
		if booked.overlaps(k.day, w) || blocked.overlaps(k.day, w) {
			continue
		}
		out = append(out, calendar.OpenSlot{
			Date:      k.day.String(),
			StartTime: calendar.FormatClock(k.start),
			EndTime:   calendar.FormatClock(ends[k]),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out, nil
}

// ruleDays lists the days of month falling on weekday (0 = Sunday).
func ruleDays(weekday int, month calendar.Month) ([]calendar.Day, error) {
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Byweekday: []rrule.Weekday{rruleWeekdays[weekday]},
		Dtstart:   month.First().Time(time.UTC),
		Until:     month.Last().Time(time.UTC),
	})
	if err != nil {
		return nil, err
	}
	occ := r.All()
	days := make([]calendar.Day, 0, len(occ))
	for _, t := range occ {
		days = append(days, calendar.NormalizeTime(t))
	}
	return days, nil
}
