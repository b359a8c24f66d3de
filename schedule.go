package nightdriver

// This module implements the activation windows that gate effects onto a
// site and the per tick selection of which active effect renders

import (
	"time"

	"github.com/ledgrid/nightdriver/model"
)

// SecondsPerEffect is how long each active effect holds the site before the
// rotation advances to the next one
const SecondsPerEffect = 30

// ScheduledEffect pairs an effect with a day of week and time of day
// activation window.  The window is inclusive at minute resolution and does
// not wrap midnight, a window whose start is after its end is never active.
type ScheduledEffect struct {
	Effect Effect
	Days   model.DayMask

	// Window endpoints in minutes since local midnight
	startMinutes int
	endMinutes   int
}

// NewScheduledEffect builds an activation window running from
// startHour:startMinute through endHour:endMinute inclusive on the selected
// days
func NewScheduledEffect(effect Effect, days model.DayMask, startHour, startMinute, endHour, endMinute int) (sched *ScheduledEffect) {
	return &ScheduledEffect{
		Effect:       effect,
		Days:         days,
		startMinutes: startHour*60 + startMinute,
		endMinutes:   endHour*60 + endMinute,
	}
}

// AllDayEffect builds a schedule that is active around the clock every day
func AllDayEffect(effect Effect) (sched *ScheduledEffect) {
	return NewScheduledEffect(effect, model.AllDays, 0, 0, 23, 60)
}

// IsActive tests the window against a local civil time
func (sched *ScheduledEffect) IsActive(now time.Time) bool {
	if !sched.Days.Includes(now.Weekday()) {
		return false
	}
	minutes := now.Hour()*60 + now.Minute()
	return minutes >= sched.startMinutes && minutes <= sched.endMinutes
}

// MinutesRunning reports how many minutes have elapsed since the window
// opened today, zero when the window is not active
func (sched *ScheduledEffect) MinutesRunning(now time.Time) int {
	if !sched.IsActive(now) {
		return 0
	}
	return now.Hour()*60 + now.Minute() - sched.startMinutes
}

// selectEffect picks the schedule that owns this tick.  Active schedules
// are gathered in declared order and the rotation index is derived from
// wall clock so the selection is deterministic across restarts of the list.
// A nil return means no window is active and the previous frame stands.
func selectEffect(schedules []*ScheduledEffect, nowLocal time.Time, startTime time.Time) (sched *ScheduledEffect) {
	active := make([]*ScheduledEffect, 0, len(schedules))
	for _, sched := range schedules {
		if sched.IsActive(nowLocal) {
			active = append(active, sched)
		}
	}
	if len(active) == 0 {
		return nil
	}

	index := int(nowLocal.Sub(startTime).Seconds()/SecondsPerEffect) % len(active)
	if index < 0 {
		index += len(active)
	}
	return active[index]
}
