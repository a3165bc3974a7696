package scoring

import (
	"github.com/Hibaxbelghith/argus-sub000/internal/alert"
	"github.com/Hibaxbelghith/argus-sub000/internal/preferences"
)

// EngagementFromPreferences derives engagement stats for event from the
// user's preference record.
func EngagementFromPreferences(prefs *preferences.Record, event *alert.Event) *EngagementStats {
	if prefs == nil {
		return nil
	}
	return &EngagementStats{
		CategoryEnabled: prefs.CategoryEnabled(event.Category()),
		InQuietHours:    prefs.QuietHours.Active(event.OccurredAt),
	}
}
