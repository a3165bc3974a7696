package delivery

import (
	"sort"
	"time"

	"github.com/Hibaxbelghith/argus-sub000/internal/alert"
)

// DigestTopN is the number of items listed in a digest.
const DigestTopN = 5

// Digest summarizes the alerts delivered to a user over a time window.
type Digest struct {
	UserID     string                 `json:"user_id"`
	Since      time.Time              `json:"since"`
	Until      time.Time              `json:"until"`
	Total      int                    `json:"total"`
	BySeverity map[alert.Severity]int `json:"by_severity"`
	ByType     map[alert.Type]int     `json:"by_type"`
	ByChannel  map[Channel]int        `json:"by_channel"`
	Top        []*Record              `json:"top"`
}

// Summarize builds a digest over the records created in [since, until).
// Totals count alert events, not channel attempts; suppressed records are excluded.
func Summarize(userID string, records []*Record, since, until time.Time) *Digest {
	d := &Digest{
		UserID:     userID,
		Since:      since,
		Until:      until,
		BySeverity: make(map[alert.Severity]int),
		ByType:     make(map[alert.Type]int),
		ByChannel:  make(map[Channel]int),
	}

	seenEvents := make(map[string]*Record)
	for _, rec := range records {
		if rec.UserID != userID || rec.Status == StatusSuppressed {
			continue
		}
		if rec.CreatedAt.Before(since) || !rec.CreatedAt.Before(until) {
			continue
		}
		d.ByChannel[rec.Channel]++
		if _, seen := seenEvents[rec.AlertEventID]; seen {
			continue
		}
		seenEvents[rec.AlertEventID] = rec
		d.Total++
		d.BySeverity[rec.Severity]++
		d.ByType[rec.AlertType]++
	}

	top := make([]*Record, 0, len(seenEvents))
	for _, rec := range seenEvents {
		top = append(top, rec)
	}
	sort.SliceStable(top, func(i, j int) bool {
		ri, rj := top[i].Severity.Rank(), top[j].Severity.Rank()
		if ri != rj {
			return ri > rj
		}
		if !top[i].CreatedAt.Equal(top[j].CreatedAt) {
			return top[i].CreatedAt.After(top[j].CreatedAt)
		}
		return top[i].ID < top[j].ID
	})
	if len(top) > DigestTopN {
		top = top[:DigestTopN]
	}
	d.Top = top
	return d
}
