package services

import (
	"time"

	"github.com/HammerMeetNail/penpals/internal/models"
)

// InsertTimeSeparators interleaves separators into a chronological message
// list: one before the first message and one before every message that
// follows the previous by more than gap.
func InsertTimeSeparators(chronological []models.MessageView, gap time.Duration) []models.TimelineEntry {
	if gap <= 0 {
		gap = DefaultSeparatorGap
	}
	entries := make([]models.TimelineEntry, 0, len(chronological)+1)
	for i := range chronological {
		msg := &chronological[i]
		if i == 0 || msg.CreatedAt.Sub(chronological[i-1].CreatedAt) > gap {
			at := msg.CreatedAt
			entries = append(entries, models.TimelineEntry{Separator: &at})
		}
		entries = append(entries, models.TimelineEntry{Message: msg})
	}
	return entries
}

// Timeline renders a newest-first page as a chronological timeline.
func Timeline(newestFirst []models.MessageView, gap time.Duration) []models.TimelineEntry {
	chronological := make([]models.MessageView, len(newestFirst))
	for i, v := range newestFirst {
		chronological[len(newestFirst)-1-i] = v
	}
	return InsertTimeSeparators(chronological, gap)
}
