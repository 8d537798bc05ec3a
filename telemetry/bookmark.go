package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkKillSpree    BookmarkType = "kill_spree"
	BookmarkPathStorm    BookmarkType = "path_storm"
	BookmarkMafiaWiped   BookmarkType = "mafia_wiped"
	BookmarkTownOverrun  BookmarkType = "town_overrun"
	BookmarkQuietNight   BookmarkType = "quiet_night"
	BookmarkStuckCluster BookmarkType = "stuck_cluster"
)

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType `csv:"type"`
	Tick        int32        `csv:"tick"`
	Description string       `csv:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"tick", b.Tick,
		"description", b.Description,
	)
}

// BookmarkDetector detects notable moments in a session.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	// Outcomes fire once per session
	mafiaWiped  bool
	townOverrun bool

	// Night tracking
	nightKills int
	inNight    bool
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 3 {
		historySize = 3
	}
	return &BookmarkDetector{
		history:     make([]WindowStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark

	if b := bd.checkKillSpree(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}
	if b := bd.checkPathStorm(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}
	if b := bd.checkStuckCluster(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}
	if b := bd.checkOutcome(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}
	if b := bd.checkQuietNight(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}

	bd.addToHistory(stats)
	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

func (bd *BookmarkDetector) getHistory() []WindowStats {
	if bd.historyFull {
		return bd.history
	}
	return bd.history[:bd.historyIdx]
}

// checkKillSpree fires when a window has at least 2 kills and more than
// twice the rolling average.
func (bd *BookmarkDetector) checkKillSpree(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 2 || stats.Kills < 2 {
		return nil
	}

	var total int
	for _, h := range history {
		total += h.Kills
	}
	avg := float64(total) / float64(len(history))

	if float64(stats.Kills) > avg*2.0 {
		return &Bookmark{
			Type:        BookmarkKillSpree,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("%d kills in one window, average %.2f", stats.Kills, avg),
		}
	}
	return nil
}

// checkPathStorm fires when most searches in a busy window fail.
func (bd *BookmarkDetector) checkPathStorm(stats WindowStats) *Bookmark {
	if stats.PathsFound+stats.PathsFailed < 10 || stats.PathFailRate <= 0.5 {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkPathStorm,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("%.0f%% of %d searches failed", stats.PathFailRate*100, stats.PathsFound+stats.PathsFailed),
	}
}

// checkStuckCluster fires when several agents give up on paths in one window.
func (bd *BookmarkDetector) checkStuckCluster(stats WindowStats) *Bookmark {
	if stats.Stuck < 3 {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkStuckCluster,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("%d agents stuck in one window", stats.Stuck),
	}
}

// checkOutcome fires once when one side has won.
func (bd *BookmarkDetector) checkOutcome(stats WindowStats) *Bookmark {
	town := stats.Citizens + stats.Police + stats.Doctors
	switch {
	case !bd.mafiaWiped && stats.Mafia == 0 && len(bd.getHistory()) > 0 && bd.lastMafia() > 0:
		bd.mafiaWiped = true
		return &Bookmark{
			Type:        BookmarkMafiaWiped,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Mafia eliminated on day %d with %d townsfolk alive", stats.Day, town),
		}
	case !bd.townOverrun && stats.Mafia > 0 && town <= stats.Mafia:
		bd.townOverrun = true
		return &Bookmark{
			Type:        BookmarkTownOverrun,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Mafia (%d) match the town (%d) on day %d", stats.Mafia, town, stats.Day),
		}
	}
	return nil
}

func (bd *BookmarkDetector) lastMafia() int {
	i := (bd.historyIdx - 1 + bd.historySize) % bd.historySize
	return bd.history[i].Mafia
}

// checkQuietNight fires when a night ends without any kill.
func (bd *BookmarkDetector) checkQuietNight(stats WindowStats) *Bookmark {
	if stats.Phase == "NIGHT" {
		if !bd.inNight {
			bd.inNight = true
			bd.nightKills = 0
		}
		bd.nightKills += stats.Kills
		return nil
	}
	if !bd.inNight {
		return nil
	}
	bd.inNight = false
	if bd.nightKills > 0 || stats.Kills > 0 {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkQuietNight,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("Night before day %d passed without a kill", stats.Day),
	}
}
