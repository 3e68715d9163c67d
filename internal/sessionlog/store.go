package sessionlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/redcellhq/redcell/pkg/models"
)

// ErrSessionNotFound indicates no log file exists for a session ID.
var ErrSessionNotFound = errors.New("session not found")

// previewLen bounds the listing preview taken from the first user input.
const previewLen = 100

// List returns session summaries under dir, newest first. Corrupt or
// unreadable files are skipped. limit <= 0 returns everything.
func List(dir string, limit int) ([]models.SessionSummary, error) {
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	var summaries []models.SessionSummary
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !isSessionFile(d.Name()) {
			return nil
		}
		log, err := readLog(path)
		if err != nil {
			return nil
		}
		summaries = append(summaries, summarize(log))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].StartTime.Equal(summaries[j].StartTime) {
			return summaries[i].StartTime.After(summaries[j].StartTime)
		}
		return summaries[i].SessionID < summaries[j].SessionID
	})

	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

// Load reads one session log by ID, searching the whole date tree.
func Load(dir, sessionID string) (*models.SessionLog, error) {
	want := "session_" + sessionID + ".json"

	var found string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && d.Name() == want {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	if found == "" {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return readLog(found)
}

func readLog(path string) (*models.SessionLog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session log: %w", err)
	}
	var log models.SessionLog
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("parse session log %s: %w", filepath.Base(path), err)
	}
	return &log, nil
}

func summarize(log *models.SessionLog) models.SessionSummary {
	preview := "No user input found"
	for _, ev := range log.Events {
		if ev.EventType == models.LoggedUserInput {
			preview = truncate(ev.Content, previewLen)
			break
		}
	}
	return models.SessionSummary{
		SessionID:  log.SessionID,
		StartTime:  log.StartTime,
		EventCount: len(log.Events),
		Preview:    preview,
		Model:      log.Model,
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

func isSessionFile(name string) bool {
	return strings.HasPrefix(name, "session_") && strings.HasSuffix(name, ".json")
}
