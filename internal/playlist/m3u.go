// Package playlist reads extended M3U playlists and classifies their entries
// into movies, shows and documentaries.
package playlist

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"
)

// RawEntry is one playlist item before classification
type RawEntry struct {
	Title        string
	URL          string
	CategoryHint string // group label, e.g. "US | TV SHOWS"
}

var groupTitleRegex = regexp.MustCompile(`group-title="([^"]*)"`)

const userAgent = "strmsync/1.0"

// Parse reads an extended M3U stream. Each #EXTINF line starts an entry whose
// title follows the first comma outside quoted attributes; the URL is the next
// line that is neither blank nor a directive. An #EXTINF without a URL yields
// an entry with an empty URL, which the classifier drops.
func Parse(r io.Reader) ([]RawEntry, error) {
	var entries []RawEntry
	var current *RawEntry

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "#EXTINF"):
			if current != nil {
				entries = append(entries, *current)
			}
			current = parseExtinf(line)
		case strings.HasPrefix(line, "#EXTGRP:"):
			if current != nil && current.CategoryHint == "" {
				current.CategoryHint = strings.TrimSpace(strings.TrimPrefix(line, "#EXTGRP:"))
			}
		case strings.HasPrefix(line, "#"):
			continue
		default:
			if current != nil {
				current.URL = line
				entries = append(entries, *current)
				current = nil
			}
		}
	}
	if current != nil {
		entries = append(entries, *current)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading M3U: %w", err)
	}

	return entries, nil
}

func parseExtinf(line string) *RawEntry {
	entry := &RawEntry{}
	if m := groupTitleRegex.FindStringSubmatch(line); m != nil {
		entry.CategoryHint = strings.TrimSpace(m[1])
	}

	inQuotes := false
	for i, r := range line {
		switch r {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				entry.Title = strings.TrimSpace(line[i+1:])
				return entry
			}
		}
	}
	return entry
}

// Open reads the playlist at source, a local path or an http(s) URL.
func Open(ctx context.Context, source string, timeout time.Duration) ([]RawEntry, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return fetch(ctx, source, timeout)
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("open playlist: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

func fetch(ctx context.Context, url string, timeout time.Duration) ([]RawEntry, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build playlist request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download playlist: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download playlist: unexpected status %s", resp.Status)
	}

	return Parse(resp.Body)
}
