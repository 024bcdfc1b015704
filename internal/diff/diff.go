// Package diff extracts files, change counts, hunks and statistics from unified diff text.
package diff

import (
	"path"
	"regexp"
	"strings"
)

const noExtension = "no_ext"

var hunkLabelRe = regexp.MustCompile(`^@@.*?@@\s*(.+)`)

// Changes holds line counts of a diff.
type Changes struct {
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
	Total     int `json:"total"`
}

// Hunk is a changed region labelled by its enclosing function or context line.
type Hunk struct {
	File  string `json:"file"`
	Label string `json:"label"`
}

// Statistics aggregates everything the parser knows about a diff.
type Statistics struct {
	TotalFiles   int            `json:"totalFiles"`
	Files        []string       `json:"files"`
	Additions    int            `json:"additions"`
	Deletions    int            `json:"deletions"`
	TotalChanges int            `json:"totalChanges"`
	FileTypes    map[string]int `json:"fileTypes"`
	NetLines     int            `json:"netLines"`
}

// ExtractFiles returns distinct file paths from "diff --git" headers in first-seen order.
func ExtractFiles(diff string) []string {
	files := []string{}
	seen := make(map[string]bool)

	for _, line := range lines(diff) {
		file, ok := headerFile(line)
		if !ok || seen[file] {
			continue
		}
		seen[file] = true
		files = append(files, file)
	}

	return files
}

// CountChanges counts added and removed lines, ignoring "+++" and "---" file headers.
func CountChanges(diff string) Changes {
	var c Changes
	for _, line := range lines(diff) {
		switch {
		case strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
			c.Additions++
		case strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
			c.Deletions++
		}
	}
	c.Total = c.Additions + c.Deletions
	return c
}

// ExtractChangedHunks returns the labels of "@@ ... @@ <label>" lines, attributed
// to the most recent file header. Hunks seen before any header are skipped.
func ExtractChangedHunks(diff string) []Hunk {
	hunks := []Hunk{}
	current := ""

	for _, line := range lines(diff) {
		if file, ok := headerFile(line); ok {
			current = file
			continue
		}
		if !strings.HasPrefix(line, "@@") || current == "" {
			continue
		}
		m := hunkLabelRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if label := strings.TrimSpace(m[1]); label != "" {
			hunks = append(hunks, Hunk{File: current, Label: label})
		}
	}

	return hunks
}

// Stats composes ExtractFiles and CountChanges into a single summary.
func Stats(diff string) Statistics {
	files := ExtractFiles(diff)
	changes := CountChanges(diff)

	fileTypes := make(map[string]int)
	for _, f := range files {
		fileTypes[extension(f)]++
	}

	return Statistics{
		TotalFiles:   len(files),
		Files:        files,
		Additions:    changes.Additions,
		Deletions:    changes.Deletions,
		TotalChanges: changes.Total,
		FileTypes:    fileTypes,
		NetLines:     changes.Additions - changes.Deletions,
	}
}

func lines(diff string) []string {
	out := strings.Split(diff, "\n")
	for i, l := range out {
		out[i] = strings.TrimSuffix(l, "\r")
	}
	return out
}

// headerFile parses "diff --git a/<path> b/<path>".
func headerFile(line string) (string, bool) {
	if !strings.HasPrefix(line, "diff --git") {
		return "", false
	}
	parts := strings.Fields(line)
	if len(parts) < 4 {
		return "", false
	}
	file := strings.TrimPrefix(parts[2], "a/")
	if file == "" {
		return "", false
	}
	return file, true
}

func extension(file string) string {
	base := path.Base(file)
	idx := strings.LastIndex(base, ".")
	if idx < 0 || idx == len(base)-1 {
		return noExtension
	}
	return base[idx+1:]
}
