package sessions

import (
	"strings"
	"time"

	"github.com/strrl/claude-history/pkg/models"
)

const (
	// hitsPerSession caps how many matches one transcript contributes
	hitsPerSession = 5
	// snippetRadius is the number of characters kept on each side of a match
	snippetRadius = 50
	// firstPromptLen is where first prompts are cut
	firstPromptLen = 100
)

// hitRow is a candidate record returned by a search query. The SQL filter
// matches the raw JSON, so the decoded text is checked again.
type hitRow struct {
	file    string
	session string
	cwd     string
	ts      time.Time
	msg     models.Message
}

type hitSet struct {
	results []models.SearchResult
	files   []string
	byFile  map[string][]int
}

// collectHits turns rows, ordered by file, into results. project maps a file
// and its cwd to the project id and display name.
func collectHits(rows []hitRow, query string, maxResults int, project func(file, cwd string) (string, string)) hitSet {
	set := hitSet{byFile: make(map[string][]int)}
	perFile := make(map[string]int)

	for _, r := range rows {
		if len(set.results) >= maxResults {
			break
		}
		if perFile[r.file] >= hitsPerSession {
			continue
		}
		projectID, projectName := project(r.file, r.cwd)
		for _, text := range searchableText(r.msg) {
			matched, ok := Snippet(text, query, snippetRadius)
			if !ok {
				continue
			}
			if _, seen := set.byFile[r.file]; !seen {
				set.files = append(set.files, r.file)
			}
			set.byFile[r.file] = append(set.byFile[r.file], len(set.results))
			set.results = append(set.results, models.SearchResult{
				ProjectID:   projectID,
				ProjectName: projectName,
				SessionID:   sessionIDOf(r),
				MatchedText: matched,
				Role:        r.msg.Role,
				Timestamp:   r.ts,
			})
			perFile[r.file]++
			if perFile[r.file] >= hitsPerSession || len(set.results) >= maxResults {
				break
			}
		}
	}
	return set
}

func sessionIDOf(r hitRow) string {
	if r.session != "" {
		return r.session
	}
	return sessionIDFromFile(r.file)
}

// withPrompts fills in first prompts keyed by file
func (s hitSet) withPrompts(prompts map[string]string) []models.SearchResult {
	for file, idx := range s.byFile {
		for _, i := range idx {
			s.results[i].FirstPrompt = prompts[file]
		}
	}
	return s.results
}

// searchableText lists the text of each block a query can match
func searchableText(msg models.Message) []string {
	out := make([]string, 0, len(msg.Content))
	for _, b := range msg.Content {
		switch b.Kind {
		case models.BlockToolUse:
			out = append(out, b.Input)
		default:
			out = append(out, b.Text)
		}
	}
	return out
}

// Snippet returns the text around the first case-insensitive occurrence of
// query, keeping radius characters on each side.
func Snippet(text, query string, radius int) (string, bool) {
	if query == "" {
		return "", false
	}
	lower := []rune(strings.ToLower(text))
	orig := []rune(text)
	if len(lower) != len(orig) {
		orig = lower
	}
	q := []rune(strings.ToLower(query))

	idx := runeIndex(lower, q)
	if idx < 0 {
		return "", false
	}
	start := max(0, idx-radius)
	end := min(len(orig), idx+len(q)+radius)
	return string(orig[start:end]), true
}

func runeIndex(s, sub []rune) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		match := true
		for j := range sub {
			if s[i+j] != sub[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
