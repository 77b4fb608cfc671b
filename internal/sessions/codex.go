package sessions

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/strrl/claude-history/internal/orchestrator"
	"github.com/strrl/claude-history/pkg/models"
)

const codexColumns = `timestamp: 'VARCHAR', type: 'VARCHAR', payload: 'JSON'`

// codexVisible selects the response items shown as messages. Developer and
// system messages and the context preambles Codex sends as user input are
// left out here so that paging stays aligned with what is displayed.
const codexVisible = `type = 'response_item'
			AND json_extract_string(payload, '$.type') IN ('message', 'reasoning', 'function_call', 'function_call_output')
			AND (
				json_extract_string(payload, '$.type') <> 'message'
				OR (
					json_extract_string(payload, '$.role') IN ('user', 'assistant')
					AND NOT regexp_matches(
						ltrim(COALESCE(json_extract_string(payload, '$.content[0].text'), '')),
						'^(<environment_context>|<user_instructions>|# AGENTS\.md instructions)'
					)
				)
			)
			AND (
				json_extract_string(payload, '$.type') <> 'reasoning'
				OR COALESCE(json_array_length(payload, '$.summary'), 0) > 0
			)`

const codexUnknownProject = "unknown"

// codexBackend reads ~/.codex/sessions/YYYY/MM/DD/rollout-*.jsonl. A project
// is the working directory recorded in a rollout's session_meta, encoded the
// same way Claude names its project directories.
type codexBackend struct {
	db      *sql.DB
	root    string
	timeout time.Duration
}

func (b *codexBackend) allGlob() string {
	return filepath.Join(b.root, "**", "*.jsonl")
}

func (b *codexBackend) resumeCommand(sessionID string) []string {
	return []string{"codex", "resume", sessionID}
}

// codexSession is the per-rollout aggregate
type codexSession struct {
	fileStat
	ID string
}

func (s codexSession) projectID() string {
	if s.Cwd == "" {
		return codexUnknownProject
	}
	return EncodeProjectPath(s.Cwd)
}

// rollouts aggregates every rollout, or only those in files when non-empty
func (b *codexBackend) rollouts(ctx context.Context, files []string) ([]codexSession, error) {
	where := ""
	var args []any
	if len(files) > 0 {
		placeholders := make([]string, len(files))
		for i, f := range files {
			placeholders[i] = "?"
			args = append(args, f)
		}
		where = fmt.Sprintf("WHERE filename IN (%s)", strings.Join(placeholders, ","))
	}

	query := fmt.Sprintf(`
		SELECT
			filename,
			MAX(json_extract_string(payload, '$.id')) FILTER (WHERE type = 'session_meta') AS session_id,
			MAX(json_extract_string(payload, '$.cwd')) FILTER (WHERE type = 'session_meta') AS cwd,
			MAX(json_extract_string(payload, '$.git.branch')) FILTER (WHERE type = 'session_meta') AS git_branch,
			COUNT(*) FILTER (WHERE %s) AS message_count,
			MIN(timestamp) AS created,
			MAX(timestamp) AS modified
		FROM %s
		%s
		GROUP BY filename
		HAVING COUNT(*) FILTER (WHERE %s) > 0
		ORDER BY MAX(timestamp) DESC NULLS LAST
	`, codexVisible, readJSON(b.allGlob(), codexColumns), where, codexVisible)

	return queryAsync(ctx, b.db, b.timeout, "rollouts", query, args, func(rows *sql.Rows) (codexSession, error) {
		var s codexSession
		var id, cwd, branch, created, modified sql.NullString
		if err := rows.Scan(&s.Path, &id, &cwd, &branch, &s.MessageCount, &created, &modified); err != nil {
			return s, err
		}
		s.ID = nullString(id)
		if s.ID == "" {
			s.ID = sessionIDFromFile(s.Path)
		}
		s.Cwd = nullString(cwd)
		s.GitBranch = nullString(branch)
		s.Created = parseTime(created)
		s.Modified = parseTime(modified)
		return s, nil
	})
}

func (b *codexBackend) listProjects(ctx context.Context) ([]models.Project, error) {
	ok, err := hasTranscripts(b.root)
	if err != nil || !ok {
		return nil, err
	}

	rollouts, err := b.rollouts(ctx, nil)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*models.Project)
	var order []string
	for _, r := range rollouts {
		id := r.projectID()
		p, ok := byID[id]
		if !ok {
			display := r.Cwd
			if display == "" {
				display = "Unknown"
			}
			p = &models.Project{ID: id, DisplayPath: display, ShortName: ShortName(display)}
			byID[id] = p
			order = append(order, id)
		}
		p.SessionCount++
		if r.Modified.After(p.LastModified) {
			p.LastModified = r.Modified
		}
	}

	projects := make([]models.Project, 0, len(order))
	for _, id := range order {
		projects = append(projects, *byID[id])
	}
	sortProjects(projects)
	return projects, nil
}

func (b *codexBackend) listSessions(ctx context.Context, projectID string) ([]models.Session, error) {
	if err := checkID("project", projectID); err != nil {
		return nil, err
	}
	ok, err := hasTranscripts(b.root)
	if err != nil || !ok {
		return nil, err
	}

	rollouts, err := b.rollouts(ctx, nil)
	if err != nil {
		return nil, err
	}

	var mine []codexSession
	var files []string
	for _, r := range rollouts {
		if r.projectID() == projectID {
			mine = append(mine, r)
			files = append(files, r.Path)
		}
	}
	if len(mine) == 0 {
		return nil, errors.Wrapf(orchestrator.ErrNotFound, "project %s", projectID)
	}

	prompts, err := b.firstPrompts(ctx, files)
	if err != nil {
		return nil, err
	}

	sessions := make([]models.Session, 0, len(mine))
	for _, r := range mine {
		sessions = append(sessions, models.Session{
			SessionID:    r.ID,
			FilePath:     r.Path,
			FirstPrompt:  prompts[r.Path],
			MessageCount: r.MessageCount,
			Created:      r.Created,
			Modified:     r.Modified,
			GitBranch:    r.GitBranch,
			ProjectPath:  r.Cwd,
			Cwd:          r.Cwd,
		})
	}
	return sessions, nil
}

func (b *codexBackend) firstPrompts(ctx context.Context, files []string) (map[string]string, error) {
	prompts := make(map[string]string)
	if len(files) == 0 {
		return prompts, nil
	}

	placeholders := make([]string, len(files))
	args := make([]any, len(files))
	for i, f := range files {
		placeholders[i] = "?"
		args[i] = f
	}

	query := fmt.Sprintf(`
		WITH first_user AS (
			SELECT
				filename,
				CAST(payload AS VARCHAR) AS payload_json,
				ROW_NUMBER() OVER (PARTITION BY filename ORDER BY timestamp ASC) AS rn
			FROM %s
			WHERE %s
			AND json_extract_string(payload, '$.role') = 'user'
			AND filename IN (%s)
		)
		SELECT filename, payload_json
		FROM first_user
		WHERE rn = 1
	`, readJSON(b.allGlob(), codexColumns), codexVisible, strings.Join(placeholders, ","))

	type row struct{ file, payload string }
	rows, err := queryAsync(ctx, b.db, b.timeout, "first prompts", query, args, func(rows *sql.Rows) (row, error) {
		var r row
		var payload sql.NullString
		err := rows.Scan(&r.file, &payload)
		r.payload = nullString(payload)
		return r, err
	})
	if err != nil {
		return nil, err
	}

	for _, r := range rows {
		msg, ok, err := decodeCodexItem("", time.Time{}, r.payload)
		if err != nil || !ok {
			continue
		}
		if text := firstText(msg); text != "" {
			prompts[r.file] = truncateString(text, firstPromptLen)
		}
	}
	return prompts, nil
}

// sessionFile finds the rollout of a session. Rollout names end with the
// session id, which avoids a full scan in the common case.
func (b *codexBackend) sessionFile(ctx context.Context, ref models.SessionRef) (string, error) {
	if err := checkID("session", ref.SessionID); err != nil {
		return "", err
	}

	var found string
	suffix := ref.SessionID + ".jsonl"
	err := filepath.WalkDir(b.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), suffix) {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", errors.Wrapf(orchestrator.ErrIO, "walk %s: %v", b.root, err)
	}
	if found != "" {
		return found, nil
	}

	ok, err := hasTranscripts(b.root)
	if err != nil {
		return "", err
	}
	if ok {
		rollouts, err := b.rollouts(ctx, nil)
		if err != nil {
			return "", err
		}
		for _, r := range rollouts {
			if r.ID == ref.SessionID {
				return r.Path, nil
			}
		}
	}
	return "", errors.Wrapf(orchestrator.ErrNotFound, "session %s", ref)
}

func (b *codexBackend) listMessages(ctx context.Context, ref models.SessionRef, page, pageSize int) (models.MessagePage, error) {
	file, err := b.sessionFile(ctx, ref)
	if err != nil {
		return models.MessagePage{}, err
	}

	offset := page * pageSize
	query := fmt.Sprintf(`
		SELECT
			timestamp,
			CAST(payload AS VARCHAR) AS payload_json,
			COUNT(*) OVER () AS total_count
		FROM (SELECT *, row_number() OVER () AS line FROM %s)
		WHERE %s
		ORDER BY timestamp ASC NULLS FIRST, line ASC
		LIMIT ? OFFSET ?
	`, readJSON(file, codexColumns), codexVisible)

	type row struct {
		ts      time.Time
		payload string
		total   int
	}
	rows, err := queryAsync(ctx, b.db, b.timeout, "messages", query, []any{pageSize, offset}, func(rows *sql.Rows) (row, error) {
		var r row
		var ts, payload sql.NullString
		if err := rows.Scan(&ts, &payload, &r.total); err != nil {
			return r, err
		}
		r.ts = parseTime(ts)
		r.payload = nullString(payload)
		return r, nil
	})
	if err != nil {
		return models.MessagePage{}, err
	}

	result := models.MessagePage{Page: page, PageSize: pageSize}
	if len(rows) == 0 {
		total, err := b.countMessages(ctx, file)
		if err != nil {
			return models.MessagePage{}, err
		}
		result.Total = total
		return result, nil
	}

	result.Total = rows[0].total
	result.Messages = make([]models.Message, 0, len(rows))
	for i, r := range rows {
		msg, ok, err := decodeCodexItem(fmt.Sprintf("%s-%d", ref.SessionID, offset+i), r.ts, r.payload)
		if err != nil || !ok {
			continue
		}
		result.Messages = append(result.Messages, msg)
	}
	result.HasMore = offset+len(rows) < result.Total
	return result, nil
}

func (b *codexBackend) countMessages(ctx context.Context, file string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, readJSON(file, codexColumns), codexVisible)
	counts, err := queryAsync(ctx, b.db, b.timeout, "count messages", query, nil, func(rows *sql.Rows) (int, error) {
		var n int
		return n, rows.Scan(&n)
	})
	if err != nil || len(counts) == 0 {
		return 0, err
	}
	return counts[0], nil
}

func (b *codexBackend) search(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error) {
	ok, err := hasTranscripts(b.root)
	if err != nil {
		if errors.Is(err, orchestrator.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	sqlQuery := fmt.Sprintf(`
		SELECT filename, timestamp, CAST(payload AS VARCHAR) AS payload_json
		FROM %s
		WHERE %s
		AND contains(lower(CAST(payload AS VARCHAR)), ?)
		ORDER BY filename, timestamp ASC
	`, readJSON(b.allGlob(), codexColumns), codexVisible)

	rows, err := queryAsync(ctx, b.db, b.timeout, "search", sqlQuery, []any{strings.ToLower(query)}, func(rows *sql.Rows) (hitRow, error) {
		var r hitRow
		var ts, payload sql.NullString
		if err := rows.Scan(&r.file, &ts, &payload); err != nil {
			return r, err
		}
		r.ts = parseTime(ts)
		msg, shown, err := decodeCodexItem("", r.ts, nullString(payload))
		if err != nil {
			return r, err
		}
		if !shown {
			return r, errors.New("hidden item")
		}
		r.msg = msg
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	files := make([]string, 0)
	seen := make(map[string]bool)
	for _, r := range rows {
		if !seen[r.file] {
			seen[r.file] = true
			files = append(files, r.file)
		}
	}
	rollouts, err := b.rollouts(ctx, files)
	if err != nil {
		return nil, err
	}
	meta := make(map[string]codexSession, len(rollouts))
	for _, r := range rollouts {
		meta[r.Path] = r
	}
	for i := range rows {
		m := meta[rows[i].file]
		rows[i].cwd = m.Cwd
		rows[i].session = m.ID
	}

	hits := collectHits(rows, query, maxResults, func(file, cwd string) (string, string) {
		r := meta[file]
		name := ShortName(cwd)
		if cwd == "" {
			name = "Unknown"
		}
		return r.projectID(), name
	})
	if len(hits.results) == 0 {
		return nil, nil
	}

	prompts, err := b.firstPrompts(ctx, hits.files)
	if err != nil {
		return nil, err
	}
	return hits.withPrompts(prompts), nil
}

func (b *codexBackend) stats(ctx context.Context) (models.TokenUsageSummary, error) {
	ok, err := hasTranscripts(b.root)
	if err != nil {
		return models.TokenUsageSummary{}, err
	}
	if !ok {
		return models.TokenUsageSummary{}, errors.Wrapf(orchestrator.ErrNotFound, "no rollouts under %s", b.root)
	}

	source := readJSON(b.allGlob(), codexColumns)
	tokenCount := `type = 'event_msg'
				AND json_extract_string(payload, '$.type') = 'token_count'
				AND json_extract_string(payload, '$.info') IS NOT NULL`

	// total_token_usage is cumulative, so the last event of a rollout holds
	// its totals.
	return collectStats(ctx, b.db, b.timeout, statsQueries{
		byModel: fmt.Sprintf(`
			WITH totals AS (
				SELECT
					filename,
					arg_max(TRY_CAST(json_extract_string(payload, '$.info.total_token_usage.input_tokens') AS BIGINT), timestamp)
						FILTER (WHERE %[2]s) AS input_tokens,
					arg_max(TRY_CAST(json_extract_string(payload, '$.info.total_token_usage.output_tokens') AS BIGINT), timestamp)
						FILTER (WHERE %[2]s) AS output_tokens,
					arg_max(json_extract_string(payload, '$.model'), timestamp)
						FILTER (WHERE type = 'turn_context') AS model
				FROM %[1]s
				GROUP BY filename
			)
			SELECT COALESCE(model, 'unknown'), SUM(COALESCE(input_tokens, 0)), SUM(COALESCE(output_tokens, 0))
			FROM totals
			GROUP BY 1`, source, tokenCount),
		daily: fmt.Sprintf(`
			SELECT
				substr(timestamp, 1, 10) AS day,
				SUM(
					COALESCE(TRY_CAST(json_extract_string(payload, '$.info.last_token_usage.input_tokens') AS BIGINT), 0)
					+ COALESCE(TRY_CAST(json_extract_string(payload, '$.info.last_token_usage.output_tokens') AS BIGINT), 0)
				)
			FROM %s
			WHERE %s AND timestamp IS NOT NULL
			GROUP BY day
			ORDER BY day`, source, tokenCount),
		counts: fmt.Sprintf(`
			SELECT COUNT(DISTINCT filename), COUNT(*)
			FROM %s
			WHERE %s`, source, codexVisible),
	})
}

func (b *codexBackend) debug(ctx context.Context, ref models.SessionRef) (*SessionDebugInfo, error) {
	file, err := b.sessionFile(ctx, ref)
	if err != nil {
		return nil, err
	}
	info := &SessionDebugInfo{File: file, RecordTypes: make(map[string]int)}

	type count struct {
		typ string
		n   int
	}
	counts, err := queryAsync(ctx, b.db, b.timeout, "record types", fmt.Sprintf(`
		SELECT
			COALESCE(type, 'unknown') || COALESCE('/' || json_extract_string(payload, '$.type'), ''),
			COUNT(*)
		FROM %s
		GROUP BY 1`, readJSON(file, codexColumns)), nil,
		func(rows *sql.Rows) (count, error) {
			var c count
			return c, rows.Scan(&c.typ, &c.n)
		})
	if err != nil {
		return nil, err
	}
	for _, c := range counts {
		info.RecordTypes[c.typ] = c.n
	}

	page, err := b.listMessages(ctx, ref, 0, debugPreviewLen)
	if err != nil {
		return nil, err
	}
	info.MessageCount = page.Total
	for _, msg := range page.Messages {
		if line := FormatPreview(msg); line != "" {
			info.Messages = append(info.Messages, line)
		}
	}
	return info, nil
}
