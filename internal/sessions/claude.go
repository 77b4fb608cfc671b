package sessions

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/strrl/claude-history/internal/orchestrator"
	"github.com/strrl/claude-history/pkg/models"
)

const claudeColumns = `type: 'VARCHAR', uuid: 'VARCHAR', sessionId: 'VARCHAR', timestamp: 'VARCHAR',
			cwd: 'VARCHAR', gitBranch: 'VARCHAR', isMeta: 'BOOLEAN', message: 'JSON',
			summary: 'VARCHAR', leafUuid: 'VARCHAR'`

// claudeVisible selects the records shown as messages
const claudeVisible = `type IN ('user', 'assistant')
			AND message IS NOT NULL
			AND NOT COALESCE(isMeta, false)`

// claudeBackend reads ~/.claude/projects/<encoded cwd>/<session id>.jsonl
type claudeBackend struct {
	db      *sql.DB
	root    string
	timeout time.Duration
}

func (b *claudeBackend) allGlob() string {
	return filepath.Join(b.root, "*", "*.jsonl")
}

func (b *claudeBackend) projectGlob(projectID string) string {
	return filepath.Join(b.root, projectID, "*.jsonl")
}

func (b *claudeBackend) sessionFile(_ context.Context, ref models.SessionRef) (string, error) {
	if err := checkID("project", ref.ProjectID); err != nil {
		return "", err
	}
	if err := checkID("session", ref.SessionID); err != nil {
		return "", err
	}
	path := filepath.Join(b.root, ref.ProjectID, ref.SessionID+".jsonl")
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", errors.Wrapf(orchestrator.ErrNotFound, "session %s", ref)
		}
		return "", errors.Wrapf(orchestrator.ErrIO, "stat %s: %v", path, err)
	}
	return path, nil
}

func (b *claudeBackend) resumeCommand(sessionID string) []string {
	return []string{"claude", "--resume", sessionID}
}

// fileStat is the per-transcript aggregate behind project and session lists
type fileStat struct {
	Path         string
	MessageCount int
	Created      time.Time
	Modified     time.Time
	Cwd          string
	GitBranch    string
}

func (b *claudeBackend) fileStats(ctx context.Context, glob string) ([]fileStat, error) {
	query := fmt.Sprintf(`
		SELECT
			filename,
			COUNT(*) FILTER (WHERE %s) AS message_count,
			MIN(timestamp) AS created,
			MAX(timestamp) AS modified,
			MAX(cwd) AS cwd,
			MAX(gitBranch) AS git_branch
		FROM %s
		GROUP BY filename
		HAVING COUNT(*) FILTER (WHERE %s) > 0
		ORDER BY MAX(timestamp) DESC NULLS LAST
	`, claudeVisible, readJSON(glob, claudeColumns), claudeVisible)

	return queryAsync(ctx, b.db, b.timeout, "file stats", query, nil, func(rows *sql.Rows) (fileStat, error) {
		var fs fileStat
		var created, modified, cwd, branch sql.NullString
		if err := rows.Scan(&fs.Path, &fs.MessageCount, &created, &modified, &cwd, &branch); err != nil {
			return fs, err
		}
		fs.Created = parseTime(created)
		fs.Modified = parseTime(modified)
		fs.Cwd = nullString(cwd)
		fs.GitBranch = nullString(branch)
		return fs, nil
	})
}

func (b *claudeBackend) displayPath(projectID, cwd string) string {
	if cwd != "" {
		return cwd
	}
	return DecodeProjectPath(projectID, runtime.GOOS == "windows")
}

func (b *claudeBackend) listProjects(ctx context.Context) ([]models.Project, error) {
	ok, err := hasTranscripts(b.root)
	if err != nil || !ok {
		return nil, err
	}

	stats, err := b.fileStats(ctx, b.allGlob())
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*models.Project)
	var order []string
	for _, fs := range stats {
		id := filepath.Base(filepath.Dir(fs.Path))
		p, ok := byID[id]
		if !ok {
			p = &models.Project{ID: id}
			byID[id] = p
			order = append(order, id)
		}
		if p.DisplayPath == "" && fs.Cwd != "" {
			p.DisplayPath = fs.Cwd
		}
		p.SessionCount++
		if fs.Modified.After(p.LastModified) {
			p.LastModified = fs.Modified
		}
	}

	projects := make([]models.Project, 0, len(order))
	for _, id := range order {
		p := byID[id]
		p.DisplayPath = b.displayPath(id, p.DisplayPath)
		p.ShortName = ShortName(p.DisplayPath)
		projects = append(projects, *p)
	}
	sortProjects(projects)
	return projects, nil
}

func (b *claudeBackend) listSessions(ctx context.Context, projectID string) ([]models.Session, error) {
	if err := checkID("project", projectID); err != nil {
		return nil, err
	}
	dir := filepath.Join(b.root, projectID)
	ok, err := hasTranscripts(dir)
	if err != nil || !ok {
		return nil, err
	}

	glob := b.projectGlob(projectID)
	stats, err := b.fileStats(ctx, glob)
	if err != nil {
		return nil, err
	}

	files := make([]string, len(stats))
	for i, fs := range stats {
		files[i] = fs.Path
	}
	prompts, err := b.firstPrompts(ctx, glob, files)
	if err != nil {
		return nil, err
	}

	sessions := make([]models.Session, 0, len(stats))
	for _, fs := range stats {
		sessions = append(sessions, models.Session{
			SessionID:    sessionIDFromFile(fs.Path),
			FilePath:     fs.Path,
			FirstPrompt:  prompts[fs.Path],
			MessageCount: fs.MessageCount,
			Created:      fs.Created,
			Modified:     fs.Modified,
			GitBranch:    fs.GitBranch,
			ProjectPath:  fs.Cwd,
			Cwd:          fs.Cwd,
		})
	}
	return sessions, nil
}

// firstPrompts finds the first real user prompt of every file in files,
// skipping slash command scaffolding.
func (b *claudeBackend) firstPrompts(ctx context.Context, glob string, files []string) (map[string]string, error) {
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
				CAST(message AS VARCHAR) AS message_json,
				ROW_NUMBER() OVER (PARTITION BY filename ORDER BY timestamp ASC) AS rn
			FROM %s
			WHERE type = 'user'
			AND message IS NOT NULL
			AND NOT COALESCE(isMeta, false)
			AND filename IN (%s)
		)
		SELECT filename, message_json
		FROM first_user
		WHERE rn <= 10
		ORDER BY filename, rn
	`, readJSON(glob, claudeColumns), strings.Join(placeholders, ","))

	type row struct{ file, message string }
	rows, err := queryAsync(ctx, b.db, b.timeout, "first prompts", query, args, func(rows *sql.Rows) (row, error) {
		var r row
		var message sql.NullString
		err := rows.Scan(&r.file, &message)
		r.message = nullString(message)
		return r, err
	})
	if err != nil {
		return nil, err
	}

	for _, r := range rows {
		if _, done := prompts[r.file]; done {
			continue
		}
		msg, err := decodeClaudeMessage("user", "", time.Time{}, r.message)
		if err != nil {
			continue
		}
		if text := firstText(msg); text != "" && !isCommandScaffold(text) {
			prompts[r.file] = truncateString(text, firstPromptLen)
		}
	}
	return prompts, nil
}

// isCommandScaffold matches the wrapper text Claude records around slash
// commands
func isCommandScaffold(text string) bool {
	t := strings.TrimSpace(text)
	return strings.HasPrefix(t, "<command-") ||
		strings.HasPrefix(t, "<local-command") ||
		strings.HasPrefix(t, "Caveat: The messages below")
}

func (b *claudeBackend) listMessages(ctx context.Context, ref models.SessionRef, page, pageSize int) (models.MessagePage, error) {
	file, err := b.sessionFile(ctx, ref)
	if err != nil {
		return models.MessagePage{}, err
	}

	offset := page * pageSize
	query := fmt.Sprintf(`
		SELECT
			type,
			uuid,
			timestamp,
			CAST(message AS VARCHAR) AS message_json,
			COUNT(*) OVER () AS total_count
		FROM (SELECT *, row_number() OVER () AS line FROM %s)
		WHERE %s
		ORDER BY timestamp ASC NULLS FIRST, line ASC
		LIMIT ? OFFSET ?
	`, readJSON(file, claudeColumns), claudeVisible)

	type row struct {
		typ, uuid, message string
		ts                 time.Time
		total              int
	}
	rows, err := queryAsync(ctx, b.db, b.timeout, "messages", query, []any{pageSize, offset}, func(rows *sql.Rows) (row, error) {
		var r row
		var typ, uuid, ts, message sql.NullString
		if err := rows.Scan(&typ, &uuid, &ts, &message, &r.total); err != nil {
			return r, err
		}
		r.typ, r.uuid, r.message = nullString(typ), nullString(uuid), nullString(message)
		r.ts = parseTime(ts)
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
		msg, err := decodeClaudeMessage(r.typ, r.uuid, r.ts, r.message)
		if err != nil {
			continue
		}
		if msg.UUID == "" {
			msg.UUID = fmt.Sprintf("%s-%d", ref.SessionID, offset+i)
		}
		result.Messages = append(result.Messages, msg)
	}
	result.HasMore = offset+len(rows) < result.Total
	return result, nil
}

func (b *claudeBackend) countMessages(ctx context.Context, file string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, readJSON(file, claudeColumns), claudeVisible)
	counts, err := queryAsync(ctx, b.db, b.timeout, "count messages", query, nil, func(rows *sql.Rows) (int, error) {
		var n int
		return n, rows.Scan(&n)
	})
	if err != nil || len(counts) == 0 {
		return 0, err
	}
	return counts[0], nil
}

func (b *claudeBackend) search(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error) {
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

	glob := b.allGlob()
	sqlQuery := fmt.Sprintf(`
		SELECT
			filename,
			type,
			timestamp,
			cwd,
			CAST(message AS VARCHAR) AS message_json
		FROM %s
		WHERE %s
		AND contains(lower(CAST(message AS VARCHAR)), ?)
		ORDER BY filename, timestamp ASC
	`, readJSON(glob, claudeColumns), claudeVisible)

	rows, err := queryAsync(ctx, b.db, b.timeout, "search", sqlQuery, []any{strings.ToLower(query)}, func(rows *sql.Rows) (hitRow, error) {
		var r hitRow
		var typ, ts, cwd, message sql.NullString
		if err := rows.Scan(&r.file, &typ, &ts, &cwd, &message); err != nil {
			return r, err
		}
		r.ts = parseTime(ts)
		r.cwd = nullString(cwd)
		msg, err := decodeClaudeMessage(nullString(typ), "", r.ts, nullString(message))
		r.msg = msg
		return r, err
	})
	if err != nil {
		return nil, err
	}

	hits := collectHits(rows, query, maxResults, func(file, cwd string) (string, string) {
		projectID := filepath.Base(filepath.Dir(file))
		return projectID, ShortName(b.displayPath(projectID, cwd))
	})
	if len(hits.results) == 0 {
		return nil, nil
	}

	prompts, err := b.firstPrompts(ctx, glob, hits.files)
	if err != nil {
		return nil, err
	}
	return hits.withPrompts(prompts), nil
}

func (b *claudeBackend) stats(ctx context.Context) (models.TokenUsageSummary, error) {
	ok, err := hasTranscripts(b.root)
	if err != nil {
		return models.TokenUsageSummary{}, err
	}
	if !ok {
		return models.TokenUsageSummary{}, errors.Wrapf(orchestrator.ErrNotFound, "no transcripts under %s", b.root)
	}

	source := readJSON(b.allGlob(), claudeColumns)
	// Streaming writes one record per content block, all carrying the same
	// message id and usage.
	usage := fmt.Sprintf(`
		WITH usage AS (
			SELECT
				timestamp,
				COALESCE(json_extract_string(message, '$.model'), 'unknown') AS model,
				COALESCE(TRY_CAST(json_extract_string(message, '$.usage.input_tokens') AS BIGINT), 0)
					+ COALESCE(TRY_CAST(json_extract_string(message, '$.usage.cache_creation_input_tokens') AS BIGINT), 0) AS input_tokens,
				COALESCE(TRY_CAST(json_extract_string(message, '$.usage.output_tokens') AS BIGINT), 0) AS output_tokens,
				ROW_NUMBER() OVER (
					PARTITION BY COALESCE(json_extract_string(message, '$.id'), uuid)
					ORDER BY timestamp DESC
				) AS rn
			FROM %s
			WHERE type = 'assistant'
			AND message IS NOT NULL
		)`, source)

	return collectStats(ctx, b.db, b.timeout, statsQueries{
		byModel: usage + `
			SELECT model, SUM(input_tokens), SUM(output_tokens)
			FROM usage
			WHERE rn = 1 AND model <> '<synthetic>'
			GROUP BY model`,
		daily: usage + `
			SELECT substr(timestamp, 1, 10) AS day, SUM(input_tokens + output_tokens)
			FROM usage
			WHERE rn = 1 AND timestamp IS NOT NULL
			GROUP BY day
			ORDER BY day`,
		counts: fmt.Sprintf(`
			SELECT COUNT(DISTINCT filename), COUNT(*)
			FROM %s
			WHERE %s`, source, claudeVisible),
	})
}

// debug gathers the raw facts behind a session for troubleshooting
func (b *claudeBackend) debug(ctx context.Context, ref models.SessionRef) (*SessionDebugInfo, error) {
	file, err := b.sessionFile(ctx, ref)
	if err != nil {
		return nil, err
	}
	info := &SessionDebugInfo{File: file, RecordTypes: make(map[string]int)}
	source := readJSON(file, claudeColumns)

	type count struct {
		typ string
		n   int
	}
	counts, err := queryAsync(ctx, b.db, b.timeout, "record types",
		fmt.Sprintf(`SELECT COALESCE(type, 'unknown'), COUNT(*) FROM %s GROUP BY 1`, source), nil,
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

	// The summary that applies to a session is the one whose leafUuid is the
	// session's last record.
	summaries, err := queryAsync(ctx, b.db, b.timeout, "summary", fmt.Sprintf(`
		WITH last_event AS (
			SELECT uuid
			FROM %s
			WHERE type <> 'summary' AND uuid IS NOT NULL
			ORDER BY timestamp DESC
			LIMIT 1
		)
		SELECT s.summary
		FROM %s s
		JOIN last_event l ON s.leafUuid = l.uuid
		WHERE s.type = 'summary'
		LIMIT 1
	`, source, readJSON(filepath.Join(b.root, "*", "*.jsonl"), claudeColumns)), nil,
		func(rows *sql.Rows) (string, error) {
			var s sql.NullString
			err := rows.Scan(&s)
			return nullString(s), err
		})
	if err == nil && len(summaries) > 0 {
		info.Summary = summaries[0]
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

func sortProjects(projects []models.Project) {
	sort.SliceStable(projects, func(i, j int) bool {
		return projects[i].LastModified.After(projects[j].LastModified)
	})
}
