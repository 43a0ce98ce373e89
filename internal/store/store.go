package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when an item does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStaleState is returned by Transition when the item is no longer in
	// the expected state.
	ErrStaleState = errors.New("item left the expected state")
)

// Store provides access to the ideaflow database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New opens (or creates) the SQLite database at the given path.
func New(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=synchronous(NORMAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL lets every worker keep its own long-lived connection.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ideas (
		id                    INTEGER PRIMARY KEY AUTOINCREMENT,
		text                  TEXT NOT NULL,
		priority              TEXT NOT NULL DEFAULT 'medium',
		classification_stage  TEXT NOT NULL DEFAULT 'captured',
		ai_type               TEXT DEFAULT '',
		ai_category           TEXT DEFAULT '',
		ai_summary            TEXT DEFAULT '',
		suggested_agent       TEXT DEFAULT '',
		suggested_skills      TEXT DEFAULT '',
		related_area_id       INTEGER,
		is_project            INTEGER NOT NULL DEFAULT 0,
		para_type             TEXT DEFAULT '',
		execution_status      TEXT,
		execution_output      TEXT DEFAULT '',
		execution_error       TEXT DEFAULT '',
		executed_at           DATETIME,
		executed_by           TEXT DEFAULT '',
		created_at            DATETIME NOT NULL,
		updated_at            DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ideas_status ON ideas(execution_status);

	CREATE TABLE IF NOT EXISTS projects (
		id               TEXT PRIMARY KEY,
		name             TEXT NOT NULL,
		description      TEXT DEFAULT '',
		url              TEXT DEFAULT '',
		icon             TEXT DEFAULT '',
		status           TEXT NOT NULL DEFAULT 'development',
		tech             TEXT DEFAULT '',
		related_area_id  INTEGER,
		updated_at       DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS context_items (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		key           TEXT NOT NULL UNIQUE,
		content       TEXT NOT NULL DEFAULT '',
		category      TEXT NOT NULL DEFAULT 'resource',
		last_updated  DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		item_id     INTEGER NOT NULL REFERENCES ideas(id) ON DELETE CASCADE,
		agent       TEXT DEFAULT '',
		event_type  TEXT NOT NULL,
		content     TEXT DEFAULT '',
		timestamp   DATETIME NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// Databases shared with the dashboard may predate these columns.
	s.addColumnIfMissing("ideas", "para_type", "TEXT DEFAULT ''")
	s.addColumnIfMissing("ideas", "is_project", "INTEGER NOT NULL DEFAULT 0")
	s.addColumnIfMissing("ideas", "related_area_id", "INTEGER")
	return nil
}

// addColumnIfMissing adds a column to a table if it doesn't exist yet.
func (s *Store) addColumnIfMissing(table, column, colDef string) {
	rows, err := s.db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		return
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dfltValue *string
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return
		}
		if name == column {
			return
		}
	}
	s.db.Exec("ALTER TABLE " + table + " ADD COLUMN " + column + " " + colDef)
}

// CreateItem captures a new idea and returns it with the generated ID.
func (s *Store) CreateItem(n NewItem) (*Item, error) {
	text := strings.TrimSpace(n.Text)
	if text == "" {
		return nil, errors.New("insert item: text is required")
	}
	stage := n.Stage
	if stage == "" {
		stage = StageCaptured
	}
	skills := ""
	if len(n.SuggestedSkills) > 0 {
		raw, err := json.Marshal(n.SuggestedSkills)
		if err != nil {
			return nil, fmt.Errorf("encode skills: %w", err)
		}
		skills = string(raw)
	}

	now := s.now()
	res, err := s.db.Exec(
		`INSERT INTO ideas (text, priority, classification_stage, ai_type, ai_category, ai_summary,
			suggested_agent, suggested_skills, related_area_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		text, string(NormalizePriority(n.Priority)), string(stage), n.AIType, n.AICategory, n.AISummary,
		n.SuggestedAgent, skills, n.RelatedAreaID, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}
	id, _ := res.LastInsertId()
	s.AddEvent(id, "", "created", fmt.Sprintf("Idea captured: %s", text))
	return s.GetItem(id)
}

// itemColumns is the standard column list for item queries.
const itemColumns = `id, text, COALESCE(priority, 'medium'), COALESCE(classification_stage, 'captured'),
	COALESCE(ai_type, ''), COALESCE(ai_category, ''), COALESCE(ai_summary, ''),
	COALESCE(suggested_agent, ''), COALESCE(suggested_skills, ''), related_area_id,
	COALESCE(is_project, 0), execution_status, COALESCE(execution_output, ''),
	COALESCE(execution_error, ''), executed_at, COALESCE(executed_by, ''), created_at, updated_at`

// priorityOrder sorts high before medium before low, then FIFO.
const priorityOrder = ` ORDER BY CASE priority WHEN 'high' THEN 1 WHEN 'alta' THEN 1
	WHEN 'medium' THEN 2 WHEN 'media' THEN 2 ELSE 3 END, created_at ASC, id ASC`

// GetItem returns a single item by ID.
func (s *Store) GetItem(id int64) (*Item, error) {
	row := s.db.QueryRow(`SELECT `+itemColumns+` FROM ideas WHERE id = ?`, id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	return it, err
}

// ItemsInStatus returns the items in the given state in selection order.
func (s *Store) ItemsInStatus(status Status) ([]Item, error) {
	if status == StatusNone {
		return s.queryItems(`SELECT ` + itemColumns + ` FROM ideas
			WHERE (execution_status IS NULL OR execution_status = '')` + priorityOrder)
	}
	return s.queryItems(`SELECT `+itemColumns+` FROM ideas WHERE execution_status = ?`+priorityOrder, string(status))
}

// RoutableItems returns organized ideas that no pipeline owns yet.
func (s *Store) RoutableItems() ([]Item, error) {
	return s.queryItems(`SELECT `+itemColumns+` FROM ideas
		WHERE classification_stage = ? AND (execution_status IS NULL OR execution_status = '')`+priorityOrder,
		string(StageOrganized))
}

// FailedNotExpressed returns failed items that never reached the terminal
// classification stage, oldest execution first.
func (s *Store) FailedNotExpressed() ([]Item, error) {
	return s.queryItems(`SELECT `+itemColumns+` FROM ideas
		WHERE execution_status = ? AND classification_stage != ?
		ORDER BY executed_at ASC, id ASC`,
		string(StatusFailed), string(StageExpressed))
}

// ListFilter narrows ListItems.
type ListFilter struct {
	Status    *Status
	Limit     int
	Ascending bool
}

// ListItems returns items newest first unless Ascending is set.
func (s *Store) ListItems(f ListFilter) ([]Item, error) {
	query := `SELECT ` + itemColumns + ` FROM ideas`
	var args []any
	if f.Status != nil {
		if *f.Status == StatusNone {
			query += ` WHERE (execution_status IS NULL OR execution_status = '')`
		} else {
			query += ` WHERE execution_status = ?`
			args = append(args, string(*f.Status))
		}
	}
	if f.Ascending {
		query += ` ORDER BY id ASC`
	} else {
		query += ` ORDER BY id DESC`
	}
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}
	return s.queryItems(query, args...)
}

// queryItems is a shared helper for running item-list queries.
func (s *Store) queryItems(query string, args ...any) ([]Item, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

// Transition is the single status-update operation. It moves the item from
// the expected state to c.To and fails with ErrStaleState if another writer
// got there first. Completion forces the expressed classification and marks
// the item as a project; developed, built and reviewing raise it to distilled.
func (s *Store) Transition(id int64, from Status, c Change) error {
	if !c.To.Valid() {
		return fmt.Errorf("transition item %d: unknown status %q", id, c.To)
	}
	now := s.now()

	var output, errText any
	if c.Output != nil {
		output = *c.Output
	}
	if c.Error != nil {
		errText = *c.Error
	}

	fromClause := `execution_status = ?`
	args := []any{nullStatus(c.To), output, errText, now, c.By,
		string(c.To), string(c.To), string(c.To), string(c.To), now, id}
	if from == StatusNone {
		fromClause = `(execution_status IS NULL OR execution_status = '')`
	} else {
		args = append(args, string(from))
	}

	res, err := s.db.Exec(`
		UPDATE ideas SET
			execution_status = ?,
			execution_output = COALESCE(?, execution_output),
			execution_error = COALESCE(?, execution_error),
			executed_at = ?,
			executed_by = ?,
			classification_stage = CASE
				WHEN ? = 'completed' THEN 'expressed'
				WHEN ? IN ('developed', 'built', 'reviewing')
					AND classification_stage IN ('captured', 'organized') THEN 'distilled'
				ELSE classification_stage END,
			para_type = CASE WHEN ? = 'completed' THEN 'project' ELSE para_type END,
			is_project = CASE WHEN ? = 'completed' THEN 1 ELSE is_project END,
			updated_at = ?
		WHERE id = ? AND `+fromClause, args...)
	if err != nil {
		return fmt.Errorf("transition item %d: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		if _, err := s.GetItem(id); err != nil {
			return err
		}
		return fmt.Errorf("transition item %d from %s: %w", id, from, ErrStaleState)
	}

	s.AddEvent(id, c.By, "transition", fmt.Sprintf("%s -> %s", from, c.To))
	return nil
}

// SetSuggestedAgent persists the specialist inferred for an item.
func (s *Store) SetSuggestedAgent(id int64, agent string) error {
	_, err := s.db.Exec(`UPDATE ideas SET suggested_agent = ?, updated_at = ? WHERE id = ?`, agent, s.now(), id)
	if err != nil {
		return fmt.Errorf("set suggested agent: %w", err)
	}
	return nil
}

// Organize moves a captured idea to the organized stage so the router
// picks it up.
func (s *Store) Organize(id int64) error {
	res, err := s.db.Exec(`UPDATE ideas SET classification_stage = ?, updated_at = ?
		WHERE id = ? AND classification_stage = ?`,
		string(StageOrganized), s.now(), id, string(StageCaptured))
	if err != nil {
		return fmt.Errorf("organize item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.GetItem(id); err != nil {
			return err
		}
		return nil
	}
	s.AddEvent(id, "", "organized", "Classification stage set to organized")
	return nil
}

// Stats counts items per pipeline bucket.
func (s *Store) Stats() (Stats, error) {
	var st Stats
	err := s.db.QueryRow(`
		SELECT
			COALESCE(SUM(CASE WHEN (execution_status IS NULL OR execution_status = '') AND classification_stage = 'organized' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN execution_status LIKE 'queued_%' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN execution_status = 'in_progress' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN execution_status = 'developed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN execution_status IN ('built', 'reviewing') THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN execution_status = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN execution_status = 'failed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN execution_status = 'blocked' THEN 1 ELSE 0 END), 0)
		FROM ideas`).Scan(
		&st.Pending, &st.Queued, &st.InProgress, &st.Building,
		&st.InReview, &st.Completed, &st.Failed, &st.Blocked,
	)
	if err != nil {
		return st, fmt.Errorf("pipeline stats: %w", err)
	}
	return st, nil
}

// --- Projects ---

// UpsertProject inserts or replaces the project registered for an item.
func (s *Store) UpsertProject(p Project) error {
	_, err := s.db.Exec(`
		INSERT INTO projects (id, name, description, url, icon, status, tech, related_area_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			url = excluded.url,
			icon = excluded.icon,
			status = excluded.status,
			tech = excluded.tech,
			related_area_id = excluded.related_area_id,
			updated_at = excluded.updated_at`,
		p.ID, p.Name, p.Description, p.URL, p.Icon, p.Status, p.Tech, p.RelatedAreaID, s.now(),
	)
	if err != nil {
		return fmt.Errorf("upsert project %s: %w", p.ID, err)
	}
	return nil
}

const projectColumns = `id, name, COALESCE(description, ''), COALESCE(url, ''), COALESCE(icon, ''),
	status, COALESCE(tech, ''), related_area_id, updated_at`

// GetProject returns the project registered for an item.
func (s *Store) GetProject(id string) (*Project, error) {
	var p Project
	var area sql.NullInt64
	err := s.db.QueryRow(`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id).Scan(
		&p.ID, &p.Name, &p.Description, &p.URL, &p.Icon, &p.Status, &p.Tech, &area, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	if area.Valid {
		p.RelatedAreaID = &area.Int64
	}
	return &p, nil
}

// ListProjects returns every registered project, most recent first.
func (s *Store) ListProjects() ([]Project, error) {
	rows, err := s.db.Query(`SELECT ` + projectColumns + ` FROM projects ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		var area sql.NullInt64
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.URL, &p.Icon, &p.Status, &p.Tech, &area, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		if area.Valid {
			p.RelatedAreaID = &area.Int64
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// --- Context items ---

// SaveContextItem upserts a context item by key.
func (s *Store) SaveContextItem(key, content, category string) error {
	if category == "" {
		category = "resource"
	}
	_, err := s.db.Exec(`
		INSERT INTO context_items (key, content, category, last_updated) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			content = excluded.content,
			category = excluded.category,
			last_updated = excluded.last_updated`,
		key, content, category, s.now(),
	)
	if err != nil {
		return fmt.Errorf("save context item %s: %w", key, err)
	}
	return nil
}

// RecentContextItems returns up to limit items, most recently updated first.
func (s *Store) RecentContextItems(limit int) ([]ContextItem, error) {
	rows, err := s.db.Query(
		`SELECT key, content, category, last_updated FROM context_items
		 ORDER BY last_updated DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list context items: %w", err)
	}
	defer rows.Close()

	var items []ContextItem
	for rows.Next() {
		var c ContextItem
		if err := rows.Scan(&c.Key, &c.Content, &c.Category, &c.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan context item: %w", err)
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// --- Events ---

// AddEvent records an event for an item.
func (s *Store) AddEvent(itemID int64, agent, eventType, content string) {
	s.db.Exec(
		`INSERT INTO events (item_id, agent, event_type, content, timestamp) VALUES (?, ?, ?, ?, ?)`,
		itemID, agent, eventType, content, s.now(),
	)
}

// GetEvents returns all events for an item.
func (s *Store) GetEvents(itemID int64) ([]Event, error) {
	rows, err := s.db.Query(
		`SELECT id, item_id, agent, event_type, content, timestamp FROM events WHERE item_id = ? ORDER BY id`,
		itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("get events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.ItemID, &e.Agent, &e.Type, &e.Content, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

// scanItem scans a single item from a *sql.Row or *sql.Rows.
func scanItem(sc scanner) (*Item, error) {
	var it Item
	var area sql.NullInt64
	var isProject int
	var status sql.NullString
	var executedAt sql.NullTime
	err := sc.Scan(
		&it.ID, &it.Text, &it.Priority, &it.Stage,
		&it.AIType, &it.AICategory, &it.AISummary,
		&it.SuggestedAgent, &it.SuggestedSkills, &area,
		&isProject, &status, &it.Output,
		&it.Error, &executedAt, &it.ExecutedBy, &it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan item: %w", err)
	}
	it.Priority = NormalizePriority(string(it.Priority))
	if area.Valid {
		it.RelatedAreaID = &area.Int64
	}
	it.IsProject = isProject != 0
	if status.Valid {
		it.Status = Status(status.String)
	}
	if executedAt.Valid {
		it.ExecutedAt = executedAt.Time
	}
	return &it, nil
}

func nullStatus(s Status) any {
	if s == StatusNone {
		return nil
	}
	return string(s)
}
