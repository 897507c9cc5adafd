package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/023a424/agentflow/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/agentflow.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// DB returns the underlying *sql.DB for advanced usage.
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// Vacuum runs VACUUM on the database.
func (s *LibSQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// --- Executions ---

func (s *LibSQLStore) CreateExecution(ctx context.Context, exec *Execution) error {
	data, err := marshalCheckpoint(exec.ExecutionData)
	if err != nil {
		return fmt.Errorf("marshal execution data: %w", err)
	}
	now := time.Now().UTC()
	if exec.CreatedDate.IsZero() {
		exec.CreatedDate = now
	}
	exec.UpdatedDate = exec.CreatedDate
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO executions (id, agentflow_id, session_id, status, execution_data, created_date, updated_date, stopped_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		exec.ID, exec.AgentflowID, exec.SessionID, string(exec.Status), data,
		exec.CreatedDate, exec.UpdatedDate, nullTime(exec.StoppedDate),
	)
	return err
}

func (s *LibSQLStore) GetExecution(ctx context.Context, id string) (*Execution, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, agentflow_id, session_id, status, execution_data, created_date, updated_date, stopped_date
		 FROM executions WHERE id = ?`, id)
	exec, err := scanExecution(row)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("execution", id)
	}
	return exec, err
}

func (s *LibSQLStore) UpdateExecution(ctx context.Context, id string, update ExecutionUpdate) error {
	sets := []string{"updated_date = ?"}
	args := []any{time.Now().UTC()}

	if update.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*update.Status))
	}
	if update.ExecutionData != nil {
		data, err := marshalCheckpoint(update.ExecutionData)
		if err != nil {
			return fmt.Errorf("marshal execution data: %w", err)
		}
		sets = append(sets, "execution_data = ?")
		args = append(args, data)
	}
	if update.StoppedDate != nil {
		sets = append(sets, "stopped_date = ?")
		args = append(args, *update.StoppedDate)
	}

	args = append(args, id)
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE executions SET %s WHERE id = ?`, strings.Join(sets, ", ")), args...)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "execution", id)
}

func (s *LibSQLStore) LatestExecution(ctx context.Context, agentflowID, sessionID string) (*Execution, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, agentflow_id, session_id, status, execution_data, created_date, updated_date, stopped_date
		 FROM executions WHERE agentflow_id = ? AND session_id = ?
		 ORDER BY created_date DESC, id DESC LIMIT 1`, agentflowID, sessionID)
	exec, err := scanExecution(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return exec, err
}

func (s *LibSQLStore) ListExecutions(ctx context.Context, filter ExecutionFilter) ([]*Execution, error) {
	query := `SELECT id, agentflow_id, session_id, status, execution_data, created_date, updated_date, stopped_date
	          FROM executions WHERE 1=1`
	var args []any

	if filter.AgentflowID != "" {
		query += ` AND agentflow_id = ?`
		args = append(args, filter.AgentflowID)
	}
	if filter.SessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, filter.SessionID)
	}
	if filter.Status != nil {
		query += ` AND status = ?`
		args = append(args, string(*filter.Status))
	}
	if filter.Before != nil {
		query += ` AND updated_date < ?`
		args = append(args, *filter.Before)
	}
	query += ` ORDER BY created_date DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var execs []*Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		execs = append(execs, exec)
	}
	return execs, rows.Err()
}

func (s *LibSQLStore) DeleteExecution(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM executions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "execution", id)
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanExecution(row scanner) (*Execution, error) {
	exec := &Execution{}
	var status, data string
	var stopped sql.NullTime
	err := row.Scan(&exec.ID, &exec.AgentflowID, &exec.SessionID, &status, &data,
		&exec.CreatedDate, &exec.UpdatedDate, &stopped)
	if err != nil {
		return nil, err
	}
	exec.Status = schema.ExecutionStatus(status)
	if err := json.Unmarshal([]byte(data), &exec.ExecutionData); err != nil {
		return nil, fmt.Errorf("unmarshal execution data: %w", err)
	}
	if stopped.Valid {
		exec.StoppedDate = &stopped.Time
	}
	return exec, nil
}

// --- Chat messages ---

func (s *LibSQLStore) CreateChatMessage(ctx context.Context, msg *ChatMessage) error {
	if msg.CreatedDate.IsZero() {
		msg.CreatedDate = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (id, role, agentflow_id, chat_id, session_id, content,
		 source_documents, used_tools, file_annotations, artifacts, action, execution_id, created_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.Role, msg.AgentflowID, msg.ChatID, msg.SessionID, msg.Content,
		nullRaw(msg.SourceDocuments), nullRaw(msg.UsedTools), nullRaw(msg.FileAnnotations),
		nullRaw(msg.Artifacts), nullRaw(msg.Action), nullStr(msg.ExecutionID), msg.CreatedDate,
	)
	return err
}

func (s *LibSQLStore) ListChatMessages(ctx context.Context, agentflowID, sessionID string) ([]*ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, agentflow_id, chat_id, session_id, content,
		 source_documents, used_tools, file_annotations, artifacts, action, execution_id, created_date
		 FROM chat_messages WHERE agentflow_id = ? AND session_id = ?
		 ORDER BY created_date ASC, id ASC`, agentflowID, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*ChatMessage
	for rows.Next() {
		m := &ChatMessage{}
		var sourceDocs, usedTools, fileAnns, artifacts, action, execID sql.NullString
		if err := rows.Scan(&m.ID, &m.Role, &m.AgentflowID, &m.ChatID, &m.SessionID, &m.Content,
			&sourceDocs, &usedTools, &fileAnns, &artifacts, &action, &execID, &m.CreatedDate); err != nil {
			return nil, err
		}
		m.SourceDocuments = rawOrNil(sourceDocs)
		m.UsedTools = rawOrNil(usedTools)
		m.FileAnnotations = rawOrNil(fileAnns)
		m.Artifacts = rawOrNil(artifacts)
		m.Action = rawOrNil(action)
		if execID.Valid {
			m.ExecutionID = execID.String
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *LibSQLStore) ClearLatestMessageAction(ctx context.Context, agentflowID, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE chat_messages SET action = NULL WHERE id = (
		   SELECT id FROM chat_messages
		   WHERE agentflow_id = ? AND session_id = ? AND action IS NOT NULL
		   ORDER BY created_date DESC, id DESC LIMIT 1
		 )`, agentflowID, sessionID)
	return err
}

// --- Variables ---

func (s *LibSQLStore) UpsertVariable(ctx context.Context, v *Variable) error {
	now := time.Now().UTC()
	if v.CreatedDate.IsZero() {
		v.CreatedDate = now
	}
	v.UpdatedDate = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO variables (id, name, value, type, created_date, updated_date)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET value=excluded.value, type=excluded.type, updated_date=excluded.updated_date`,
		v.ID, v.Name, v.Value, v.Type, v.CreatedDate, v.UpdatedDate,
	)
	return err
}

func (s *LibSQLStore) ListVariables(ctx context.Context) ([]*Variable, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, value, type, created_date, updated_date FROM variables ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vars []*Variable
	for rows.Next() {
		v := &Variable{}
		if err := rows.Scan(&v.ID, &v.Name, &v.Value, &v.Type, &v.CreatedDate, &v.UpdatedDate); err != nil {
			return nil, err
		}
		vars = append(vars, v)
	}
	return vars, rows.Err()
}

func (s *LibSQLStore) DeleteVariable(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM variables WHERE name = ?`, name)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "variable", name)
}

// --- Helpers ---

func marshalCheckpoint(data []schema.ExecutedData) (string, error) {
	if data == nil {
		return "[]", nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func storeNotFound(resource, id string) *schema.FlowError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s not found: %s", resource, id)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullRaw(r json.RawMessage) any {
	if len(r) == 0 {
		return nil
	}
	return string(r)
}

func rawOrNil(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}
