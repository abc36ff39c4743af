package chat

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/aura-companion/gateway/internal/model/chat"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLStore persists transcripts through database/sql. Supported drivers are
// "sqlite" (modernc) and "pgx".
type SQLStore struct {
	db       *sql.DB
	postgres bool
	// serialises Append so MAX(seq)+1 is computed without racing writers in
	// this process; the primary key rejects racers from other processes.
	mu  sync.Mutex
	now func() time.Time
}

// OpenSQLStore opens the database and applies the embedded migrations.
func OpenSQLStore(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	var dialect goose.Dialect
	switch driver {
	case "sqlite":
		dialect = goose.DialectSQLite3
		if dir := filepath.Dir(dsn); dir != "." && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
	case "pgx":
		dialect = goose.DialectPostgres
	default:
		return nil, fmt.Errorf("unsupported transcript driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling WAL mode: %w", err)
		}
	}

	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		db.Close()
		return nil, err
	}
	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating migration provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	log.Info().Str("component", "transcript").Str("driver", driver).Int("applied", len(results)).Msg("transcript store ready")
	return &SQLStore{db: db, postgres: driver == "pgx", now: time.Now}, nil
}

// Append stores one message with the next sequence id.
func (s *SQLStore) Append(ctx context.Context, conversationID string, role chat.Role, content string) (chat.Message, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return chat.Message{}, ErrConversationRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return chat.Message{}, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	var last int64
	row := tx.QueryRowContext(ctx, s.rebind(`SELECT COALESCE(MAX(seq), 0) FROM transcript_messages WHERE conversation_id = ?`), conversationID)
	if err := row.Scan(&last); err != nil {
		return chat.Message{}, fmt.Errorf("read last seq: %w", err)
	}

	msg := chat.Message{
		ConversationID: conversationID,
		Seq:            last + 1,
		Role:           role,
		Content:        content,
		CreatedAt:      s.now().UTC().Truncate(time.Microsecond),
	}
	_, err = tx.ExecContext(ctx,
		s.rebind(`INSERT INTO transcript_messages (conversation_id, seq, role, content, created_at_us) VALUES (?, ?, ?, ?, ?)`),
		msg.ConversationID, msg.Seq, string(msg.Role), msg.Content, msg.CreatedAt.UnixMicro(),
	)
	if err != nil {
		return chat.Message{}, fmt.Errorf("insert message: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return chat.Message{}, fmt.Errorf("commit append: %w", err)
	}
	return msg, nil
}

// History returns the conversation in sequence order.
func (s *SQLStore) History(ctx context.Context, conversationID string) ([]chat.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT seq, role, content, created_at_us FROM transcript_messages WHERE conversation_id = ? ORDER BY seq ASC`),
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	messages := make([]chat.Message, 0, 16)
	for rows.Next() {
		var (
			msg  chat.Message
			role string
			us   int64
		)
		if err := rows.Scan(&msg.Seq, &role, &msg.Content, &us); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.ConversationID = conversationID
		msg.Role = chat.Role(role)
		msg.CreatedAt = time.UnixMicro(us).UTC()
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// Delete drops a whole conversation. Administrative only.
func (s *SQLStore) Delete(ctx context.Context, conversationID string) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM transcript_messages WHERE conversation_id = ?`), conversationID); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
