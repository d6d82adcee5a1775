// Package sqlite is the durable record store for rooms, songs and per-room profiles.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/dkeye/songroom/internal/domain"
)

type Store struct {
	db *sql.DB
}

// Open prepares a SQLite database at path and makes sure the schema exists.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("database path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	log.Info().Str("module", "store.sqlite").Str("path", path).Msg("database ready")
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS rooms (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			admin_id TEXT NOT NULL,
			secret_hash BLOB NOT NULL,
			max_songs_per_user INTEGER NOT NULL,
			songs_per_round INTEGER NOT NULL,
			code TEXT NOT NULL UNIQUE,
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS songs (
			id TEXT PRIMARY KEY,
			room_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			locator TEXT NOT NULL,
			url TEXT NOT NULL,
			file_name TEXT NOT NULL,
			display_name TEXT,
			position INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL,
			FOREIGN KEY(room_id) REFERENCES rooms(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_songs_room_position ON songs(room_id, position);`,
		`CREATE TABLE IF NOT EXISTS profiles (
			room_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			display_name TEXT,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY(room_id, user_id),
			FOREIGN KEY(room_id) REFERENCES rooms(id) ON DELETE CASCADE
		);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) SaveRoom(ctx context.Context, r *domain.Room) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rooms (id, name, admin_id, secret_hash, max_songs_per_user, songs_per_round, code, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.AdminID, r.SecretHash, r.MaxSongsPerUser, r.SongsPerRound, r.Code, r.CreatedAt.UTC())
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: rooms.code") {
		return domain.ErrCodeTaken
	}
	return err
}

func (s *Store) LoadRooms(ctx context.Context) ([]domain.Room, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, admin_id, secret_hash, max_songs_per_user, songs_per_round, code, created_at
		 FROM rooms ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Room
	for rows.Next() {
		var r domain.Room
		if err := rows.Scan(&r.ID, &r.Name, &r.AdminID, &r.SecretHash, &r.MaxSongsPerUser, &r.SongsPerRound, &r.Code, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) InsertSong(ctx context.Context, song domain.Song) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO songs (id, room_id, user_id, locator, url, file_name, display_name, position, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		song.ID, song.RoomID, song.UserID, song.Locator, song.URL, song.FileName,
		nullString(song.DisplayName), song.Position, song.CreatedAt.UTC())
	return err
}

func (s *Store) DeleteSong(ctx context.Context, id domain.SongID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM songs WHERE id = ?`, id)
	return err
}

func (s *Store) LoadSongs(ctx context.Context, room domain.RoomID) ([]domain.Song, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, room_id, user_id, locator, url, file_name, display_name, position, created_at
		 FROM songs WHERE room_id = ? ORDER BY position`, room)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Song
	for rows.Next() {
		var (
			song    domain.Song
			display sql.NullString
		)
		if err := rows.Scan(&song.ID, &song.RoomID, &song.UserID, &song.Locator, &song.URL, &song.FileName,
			&display, &song.Position, &song.CreatedAt); err != nil {
			return nil, err
		}
		song.DisplayName = display.String
		out = append(out, song)
	}
	return out, rows.Err()
}

// UpsertProfile records that a user is admitted to a room. An empty display
// name keeps the stored one.
func (s *Store) UpsertProfile(ctx context.Context, p domain.Profile) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (room_id, user_id, display_name, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(room_id, user_id) DO UPDATE SET
		   display_name = COALESCE(excluded.display_name, profiles.display_name),
		   updated_at = excluded.updated_at`,
		p.RoomID, p.ID, nullString(p.DisplayName), time.Now().UTC())
	return err
}

func (s *Store) LoadProfiles(ctx context.Context, room domain.RoomID) ([]domain.Profile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT room_id, user_id, display_name FROM profiles WHERE room_id = ? ORDER BY updated_at`, room)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Profile
	for rows.Next() {
		var (
			p       domain.Profile
			display sql.NullString
		)
		if err := rows.Scan(&p.RoomID, &p.ID, &display); err != nil {
			return nil, err
		}
		p.DisplayName = display.String
		out = append(out, p)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
