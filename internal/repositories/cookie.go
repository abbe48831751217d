package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/qbsync/internal/browser"
	"github.com/desertthunder/qbsync/internal/shared"
)

// CookieRepository keeps the browser session in SQLite. It implements browser.CookieStore.
//
// A save replaces the whole session, so cookies the site dropped do not linger.
type CookieRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewCookieRepository creates a new CookieRepository with the given database connection
func NewCookieRepository(db *sql.DB) *CookieRepository {
	return &CookieRepository{db: db, now: time.Now}
}

// Load returns the unexpired cookies, or [shared.ErrNoCookies] when there are none.
func (r *CookieRepository) Load(ctx context.Context) ([]browser.Cookie, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, value, domain, path, expires, http_only, secure, same_site
		FROM browser_cookies
		ORDER BY domain, path, name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cookies: %w", err)
	}
	defer rows.Close()

	var cookies []browser.Cookie
	for rows.Next() {
		var c browser.Cookie
		if err := rows.Scan(&c.Name, &c.Value, &c.Domain, &c.Path, &c.Expires, &c.HTTPOnly, &c.Secure, &c.SameSite); err != nil {
			return nil, fmt.Errorf("failed to scan cookie: %w", err)
		}
		cookies = append(cookies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	live := browser.Live(cookies, r.now())
	if len(live) == 0 {
		return nil, shared.ErrNoCookies
	}
	return live, nil
}

// Save replaces the stored session with cookies.
func (r *CookieRepository) Save(ctx context.Context, cookies []browser.Cookie) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM browser_cookies`); err != nil {
		return fmt.Errorf("failed to clear cookies: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO browser_cookies (name, domain, path, value, expires, http_only, secure, same_site, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare cookie insert: %w", err)
	}
	defer stmt.Close()

	now := r.now()
	for _, c := range cookies {
		path := c.Path
		if path == "" {
			path = "/"
		}
		if _, err := stmt.ExecContext(ctx, c.Name, c.Domain, path, c.Value, c.Expires, c.HTTPOnly, c.Secure, c.SameSite, now); err != nil {
			return fmt.Errorf("failed to save cookie %s: %w", c.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cookies: %w", err)
	}
	return nil
}

// Clear forgets the stored session.
func (r *CookieRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM browser_cookies`); err != nil {
		return fmt.Errorf("failed to clear cookies: %w", err)
	}
	return nil
}
