package serverdb

import (
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
)

// HA1 computes the digest credential hash md5(username:realm:password)
// as defined by RFC 2617. Only this hash is stored; the server never
// keeps plaintext passwords.
func HA1(username, realm, password string) string {
	sum := md5.Sum([]byte(username + ":" + realm + ":" + password))
	return hex.EncodeToString(sum[:])
}

// AddUser creates or replaces a digest account. Re-adding an existing
// username resets its password.
func (db *ServerDB) AddUser(username, realm, password string) error {
	if username == "" || realm == "" {
		return fmt.Errorf("username and realm are required")
	}
	// Digest hashes join the fields with ':'.
	if strings.Contains(username, ":") || strings.Contains(realm, ":") {
		return fmt.Errorf("username and realm must not contain ':'")
	}
	_, err := db.conn.Exec(
		`INSERT OR REPLACE INTO stb_users (username, realm, ha1) VALUES (?, ?, ?)`,
		username, realm, HA1(username, realm, password),
	)
	if err != nil {
		return fmt.Errorf("add user: %w", err)
	}
	return nil
}

// LookupHA1 returns the stored credential hash for a username under a
// realm, or "" if no such account exists.
func (db *ServerDB) LookupHA1(username, realm string) (string, error) {
	var ha1 string
	err := db.conn.QueryRow(
		`SELECT ha1 FROM stb_users WHERE username = ? AND realm = ?`, username, realm,
	).Scan(&ha1)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup user: %w", err)
	}
	return ha1, nil
}

// ListUsers returns all account usernames ordered alphabetically.
func (db *ServerDB) ListUsers() ([]string, error) {
	rows, err := db.conn.Query(`SELECT username FROM stb_users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: iterate: %w", err)
	}
	return users, nil
}
