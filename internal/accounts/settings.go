package accounts

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// SessionSecret returns the key used to sign session tokens. It is generated
// on first use and kept in the settings table.
func (d *Directory) SessionSecret(ctx context.Context) (string, error) {
	// Insert first and read back so concurrent first runs agree on one secret.
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating session secret: %w", err)
	}
	candidate := hex.EncodeToString(buf)

	_, err := d.DB.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES ('session_secret', ?)`,
		candidate,
	)
	if err != nil {
		return "", fmt.Errorf("storing session secret: %w", err)
	}

	var secret string
	err = d.DB.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = 'session_secret'`,
	).Scan(&secret)
	if err != nil {
		return "", fmt.Errorf("querying session secret: %w", err)
	}

	return secret, nil
}
