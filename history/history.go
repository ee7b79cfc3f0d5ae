// Package history keeps the chat transcript shown by the host application.
//
// The relay itself is stateless; only the front end records what was
// sent and received. Two backends exist:
//   - MemoryStore, the default, bounded by history.limit.
//   - PGStore, a pgx pool used when history.dsn is set, optionally
//     dialled through the SSH bastion.
package history

import (
	"context"
	"net"
	"time"

	"github.com/DachengChen/aibridge/config"
)

// Role of a transcript entry.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleError     = "error"
)

// Status of a user entry while its relay call is in flight.
const (
	StatusSending = "sending"
	StatusSent    = "sent"
	StatusError   = "error"
)

// Entry is one transcript line.
type Entry struct {
	ID        int64
	Role      string
	Content   string
	Status    string
	CreatedAt time.Time
}

// Store persists transcript entries.
type Store interface {
	// Append stores e and returns it with ID and CreatedAt filled in.
	Append(ctx context.Context, e Entry) (Entry, error)
	// UpdateStatus changes the status of entry id.
	UpdateStatus(ctx context.Context, id int64, status string) error
	// Recent returns up to limit entries, oldest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)
	// Clear removes every entry.
	Clear(ctx context.Context) error
	Close()
}

// DialFunc matches (*ssh.Dialer).DialContext.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Open returns the store selected by cfg. dial may be nil.
func Open(ctx context.Context, cfg config.HistoryConfig, dial DialFunc) (Store, error) {
	if cfg.DSN == "" {
		return NewMemoryStore(cfg.Limit), nil
	}
	return OpenPG(ctx, cfg.DSN, cfg.Limit, dial)
}
