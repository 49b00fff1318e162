package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/cbodonnell/cardstage/pkg/game/turn"
)

// SessionInfo is the public status of a session.
type SessionInfo struct {
	ID           string     `json:"id"`
	Stage        string     `json:"stage"`
	Participants uint32     `json:"participants"`
	Connected    []uint32   `json:"connected"`
	Turn         *turn.Turn `json:"turn,omitempty"`
	Result       string     `json:"result,omitempty"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Registry is the directory of known sessions.
type Registry interface {
	Put(ctx context.Context, info SessionInfo) error
	Get(ctx context.Context, id string) (SessionInfo, error)
	List(ctx context.Context) ([]SessionInfo, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

type ErrNotFound struct {
	ID string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("session %s not found", e.ID)
}

func IsNotFound(err error) bool {
	_, ok := err.(*ErrNotFound)
	return ok
}
