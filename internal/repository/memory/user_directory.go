package memory

import (
	"context"
	"sync"

	"fieldops-notify-be/internal/model"
	"fieldops-notify-be/internal/repository/contract"

	"github.com/google/uuid"
)

// UserDirectory is a map-backed directory for tests and local tooling.
type UserDirectory struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*model.User
}

func NewUserDirectory(users ...*model.User) *UserDirectory {
	d := &UserDirectory{users: make(map[uuid.UUID]*model.User, len(users))}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *UserDirectory) Add(user *model.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[user.ID] = user
}

func (d *UserDirectory) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	if !ok {
		return nil, contract.ErrNotFound
	}
	cp := *u
	return &cp, nil
}
