// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package loopback

import (
	"sync"
	"sync/atomic"

	"github.com/ManuGH/lobbyd/internal/lobby/model"
	"github.com/ManuGH/lobbyd/internal/lobby/ports"
)

// Provisioner hands out a fixed game server address.
type Provisioner struct {
	Address string
	// Err, when set, fails every request.
	Err error

	next     atomic.Uint32
	mu       sync.Mutex
	released []model.SessionID
}

var _ ports.Provisioner = (*Provisioner)(nil)

func (p *Provisioner) Request(id model.SessionID, done ports.Callback) (model.TaskID, error) {
	task := model.TaskID(p.next.Add(1))
	c := ports.Completion{Task: task, Session: id, Address: p.Address, Err: p.Err}
	if p.Err != nil {
		c.Address = ""
	}
	done(c)
	return task, nil
}

func (p *Provisioner) Release(id model.SessionID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released = append(p.released, id)
}

// Released lists the sessions whose server was released.
func (p *Provisioner) Released() []model.SessionID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.SessionID(nil), p.released...)
}
