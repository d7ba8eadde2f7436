package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/premierpass/premier-pass/internal/model"
	"github.com/premierpass/premier-pass/internal/utils"
)

// MemoryStore is an in-process record store with the same contract as
// SQLStore.  It backs STORE_DRIVER=memory and the package tests.  Data is
// lost when the process exits.
type MemoryStore struct {
	mu       sync.Mutex
	passes   map[uint64]model.Pass
	users    map[uint64]model.User
	events   []model.AttendanceEvent
	logs     []model.LogEntry
	nextPass uint64
	nextUser uint64
	nextEvt  uint64
	nextLog  uint64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		passes: make(map[uint64]model.Pass),
		users:  make(map[uint64]model.User),
	}
}

// Ping always succeeds.
func (m *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func clonePass(p model.Pass) model.Pass {
	if p.StartTime != nil {
		t := *p.StartTime
		p.StartTime = &t
	}
	if p.EndedAt != nil {
		t := *p.EndedAt
		p.EndedAt = &t
	}
	return p
}

func cloneUser(u model.User) model.User {
	if u.DashPass != nil {
		d := *u.DashPass
		u.DashPass = &d
	}
	return u
}

func (m *MemoryStore) GetPass(ctx context.Context, id uint64) (model.Pass, error) {
	if err := ctx.Err(); err != nil {
		return model.Pass{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.passes[id]
	if !ok {
		return model.Pass{}, ErrNotFound
	}
	return clonePass(p), nil
}

func (m *MemoryStore) FindPasses(ctx context.Context, f model.PassFilter) ([]model.Pass, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Pass
	for _, p := range m.passes {
		if f.Matches(p) {
			out = append(out, clonePass(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QueuedBefore(out[j]) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MemoryStore) CountPasses(ctx context.Context, f model.PassFilter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.passes {
		if f.Matches(p) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) InsertPass(ctx context.Context, p model.Pass) (model.Pass, error) {
	if err := ctx.Err(); err != nil {
		return model.Pass{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextPass++
	p.ID = m.nextPass
	m.passes[p.ID] = clonePass(p)
	return clonePass(p), nil
}

func (m *MemoryStore) UpdatePass(ctx context.Context, id uint64, u model.PassUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.passes[id]
	if !ok || p.Status != u.From {
		return ErrNotFound
	}
	p.Status = u.To
	if u.StartTime != nil {
		t := *u.StartTime
		p.StartTime = &t
	}
	if u.EndedAt != nil {
		t := *u.EndedAt
		p.EndedAt = &t
	}
	m.passes[id] = p
	return nil
}

// CreateUser stores u, hashing password with bcrypt when it is non-empty.
func (m *MemoryStore) CreateUser(ctx context.Context, u model.User, password string, cost int) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if password != "" {
		hash, err := utils.HashPassword(password, cost)
		if err != nil {
			return model.User{}, err
		}
		u.PasswordHash = hash
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.Email != "" {
		for _, existing := range m.users {
			if existing.Email == u.Email {
				return model.User{}, ErrEmailExists
			}
		}
	}
	m.nextUser++
	u.ID = m.nextUser
	m.users[u.ID] = cloneUser(u)
	return cloneUser(u), nil
}

func (m *MemoryStore) GetByEmail(ctx context.Context, email string) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if email != "" && u.Email == email {
			return cloneUser(u), nil
		}
	}
	return model.User{}, ErrNotFound
}

func (m *MemoryStore) GetStudent(ctx context.Context, id uint64) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return cloneUser(u), nil
}

func (m *MemoryStore) FindStudents(ctx context.Context, f model.StudentFilter) ([]model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.User
	for _, u := range m.users {
		if f.Matches(u) {
			out = append(out, cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) SetDashPass(ctx context.Context, id uint64, dashPass *string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || u.Role != model.RoleStudent {
		return ErrNotFound
	}
	u.DashPass = nil
	if dashPass != nil {
		d := *dashPass
		u.DashPass = &d
	}
	m.users[id] = u
	return nil
}

func (m *MemoryStore) FindLatestAttendanceEvent(ctx context.Context, studentID uint64) (*model.AttendanceEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *model.AttendanceEvent
	for i := range m.events {
		ev := m.events[i]
		if ev.StudentID != studentID {
			continue
		}
		if latest == nil || newerEvent(ev, *latest) {
			e := ev
			latest = &e
		}
	}
	return latest, nil
}

func (m *MemoryStore) InsertAttendanceEvent(ctx context.Context, ev model.AttendanceEvent) (model.AttendanceEvent, error) {
	if err := ctx.Err(); err != nil {
		return model.AttendanceEvent{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextEvt++
	ev.ID = m.nextEvt
	m.events = append(m.events, ev)
	return ev, nil
}

func (m *MemoryStore) ListAttendanceEvents(ctx context.Context, f model.EventFilter) ([]model.AttendanceEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AttendanceEvent
	for _, ev := range m.events {
		if f.Matches(ev) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return newerEvent(out[i], out[j]) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// newerEvent orders events by timestamp, then id, descending.
func newerEvent(a, b model.AttendanceEvent) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	return a.ID > b.ID
}

func (m *MemoryStore) InsertLog(ctx context.Context, e model.LogEntry) (model.LogEntry, error) {
	if err := ctx.Err(); err != nil {
		return model.LogEntry{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextLog++
	e.ID = m.nextLog
	m.logs = append(m.logs, e)
	return e, nil
}

func (m *MemoryStore) ListLogs(ctx context.Context, f model.LogFilter) ([]model.LogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.LogEntry
	for _, e := range m.logs {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
