// Package memory is the in-process store adapter: the default backend
// for local development and the substitute used by engine tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"lofawell/internal/core"
)

type Store struct {
	mu       sync.Mutex
	apps     map[string]core.Application
	users    map[string]core.User
	settings map[string]string
	policies []policyRevision
}

type policyRevision struct {
	version  string
	document []byte
}

func New() *Store {
	return &Store{
		apps:     make(map[string]core.Application),
		users:    make(map[string]core.User),
		settings: make(map[string]string),
	}
}

func (s *Store) Get(_ context.Context, id string) (core.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok {
		return core.Application{}, core.ErrNotFound
	}
	return app, nil
}

func (s *Store) Put(_ context.Context, app core.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apps[app.ID] = app
	return nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.apps, id)
	return nil
}

func (s *Store) ListByUser(_ context.Context, userID string) ([]core.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Application
	for _, app := range s.apps {
		if app.UserID == userID {
			out = append(out, app)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *Store) ListAll(_ context.Context) ([]core.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Application, 0, len(s.apps))
	for _, app := range s.apps {
		out = append(out, app)
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *Store) GetUser(_ context.Context, id string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, core.ErrNotFound
	}
	return u, nil
}

func (s *Store) PutUser(_ context.Context, u core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

func (s *Store) Announcement(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings["announcement"], nil
}

func (s *Store) SetAnnouncement(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings["announcement"] = text
	return nil
}

func (s *Store) SavePolicyRevision(_ context.Context, version string, document []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies = append(s.policies, policyRevision{version: version, document: append([]byte(nil), document...)})
	return nil
}

func (s *Store) LatestPolicyRevision(_ context.Context) (string, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.policies) == 0 {
		return "", nil, core.ErrNotFound
	}
	last := s.policies[len(s.policies)-1]
	return last.version, append([]byte(nil), last.document...), nil
}

func sortNewestFirst(apps []core.Application) {
	sort.Slice(apps, func(i, j int) bool {
		return apps[i].SubmittedAt.After(apps[j].SubmittedAt)
	})
}
