// Package pairing implements the server side of the Moonlight pairing
// handshake and the persisted named-cert store: this process answers
// getservercert/clientchallenge/serverchallengeresp/clientpairingsecret
// as a client drives the phases.
package pairing

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Permission is a bitfield over the scopes a paired client can exercise.
type Permission uint32

const (
	PermInput Permission = 1 << iota
	PermClipboard
	PermFileTransfer
	PermViewApps
	PermLaunch
	PermServerCmd
	PermViewClientList
	PermChangeClientSettings
	PermAll = PermInput | PermClipboard | PermFileTransfer | PermViewApps |
		PermLaunch | PermServerCmd | PermViewClientList | PermChangeClientSettings
)

// PairedClient is the persisted record of a client that has completed
// pairing. The certificate is the identity; everything else is policy.
type PairedClient struct {
	UUID                   string            `json:"uuid"`
	Name                   string            `json:"name"`
	CertPEM                string            `json:"cert_pem"`
	Perm                   Permission        `json:"perm"`
	DisplayMode            string            `json:"display_mode,omitempty"`
	OutputNameOverride     string            `json:"output_name_override,omitempty"`
	AlwaysUseVirtualDisplay bool             `json:"always_use_virtual_display"`
	VirtualDisplayMode     string            `json:"virtual_display_mode,omitempty"`
	VirtualDisplayLayout   string            `json:"virtual_display_layout,omitempty"`
	Prefer10BitSDR         bool              `json:"prefer_10bit_sdr"`
	EnableLegacyOrdering   bool              `json:"enable_legacy_ordering"`
	AllowClientCommands    bool              `json:"allow_client_commands"`
	HdrProfile             string            `json:"hdr_profile,omitempty"`
	ConfigOverrides        map[string]string `json:"config_overrides,omitempty"`
	DoCmds                 []string          `json:"do_cmds,omitempty"`
	UndoCmds               []string          `json:"undo_cmds,omitempty"`
}

// Has reports whether the client's permission bitfield includes p.
func (c *PairedClient) Has(p Permission) bool { return c.Perm&p == p }

// Store is the JSON-backed, mutex-protected list of paired clients. Every
// mutation replaces the file atomically.
type Store struct {
	mu      sync.RWMutex
	path    string
	clients map[string]*PairedClient // keyed by uuid
}

// NewStore loads (or initializes empty) a Store backed by path.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path, clients: map[string]*PairedClient{}}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read paired clients store: %w", err)
	}
	var list []*PairedClient
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse paired clients store: %w", err)
	}
	for _, c := range list {
		s.clients[c.UUID] = c
	}
	return s, nil
}

// List returns a snapshot of all paired clients.
func (s *Store) List() []*PairedClient {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*PairedClient, 0, len(s.clients))
	for _, c := range s.clients {
		cp := *c
		out = append(out, &cp)
	}
	return out
}

// Get returns the client with the given uuid, if paired.
func (s *Store) Get(id string) (*PairedClient, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[id]
	return c, ok
}

// FindByCert returns the client whose certificate matches certPEM exactly.
func (s *Store) FindByCert(certPEM string) (*PairedClient, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		if c.CertPEM == certPEM {
			return c, true
		}
	}
	return nil, false
}

// Upsert inserts or replaces a client by uuid, assigning one if empty, then
// persists the store.
func (s *Store) Upsert(c *PairedClient) error {
	s.mu.Lock()
	if c.UUID == "" {
		c.UUID = uuid.NewString()
	}
	s.clients[c.UUID] = c
	s.mu.Unlock()
	return s.persist()
}

// Unpair removes a client by uuid and persists the store.
func (s *Store) Unpair(id string) error {
	s.mu.Lock()
	delete(s.clients, id)
	s.mu.Unlock()
	return s.persist()
}

// UnpairAll clears the store.
func (s *Store) UnpairAll() error {
	s.mu.Lock()
	s.clients = map[string]*PairedClient{}
	s.mu.Unlock()
	return s.persist()
}

func (s *Store) persist() error {
	s.mu.RLock()
	list := make([]*PairedClient, 0, len(s.clients))
	for _, c := range s.clients {
		list = append(list, c)
	}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
