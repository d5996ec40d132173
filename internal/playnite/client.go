package playnite

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// typeProbe extracts just the discriminator from a newline-delimited JSON
// message exchanged with the Sunshine.PlayniteExtension plugin over the
// named pipe; every message kind carries its fields flat at the top level
// rather than nested under a "data" key.
type typeProbe struct {
	Type string `json:"type"`
}

type categoriesMsg struct {
	Categories []string `json:"categories"`
}

type pluginsMsg struct {
	Plugins []Plugin `json:"plugins"`
}

type gamesMsg struct {
	NewSnapshot bool   `json:"new_snapshot"`
	Games       []Game `json:"games"`
}

// statusMsg is the `status` message's flat shape: Name is
// "gameStarted" or "gameStopped".
type statusMsg struct {
	Name       string `json:"name"`
	ID         string `json:"id"`
	Exe        string `json:"exe"`
	InstallDir string `json:"install_dir"`
}

// Snapshot is the accumulated plugin-reported state the sync reconciler
// reads from.
type Snapshot struct {
	Categories []string
	Plugins    []Plugin
	Games      []Game
}

// GameEvent is delivered on gameStarted/gameStopped transitions, after the
// session-guard logic in handleStatus has filtered spurious ones.
type GameEvent struct {
	GameID  string
	Started bool
}

// Client maintains the Playnite plugin IPC connection: its hello always
// carries role "sunshine", including when the launcher child runs it; it
// probes reconnection every 2s when disconnected and hands parsed
// snapshots/events to the caller.
type Client struct {
	dial func() (net.Conn, error)
	log  zerolog.Logger

	mu       sync.Mutex
	snapshot Snapshot
	events   chan GameEvent

	// session-stop guard state.
	lastStartedID string
	lastStartedAt time.Time
	sawStart      bool

	// games-batch accumulation state.
	seenGameIDs map[string]bool

	pluginInstalled bool
}

const (
	reconnectInterval = 2 * time.Second
	stopGuardWindow   = 2 * time.Second
)

// NewClient builds a client using the platform pipe dialer.
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		dial:        dialPlayniteExtensionPipe,
		log:         log,
		events:      make(chan GameEvent, 16),
		seenGameIDs: map[string]bool{},
	}
}

// Events returns the channel of filtered game start/stop transitions.
func (c *Client) Events() <-chan GameEvent { return c.events }

// Snapshot returns a copy of the last-known plugin state.
func (c *Client) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// Run connects and reconnects until ctx is cancelled, feeding parsed
// messages into the client's snapshot/events. Each connection attempt that
// fails waits reconnectInterval before retrying, matching the plugin's
// always-on supervisor thread. A background watcher gates connection
// attempts on the plugin actually being installed on disk, starting and
// stopping the client as the extension directory appears and disappears.
func (c *Client) Run(ctx context.Context) {
	go c.watchPluginInstall(ctx)
	for {
		if ctx.Err() != nil {
			return
		}
		if !c.isPluginInstalled() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectInterval):
			}
			continue
		}
		conn, err := c.dial()
		if err != nil {
			c.log.Debug().Err(err).Msg("playnite: pipe not available")
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectInterval):
			}
			continue
		}
		c.serve(ctx, conn)
	}
}

func (c *Client) serve(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	defer c.resetSnapshot()
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer close(done)

	fmt.Fprintf(conn, `{"type":"hello","role":"sunshine","pid":%d}`+"\n", os.Getpid())

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		c.handle(scanner.Bytes())
	}
}

// resetSnapshot clears the accumulated snapshot and dedupe state on
// disconnect.
func (c *Client) resetSnapshot() {
	c.mu.Lock()
	c.snapshot = Snapshot{}
	c.seenGameIDs = map[string]bool{}
	c.mu.Unlock()
}

func (c *Client) handle(raw []byte) {
	var probe typeProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		c.log.Warn().Err(err).Msg("playnite: malformed message")
		return
	}
	switch probe.Type {
	case "categories":
		var m categoriesMsg
		if json.Unmarshal(raw, &m) == nil {
			c.mu.Lock()
			c.snapshot.Categories = m.Categories
			c.mu.Unlock()
		}
	case "plugins":
		var m pluginsMsg
		if json.Unmarshal(raw, &m) == nil {
			c.mu.Lock()
			c.snapshot.Plugins = m.Plugins
			c.mu.Unlock()
		}
	case "games":
		var m gamesMsg
		if json.Unmarshal(raw, &m) == nil {
			c.handleGames(m)
		}
	case "status":
		var m statusMsg
		if json.Unmarshal(raw, &m) == nil {
			c.handleStatus(m)
		}
	}
}

// handleGames accumulates a games batch into the snapshot: a new_snapshot
// batch resets accumulation, every subsequent batch appends deduped by id.
func (c *Client) handleGames(m gamesMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m.NewSnapshot {
		c.snapshot.Games = nil
		c.seenGameIDs = map[string]bool{}
	}
	for _, g := range m.Games {
		if c.seenGameIDs[g.ID] {
			continue
		}
		c.seenGameIDs[g.ID] = true
		c.snapshot.Games = append(c.snapshot.Games, g)
	}
}

// handleStatus applies the gameStarted/gameStopped session guard: a
// gameStopped is only forwarded when its id matches (or either id is
// empty), a prior gameStarted was observed, and it arrives outside the
// 2-second post-launch guard window.
func (c *Client) handleStatus(m statusMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch m.Name {
	case "gameStarted":
		c.lastStartedID = m.ID
		c.lastStartedAt = time.Now()
		c.sawStart = true
		c.emit(GameEvent{GameID: m.ID, Started: true})
	case "gameStopped":
		idMatches := m.ID == "" || c.lastStartedID == "" || m.ID == c.lastStartedID
		if !idMatches || !c.sawStart {
			return
		}
		if time.Since(c.lastStartedAt) < stopGuardWindow {
			return
		}
		c.sawStart = false
		c.emit(GameEvent{GameID: m.ID, Started: false})
	}
}

// watchPluginInstall gates connection attempts on the Sunshine Playnite
// extension actually being present under %LocalAppData%\Playnite\Extensions,
// using fsnotify on the parent Extensions directory so install/uninstall is
// detected without polling the filesystem. On platforms with no
// extension directory (non-Windows), the gate is left permanently open and
// dial failures alone govern connectivity, as before.
func (c *Client) watchPluginInstall(ctx context.Context) {
	dir := pluginExtensionDir()
	if dir == "" {
		c.setPluginInstalled(true)
		return
	}
	c.setPluginInstalled(dirExists(dir))

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		c.log.Warn().Err(err).Msg("playnite: fsnotify unavailable, falling back to dial probing")
		c.setPluginInstalled(true)
		return
	}
	defer watcher.Close()

	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		c.log.Warn().Err(err).Msg("playnite: cannot create extensions directory for watching")
	}
	if err := watcher.Add(parent); err != nil {
		c.log.Warn().Err(err).Msg("playnite: cannot watch extensions directory")
		c.setPluginInstalled(true)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(dir) {
				continue
			}
			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				c.log.Info().Msg("playnite: plugin install detected")
				c.setPluginInstalled(true)
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				c.log.Info().Msg("playnite: plugin uninstall detected")
				c.setPluginInstalled(false)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			c.log.Warn().Err(err).Msg("playnite: fsnotify error")
		}
	}
}

func (c *Client) setPluginInstalled(v bool) {
	c.mu.Lock()
	c.pluginInstalled = v
	c.mu.Unlock()
}

func (c *Client) isPluginInstalled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pluginInstalled
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (c *Client) emit(ev GameEvent) {
	select {
	case c.events <- ev:
	default:
		c.log.Warn().Msg("playnite: event channel full, dropping")
	}
}
