// Package detect works out which multiplexer session a process runs in by
// walking its ancestry.
package detect

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/agentvoice/internal/domain"
)

const (
	DefaultTTL = 60 * time.Second
	maxDepth   = 64
)

type cacheEntry struct {
	session domain.SessionName
	found   bool
	at      time.Time
}

// Detector resolves caller pids to session names. Results, including
// misses, are cached per pid for ttl.
type Detector struct {
	table ProcessTable
	ttl   time.Duration
	now   func() time.Time

	mu    sync.Mutex
	cache map[int]cacheEntry
}

func New(table ProcessTable, ttl time.Duration) *Detector {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Detector{
		table: table,
		ttl:   ttl,
		now:   time.Now,
		cache: make(map[int]cacheEntry),
	}
}

// Resolve returns the session that owns pid, or false when pid is not
// running under the multiplexer or its ancestry could not be read.
func (d *Detector) Resolve(pid int) (domain.SessionName, bool) {
	now := d.now()

	d.mu.Lock()
	if e, ok := d.cache[pid]; ok && now.Sub(e.at) < d.ttl {
		d.mu.Unlock()
		return e.session, e.found
	}
	d.mu.Unlock()

	session, found := d.walk(pid)

	d.mu.Lock()
	defer d.mu.Unlock()
	for k, e := range d.cache {
		if now.Sub(e.at) >= d.ttl {
			delete(d.cache, k)
		}
	}
	d.cache[pid] = cacheEntry{session: session, found: found, at: now}
	return session, found
}

func (d *Detector) walk(pid int) (domain.SessionName, bool) {
	for depth := 0; depth < maxDepth && pid > 1; depth++ {
		p, err := d.inspect(pid)
		if err != nil {
			log.Debug().Err(err).Str("module", "detect").Int("pid", pid).Msg("ancestry walk stopped")
			return "", false
		}
		if isHost(p) {
			if name, ok := sessionOf(p); ok {
				return domain.SessionName(name), true
			}
			// Unnamed host, e.g. a nested multiplexer; an outer one may
			// still name the session.
			log.Debug().Str("module", "detect").Int("pid", pid).Msg("host process carries no session name")
		}
		if p.PPID == pid {
			break
		}
		pid = p.PPID
	}
	return "", false
}

// inspect reads one ancestor. A misbehaving table implementation is
// contained here so the walk always ends with a plain miss.
func (d *Detector) inspect(pid int) (p Process, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errPanicked
		}
	}()
	return d.table.Lookup(pid)
}
