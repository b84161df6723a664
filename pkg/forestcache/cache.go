// Package forestcache stores built forests on disk, keyed by an artifact
// identity such as module@version, so that immutable releases are parsed
// only once.
package forestcache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/emenda-labs/apidelta/core/forest"
)

// Current schema version - increment when the payload format changes.
const schemaVersion uint16 = 1

// Cache is a directory of msgpack encoded forests. A nil *Cache is valid
// and never hits. Thread-safe for concurrent access.
type Cache struct {
	mu  sync.RWMutex
	dir string
}

type payload struct {
	Schema   uint16
	Dialect  string
	Label    string
	Elements []record
}

// record is one element in arena order. Parents always precede their
// children, so replaying records through a Builder restores the ids.
type record struct {
	Kind      uint8
	Name      string
	Parent    uint32
	Modifiers uint16

	Type       *forest.TypeInfo       `msgpack:",omitempty"`
	Method     *forest.MethodInfo     `msgpack:",omitempty"`
	Field      *forest.FieldInfo      `msgpack:",omitempty"`
	Parameter  *forest.ParameterInfo  `msgpack:",omitempty"`
	Annotation *forest.AnnotationInfo `msgpack:",omitempty"`
}

// Open returns a cache rooted at dir, creating it if needed.
func Open(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &Cache{dir: dir}, nil
}

// OpenDefault opens the cache under the user cache directory
// ($XDG_CACHE_HOME/<app>/forests or the platform equivalent).
func OpenDefault(app string) (*Cache, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return nil, err
	}
	return Open(filepath.Join(base, app, "forests"))
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	if c == nil {
		return ""
	}
	return c.dir
}

func (c *Cache) pathFor(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+".mp")
}

// Put serializes f under key. The write is atomic.
func (c *Cache) Put(key string, f *forest.Forest) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	tmp, err := os.CreateTemp(c.dir, "tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := msgpack.NewEncoder(tmp).Encode(encode(f)); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding forest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), c.pathFor(key))
}

// Get loads the forest stored under key. ok is false on a miss; entries
// written by another schema version are misses too.
func (c *Cache) Get(key string) (f *forest.Forest, ok bool, err error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	file, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	var p payload
	if err := msgpack.NewDecoder(file).Decode(&p); err != nil {
		return nil, false, fmt.Errorf("decoding cached forest: %w", err)
	}
	if p.Schema != schemaVersion {
		return nil, false, nil
	}
	f, err = decode(&p)
	if err != nil {
		return nil, false, err
	}
	return f, true, nil
}

func encode(f *forest.Forest) *payload {
	p := &payload{
		Schema:   schemaVersion,
		Dialect:  string(f.Dialect()),
		Label:    f.Label(),
		Elements: make([]record, 0, f.Len()),
	}
	for id := forest.ID(1); int(id) <= f.Len(); id++ {
		e := f.Element(id)
		r := record{
			Kind:      uint8(e.Kind),
			Name:      e.Name,
			Parent:    uint32(e.Parent),
			Modifiers: uint16(e.Modifiers),
		}
		switch pl := e.Payload.(type) {
		case *forest.TypeInfo:
			r.Type = pl
		case *forest.MethodInfo:
			r.Method = pl
		case *forest.FieldInfo:
			r.Field = pl
		case *forest.ParameterInfo:
			r.Parameter = pl
		case *forest.AnnotationInfo:
			r.Annotation = pl
		}
		p.Elements = append(p.Elements, r)
	}
	return p
}

func decode(p *payload) (*forest.Forest, error) {
	b := forest.NewBuilder(forest.Dialect(p.Dialect), p.Label)
	for i, r := range p.Elements {
		e := forest.Element{
			Kind:      forest.Kind(r.Kind),
			Name:      r.Name,
			Modifiers: forest.Modifiers(r.Modifiers),
		}
		switch {
		case r.Type != nil:
			e.Payload = r.Type
		case r.Method != nil:
			e.Payload = r.Method
		case r.Field != nil:
			e.Payload = r.Field
		case r.Parameter != nil:
			e.Payload = r.Parameter
		case r.Annotation != nil:
			e.Payload = r.Annotation
		}
		id := b.Add(forest.ID(r.Parent), e)
		if err := b.Err(); err != nil {
			return nil, fmt.Errorf("cached element %d: %w", i+1, err)
		}
		if int(id) != i+1 {
			return nil, fmt.Errorf("cached element %d restored as %d", i+1, id)
		}
	}
	return b.Build()
}
