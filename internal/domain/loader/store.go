package loader

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cespare/xxhash/v2"
	"github.com/charlievieth/fastwalk"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/shared/abi"
)

// Format is the encoding of a program manifest.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

// DefaultPattern selects manifest files in a program directory.
const DefaultPattern = "**/*.{yaml,yml,toml,json,yaml.zst,yml.zst,toml.zst,json.zst}"

// Image is a raw program file as fetched from a store.
type Image struct {
	Path       string
	Format     Format
	Compressed bool
	Data       []byte
}

// Digest identifies the image's stored bytes.
func (img *Image) Digest() uint64 {
	return xxhash.Sum64(img.Data)
}

// Store resolves program paths to images.
type Store interface {
	Open(path string) (*Image, error)
}

// MemStore keeps images in memory.
type MemStore struct {
	mu     sync.RWMutex
	images map[string]*Image
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{images: make(map[string]*Image)}
}

// Install registers data under path, replacing any earlier image.
func (s *MemStore) Install(path string, format Format, data []byte) {
	s.InstallImage(&Image{Path: path, Format: format, Data: data})
}

// InstallImage registers a prepared image.
func (s *MemStore) InstallImage(img *Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[img.Path] = img
}

// Open implements Store.
func (s *MemStore) Open(path string) (*Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	img, ok := s.images[path]
	if !ok {
		return nil, fmt.Errorf("loader: %s: %w", path, abi.ENOENT)
	}
	return img, nil
}

// Paths lists the installed program paths.
func (s *MemStore) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.images))
	for p := range s.images {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// DirStore serves manifests found under a host directory. A manifest at
// bin/true.yaml is the program /bin/true.
type DirStore struct {
	root    string
	pattern string
	files   map[string]string
}

// NewDirStore indexes root, keeping files whose slash-separated relative
// path matches pattern.
func NewDirStore(ctx context.Context, root, pattern string) (*DirStore, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("loader: bad program pattern %q", pattern)
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	var (
		mu     sync.Mutex
		dupErr error
	)
	files := make(map[string]string)
	conf := fastwalk.Config{Follow: false}
	err = fastwalk.Walk(&conf, root, func(p string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil || d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if ok, _ := doublestar.Match(pattern, rel); !ok {
			return nil
		}
		prog, _, _, ok := programPath(rel)
		if !ok {
			return nil
		}

		mu.Lock()
		defer mu.Unlock()
		if prev, dup := files[prog]; dup {
			if dupErr == nil {
				a, b := prev, p
				if b < a {
					a, b = b, a
				}
				dupErr = fmt.Errorf("loader: %s provided by both %s and %s", prog, a, b)
			}
			return nil
		}
		files[prog] = p
		return nil
	})
	if err == nil {
		err = ctx.Err()
	}
	if err == nil {
		err = dupErr
	}
	if err != nil {
		return nil, fmt.Errorf("loader: index %s: %w", root, err)
	}
	return &DirStore{root: root, pattern: pattern, files: files}, nil
}

// programPath maps a manifest's relative file name to its program path.
func programPath(rel string) (prog string, format Format, compressed, ok bool) {
	name := rel
	if strings.HasSuffix(name, ".zst") {
		compressed = true
		name = strings.TrimSuffix(name, ".zst")
	}
	switch path.Ext(name) {
	case ".yaml", ".yml":
		format = FormatYAML
	case ".toml":
		format = FormatTOML
	case ".json":
		format = FormatJSON
	default:
		return "", "", false, false
	}
	return "/" + strings.TrimSuffix(name, path.Ext(name)), format, compressed, true
}

// Open implements Store.
func (s *DirStore) Open(prog string) (*Image, error) {
	file, ok := s.files[prog]
	if !ok {
		return nil, fmt.Errorf("loader: %s: %w", prog, abi.ENOENT)
	}
	rel, _ := filepath.Rel(s.root, file)
	_, format, compressed, _ := programPath(filepath.ToSlash(rel))

	data, err := os.ReadFile(file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("loader: %s: %w", prog, abi.ENOENT)
		}
		return nil, fmt.Errorf("loader: read %s: %v: %w", file, err, abi.ENOEXEC)
	}
	return &Image{Path: prog, Format: format, Compressed: compressed, Data: data}, nil
}

// Paths lists the indexed program paths.
func (s *DirStore) Paths() []string {
	out := make([]string, 0, len(s.files))
	for p := range s.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Root returns the indexed directory.
func (s *DirStore) Root() string {
	return s.root
}
