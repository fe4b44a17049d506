package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Olivier619/PhotoOrganizer/internal/infra/fsx"
)

// Store 提供 <dest>/cache/digests.json 的摘要缓存读写。
// 缓存键包含 size 与 mtime：文件一旦被改写，旧条目自动失效。
//
// 约束：
// - dry-run：只允许读（ReadOnly=true），Flush 返回 ErrReadOnly
// - apply：允许写回
// - 缓存纯属优化；损坏/缺失的缓存被整体忽略，不影响正确性
type Store struct {
	Root     string // <dest>（归档根目录）
	ReadOnly bool

	mu      sync.Mutex
	entries map[string]string
	dirty   bool
}

var ErrReadOnly = errors.New("cache: read-only")

func New(root string, readOnly bool) *Store {
	return &Store{
		Root:     filepath.Clean(strings.TrimSpace(root)),
		ReadOnly: readOnly,
		entries:  map[string]string{},
	}
}

// Path 返回缓存文件的绝对路径。
func (s *Store) Path() string {
	return filepath.Join(s.Root, "cache", "digests.json")
}

// Load 读取缓存文件（best-effort）。文件不存在或 JSON 损坏都静默忽略。
func (s *Store) Load() {
	b, err := os.ReadFile(s.Path())
	if err != nil {
		return
	}
	m := map[string]string{}
	if err := json.Unmarshal(b, &m); err != nil {
		// 坏缓存：忽略，重新计算（apply 时写回新缓存）。
		return
	}

	s.mu.Lock()
	s.entries = m
	s.mu.Unlock()
}

// Get 查询缓存的摘要。可被多个 hash worker 并发调用。
func (s *Store) Get(abs string, size, modUnix int64) (string, bool) {
	k := key(abs, size, modUnix)
	s.mu.Lock()
	d, ok := s.entries[k]
	s.mu.Unlock()
	return d, ok
}

// Put 记录一条摘要。可被多个 hash worker 并发调用。
func (s *Store) Put(abs string, size, modUnix int64, digest string) {
	k := key(abs, size, modUnix)
	s.mu.Lock()
	if s.entries[k] != digest {
		s.entries[k] = digest
		s.dirty = true
	}
	s.mu.Unlock()
}

// Flush 把缓存原子写回磁盘。只读模式返回 ErrReadOnly；无变更时不落盘。
func (s *Store) Flush() error {
	if s.ReadOnly {
		return ErrReadOnly
	}

	s.mu.Lock()
	dirty := s.dirty
	b, err := json.MarshalIndent(s.entries, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if !dirty {
		return nil
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomicReplace(filepath.Join(s.Root, "cache"), "digests.json", b)
}

func key(abs string, size, modUnix int64) string {
	return fmt.Sprintf("%s|%d|%d", abs, size, modUnix)
}
