package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/chorus-social/chorus/core"
)

// Sentinel errors surfaced by the store. The gateway turns these into
// result payloads the model can react to.
var (
	ErrNotFound        = errors.New("not found")
	ErrHandleTaken     = errors.New("handle already taken")
	ErrNotRecipient    = errors.New("only the recipient can mark a message as read")
	ErrNoActiveSession = errors.New("no active session")
)

// Store is the persistence boundary for the runtime. Everything the
// gateway, session manager and cascade need goes through here.
type Store interface {
	// Generic operations
	Put(key string, value []byte) error
	Get(key string) ([]byte, error)
	Delete(key string) error
	GetByPrefix(prefix string) (map[string][]byte, error)
	PutObject(key string, obj interface{}) error
	GetObject(key string, obj interface{}) error

	// Personas and users
	CreatePersona(p *core.Persona) error
	GetPersona(handle string) (*core.Persona, error)
	GetPersonaByID(id string) (*core.Persona, error)
	ListPersonas() ([]*core.Persona, error)
	GetReviewer() (*core.Persona, error)
	UpdatePersona(p *core.Persona) error
	TouchPersona(handle string) error
	CreateUser(u *core.User) error
	GetUser(handle string) (*core.User, error)
	GetUserByID(id string) (*core.User, error)

	// Posts
	CreatePost(p *core.Post) error
	GetPost(id string) (*core.Post, error)
	GetReplies(postID string) ([]*core.Post, error)
	GetThreadPosts(rootID string) ([]*core.Post, error)
	GetFeed(q FeedQuery) ([]*core.Post, error)
	GetPostsByAuthor(t core.AuthorType, authorID string, limit int) ([]*core.Post, error)
	ScorePost(id string, score int, categories []string, reasoning, scoredBy string) error
	SearchPosts(query string, minScore *int, limit int) ([]*core.Post, error)

	// Sessions
	GetActiveSession(handle string) (*core.Session, error)
	SaveSession(s *core.Session) error

	// Messages
	CreateMessage(m *core.Message) error
	GetMessage(id string) (*core.Message, error)
	GetMessagesFor(handle string, limit int) ([]*core.Message, error)
	GetUnreadMessages(handle string, limit int) ([]*core.Message, error)
	GetConversation(conversationID string, limit int) ([]*core.Message, error)
	GetConversations(handle string) ([]*core.ConversationSummary, error)
	MarkMessageRead(id, handle string) (*core.Message, error)

	// Memory fragments
	CreateFragment(f *core.Fragment) error
	GetFragments(handle string, ft core.FragmentType, limit int) ([]*core.Fragment, error)
	RecordFragmentAccess(handle, id string) error
	DecayFragments(handle string, factor, floor float64) (int, error)
	CleanupFragments(handle string, maxFragments int) (int, error)

	// Activity log
	AppendActivity(e *core.ActivityEntry) error
	GetActivity(limit int) ([]*core.ActivityEntry, error)

	// Management operations
	Close() error
	RunGC() error
}

// DBMetrics counts store operations with atomic counters.
type DBMetrics struct {
	PutCount         int64
	GetCount         int64
	DeleteCount      int64
	GetByPrefixCount int64
	Errors           int64
}

// DBStorage is the BadgerDB-backed Store.
type DBStorage struct {
	db      *badger.DB
	mu      sync.Mutex
	config  BadgerDBConfig
	metrics DBMetrics
}

var (
	// Map of data dir -> DBStorage
	instances = make(map[string]*DBStorage)
	mu        sync.RWMutex
)

// GetDBStorage returns the DB instance rooted at dataDir.
func GetDBStorage(dataDir string) (*DBStorage, error) {
	return GetDBStorageWithConfig(DefaultConfig(dataDir))
}

// GetDBStorageWithConfig returns a DB instance with custom configuration.
func GetDBStorageWithConfig(config BadgerDBConfig) (*DBStorage, error) {
	mu.RLock()
	instance, exists := instances[config.DataDir]
	mu.RUnlock()

	if exists {
		return instance, nil
	}

	mu.Lock()
	defer mu.Unlock()

	// Check again in case another goroutine created it while we were waiting
	instance, exists = instances[config.DataDir]
	if exists {
		return instance, nil
	}

	dbPath := filepath.Join(config.DataDir, "badgerdb")
	instance, err := newDBStorage(dbPath, config)
	if err != nil {
		return nil, err
	}

	instances[config.DataDir] = instance

	if config.GCInterval > 0 {
		go instance.startGCRoutine(time.Duration(config.GCInterval) * time.Second)
	}

	return instance, nil
}

// NewInMemory opens a throwaway in-memory store, used by tests.
func NewInMemory() (*DBStorage, error) {
	config := DefaultConfig("")
	config.InMemory = true
	config.SyncWrites = false
	config.GCInterval = 0
	return newDBStorage("", config)
}

func newDBStorage(dbPath string, config BadgerDBConfig) (*DBStorage, error) {
	opts := badger.DefaultOptions(dbPath)
	if config.DisableLogging {
		opts.Logger = nil
	}
	opts.InMemory = config.InMemory
	opts.SyncWrites = config.SyncWrites

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %v", err)
	}

	return &DBStorage{
		db:     db,
		config: config,
	}, nil
}

func (s *DBStorage) startGCRoutine(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		if err := s.RunGC(); err != nil {
			log.Printf("BadgerDB GC failed: %v", err)
		}
	}
}

func (s *DBStorage) logOperation(op string, key string, err error) {
	if err != nil {
		log.Printf("BadgerDB %s operation failed for key %s: %v", op, key, err)
		atomic.AddInt64(&s.metrics.Errors, 1)
	}
}

// Close closes the BadgerDB database.
func (s *DBStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// CloseAll closes all BadgerDB instances.
func CloseAll() {
	mu.Lock()
	defer mu.Unlock()

	for _, instance := range instances {
		instance.Close()
	}
	instances = make(map[string]*DBStorage)
}

// Put stores a key-value pair in the database.
func (s *DBStorage) Put(key string, value []byte) error {
	atomic.AddInt64(&s.metrics.PutCount, 1)
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	s.logOperation("put", key, err)
	return err
}

// Get retrieves a value from the database by key. A missing key
// returns ErrNotFound.
func (s *DBStorage) Get(key string) ([]byte, error) {
	atomic.AddInt64(&s.metrics.GetCount, 1)

	var valCopy []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrNotFound
			}
			return err
		}

		return item.Value(func(val []byte) error {
			valCopy = append([]byte{}, val...)
			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return valCopy, nil
}

// Delete removes a key-value pair from the database.
func (s *DBStorage) Delete(key string) error {
	atomic.AddInt64(&s.metrics.DeleteCount, 1)
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	s.logOperation("delete", key, err)
	return err
}

// GetByPrefix retrieves all key-value pairs with a given prefix.
func (s *DBStorage) GetByPrefix(prefix string) (map[string][]byte, error) {
	atomic.AddInt64(&s.metrics.GetByPrefixCount, 1)

	result := make(map[string][]byte)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefixBytes := []byte(prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			k := item.Key()
			err := item.Value(func(v []byte) error {
				// Copy the key and value since they are only valid during this transaction
				keyCopy := append([]byte{}, k...)
				valCopy := append([]byte{}, v...)
				result[string(keyCopy)] = valCopy
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to get values by prefix: %v", err)
	}

	return result, nil
}

// PutObject serializes and stores an object in the database.
func (s *DBStorage) PutObject(key string, obj interface{}) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("failed to marshal object: %v", err)
	}

	return s.Put(key, data)
}

// GetObject retrieves and deserializes an object from the database.
func (s *DBStorage) GetObject(key string, obj interface{}) error {
	data, err := s.Get(key)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, obj); err != nil {
		return fmt.Errorf("failed to unmarshal object: %v", err)
	}

	return nil
}

// RunGC runs garbage collection on the database.
func (s *DBStorage) RunGC() error {
	if s.config.InMemory {
		return nil
	}
	return s.db.RunValueLogGC(0.5) // Clean up if at least 50% can be discarded
}

// unmarshalAll decodes every value under prefix into T.
func unmarshalAll[T any](s *DBStorage, prefix string) ([]*T, error) {
	raw, err := s.GetByPrefix(prefix)
	if err != nil {
		return nil, err
	}

	out := make([]*T, 0, len(raw))
	for key, data := range raw {
		obj := new(T)
		if err := json.Unmarshal(data, obj); err != nil {
			log.Printf("Failed to unmarshal value at %s: %v", key, err)
			continue
		}
		out = append(out, obj)
	}
	return out, nil
}
