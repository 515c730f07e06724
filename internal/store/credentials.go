package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"tda/internal/types"
)

// Key names mirror the browser client's local-storage keys so a session
// exported from one surface is readable by the other.
var (
	bucketAuth     = []byte("auth")
	keyToken       = []byte("tda_auth_token")
	keyUser        = []byte("tda_user")
	keyTokenExpiry = []byte("tda_token_expiry")
	keyDeviceID    = []byte("tda_device_id")
)

// DefaultTokenTTL applies when the backend does not supply an expiry.
const DefaultTokenTTL = 24 * time.Hour

// CredentialStore persists the auth token, user snapshot, and token expiry.
type CredentialStore interface {
	Load() (*Credentials, error)
	Save(creds *Credentials) error
	Clear() error
	DeviceID() (string, error)
	Close() error
}

type Credentials struct {
	Token  string
	User   *types.User
	Expiry time.Time
}

func (c *Credentials) Expired(now time.Time) bool {
	return c == nil || c.Token == "" || (!c.Expiry.IsZero() && !now.Before(c.Expiry))
}

// ExpiresWithin reports whether the token will expire inside the window,
// which drives the proactive background refresh.
func (c *Credentials) ExpiresWithin(now time.Time, window time.Duration) bool {
	if c == nil || c.Token == "" || c.Expiry.IsZero() {
		return false
	}
	return now.Add(window).After(c.Expiry)
}

type boltCredentialStore struct {
	db *bolt.DB
}

func NewCredentialStore(path string) (CredentialStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("credential db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketAuth)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &boltCredentialStore{db: db}, nil
}

func (s *boltCredentialStore) Load() (*Credentials, error) {
	creds := &Credentials{}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAuth)
		if b == nil {
			return nil
		}
		creds.Token = string(b.Get(keyToken))
		if raw := b.Get(keyUser); len(raw) > 0 {
			var user types.User
			if err := json.Unmarshal(raw, &user); err == nil {
				creds.User = &user
			}
		}
		if raw := b.Get(keyTokenExpiry); len(raw) > 0 {
			if at, err := time.Parse(time.RFC3339, string(raw)); err == nil {
				creds.Expiry = at
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return creds, nil
}

func (s *boltCredentialStore) Save(creds *Credentials) error {
	if creds == nil {
		return errors.New("credentials are required")
	}
	userJSON := []byte(nil)
	if creds.User != nil {
		data, err := json.Marshal(creds.User)
		if err != nil {
			return err
		}
		userJSON = data
	}
	expiry := creds.Expiry
	if expiry.IsZero() {
		expiry = time.Now().Add(DefaultTokenTTL)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAuth)
		if err := b.Put(keyToken, []byte(creds.Token)); err != nil {
			return err
		}
		if userJSON != nil {
			if err := b.Put(keyUser, userJSON); err != nil {
				return err
			}
		}
		return b.Put(keyTokenExpiry, []byte(expiry.UTC().Format(time.RFC3339)))
	})
}

func (s *boltCredentialStore) Clear() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAuth)
		for _, key := range [][]byte{keyToken, keyUser, keyTokenExpiry} {
			if err := b.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeviceID returns a stable identifier for this installation, generating and
// persisting one on first use. It survives Clear.
func (s *boltCredentialStore) DeviceID() (string, error) {
	var id string
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAuth)
		if raw := b.Get(keyDeviceID); len(raw) > 0 {
			id = string(raw)
			return nil
		}
		id = uuid.NewString()
		return b.Put(keyDeviceID, []byte(id))
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *boltCredentialStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
