// Package session keeps the backend's login cookie between CLI runs.
package session

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

var (
	// ErrNoSession means nobody is logged in.
	ErrNoSession = errors.New("not logged in")
	// ErrLocked means the session file is sealed and no passphrase was given.
	ErrLocked = errors.New("session file is sealed; set VULNLIB_SESSION_KEY")
	// ErrBadKey means the passphrase does not open the session file.
	ErrBadKey = errors.New("session passphrase does not match")
	// ErrOtherServer means the saved session was made against another server.
	ErrOtherServer = errors.New("saved session belongs to another server")
)

const (
	fileVersion = 1
	saltSize    = 16
	keySize     = 32
	nonceSize   = 24

	// scrypt cost parameters.
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// Cookie is the part of an http.Cookie worth keeping on disk.
type Cookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Expires time.Time `json:"expires,omitempty"`
}

// Session is the logged-in user and their cookies for one server.
type Session struct {
	Server   string    `json:"server"`
	UserID   string    `json:"user_id,omitempty"`
	Username string    `json:"username"`
	Role     string    `json:"role,omitempty"`
	Cookies  []Cookie  `json:"cookies"`
	SavedAt  time.Time `json:"saved_at"`
}

// HasRole reports whether the user has exactly the given role. A nil
// session has no role.
func (s *Session) HasRole(role string) bool {
	return s != nil && s.Role != "" && s.Role == role
}

// LoggedIn reports whether the session carries a cookie.
func (s *Session) LoggedIn() bool {
	return s != nil && len(s.Cookies) > 0
}

// Capture records the cookies jar holds for server.
func (s *Session) Capture(jar http.CookieJar, server *url.URL) {
	s.Server = server.String()
	s.Cookies = s.Cookies[:0]
	for _, c := range jar.Cookies(server) {
		s.Cookies = append(s.Cookies, Cookie{Name: c.Name, Value: c.Value, Expires: c.Expires})
	}
}

// Restore puts the saved cookies back into jar. Expired cookies are skipped.
func (s *Session) Restore(jar http.CookieJar, server *url.URL) {
	now := time.Now()
	cookies := make([]*http.Cookie, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		if !c.Expires.IsZero() && c.Expires.Before(now) {
			continue
		}
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/", Expires: c.Expires})
	}
	jar.SetCookies(server, cookies)
}

// Store reads and writes the session file. With a passphrase the file is
// sealed with secretbox under a scrypt-derived key.
type Store struct {
	path       string
	passphrase string
}

func NewStore(path, passphrase string) *Store {
	return &Store{path: path, passphrase: passphrase}
}

// Path returns the session file location.
func (st *Store) Path() string { return st.path }

type envelope struct {
	Version int             `json:"version"`
	Session json.RawMessage `json:"session,omitempty"`
	Salt    []byte          `json:"salt,omitempty"`
	Nonce   []byte          `json:"nonce,omitempty"`
	Box     []byte          `json:"box,omitempty"`
}

func (e *envelope) sealed() bool { return len(e.Box) > 0 }

// Load returns the saved session, ErrNoSession when there is none.
func (st *Store) Load() (*Session, error) {
	data, err := os.ReadFile(st.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode session file: %w", err)
	}
	if env.Version != fileVersion {
		return nil, fmt.Errorf("unsupported session file version %d", env.Version)
	}

	payload := []byte(env.Session)
	if env.sealed() {
		if st.passphrase == "" {
			return nil, ErrLocked
		}
		if payload, err = st.open(&env); err != nil {
			return nil, err
		}
	}
	var s Session
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

// LoadFor is Load for one server. A session captured for any other server
// is not returned, so its cookies are never replayed elsewhere.
func (st *Store) LoadFor(server *url.URL) (*Session, error) {
	s, err := st.Load()
	if err != nil {
		return nil, err
	}
	if s.Server != server.String() {
		return nil, fmt.Errorf("%w (%s)", ErrOtherServer, s.Server)
	}
	return s, nil
}

// Save writes s, replacing the previous file atomically.
func (st *Store) Save(s *Session) error {
	s.SavedAt = time.Now().UTC()
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	env := envelope{Version: fileVersion}
	if st.passphrase == "" {
		env.Session = payload
	} else if err := st.seal(&env, payload); err != nil {
		return err
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(st.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(st.path), ".session-*")
	if err != nil {
		return fmt.Errorf("create session file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("chmod session file: %w", err)
	}
	return os.Rename(tmp.Name(), st.path)
}

// Clear forgets the session. Clearing an absent session is not an error.
func (st *Store) Clear() error {
	if err := os.Remove(st.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

func (st *Store) key(salt []byte) (*[keySize]byte, error) {
	k, err := scrypt.Key([]byte(st.passphrase), salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("derive session key: %w", err)
	}
	var key [keySize]byte
	copy(key[:], k)
	return &key, nil
}

func (st *Store) seal(env *envelope, payload []byte) error {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	key, err := st.key(salt)
	if err != nil {
		return err
	}
	env.Salt = salt
	env.Nonce = nonce[:]
	env.Box = secretbox.Seal(nil, payload, &nonce, key)
	return nil
}

func (st *Store) open(env *envelope) ([]byte, error) {
	if len(env.Nonce) != nonceSize {
		return nil, fmt.Errorf("session file has a %d-byte nonce", len(env.Nonce))
	}
	var nonce [nonceSize]byte
	copy(nonce[:], env.Nonce)
	key, err := st.key(env.Salt)
	if err != nil {
		return nil, err
	}
	payload, ok := secretbox.Open(nil, env.Box, &nonce, key)
	if !ok {
		return nil, ErrBadKey
	}
	return payload, nil
}
