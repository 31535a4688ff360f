package identity

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Static is a fixed identity.
type Static struct {
	UserID      string
	AccessToken string
}

// Current implements sync.Identity.
func (s Static) Current(context.Context) (string, bool) {
	return s.UserID, s.UserID != ""
}

// Token returns the access token, ErrNoToken when signed out.
func (s Static) Token(context.Context) (string, error) {
	if s.UserID == "" {
		return "", ErrNoToken
	}
	return s.AccessToken, nil
}

// Config holds configuration for a FileProvider.
type Config struct {
	// Now is used for expiry checks (default: time.Now)
	Now func() time.Time

	// Logger for provider activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Now:    time.Now,
		Logger: log.New(os.Stderr, "[identity] ", log.LstdFlags),
	}
}

// FileProvider reads the signed-in account from a token file and watches
// it for changes. A missing, empty, malformed or expired token means
// signed out.
type FileProvider struct {
	path   string
	config *Config

	mu        sync.Mutex
	token     string
	claims    Claims
	listeners map[int]func(userID string)
	nextID    int

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
	running bool
}

// NewFileProvider creates a provider for path and loads it once.
func NewFileProvider(path string, config *Config) (*FileProvider, error) {
	if path == "" {
		return nil, fmt.Errorf("token path cannot be empty")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve token path: %w", err)
	}

	p := &FileProvider{
		path:      abs,
		config:    config,
		listeners: make(map[int]func(string)),
	}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Path returns the token file path.
func (p *FileProvider) Path() string {
	return p.path
}

// Current implements sync.Identity. Expiry is re-checked on every call.
func (p *FileProvider) Current(context.Context) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.claims.UserID == "" {
		return "", false
	}
	if exp := p.claims.ExpiresAt; exp != nil && !exp.After(p.config.Now()) {
		return "", false
	}
	return p.claims.UserID, true
}

// Token returns the raw bearer token, ErrNoToken when signed out and
// ErrExpired once the token has expired.
func (p *FileProvider) Token(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token == "" || p.claims.UserID == "" {
		return "", ErrNoToken
	}
	if exp := p.claims.ExpiresAt; exp != nil && !exp.After(p.config.Now()) {
		return "", ErrExpired
	}
	return p.token, nil
}

// OnChange registers fn to be called with the new user id ("" when signed
// out) whenever the account changes.
func (p *FileProvider) OnChange(fn func(userID string)) (unsubscribe func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

// Reload re-reads the token file and notifies listeners when the account
// changed. Only an unreadable file is an error.
func (p *FileProvider) Reload() error {
	data, err := os.ReadFile(p.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read token file: %w", err)
	}

	token := strings.TrimSpace(string(data))
	claims, perr := ParseToken(token, p.config.Now())
	switch {
	case errors.Is(perr, ErrNoToken):
		token = ""
	case errors.Is(perr, ErrExpired):
		p.config.Logger.Printf("Token for %s expired at %s", claims.UserID, claims.ExpiresAt.Format(time.RFC3339))
		token, claims = "", Claims{}
	case perr != nil:
		p.config.Logger.Printf("Ignoring token file: %v", perr)
		token, claims = "", Claims{}
	}

	p.mu.Lock()
	changed := p.claims.UserID != claims.UserID
	p.token = token
	p.claims = claims
	listeners := make([]func(string), 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()

	if changed {
		if claims.UserID == "" {
			p.config.Logger.Println("Signed out")
		} else {
			p.config.Logger.Printf("Signed in as %s", claims.UserID)
		}
		for _, fn := range listeners {
			fn(claims.UserID)
		}
	}
	return nil
}

// Save validates token and writes it to the file, then reloads.
func (p *FileProvider) Save(token string) error {
	if _, err := ParseToken(token, p.config.Now()); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strings.TrimSpace(token)+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return p.Reload()
}

// Clear removes the token file, signing out.
func (p *FileProvider) Clear() error {
	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return p.Reload()
}

// Start watches the token file's directory and reloads on changes to the
// file. The directory is watched so atomic replaces and first-time creation
// are seen.
func (p *FileProvider) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("watcher already running")
	}

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch token directory %s: %w", dir, err)
	}

	p.watcher = watcher
	p.done = make(chan struct{})
	p.running = true
	p.wg.Add(1)
	go p.processEvents()
	return nil
}

// Stop stops watching. It blocks until the event loop has exited.
func (p *FileProvider) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	watcher := p.watcher
	p.mu.Unlock()

	close(p.done)
	if err := watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	p.wg.Wait()
	return nil
}

func (p *FileProvider) processEvents() {
	defer p.wg.Done()

	for {
		select {
		case <-p.done:
			return

		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != p.path {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := p.Reload(); err != nil {
				p.config.Logger.Printf("Error reloading token: %v", err)
			}

		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}
