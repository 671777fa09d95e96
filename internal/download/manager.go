package download

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"github.com/sourcekit/extmgr/internal/branding"
)

// Status of a download.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusSuccessful
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusSuccessful:
		return "successful"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// ErrUnknownDownload is returned for ids the manager does not track.
var ErrUnknownDownload = errors.New("unknown download")

// Request describes one download.
type Request struct {
	URL   string
	Title string
	// SHA256 is the expected hex digest of the payload. Empty skips the check.
	SHA256 string
}

type job struct {
	id     string
	req    Request
	status Status
	path   string
	err    error
	cancel context.CancelFunc
}

// Manager runs downloads in the background.
type Manager struct {
	dir         string
	log         logr.Logger
	httpClient  *http.Client
	userAgent   string
	maxRetries  uint64
	backoffBase time.Duration

	mu   sync.Mutex
	jobs map[string]*job
	wg   conc.WaitGroup

	completions broadcaster
}

// Option configures a Manager.
type Option func(*Manager)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) {
		m.httpClient = c
	}
}

// WithRetries sets how often a transient failure is retried and the initial
// exponential backoff.
func WithRetries(n uint64, base time.Duration) Option {
	return func(m *Manager) {
		m.maxRetries = n
		m.backoffBase = base
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(m *Manager) {
		m.userAgent = ua
	}
}

// New returns a Manager spooling into dir.
func New(dir string, log logr.Logger, opts ...Option) *Manager {
	m := &Manager{
		dir:         dir,
		log:         log.WithName("download"),
		httpClient:  http.DefaultClient,
		userAgent:   branding.CLIName() + "-downloader",
		maxRetries:  3,
		backoffBase: 500 * time.Millisecond,
		jobs:        make(map[string]*job),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Enqueue starts a download and returns its id.
func (m *Manager) Enqueue(req Request) (string, error) {
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("invalid download url %q", req.URL)
	}
	if err := os.MkdirAll(m.dir, 0700); err != nil {
		return "", fmt.Errorf("creating downloads directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	j := &job{
		id:     uuid.NewString(),
		req:    req,
		status: StatusPending,
		cancel: cancel,
	}
	j.path = filepath.Join(m.dir, j.id+"-"+fileName(u))

	m.mu.Lock()
	m.jobs[j.id] = j
	m.mu.Unlock()

	m.log.V(1).Info("download enqueued", "id", j.id, "title", req.Title, "url", req.URL)
	m.wg.Go(func() { m.run(ctx, j) })
	return j.id, nil
}

// Status reports the state of a download.
func (m *Manager) Status(id string) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return StatusFailed, fmt.Errorf("%w: %s", ErrUnknownDownload, id)
	}
	return j.status, nil
}

// ResultPath returns the local file of a successful download.
func (m *Manager) ResultPath(id string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.status != StatusSuccessful {
		return "", false
	}
	return j.path, true
}

// Err returns why a download failed.
func (m *Manager) Err(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		return j.err
	}
	return fmt.Errorf("%w: %s", ErrUnknownDownload, id)
}

// Subscribe delivers the id of every download that finishes, successfully or
// not, until ctx is done.
func (m *Manager) Subscribe(ctx context.Context) <-chan string {
	return m.completions.subscribe(ctx)
}

// Remove cancels a download if it is still running and deletes its file.
// Removed downloads are not reported as completed.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	j, ok := m.jobs[id]
	delete(m.jobs, id)
	m.mu.Unlock()
	if !ok {
		return
	}
	j.cancel()
	_ = os.Remove(j.path)
	_ = os.Remove(j.path + partSuffix)
	m.log.V(1).Info("download removed", "id", id)
}

// Wait blocks until every started download goroutine has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context, j *job) {
	if !m.setStatus(j, StatusRunning, nil) {
		return
	}

	err := m.fetch(ctx, j)
	if ctx.Err() != nil {
		// Removed while running.
		_ = os.Remove(j.path)
		return
	}

	if err != nil {
		_ = os.Remove(j.path)
		m.log.Error(err, "download failed", "id", j.id, "title", j.req.Title)
		if !m.setStatus(j, StatusFailed, err) {
			return
		}
	} else {
		m.log.V(1).Info("download finished", "id", j.id, "path", j.path)
		if !m.setStatus(j, StatusSuccessful, nil) {
			_ = os.Remove(j.path)
			return
		}
	}
	m.completions.emit(j.id)
}

// setStatus updates a tracked job. It reports false if the job was removed.
func (m *Manager) setStatus(j *job, s Status, err error) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[j.id]; !ok {
		return false
	}
	j.status = s
	j.err = err
	return true
}

func fileName(u *url.URL) string {
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "package.zip"
	}
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ':' {
			return '_'
		}
		return r
	}, name)
}
