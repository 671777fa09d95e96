package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/sethvargo/go-retry"
)

const partSuffix = ".part"

// fetch downloads j.req.URL to j.path, retrying transient failures.
func (m *Manager) fetch(ctx context.Context, j *job) error {
	backoff := retry.WithMaxRetries(m.maxRetries, retry.NewExponential(m.backoffBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		return m.fetchOnce(ctx, j)
	})
	if err != nil {
		return err
	}
	if j.req.SHA256 != "" {
		if err := VerifyChecksum(j.path, j.req.SHA256); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) fetchOnce(ctx context.Context, j *job) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.req.URL, nil)
	if err != nil {
		return fmt.Errorf("creating download request: %w", err)
	}
	req.Header.Set("User-Agent", m.userAgent)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return retry.RetryableError(fmt.Errorf("downloading %s: %w", j.req.URL, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return retry.RetryableError(fmt.Errorf("download returned status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	part := j.path + partSuffix
	f, err := os.OpenFile(part, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating download file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(part)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return retry.RetryableError(fmt.Errorf("reading download stream: %w", err))
	}
	if err := f.Close(); err != nil {
		os.Remove(part)
		return fmt.Errorf("writing download: %w", err)
	}
	if err := os.Rename(part, j.path); err != nil {
		os.Remove(part)
		return fmt.Errorf("finalizing download: %w", err)
	}
	return nil
}

// VerifyChecksum compares the SHA-256 of the file at path with expected.
func VerifyChecksum(path, expected string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening file for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("computing checksum: %w", err)
	}

	actual := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(actual, strings.TrimSpace(expected)) {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", expected, actual)
	}
	return nil
}
