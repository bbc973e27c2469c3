package adapters

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"loomkit/internal/ports"
	"loomkit/internal/shared"
	"loomkit/internal/types"
)

const defaultDownloadWorkers = 4
const defaultDownloadRetries = 3
const defaultDownloadRetryDelay = 200 * time.Millisecond
const defaultDownloadTimeout = 5 * time.Minute
const maxDownloadRetryDelay = 2 * time.Second

// DownloadAdapter fetches game artifacts over HTTP. Files whose sha1
// matches are not fetched again. In offline mode nothing is fetched: a
// present file is used even when stale, a missing one is an error.
type DownloadAdapter struct {
	Client     *http.Client
	Offline    bool
	Workers    int
	Retries    int
	RetryDelay time.Duration
}

func NewDownloadAdapter(offline bool, workers int, timeoutSec int, retries int, retryDelayMs int) DownloadAdapter {
	timeout := time.Duration(timeoutSec) * time.Second
	if timeout <= 0 {
		timeout = defaultDownloadTimeout
	}
	if workers <= 0 {
		workers = defaultDownloadWorkers
	}
	if retries <= 0 {
		retries = defaultDownloadRetries
	}
	delay := time.Duration(retryDelayMs) * time.Millisecond
	if delay <= 0 {
		delay = defaultDownloadRetryDelay
	}
	return DownloadAdapter{
		Client:     &http.Client{Timeout: timeout},
		Offline:    offline,
		Workers:    workers,
		Retries:    retries,
		RetryDelay: delay,
	}
}

func (a DownloadAdapter) Download(ctx context.Context, item types.DownloadItem) error {
	if strings.TrimSpace(item.Dest) == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("download destination is empty")
	}
	upToDate, exists := fileMatchesSHA1(item.Dest, item.Download.SHA1)
	if upToDate {
		return nil
	}
	if a.Offline {
		if exists {
			log.Warn().Str("file", item.Dest).Msg("offline: using file that does not match its checksum")
			return nil
		}
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("offline and %s is not available", item.Dest))
	}
	if strings.TrimSpace(item.Download.URL) == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("no download url for %s", item.Dest))
	}
	retries := a.Retries
	if retries <= 0 {
		retries = 1
	}
	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		retry, err := a.downloadOnce(ctx, item)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry || attempt == retries-1 {
			break
		}
		log.Debug().Err(err).Str("url", item.Download.URL).Int("attempt", attempt+1).Msg("download failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(a.retryDelay(attempt)):
		}
	}
	return lastErr
}

func (a DownloadAdapter) downloadOnce(ctx context.Context, item types.DownloadItem) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, item.Download.URL, nil)
	if err != nil {
		return false, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to create download request").
			WithCause(err)
	}
	client := a.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return true, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("download of %s failed", item.Download.URL)).
			WithCause(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		retry := resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests
		return retry, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("download of %s failed", item.Download.URL)).
			WithCause(shared.HTTPStatusError(resp.StatusCode, item.Download.URL))
	}
	h := sha1.New()
	err = writeAtomic(item.Dest, func(w io.Writer) error {
		_, err := io.Copy(io.MultiWriter(w, h), resp.Body)
		if err != nil {
			return err
		}
		if want := strings.ToLower(item.Download.SHA1); want != "" {
			if got := hex.EncodeToString(h.Sum(nil)); got != want {
				return fmt.Errorf("sha1 mismatch: want %s, got %s", want, got)
			}
		}
		return nil
	})
	if err != nil {
		return true, err
	}
	log.Debug().Str("url", item.Download.URL).Str("file", item.Dest).Msg("downloaded")
	return false, nil
}

// DownloadAll fetches items concurrently; the first failure cancels the
// rest.
func (a DownloadAdapter) DownloadAll(ctx context.Context, items []types.DownloadItem) error {
	g, ctx := errgroup.WithContext(ctx)
	workers := a.Workers
	if workers <= 0 {
		workers = defaultDownloadWorkers
	}
	g.SetLimit(workers)
	for _, item := range items {
		g.Go(func() error {
			return a.Download(ctx, item)
		})
	}
	return g.Wait()
}

func (a DownloadAdapter) retryDelay(attempt int) time.Duration {
	delay := a.RetryDelay * time.Duration(1<<attempt)
	if delay > maxDownloadRetryDelay {
		delay = maxDownloadRetryDelay
	}
	jitter := time.Duration(time.Now().UnixNano() % int64(delay/2+1))
	return delay + jitter
}

// fileMatchesSHA1 reports whether path exists and, when want is set,
// whether its sha1 equals want.
func fileMatchesSHA1(path string, want string) (matches bool, exists bool) {
	f, err := os.Open(path)
	if err != nil {
		return false, false
	}
	defer f.Close()
	if want == "" {
		return true, true
	}
	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return false, true
	}
	return strings.EqualFold(hex.EncodeToString(h.Sum(nil)), want), true
}

var _ ports.DownloadPort = DownloadAdapter{}
