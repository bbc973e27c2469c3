package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"loomkit/internal/ports"
	"loomkit/internal/shared"
	"loomkit/internal/types"
)

// VersionMetadataAdapter reads a game version's metadata JSON from a file
// or an http(s) URL.
type VersionMetadataAdapter struct {
	Client *http.Client
}

func NewVersionMetadataAdapter(timeoutSec int) VersionMetadataAdapter {
	timeout := time.Duration(timeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return VersionMetadataAdapter{Client: &http.Client{Timeout: timeout}}
}

func (a VersionMetadataAdapter) LoadMetadata(ctx context.Context, ref string) (types.VersionMetadata, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return types.VersionMetadata{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("version metadata location is empty")
	}
	data, err := a.fetch(ctx, ref)
	if err != nil {
		return types.VersionMetadata{}, err
	}
	var meta types.VersionMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return types.VersionMetadata{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid version metadata in %s", ref)).
			WithCause(err)
	}
	if meta.ID == "" {
		return types.VersionMetadata{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("version metadata in %s has no id", ref))
	}
	return meta, nil
}

func (a VersionMetadataAdapter) fetch(ctx context.Context, ref string) ([]byte, error) {
	if !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://") {
		data, err := os.ReadFile(ref)
		if err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg(fmt.Sprintf("version metadata %s not found", ref)).
				WithCause(err)
		}
		return data, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to create metadata request").
			WithCause(err)
	}
	client := a.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("version metadata request failed").
			WithCause(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("version metadata request failed").
			WithCause(shared.HTTPStatusErrorWithBody(resp.StatusCode, ref, strings.TrimSpace(string(body))))
	}
	return body, nil
}

var _ ports.VersionMetadataPort = VersionMetadataAdapter{}
