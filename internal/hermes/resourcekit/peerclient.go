package resourcekit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"hermes-agent/internal/hermes/domain"
	perr "hermes-agent/internal/platform/errors"
)

// httpPeerClient is the default PeerClient, grounded on
// resource_handlers.py's _fetch_remote: a plain HTTP GET carrying the
// shared-secret header and return-as-2-json-objects=yes, split on the
// 8-byte delimiter without re-encoding the entities half.
type httpPeerClient struct {
	client *http.Client
}

func newHTTPPeerClient() *httpPeerClient {
	return &httpPeerClient{client: &http.Client{Timeout: remoteRequestTimeout}}
}

var defaultPeerClient = newHTTPPeerClient()

func (c *httpPeerClient) Fetch(ctx context.Context, location, resourceName, secret string) ([]byte, []domain.FailureEntry, error) {
	host, port := splitLocation(location)
	url := fmt.Sprintf("http://%s:%s/v2/%s?%s=yes", host, port, resourceName, domain.ReturnAs2JSONObjectsParam)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, perr.Upstreamf("building request to %s: %v", location, err)
	}
	if secret != "" {
		req.Header.Set(domain.SecretHeader, secret)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, perr.Upstreamf("%s: %v", location, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, perr.Upstreamf("%s: reading body: %v", location, err)
	}

	if resp.StatusCode >= 400 {
		msg := fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.Status)
		if len(body) > 0 {
			msg += ". " + string(body)
		}
		return nil, nil, perr.Upstreamf("%s", msg)
	}

	parts := bytes.SplitN(body, domain.BodyConnector, 2)
	if len(parts) != 2 {
		return nil, nil, perr.Upstreamf("%s: malformed splice body", location)
	}

	var failures []domain.FailureEntry
	failuresJSON := bytes.TrimSpace(parts[1])
	if len(failuresJSON) > 0 {
		if err := json.Unmarshal(failuresJSON, &failures); err != nil {
			return nil, nil, perr.Upstreamf("%s: malformed failures JSON: %v", location, err)
		}
	}

	return bytes.TrimSpace(parts[0]), failures, nil
}

func splitLocation(location string) (host, port string) {
	if idx := strings.IndexByte(location, ':'); idx >= 0 {
		return location[:idx], location[idx+1:]
	}
	return location, strconv.Itoa(domain.DefaultPort)
}
