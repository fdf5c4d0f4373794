// Package resourcekit implements the local + cluster HTTP surface shared
// by every monitored resource kind, grounded on
// resource_handlers.py's ResourceHandler.
package resourcekit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"hermes-agent/internal/hermes/domain"
	perr "hermes-agent/internal/platform/errors"
	"hermes-agent/internal/platform/logger"
	phttp "hermes-agent/internal/platform/net/http"
)

// acceptableStatsAge mirrors constants.py's ACCEPTABLE_STATS_AGE: a
// scrape younger than this is considered current. Nothing in the
// original rejects a request on staleness, so IsFresh is exposed for
// logging only.
const acceptableStatsAge = 10 * time.Second

// remoteRequestTimeout is constants.py's REMOTE_REQUEST_TIMEOUT.
const remoteRequestTimeout = 60 * time.Second

// fanoutSem is the process-global counting semaphore capping concurrent
// peer requests across every Handler in the process.
var fanoutSem = semaphore.NewWeighted(100)

// LocalSource produces this node's resource entities plus any advisory
// failure messages (never a request failure, e.g. a partial scrape),
// grounded on process.py's list_resource / ResourceHandler.local_source.
type LocalSource interface {
	List(ctx context.Context) (entities any, failures []string, err error)
}

// PeerListProvider supplies the default peer location list for a
// cluster request whose body omits "locations", grounded on
// appscale_info.get_all_ips.
type PeerListProvider = domain.ClusterIPsPort

// PeerClient fetches one remote peer's splice-framed response, grounded
// on resource_handlers.py's ResourceHandler._fetch_remote.
type PeerClient interface {
	Fetch(ctx context.Context, location, resourceName, secret string) (entitiesJSON []byte, failures []domain.FailureEntry, err error)
}

// Handler implements GET /v2/{resourceName} and
// GET /v2/{resourceName}/_cluster for one resource kind. The resource
// name is baked in at construction, matching the Python handler's
// per-resource instance model rather than a router URL parameter.
type Handler struct {
	ResourceName string
	Local        LocalSource
	Peers        PeerListProvider
	Host         domain.HostIPPort
	Secret       domain.SecretSource
	Client       PeerClient
}

// NewHandler builds a Handler. A nil Client defaults to the
// net/http-backed PeerClient with the mandated 60s timeout.
func NewHandler(resourceName string, local LocalSource, peers PeerListProvider, host domain.HostIPPort, secret domain.SecretSource) *Handler {
	return &Handler{
		ResourceName: resourceName,
		Local:        local,
		Peers:        peers,
		Host:         host,
		Secret:       secret,
		Client:       defaultPeerClient,
	}
}

// IsFresh reports whether sampledAt is within ACCEPTABLE_STATS_AGE of
// now. Never used to reject a request, only to log a staleness warning
// when a local scrape took too long.
func (h *Handler) IsFresh(sampledAt time.Time) bool {
	return time.Since(sampledAt) <= acceptableStatsAge
}

// MountRoutes registers the local and cluster endpoints for this
// resource kind.
func (h *Handler) MountRoutes(r phttp.Router) {
	r.Get("/v2/"+h.ResourceName, h.handleLocal)
	r.Get("/v2/"+h.ResourceName+"/_cluster", h.handleCluster)
}

func (h *Handler) handleLocal(w http.ResponseWriter, r *http.Request) {
	entitiesJSON, failuresJSON, err := h.localJSON(r.Context())
	if err != nil {
		logger.Named("hermes.resourcekit").Error().Err(err).
			Str("resource", h.ResourceName).Msg("failed to list local resource")
		http.Error(w, err.Error(), perr.HTTPStatus(err))
		return
	}

	if r.URL.Query().Get(domain.ReturnAs2JSONObjectsParam) == "yes" {
		writeSpliced(w, entitiesJSON, failuresJSON)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeEnvelope(w, entitiesJSON, failuresJSON)
}

func (h *Handler) handleCluster(w http.ResponseWriter, r *http.Request) {
	locations, err := h.clusterLocations(r)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		body, _ := json.Marshal(map[string]string{"reason": err.Error()})
		_, _ = w.Write(body)
		return
	}

	joinedEntities, failures := h.listCluster(r.Context(), locations)
	failuresJSON, err := json.Marshal(failures)
	if err != nil {
		failuresJSON = []byte("[]")
	}

	w.Header().Set("Content-Type", "application/json")
	writeEnvelope(w, joinedEntities, failuresJSON)
}

// clusterLocations reads the optional {"locations":[...]} body, falling
// back to the configured PeerListProvider when the body is empty,
// matching resource_handlers.py's list_cluster.
func (h *Handler) clusterLocations(r *http.Request) ([]string, error) {
	if r.Body == nil {
		return h.defaultLocations(r.Context()), nil
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf(`JSON body should contain "locations" attr (%w)`, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return h.defaultLocations(r.Context()), nil
	}

	var body struct {
		Locations []string `json:"locations"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf(`JSON body should contain "locations" attr (%w)`, err)
	}
	if body.Locations == nil {
		return nil, fmt.Errorf(`JSON body should contain "locations" attr (missing key)`)
	}
	return body.Locations, nil
}

func (h *Handler) defaultLocations(ctx context.Context) []string {
	if h.Peers == nil {
		return nil
	}
	return h.Peers.ClusterIPs(ctx)
}

// listCluster fans out one task per peer, bounded by fanoutSem, and
// merges their raw entity arrays by string-trimming and concatenation
// rather than a decode/encode round-trip, grounded on
// resource_handlers.py's _list_resource.
func (h *Handler) listCluster(ctx context.Context, locations []string) ([]byte, []domain.FailureEntry) {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		entities [][]byte
		failures []domain.FailureEntry
	)

	for _, location := range locations {
		location := location
		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := fanoutSem.Acquire(ctx, 1); err != nil {
				mu.Lock()
				failures = append(failures, domain.FailureEntry{Host: location, Message: err.Error()})
				mu.Unlock()
				return
			}
			defer fanoutSem.Release(1)

			entitiesJSON, nodeFailures, err := h.fetchNode(ctx, location)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, domain.FailureEntry{Host: location, Message: err.Error()})
				return
			}
			if len(entitiesJSON) > 0 {
				entities = append(entities, entitiesJSON)
			}
			failures = append(failures, nodeFailures...)
		}()
	}
	wg.Wait()

	logger.Named("hermes.resourcekit").Info().
		Str("resource", h.ResourceName).
		Int("nodes", len(entities)).
		Msg("fetched resource from cluster")

	return joinEntities(entities), failures
}

// fetchNode services a peer whose host matches this node's private IP
// in-process (no HTTP round-trip), otherwise delegates to Client.
func (h *Handler) fetchNode(ctx context.Context, location string) ([]byte, []domain.FailureEntry, error) {
	host := location
	if idx := strings.IndexByte(location, ':'); idx >= 0 {
		host = location[:idx]
	}

	if host != "" && host == h.privateIP() {
		entitiesJSON, failuresJSON, err := h.localJSON(ctx)
		if err != nil {
			logger.Named("hermes.resourcekit").Error().Err(err).
				Str("host", location).Msg("failed to prepare local stats")
			return nil, nil, perr.Upstreamf("%v", err)
		}
		var failures []domain.FailureEntry
		_ = json.Unmarshal(failuresJSON, &failures)
		return entitiesJSON, failures, nil
	}

	client := h.Client
	if client == nil {
		client = defaultPeerClient
	}
	secret := ""
	if h.Secret != nil {
		secret = h.Secret.Secret()
	}
	return client.Fetch(ctx, location, h.ResourceName, secret)
}

// localJSON runs the LocalSource and renders entities/failures as raw
// JSON, stamping each failure message with this node's private IP.
func (h *Handler) localJSON(ctx context.Context) ([]byte, []byte, error) {
	startedAt := time.Now()
	entities, msgs, err := h.Local.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	if !h.IsFresh(startedAt) {
		logger.Named("hermes.resourcekit").Warn().
			Str("resource", h.ResourceName).
			Dur("took", time.Since(startedAt)).
			Msg("local scrape exceeded acceptable stats age")
	}
	entitiesJSON, err := json.Marshal(entities)
	if err != nil {
		return nil, nil, err
	}

	host := h.privateIP()
	failures := make([]domain.FailureEntry, 0, len(msgs))
	for _, m := range msgs {
		failures = append(failures, domain.FailureEntry{Host: host, Message: m})
	}
	failuresJSON, err := json.Marshal(failures)
	if err != nil {
		return nil, nil, err
	}
	return entitiesJSON, failuresJSON, nil
}

func (h *Handler) privateIP() string {
	if h.Host == nil {
		return ""
	}
	ip, err := h.Host.PrivateIP()
	if err != nil {
		return ""
	}
	return ip
}

// writeSpliced renders the two-array framing peers use to avoid a
// decode/encode round-trip: entitiesJSON, a space, the 8-byte
// delimiter, a space, failuresJSON — byte-exact with
// resource_handlers.py's list_local.
func writeSpliced(w http.ResponseWriter, entitiesJSON, failuresJSON []byte) {
	body := make([]byte, 0, len(entitiesJSON)+len(domain.BodyConnector)+len(failuresJSON)+2)
	body = append(body, entitiesJSON...)
	body = append(body, ' ')
	body = append(body, domain.BodyConnector...)
	body = append(body, ' ')
	body = append(body, failuresJSON...)
	_, _ = w.Write(body)
}

// writeEnvelope renders {"entities":…,"failures":…} by byte
// concatenation, since entitiesJSON may already be a pre-joined raw
// array from the cluster path.
func writeEnvelope(w http.ResponseWriter, entitiesJSON, failuresJSON []byte) {
	body := make([]byte, 0, len(entitiesJSON)+len(failuresJSON)+32)
	body = append(body, []byte(`{"entities":`)...)
	body = append(body, entitiesJSON...)
	body = append(body, []byte(`,"failures":`)...)
	body = append(body, failuresJSON...)
	body = append(body, '}')
	_, _ = w.Write(body)
}

// joinEntities strips the outer brackets (and incidental spaces) from
// each peer's raw entities array and concatenates them with ",\n\n",
// then re-wraps in brackets — exactly resource_handlers.py's
// _list_resource merge step.
func joinEntities(parts [][]byte) []byte {
	trimmed := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed = append(trimmed, strings.Trim(string(p), "[] "))
	}
	return []byte("[" + strings.Join(trimmed, ",\n\n") + "]")
}
