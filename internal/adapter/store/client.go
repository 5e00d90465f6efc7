// Package store implements the client side of the replicated event store:
// N independently operated nodes, each speaking the same small HTTP API, with
// no cross-node coordination or ordering guarantee. Every query fans out to
// all nodes in parallel and unions the results; no single node is trusted
// for completeness or honesty.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"wallet-sync-engine/internal/core/domain"
	"wallet-sync-engine/pkg/apperror"

	"github.com/rs/zerolog"
)

const (
	queryPath   = "/v1/query"
	publishPath = "/v1/publish"
	healthPath  = "/v1/health"
)

// Client implements ports.StoreClient over HTTP store nodes.
type Client struct {
	nodes       []string
	httpClient  *http.Client
	nodeTimeout time.Duration
	log         zerolog.Logger
}

// NewClient creates a store client for the given node base URLs.
func NewClient(nodes []string, nodeTimeout time.Duration, log zerolog.Logger) *Client {
	if nodeTimeout <= 0 {
		nodeTimeout = 5 * time.Second
	}
	return &Client{
		nodes:       nodes,
		httpClient:  &http.Client{Timeout: nodeTimeout},
		nodeTimeout: nodeTimeout,
		log:         log,
	}
}

type queryRequest struct {
	Address domain.WalletAddress `json:"address"`
	Author  domain.Identity      `json:"author"`
}

type queryResponse struct {
	Records []domain.RawRecord `json:"records"`
}

// Query sends the same query to every node in parallel and returns the
// union of results deduplicated by record ID. A node replaying or
// duplicating a record must not be counted twice. Individual node failures
// are non-fatal while at least one node answers; if every node fails the
// error is NET_001.
func (c *Client) Query(ctx context.Context, address domain.WalletAddress, author domain.Identity) ([]domain.RawRecord, error) {
	if len(c.nodes) == 0 {
		return nil, apperror.ErrNetworkUnavailable(fmt.Errorf("no store nodes configured"))
	}

	type nodeResult struct {
		records []domain.RawRecord
		err     error
	}

	results := make(chan nodeResult, len(c.nodes))
	var wg sync.WaitGroup
	for _, node := range c.nodes {
		wg.Add(1)
		go func(node string) {
			defer wg.Done()
			records, err := c.queryNode(ctx, node, address, author)
			if err != nil {
				c.log.Debug().Err(err).Str("node", node).Msg("store node query failed")
			}
			results <- nodeResult{records: records, err: err}
		}(node)
	}
	wg.Wait()
	close(results)

	seen := make(map[string]struct{})
	var union []domain.RawRecord
	var lastErr error
	answered := false
	for res := range results {
		if res.err != nil {
			lastErr = res.err
			continue
		}
		answered = true
		for _, rec := range res.records {
			if _, dup := seen[rec.ID]; dup {
				continue
			}
			seen[rec.ID] = struct{}{}
			union = append(union, rec)
		}
	}

	if !answered {
		return nil, apperror.ErrNetworkUnavailable(lastErr)
	}
	return union, nil
}

// Publish sends the record to every node in parallel. A positive ack from
// any node is enough to return success, but it does not guarantee global
// visibility; callers confirm by re-querying.
func (c *Client) Publish(ctx context.Context, rec domain.RawRecord) error {
	if len(c.nodes) == 0 {
		return apperror.ErrNetworkUnavailable(fmt.Errorf("no store nodes configured"))
	}

	errs := make(chan error, len(c.nodes))
	var wg sync.WaitGroup
	for _, node := range c.nodes {
		wg.Add(1)
		go func(node string) {
			defer wg.Done()
			err := c.publishNode(ctx, node, rec)
			if err != nil {
				c.log.Debug().Err(err).Str("node", node).Msg("store node publish failed")
			}
			errs <- err
		}(node)
	}
	wg.Wait()
	close(errs)

	var lastErr error
	for err := range errs {
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return apperror.ErrNetworkUnavailable(lastErr)
}

func (c *Client) queryNode(ctx context.Context, node string, address domain.WalletAddress, author domain.Identity) ([]domain.RawRecord, error) {
	nodeCtx, cancel := context.WithTimeout(ctx, c.nodeTimeout)
	defer cancel()

	body, err := json.Marshal(queryRequest{Address: address, Author: author})
	if err != nil {
		return nil, fmt.Errorf("encoding query: %w", err)
	}

	req, err := http.NewRequestWithContext(nodeCtx, http.MethodPost, node+queryPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying node %s: %w", node, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("node %s returned status %d", node, resp.StatusCode)
	}

	var qr queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		return nil, fmt.Errorf("decoding node %s response: %w", node, err)
	}
	return qr.Records, nil
}

func (c *Client) publishNode(ctx context.Context, node string, rec domain.RawRecord) error {
	nodeCtx, cancel := context.WithTimeout(ctx, c.nodeTimeout)
	defer cancel()

	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}

	req, err := http.NewRequestWithContext(nodeCtx, http.MethodPost, node+publishPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building publish request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("publishing to node %s: %w", node, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("node %s returned status %d", node, resp.StatusCode)
	}
	return nil
}

// HealthCheck implements ports.HealthChecker for the store node set.
// Healthy means at least one node answers.
type HealthCheck struct {
	client *Client
}

// NewHealthCheck creates a store health checker.
func NewHealthCheck(client *Client) *HealthCheck {
	return &HealthCheck{client: client}
}

// Ping checks that at least one store node is reachable.
func (h *HealthCheck) Ping(ctx context.Context) error {
	var lastErr error
	for _, node := range h.client.nodes {
		nodeCtx, cancel := context.WithTimeout(ctx, h.client.nodeTimeout)
		req, err := http.NewRequestWithContext(nodeCtx, http.MethodGet, node+healthPath, nil)
		if err != nil {
			cancel()
			lastErr = err
			continue
		}
		resp, err := h.client.httpClient.Do(req)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			return nil
		}
		lastErr = fmt.Errorf("node %s returned status %d", node, resp.StatusCode)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no store nodes configured")
	}
	return lastErr
}

// Name returns the dependency name.
func (h *HealthCheck) Name() string {
	return "store"
}
