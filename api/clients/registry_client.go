package clients

import (
	"bufio"
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/document-registry/api"
	"github.com/ruteri/document-registry/interfaces"
	"github.com/ruteri/document-registry/ledger"
)

// ErrNoSigningKey is returned by state-changing calls on a read-only client.
var ErrNoSigningKey = errors.New("client has no signing key")

// RegistryClient talks to the registry HTTP API.
type RegistryClient struct {
	baseURL    string
	privateKey *ecdsa.PrivateKey
	httpClient *http.Client
}

// NewRegistryClient creates a client for the API at baseURL
// (e.g. "http://localhost:8080"). privateKey signs register and revoke
// calls and may be nil for a read-only client. The request timeout
// defaults to 30 seconds.
func NewRegistryClient(baseURL string, privateKey *ecdsa.PrivateKey, timeout ...time.Duration) *RegistryClient {
	clientTimeout := 30 * time.Second
	if len(timeout) > 0 {
		clientTimeout = timeout[0]
	}

	return &RegistryClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		privateKey: privateKey,
		httpClient: &http.Client{
			Timeout: clientTimeout,
		},
	}
}

// Address returns the identity the client signs as.
func (c *RegistryClient) Address() (common.Address, error) {
	if c.privateKey == nil {
		return common.Address{}, ErrNoSigningKey
	}
	return crypto.PubkeyToAddress(c.privateKey.PublicKey), nil
}

// Register registers fingerprint for the client's identity. When the
// registry rejects the call the failed receipt is returned together with
// an *api.StatusError that matches the registry error under errors.Is.
func (c *RegistryClient) Register(ctx context.Context, fingerprint []byte) (*ledger.Receipt, error) {
	return c.submit(ctx, ledger.MethodRegister, "/api/documents/register", fingerprint)
}

// Revoke revokes fingerprint. See Register for error reporting.
func (c *RegistryClient) Revoke(ctx context.Context, fingerprint []byte) (*ledger.Receipt, error) {
	return c.submit(ctx, ledger.MethodRevoke, "/api/documents/revoke", fingerprint)
}

func (c *RegistryClient) submit(ctx context.Context, method, path string, fingerprint []byte) (*ledger.Receipt, error) {
	if c.privateKey == nil {
		return nil, ErrNoSigningKey
	}
	sig, err := api.SignTransaction(c.privateKey, method, fingerprint)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(api.DocumentRequest{Fingerprint: fingerprint})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(api.SignatureHeader, hexutil.Encode(sig))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", method, err)
	}

	var parsed api.SubmitResponse
	if jsonErr := json.Unmarshal(raw, &parsed); jsonErr != nil {
		parsed = api.SubmitResponse{}
	}
	if resp.StatusCode != http.StatusOK {
		msg := parsed.Error
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return parsed.Receipt, &api.StatusError{StatusCode: resp.StatusCode, Message: msg}
	}
	if parsed.Receipt == nil {
		return nil, fmt.Errorf("%s response carried no receipt", method)
	}
	return parsed.Receipt, nil
}

// Verify returns the verification tuple of fingerprint.
func (c *RegistryClient) Verify(ctx context.Context, fingerprint interfaces.Fingerprint) (interfaces.Verification, error) {
	var resp api.DocumentResponse
	if err := c.getJSON(ctx, "/api/documents/"+fingerprint.String(), nil, &resp); err != nil {
		return interfaces.Verification{}, err
	}
	return resp.Verification, nil
}

// ListByOwner returns every fingerprint owner registered.
func (c *RegistryClient) ListByOwner(ctx context.Context, owner common.Address) ([]interfaces.Fingerprint, error) {
	var resp api.OwnerDocumentsResponse
	if err := c.getJSON(ctx, "/api/owners/"+owner.Hex()+"/documents", nil, &resp); err != nil {
		return nil, err
	}

	fps := make([]interfaces.Fingerprint, 0, len(resp.Fingerprints))
	for _, s := range resp.Fingerprints {
		fp, err := interfaces.NewFingerprintFromHex(s)
		if err != nil {
			return nil, fmt.Errorf("server returned invalid fingerprint %q: %w", s, err)
		}
		fps = append(fps, fp)
	}
	return fps, nil
}

// Stats returns the document counter and ledger height.
func (c *RegistryClient) Stats(ctx context.Context) (*api.StatsResponse, error) {
	var resp api.StatsResponse
	if err := c.getJSON(ctx, "/api/stats", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Receipts lists committed receipts matching filter.
func (c *RegistryClient) Receipts(ctx context.Context, filter ledger.ReceiptFilter) ([]*ledger.Receipt, error) {
	q := url.Values{}
	setUint(q, "from", filter.FromSeq)
	setUint(q, "to", filter.ToSeq)
	setUint(q, "limit", uint64(filter.Limit))
	if filter.Caller != nil {
		q.Set("caller", filter.Caller.Hex())
	}
	if filter.Method != "" {
		q.Set("method", filter.Method)
	}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}

	var receipts []*ledger.Receipt
	if err := c.getJSON(ctx, "/api/receipts", q, &receipts); err != nil {
		return nil, err
	}
	return receipts, nil
}

// Events lists committed events matching filter.
func (c *RegistryClient) Events(ctx context.Context, filter ledger.EventFilter) ([]ledger.LoggedEvent, error) {
	var events []ledger.LoggedEvent
	if err := c.getJSON(ctx, "/api/events", eventQuery(filter), &events); err != nil {
		return nil, err
	}
	return events, nil
}

// StreamEvents follows the server-sent event stream and calls fn for each
// event until ctx is done, the server closes the stream or fn fails.
func (c *RegistryClient) StreamEvents(ctx context.Context, filter ledger.EventFilter, fn func(ledger.LoggedEvent) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/events/stream?"+eventQuery(filter).Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	// the stream outlives the per-request timeout
	streamClient := &http.Client{Transport: c.httpClient.Transport}
	resp, err := streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("event stream request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var ev ledger.LoggedEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return fmt.Errorf("invalid event in stream: %w", err)
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("event stream interrupted: %w", err)
	}
	return ctx.Err()
}

// Snapshot asks the server to archive a state snapshot.
func (c *RegistryClient) Snapshot(ctx context.Context) (*api.SnapshotResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/admin/snapshot", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("snapshot request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var parsed api.SnapshotResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("could not parse snapshot response: %w", err)
	}
	return &parsed, nil
}

func (c *RegistryClient) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("could not parse response from %s: %w", path, err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return &api.StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
}

func eventQuery(filter ledger.EventFilter) url.Values {
	q := url.Values{}
	setUint(q, "from", filter.FromSeq)
	setUint(q, "limit", uint64(filter.Limit))
	if filter.Kind != "" {
		q.Set("kind", string(filter.Kind))
	}
	if filter.Owner != nil {
		q.Set("owner", filter.Owner.Hex())
	}
	if filter.Fingerprint != nil {
		q.Set("fingerprint", filter.Fingerprint.String())
	}
	return q
}

func setUint(q url.Values, key string, v uint64) {
	if v > 0 {
		q.Set(key, strconv.FormatUint(v, 10))
	}
}
