package noderpc

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"
)

// RESTClient implements Client against lnd's REST API, authenticating with
// the admin macaroon over TLS pinned to the node's certificate.
type RESTClient struct {
	baseURL  string
	macaroon string // hex-encoded
	http     *http.Client
}

// RESTOptions configures a RESTClient.
type RESTOptions struct {
	BaseURL      string // e.g. "https://127.0.0.1:8080"
	TLSCertPath  string // node TLS certificate; empty uses system roots
	MacaroonPath string
	Timeout      time.Duration // transport-level cap; per-call deadlines come from ctx
}

// NewRESTClient builds a REST client from credential paths.
func NewRESTClient(opts RESTOptions) (*RESTClient, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("node rest url is required")
	}

	mac, err := os.ReadFile(opts.MacaroonPath)
	if err != nil {
		return nil, fmt.Errorf("read macaroon: %w", err)
	}

	transport := &http.Transport{}
	if opts.TLSCertPath != "" {
		pem, err := os.ReadFile(opts.TLSCertPath)
		if err != nil {
			return nil, fmt.Errorf("read tls cert: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("parse tls cert %s: no certificates found", opts.TLSCertPath)
		}
		transport.TLSClientConfig = &tls.Config{RootCAs: pool}
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &RESTClient{
		baseURL:  opts.BaseURL,
		macaroon: hex.EncodeToString(mac),
		http: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
	}, nil
}

func (c *RESTClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Grpc-Metadata-macaroon", c.macaroon)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

// GetInfo returns the node's identity summary.
func (c *RESTClient) GetInfo(ctx context.Context) (*Info, error) {
	var info Info
	if err := c.do(ctx, http.MethodGet, "/v1/getinfo", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ConnectPeer opens a network connection to pubkey@host.
func (c *RESTClient) ConnectPeer(ctx context.Context, pubkey, host string) error {
	body := map[string]any{
		"addr": map[string]string{
			"pubkey": pubkey,
			"host":   host,
		},
		"perm": false,
	}
	return c.do(ctx, http.MethodPost, "/v1/peers", body, nil)
}

// ListPeers returns the currently connected peers.
func (c *RESTClient) ListPeers(ctx context.Context) ([]Peer, error) {
	var resp struct {
		Peers []Peer `json:"peers"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/peers", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Peers, nil
}

// ListChannels returns the node's open channels.
func (c *RESTClient) ListChannels(ctx context.Context) ([]Channel, error) {
	var resp struct {
		Channels []Channel `json:"channels"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/channels", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Channels, nil
}

// AddInvoice creates an invoice for value satoshis.
func (c *RESTClient) AddInvoice(ctx context.Context, value int64, memo string) (*AddInvoiceResponse, error) {
	body := map[string]any{
		"value": strconv.FormatInt(value, 10),
		"memo":  memo,
	}
	var resp struct {
		RHash          string `json:"r_hash"` // base64 on the wire
		PaymentRequest string `json:"payment_request"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/invoices", body, &resp); err != nil {
		return nil, err
	}
	rHash, err := base64ToHex(resp.RHash)
	if err != nil {
		return nil, fmt.Errorf("add invoice: %w", err)
	}
	return &AddInvoiceResponse{RHash: rHash, PaymentRequest: resp.PaymentRequest}, nil
}

// LookupInvoice fetches an invoice by its hex payment hash.
func (c *RESTClient) LookupInvoice(ctx context.Context, rHash string) (*Invoice, error) {
	var resp struct {
		RHash          string `json:"r_hash"`
		PaymentRequest string `json:"payment_request"`
		Memo           string `json:"memo"`
		Value          int64  `json:"value,string"`
		Settled        bool   `json:"settled"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/invoice/"+rHash, nil, &resp); err != nil {
		return nil, err
	}
	hexHash, err := base64ToHex(resp.RHash)
	if err != nil {
		hexHash = rHash
	}
	return &Invoice{
		RHash:          hexHash,
		PaymentRequest: resp.PaymentRequest,
		Memo:           resp.Memo,
		Value:          resp.Value,
		Settled:        resp.Settled,
	}, nil
}

// GetChanInfo fetches the public graph record for a channel.
func (c *RESTClient) GetChanInfo(ctx context.Context, chanID uint64) (*ChannelEdge, error) {
	var edge ChannelEdge
	path := "/v1/graph/edge/" + strconv.FormatUint(chanID, 10)
	if err := c.do(ctx, http.MethodGet, path, nil, &edge); err != nil {
		return nil, err
	}
	return &edge, nil
}

// base64ToHex converts lnd's base64 hash encoding to the hex form used
// everywhere else in this codebase.
func base64ToHex(s string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("decode r_hash: %w", err)
	}
	return hex.EncodeToString(raw), nil
}
