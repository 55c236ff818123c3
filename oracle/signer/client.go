// Package signer talks to the local signer daemon that holds the signing key.
// The daemon speaks JSON over HTTP on a unix socket and exposes two fixed
// endpoints: sign-and-submit and read-only call.
package signer

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/tidwall/gjson"

	"github.com/GPTx-global/rofl-oracle/oracle/log"
	"github.com/GPTx-global/rofl-oracle/oracle/tx"
	"github.com/GPTx-global/rofl-oracle/oracle/types"
)

const (
	DefaultSocket  = "/run/rofl-appd.sock"
	SignSubmitPath = "/rofl/v1/tx/sign-submit"
	CallPath       = "/rofl/v1/tx/call"

	// the host part is ignored by the unix dialer
	baseURL = "http://localhost"

	maxResponseSize = 1 << 20
	errorSnippetLen = 256
)

// Client is safe for concurrent use.
type Client struct {
	socket     string
	timeout    time.Duration
	httpClient *http.Client
	txm        *tx.TxManager
}

func New(socket string, gasLimit uint64, timeout time.Duration) *Client {
	transport := new(http.Transport)
	transport.DialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
		var dialer net.Dialer
		return dialer.DialContext(ctx, "unix", socket)
	}
	transport.MaxIdleConns = 4
	transport.MaxIdleConnsPerHost = 4
	transport.IdleConnTimeout = 90 * time.Second

	httpClient := new(http.Client)
	httpClient.Timeout = timeout
	httpClient.Transport = transport

	return &Client{
		socket:     socket,
		timeout:    timeout,
		httpClient: httpClient,
		txm:        tx.NewTxManager(gasLimit),
	}
}

func (c *Client) Socket() string {
	return c.socket
}

// Submit asks the signer to sign and broadcast a call to `to` carrying calldata.
// It returns the raw response body.
func (c *Client) Submit(ctx context.Context, to common.Address, calldata []byte) ([]byte, error) {
	body, err := c.txm.BuildSubmitTx(to, calldata)
	if err != nil {
		return nil, errorsmod.Wrap(types.ErrTransport, err.Error())
	}

	return c.post(ctx, SignSubmitPath, body)
}

// Call performs a read-only call and returns the hex-encoded `result` field.
func (c *Client) Call(ctx context.Context, to common.Address, calldata []byte) (string, error) {
	body, err := c.txm.BuildCallTx(to, calldata)
	if err != nil {
		return "", errorsmod.Wrap(types.ErrTransport, err.Error())
	}

	res, err := c.post(ctx, CallPath, body)
	if err != nil {
		return "", err
	}

	if !gjson.ValidBytes(res) {
		return "", errorsmod.Wrapf(types.ErrResponseFormat, "call response is not JSON: %s", snippet(res))
	}

	result := gjson.GetBytes(res, "result")
	if !result.Exists() || result.Type != gjson.String {
		return "", errorsmod.Wrapf(types.ErrResponseFormat, "no result in call response: %s", snippet(res))
	}

	return result.String(), nil
}

// Ping checks that the signer socket accepts connections.
func (c *Client) Ping(ctx context.Context) error {
	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socket)
	if err != nil {
		return errorsmod.Wrapf(types.ErrTransport, "dial %s: %v", c.socket, err)
	}

	return conn.Close()
}

func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrTransport, "failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Oracle-Daemon/1.0")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrTransport, "POST %s: %v", path, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseSize))
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrTransport, "failed to read response of %s: %v", path, err)
	}

	log.Debugf("signer %s: status=%d body=%s", path, res.StatusCode, snippet(data))

	if res.StatusCode < 200 || 300 <= res.StatusCode {
		return nil, errorsmod.Wrapf(types.ErrEndpoint, "%s returned %s: %s", path, res.Status, snippet(data))
	}

	if gjson.ValidBytes(data) {
		if reported := gjson.GetBytes(data, "error"); reported.Exists() && reported.Type != gjson.Null {
			return nil, errorsmod.Wrapf(types.ErrEndpoint, "%s reported error: %s", path, reported.String())
		}
	}

	return data, nil
}

func snippet(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > errorSnippetLen {
		return s[:errorSnippetLen] + "..."
	}
	return s
}
