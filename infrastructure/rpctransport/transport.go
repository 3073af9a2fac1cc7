// Package rpctransport is the one concrete adapter between the anchor
// chain's actual JSON-RPC endpoint and the two narrow transport
// interfaces domain/ethsender/anchorchain and domain/eventsource/anchorwatch
// define. No example repo in the retrieval pack ships the full source of
// a JSON-RPC client (the closest hits are bare go.mod listings with no
// accompanying code to ground a wiring shape on), and the anchor chain's
// own RPC surface is an explicit external collaborator (spec.md §1), so
// this is deliberately a thin, stdlib-only net/http+encoding/json client
// rather than an adopted third-party library -- a justified stdlib use
// per DESIGN.md's "Ambient observability"/"Process-wide configuration"
// convention of calling out exactly why no pack library covers a concern.
package rpctransport

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// Client is a minimal JSON-RPC 2.0 client over HTTP, satisfying both
// anchorchain.Transport and anchorwatch.LogTransport.
type Client struct {
	endpoint string
	http     *http.Client
}

// New returns a Client posting JSON-RPC requests to endpoint.
func New(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return e.Message
}

// Call implements anchorchain.Transport.
func (c *Client) Call(method string, params ...interface{}) ([]byte, error) {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, errors.Wrapf(err, "rpctransport: encoding request for %s", method)
	}

	resp, err := c.http.Post(c.endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrapf(err, "rpctransport: calling %s", method)
	}
	defer resp.Body.Close()

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errors.Wrapf(err, "rpctransport: decoding response for %s", method)
	}
	if decoded.Error != nil {
		return nil, errors.Wrapf(decoded.Error, "rpctransport: %s returned an rpc error", method)
	}
	return decoded.Result, nil
}

// BlockNumber implements anchorwatch.LogTransport.
func (c *Client) BlockNumber() (uint64, error) {
	result, err := c.Call("eth_blockNumber")
	if err != nil {
		return 0, err
	}
	var height uint64
	if err := json.Unmarshal(result, &height); err != nil {
		return 0, errors.Wrap(err, "rpctransport: decoding block number")
	}
	return height, nil
}

// FilterLogs implements anchorwatch.LogTransport.
func (c *Client) FilterLogs(fromBlock, toBlock uint64, topic string) ([][]byte, error) {
	result, err := c.Call("eth_getLogs", fromBlock, toBlock, topic)
	if err != nil {
		return nil, err
	}
	var logs [][]byte
	if err := json.Unmarshal(result, &logs); err != nil {
		return nil, errors.Wrap(err, "rpctransport: decoding logs")
	}
	return logs, nil
}
