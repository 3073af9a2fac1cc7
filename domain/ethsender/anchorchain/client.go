package anchorchain

import (
	"time"

	"github.com/pkg/errors"

	"github.com/dagrollup/rollupcore/domain/rollup/model"
	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
	"github.com/dagrollup/rollupcore/internal/logger"
)

var log, _ = logger.Get(logger.SubsystemTags.SUBM)

const defaultTimeout = 30 * time.Second

// Transport is the minimal wire-level contract Client needs from a
// concrete anchor-chain RPC library; kept narrow so Client itself carries
// no dependency on any one RPC package, mirroring how
// netadapter/client/rpcclient.go layers its own address/router/timeout
// bookkeeping on top of a swappable grpcclient.GRPCClient.
type Transport interface {
	Call(method string, params ...interface{}) (result []byte, err error)
}

// Client is the production model.AnchorChainClient, a thin address +
// timeout wrapper around a Transport the way RPCClient wraps a
// grpcclient.GRPCClient (infrastructure/network/netadapter/client/rpcclient.go).
type Client struct {
	transport Transport
	address   string
	timeout   time.Duration
}

var _ model.AnchorChainClient = (*Client)(nil)

// NewClient returns a Client issuing calls over transport, logging the
// connected address the way NewRPCClient does on success.
func NewClient(address string, transport Transport) *Client {
	log.Infof("anchorchain: connected to %s", address)
	return &Client{transport: transport, address: address, timeout: defaultTimeout}
}

// SetTimeout overrides the per-call timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// CurrentBlockNumber implements model.AnchorChainClient.
func (c *Client) CurrentBlockNumber() (uint64, error) {
	result, err := c.transport.Call("eth_blockNumber")
	if err != nil {
		return 0, errors.Wrapf(err, "anchorchain: querying current block number")
	}
	return decodeUint64(result)
}

// SuggestGasPrice implements model.AnchorChainClient.
func (c *Client) SuggestGasPrice() (externalapi.Amount, error) {
	result, err := c.transport.Call("eth_gasPrice")
	if err != nil {
		return externalapi.ZeroAmount(), errors.Wrapf(err, "anchorchain: querying suggested gas price")
	}
	return externalapi.AmountFromBig20(result), nil
}

// Send implements model.AnchorChainClient. A transport failure is
// returned to the caller together with a zero hash. ethsender.Submitter
// logs it, still treats the row as sent, and records whatever hash Send
// returned only after Send returns; no hash is persisted before this
// call. A send that failed is then handled the same way as one that
// landed but was never seen again: as a stuck row once its deadline
// block passes.
func (c *Client) Send(signedTx []byte) (externalapi.Hash, error) {
	result, err := c.transport.Call("eth_sendRawTransaction", signedTx)
	if err != nil {
		return externalapi.Hash{}, errors.Wrapf(err, "anchorchain: sending transaction")
	}
	return externalapi.BytesToHash(result), nil
}

// Status implements model.AnchorChainClient, returning the observed
// status and confirmation count for a previously sent hash.
func (c *Client) Status(hash externalapi.Hash) (model.TxStatus, uint64, error) {
	result, err := c.transport.Call("eth_getTransactionReceipt", hash[:])
	if err != nil {
		return model.TxStatusUnknown, 0, errors.Wrapf(err, "anchorchain: querying status of %s", hash)
	}
	if result == nil {
		return model.TxStatusUnknown, 0, nil
	}
	return decodeReceipt(result)
}

func decodeUint64(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, errors.Errorf("anchorchain: expected 8-byte uint64, got %d bytes", len(b))
	}
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v, nil
}

func decodeReceipt(b []byte) (model.TxStatus, uint64, error) {
	if len(b) < 9 {
		return model.TxStatusUnknown, 0, errors.Errorf("anchorchain: malformed receipt (%d bytes)", len(b))
	}
	status := model.TxStatus(b[0])
	confirmations, err := decodeUint64(b[1:9])
	if err != nil {
		return model.TxStatusUnknown, 0, err
	}
	return status, confirmations, nil
}
