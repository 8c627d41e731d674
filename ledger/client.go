package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/txpool"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/zkleaderboard/verifier/logging"
	"github.com/zkleaderboard/verifier/types"
)

var (
	settlementsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "verifier",
		Subsystem: "ledger",
		Name:      "settlements_total",
		Help:      "Number of settlement attempts by result",
	}, []string{"result"})

	lockWaitMetric = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "verifier",
		Subsystem: "ledger",
		Name:      "account_lock_wait_seconds",
		Help:      "Time spent waiting for the settlement account",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	})
)

//go:generate mockgen -package mocks -destination mocks/backend.go . Backend

// Backend is the subset of an Ethereum node client used for settlement.
// It is satisfied by *ethclient.Client.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// SettlementRequest holds the arguments of verifyAndSettle, in call order.
type SettlementRequest struct {
	Leaf          common.Hash
	AttestationID uint64
	MerklePath    []common.Hash
	LeafCount     uint64
	LeafIndex     uint64
	Winners       []bool
}

// NewSettlementRequest builds the settlement call for an attested batch.
func NewSettlementRequest(record *types.AttestationRecord, winners []bool) SettlementRequest {
	return SettlementRequest{
		Leaf:          record.ProofDetails.Leaf,
		AttestationID: record.AttestationID,
		MerklePath:    record.ProofDetails.Proof,
		LeafCount:     record.ProofDetails.NumberOfLeaves,
		LeafIndex:     record.ProofDetails.LeafIndex,
		Winners:       winners,
	}
}

// AttestationQuery holds the arguments of the verifyProofAttestation view call.
type AttestationQuery struct {
	AttestationID uint64        `json:"attestationId"`
	Leaf          common.Hash   `json:"leaf"`
	MerklePath    []common.Hash `json:"merklePath"`
	LeafCount     uint64        `json:"leafCount"`
	Index         uint64        `json:"index"`
}

// LoadKey parses a hex encoded secp256k1 private key, with or without 0x prefix.
func LoadKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parsing settlement key: %w", err)
	}
	return key, nil
}

type option func(*Client)

// WithAccountLock shares the account lock between clients signing with the same key.
func WithAccountLock(lock *AccountLock) option {
	return func(c *Client) {
		c.lock = lock
	}
}

// Client submits settlement transactions and queries the attestation contract.
type Client struct {
	backend     Backend
	key         *ecdsa.PrivateKey
	from        common.Address
	signer      gethtypes.Signer
	settlement  common.Address
	attestation common.Address
	lock        *AccountLock
	cfg         Config
}

func NewClient(ctx context.Context, backend Backend, key *ecdsa.PrivateKey, cfg Config, opts ...option) (*Client, error) {
	if !common.IsHexAddress(cfg.SettlementContract) {
		return nil, fmt.Errorf("invalid settlement contract address %q", cfg.SettlementContract)
	}
	attestation := common.Address{}
	if cfg.AttestationContract != "" {
		if !common.IsHexAddress(cfg.AttestationContract) {
			return nil, fmt.Errorf("invalid attestation contract address %q", cfg.AttestationContract)
		}
		attestation = common.HexToAddress(cfg.AttestationContract)
	}

	chainID := new(big.Int).SetUint64(cfg.ChainID)
	if cfg.ChainID == 0 {
		id, err := backend.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("querying chain id: %w", err)
		}
		chainID = id
	}

	c := &Client{
		backend:     backend,
		key:         key,
		from:        crypto.PubkeyToAddress(key.PublicKey),
		signer:      gethtypes.LatestSignerForChainID(chainID),
		settlement:  common.HexToAddress(cfg.SettlementContract),
		attestation: attestation,
		lock:        NewAccountLock(),
		cfg:         cfg,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Account is the address settlements are sent from.
func (c *Client) Account() common.Address {
	return c.from
}

// Settle sends verifyAndSettle for an attested batch and waits for its receipt.
// The account is held for the whole call, so concurrent settlements from the
// same account never race on nonces. A transaction is sent at most once:
// when the node did not clearly refuse it and its receipt can't be obtained
// the call fails with *types.AmbiguousSettlementError carrying the transaction hash.
func (c *Client) Settle(ctx context.Context, req SettlementRequest) (*types.SettlementReceipt, error) {
	logger := logging.FromContext(ctx).Named("ledger")

	data, err := packSettlement(req)
	if err != nil {
		settlementsMetric.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: encoding call: %w", types.ErrSettlementFailed, err)
	}

	started := time.Now()
	release, err := c.lock.Acquire(ctx, c.from)
	if err != nil {
		settlementsMetric.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: waiting for account %s: %w", types.ErrSettlementFailed, c.from, err)
	}
	defer release()
	lockWaitMetric.Observe(time.Since(started).Seconds())

	tx, err := c.sign(ctx, data)
	if err != nil {
		settlementsMetric.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: %w", types.ErrSettlementFailed, err)
	}
	if err := c.backend.SendTransaction(ctx, tx); err != nil {
		switch {
		case alreadyKnown(err):
			logger.Info("settlement already in the pool", zap.Stringer("tx", tx.Hash()))
		case sendRejected(err):
			settlementsMetric.WithLabelValues("rejected").Inc()
			return nil, fmt.Errorf("%w: sending transaction %s: %w", types.ErrSettlementFailed, tx.Hash(), err)
		default:
			// The node may have accepted the transaction before the error.
			settlementsMetric.WithLabelValues("ambiguous").Inc()
			logger.Warn("settlement may have been sent", zap.Stringer("tx", tx.Hash()), zap.Error(err))
			return nil, &types.AmbiguousSettlementError{TxHash: tx.Hash(), Err: fmt.Errorf("sending transaction: %w", err)}
		}
	}
	logger.Info("settlement sent",
		zap.Stringer("tx", tx.Hash()),
		zap.Uint64("nonce", tx.Nonce()),
		zap.Uint64("gas", tx.Gas()),
		zap.Uint64("attestation_id", req.AttestationID),
	)

	receipt, err := c.waitMined(ctx, tx.Hash())
	if err != nil {
		settlementsMetric.WithLabelValues("ambiguous").Inc()
		logger.Warn("settlement outcome unknown", zap.Stringer("tx", tx.Hash()), zap.Error(err))
		return nil, &types.AmbiguousSettlementError{TxHash: tx.Hash(), Err: err}
	}
	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		settlementsMetric.WithLabelValues("reverted").Inc()
		return nil, fmt.Errorf("%w: tx %s reverted in block %d", types.ErrSettlementFailed, tx.Hash(), receipt.BlockNumber)
	}

	settlementsMetric.WithLabelValues("confirmed").Inc()
	logger.Info("settlement confirmed",
		zap.Stringer("tx", tx.Hash()),
		zap.Stringer("block", receipt.BlockNumber),
		zap.Uint64("gas_used", receipt.GasUsed),
	)
	return &types.SettlementReceipt{
		TxHash:      tx.Hash(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
		Confirmed:   true,
	}, nil
}

// sign builds and signs the settlement transaction at the pending nonce.
func (c *Client) sign(ctx context.Context, data []byte) (*gethtypes.Transaction, error) {
	nonce, err := c.backend.PendingNonceAt(ctx, c.from)
	if err != nil {
		return nil, fmt.Errorf("fetching nonce: %w", err)
	}
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching gas price: %w", err)
	}
	gas := c.cfg.GasLimit
	if gas == 0 {
		estimated, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{
			From:     c.from,
			To:       &c.settlement,
			GasPrice: gasPrice,
			Data:     data,
		})
		if err != nil {
			return nil, fmt.Errorf("estimating gas: %w", err)
		}
		gas = withMargin(estimated, c.cfg.GasMargin)
	}

	tx, err := gethtypes.SignTx(gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &c.settlement,
		Data:     data,
	}), c.signer, c.key)
	if err != nil {
		return nil, fmt.Errorf("signing transaction: %w", err)
	}
	return tx, nil
}

// definiteRejections are the pool errors after which a transaction was surely not accepted.
var definiteRejections = []error{
	core.ErrNonceTooLow,
	core.ErrNonceTooHigh,
	core.ErrInsufficientFunds,
	core.ErrIntrinsicGas,
	core.ErrGasLimitReached,
	txpool.ErrUnderpriced,
	txpool.ErrReplaceUnderpriced,
}

// sendRejected reports whether the node answered the submission with an error.
// Transport failures, timeouts and cancellations leave the outcome unknown.
func sendRejected(err error) bool {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return true
	}
	for _, target := range definiteRejections {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// alreadyKnown reports whether the node already holds the transaction.
// Over JSON-RPC only the message survives.
func alreadyKnown(err error) bool {
	return errors.Is(err, txpool.ErrAlreadyKnown) || strings.Contains(err.Error(), txpool.ErrAlreadyKnown.Error())
}

func withMargin(gas uint64, margin float64) uint64 {
	if margin <= 1 {
		return gas
	}
	scaled := math.Ceil(float64(gas) * margin)
	if scaled >= math.MaxUint64 {
		return math.MaxUint64
	}
	return uint64(scaled)
}

// waitMined polls for the receipt of a sent transaction.
// Lookup errors other than "not found" are retried until the deadline.
func (c *Client) waitMined(ctx context.Context, hash common.Hash) (*gethtypes.Receipt, error) {
	logger := logging.FromContext(ctx)
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ReceiptTimeout)
	defer cancel()

	timer := time.NewTimer(0)
	<-timer.C
	defer timer.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		switch {
		case err == nil && receipt != nil:
			return receipt, nil
		case err != nil && !errors.Is(err, ethereum.NotFound):
			logger.Debug("receipt lookup failed", zap.Stringer("tx", hash), zap.Error(err))
		}

		timer.Reset(c.cfg.ReceiptInterval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for receipt: %w", ctx.Err())
		}
	}
}

// VerifyAttestation asks the attestation contract whether the inclusion proof
// of an attestation is valid.
func (c *Client) VerifyAttestation(ctx context.Context, q AttestationQuery) (bool, error) {
	if c.attestation == (common.Address{}) {
		return false, errors.New("attestation contract is not configured")
	}
	data, err := packVerification(q)
	if err != nil {
		return false, fmt.Errorf("%w: encoding call: %w", types.ErrInvalidRequest, err)
	}
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{
		From: c.from,
		To:   &c.attestation,
		Data: data,
	}, nil)
	if err != nil {
		return false, fmt.Errorf("%w: calling %s: %w", types.ErrServiceUnavailable, verifyMethod, err)
	}
	values, err := contractABI.Unpack(verifyMethod, out)
	if err != nil {
		return false, fmt.Errorf("decoding %s result: %w", verifyMethod, err)
	}
	verified, ok := values[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected %s result %T", verifyMethod, values[0])
	}
	return verified, nil
}
