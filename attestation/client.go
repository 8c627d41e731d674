package attestation

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/zkleaderboard/verifier/logging"
	"github.com/zkleaderboard/verifier/types"
)

var attestationsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "verifier",
	Subsystem: "attestation",
	Name:      "attestations_total",
	Help:      "Number of attestation attempts by result",
}, []string{"result"})

// ProofSubmission is the payload submitted to the attestation gateway.
type ProofSubmission struct {
	ProofType     string        `json:"proofType"`
	Version       string        `json:"version"`
	Proof         hexutil.Bytes `json:"proof"`
	Vk            hexutil.Bytes `json:"vk"`
	PublicSignals hexutil.Bytes `json:"publicSignals"`
}

// Dialer opens a new session with the attestation gateway.
// Every call must return a fresh client, sessions are never shared between runs.
type Dialer func(ctx context.Context) (*rpc.Client, error)

// NewDialer returns a Dialer for the gateway URL.
// A non-empty apiKey is sent as a bearer token.
func NewDialer(url, apiKey string) Dialer {
	return func(ctx context.Context) (*rpc.Client, error) {
		var opts []rpc.ClientOption
		if apiKey != "" {
			opts = append(opts, rpc.WithHeader("Authorization", "Bearer "+apiKey))
		}
		return rpc.DialOptions(ctx, url, opts...)
	}
}

// Client submits proofs for attestation and waits for their confirmation.
//
// It expects a JSON-RPC gateway in front of zkVerify that serves, under the
// configured namespace:
//   - <ns>_subscribe("submitAndWatch", ProofSubmission), streaming Event
//     notifications (includedInBlock, finalized, attestationConfirmed or error)
//   - <ns>_proofOfExistence(attestationId, leafDigest), returning types.ProofDetails
//
// zkVerify nodes do not serve these methods themselves, so an adapter is required.
type Client struct {
	dial Dialer
	cfg  Config
}

func NewClient(dial Dialer, cfg Config) *Client {
	return &Client{
		dial: dial,
		cfg:  cfg,
	}
}

// Verify submits the proof and resolves once the attestation is confirmed
// and its inclusion proof was fetched. It fails with types.ErrAttestationFailed
// when the gateway reports an error at any stage and with
// types.ErrAttestationTimeout when no confirmation arrives in time.
// The session opened for the call is always released before returning.
func (c *Client) Verify(ctx context.Context, proof, imageID, publicInputs []byte) (*types.AttestationRecord, error) {
	logger := logging.FromContext(ctx).Named("attestation")

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	session, err := c.dial(dialCtx)
	cancel()
	if err != nil {
		attestationsMetric.WithLabelValues("unavailable").Inc()
		return nil, fmt.Errorf("%w: opening session: %w", types.ErrAttestationFailed, err)
	}
	defer session.Close()

	record, err := c.attest(logging.NewContext(ctx, logger), session, ProofSubmission{
		ProofType:     c.cfg.ProofType,
		Version:       c.cfg.ProofVersion,
		Proof:         proof,
		Vk:            imageID,
		PublicSignals: publicInputs,
	})
	switch {
	case err == nil:
		attestationsMetric.WithLabelValues("confirmed").Inc()
		logger.Info("attestation confirmed", zap.Object("attestation", record))
	case errors.Is(err, types.ErrAttestationTimeout):
		attestationsMetric.WithLabelValues("timeout").Inc()
	default:
		attestationsMetric.WithLabelValues("failed").Inc()
	}
	return record, err
}

func (c *Client) attest(ctx context.Context, session *rpc.Client, submission ProofSubmission) (*types.AttestationRecord, error) {
	logger := logging.FromContext(ctx)

	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.ConfirmationTimeout)
	defer cancel()

	events := make(chan Event, 16)
	sub, err := session.Subscribe(waitCtx, c.cfg.Namespace, events, "submitAndWatch", submission)
	if err != nil {
		return nil, fmt.Errorf("%w: submitting proof: %w", types.ErrAttestationFailed, err)
	}
	defer sub.Unsubscribe()
	logger.Info("proof submitted for attestation", zap.Int("proof_size", len(submission.Proof)))

	lc := lifecycle{}
	for !lc.done() {
		select {
		case ev := <-events:
			from := lc.stage
			if err := lc.apply(ev); err != nil {
				return nil, fmt.Errorf("%w: %v", types.ErrAttestationFailed, err)
			}
			if from != lc.stage {
				logger.Info("attestation advanced",
					zap.Stringer("from", from),
					zap.Stringer("to", lc.stage),
					zap.Uint64("attestation_id", lc.attestationID),
				)
			}
		case err := <-sub.Err():
			return nil, fmt.Errorf("%w: subscription closed at stage %s: %v", types.ErrAttestationFailed, lc.stage, err)
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: interrupted at stage %s: %w", types.ErrAttestationFailed, lc.stage, ctx.Err())
			}
			return nil, fmt.Errorf("%w: no confirmation within %v (stage %s)", types.ErrAttestationTimeout, c.cfg.ConfirmationTimeout, lc.stage)
		}
	}

	details, err := c.proofOfExistence(ctx, session, lc.attestationID, lc.leafDigest)
	if err != nil {
		return nil, err
	}
	return &types.AttestationRecord{
		AttestationID: lc.attestationID,
		ProofDetails:  *details,
	}, nil
}

func (c *Client) proofOfExistence(ctx context.Context, session *rpc.Client, id uint64, leaf common.Hash) (*types.ProofDetails, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	var details types.ProofDetails
	if err := session.CallContext(ctx, &details, c.cfg.Namespace+"_proofOfExistence", id, leaf); err != nil {
		return nil, fmt.Errorf("%w: fetching inclusion proof of attestation %d: %w", types.ErrAttestationFailed, id, err)
	}
	if err := details.Validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid inclusion proof of attestation %d: %v", types.ErrAttestationFailed, id, err)
	}
	if details.Leaf != leaf {
		return nil, fmt.Errorf("%w: inclusion proof is for leaf %s, expected %s", types.ErrAttestationFailed, details.Leaf, leaf)
	}
	return &details, nil
}
