package attestation

import (
	"time"

	"go.uber.org/zap/zapcore"
)

// APIKeyEnvVar names the environment variable holding the gateway API key.
const APIKeyEnvVar = "VERIFIER_ATTESTATION_KEY"

func DefaultConfig() Config {
	return Config{
		GatewayURL:          "ws://localhost:9944",
		Namespace:           "attest",
		ProofType:           "risc0",
		ProofVersion:        "V1_2",
		DialTimeout:         30 * time.Second,
		RequestTimeout:      30 * time.Second,
		ConfirmationTimeout: 5 * time.Minute,
	}
}

//nolint:lll
type Config struct {
	GatewayURL          string        `long:"attestation-gateway"              description:"websocket URL of the attestation gateway (ws:// or wss://)"`
	Namespace           string        `long:"attestation-namespace"            description:"JSON-RPC namespace of the attestation gateway"`
	ProofType           string        `long:"attestation-proof-type"           description:"Proof system of submitted proofs"`
	ProofVersion        string        `long:"attestation-proof-version"        description:"Proof system version tag"`
	DialTimeout         time.Duration `long:"attestation-dial-timeout"         description:"Timeout for opening a session with the gateway"`
	RequestTimeout      time.Duration `long:"attestation-request-timeout"      description:"Timeout for fetching the inclusion proof of a confirmed attestation"`
	ConfirmationTimeout time.Duration `long:"attestation-confirmation-timeout" description:"Maximum wait for an attestation to be confirmed"`
}

// implement zap.ObjectMarshaler interface.
func (c Config) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("gateway", c.GatewayURL)
	enc.AddString("namespace", c.Namespace)
	enc.AddString("proof-type", c.ProofType)
	enc.AddString("proof-version", c.ProofVersion)
	enc.AddDuration("dial-timeout", c.DialTimeout)
	enc.AddDuration("request-timeout", c.RequestTimeout)
	enc.AddDuration("confirmation-timeout", c.ConfirmationTimeout)
	return nil
}

// Ceiling is the longest a single Verify call may take.
func (c Config) Ceiling() time.Duration {
	return c.DialTimeout + c.ConfirmationTimeout + c.RequestTimeout
}
