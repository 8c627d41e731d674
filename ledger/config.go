package ledger

import (
	"time"

	"go.uber.org/zap/zapcore"
)

// KeyEnvVar names the environment variable holding the hex encoded settlement key.
const KeyEnvVar = "VERIFIER_LEDGER_KEY"

func DefaultConfig() Config {
	return Config{
		RPCURL:          "http://localhost:8545",
		GasMargin:       1.2,
		ReceiptInterval: 2 * time.Second,
		ReceiptTimeout:  5 * time.Minute,
	}
}

//nolint:lll
type Config struct {
	RPCURL              string        `long:"ledger-rpc"                  description:"JSON-RPC endpoint of the settlement chain"`
	SettlementContract  string        `long:"ledger-settlement-contract"  description:"Address of the leaderboard settlement contract"`
	AttestationContract string        `long:"ledger-attestation-contract" description:"Address of the on-chain attestation contract"`
	ChainID             uint64        `long:"ledger-chain-id"             description:"Chain id used for signing (0 queries the node)"`
	GasLimit            uint64        `long:"ledger-gas-limit"            description:"Fixed gas limit for settlements (0 estimates)"`
	GasMargin           float64       `long:"ledger-gas-margin"           description:"Multiplier applied to estimated gas"`
	ReceiptInterval     time.Duration `long:"ledger-receipt-interval"     description:"Interval between receipt lookups"`
	ReceiptTimeout      time.Duration `long:"ledger-receipt-timeout"      description:"Maximum wait for a settlement receipt"`
}

// implement zap.ObjectMarshaler interface.
func (c Config) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("rpc", c.RPCURL)
	enc.AddString("settlement-contract", c.SettlementContract)
	enc.AddString("attestation-contract", c.AttestationContract)
	enc.AddUint64("chain-id", c.ChainID)
	enc.AddUint64("gas-limit", c.GasLimit)
	enc.AddFloat64("gas-margin", c.GasMargin)
	enc.AddDuration("receipt-interval", c.ReceiptInterval)
	enc.AddDuration("receipt-timeout", c.ReceiptTimeout)
	return nil
}
