package ledger

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const (
	settleMethod = "verifyAndSettle"
	verifyMethod = "verifyProofAttestation"
)

// ContractABI describes the settlement and attestation contract methods used by the service.
const ContractABI = `[
	{
		"type": "function",
		"name": "verifyAndSettle",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "leaf", "type": "bytes32"},
			{"name": "attestationId", "type": "uint256"},
			{"name": "merklePath", "type": "bytes32[]"},
			{"name": "leafCount", "type": "uint256"},
			{"name": "leafIndex", "type": "uint256"},
			{"name": "winners", "type": "bool[]"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "verifyProofAttestation",
		"stateMutability": "view",
		"inputs": [
			{"name": "attestationId", "type": "uint256"},
			{"name": "leaf", "type": "bytes32"},
			{"name": "merklePath", "type": "bytes32[]"},
			{"name": "leafCount", "type": "uint256"},
			{"name": "index", "type": "uint256"}
		],
		"outputs": [{"name": "", "type": "bool"}]
	}
]`

var contractABI = mustParseABI(ContractABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("parsing contract ABI: %v", err))
	}
	return parsed
}

func hashes(path []common.Hash) [][32]byte {
	out := make([][32]byte, len(path))
	for i, h := range path {
		out[i] = h
	}
	return out
}

func packSettlement(req SettlementRequest) ([]byte, error) {
	return contractABI.Pack(settleMethod,
		[32]byte(req.Leaf),
		new(big.Int).SetUint64(req.AttestationID),
		hashes(req.MerklePath),
		new(big.Int).SetUint64(req.LeafCount),
		new(big.Int).SetUint64(req.LeafIndex),
		req.Winners,
	)
}

func packVerification(q AttestationQuery) ([]byte, error) {
	return contractABI.Pack(verifyMethod,
		new(big.Int).SetUint64(q.AttestationID),
		[32]byte(q.Leaf),
		hashes(q.MerklePath),
		new(big.Int).SetUint64(q.LeafCount),
		new(big.Int).SetUint64(q.Index),
	)
}
