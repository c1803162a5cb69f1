package service

import (
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/metergate/metergate/internal/authsig/domain"
)

const primaryType = "MeterAuthorization"

// typedData builds the EIP-712 envelope for one authorization. The
// domain pins the signature to this deployment: a payload signed for
// another chain or verifying contract hashes differently and never
// recovers to the consumer.
func typedData(p domain.Payload, chainID int64, verifyingContract string) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			primaryType: []apitypes.Type{
				{Name: "consumer", Type: "address"},
				{Name: "apiId", Type: "bytes32"},
				{Name: "nonce", Type: "uint256"},
				{Name: "deadline", Type: "uint256"},
			},
		},
		PrimaryType: primaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              "MeterGate",
			Version:           "1",
			ChainId:           math.NewHexOrDecimal256(chainID),
			VerifyingContract: verifyingContract,
		},
		Message: apitypes.TypedDataMessage{
			"consumer": p.Consumer.Hex(),
			"apiId":    p.ApiID.Hex(),
			"nonce":    math.NewHexOrDecimal256(p.Nonce),
			"deadline": math.NewHexOrDecimal256(p.Deadline),
		},
	}
}
