package crypto

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// EIP712Domain separates signatures of this chain from any other.
type EIP712Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

func DefaultDomain() EIP712Domain {
	return EIP712Domain{
		Name:    "HyperOptions",
		Version: "1",
		ChainID: big.NewInt(1337),
	}
}

// Action is what a wallet signs for every transaction kind. Payload is the
// compact JSON of the kind-specific arguments, shown verbatim by wallets.
type Action struct {
	Kind    string
	Sender  common.Address
	Target  common.Address
	Value   *big.Int
	Nonce   uint64
	Payload string
}

var actionTypes = apitypes.Types{
	"EIP712Domain": []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"Action": []apitypes.Type{
		{Name: "kind", Type: "string"},
		{Name: "sender", Type: "address"},
		{Name: "target", Type: "address"},
		{Name: "value", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
		{Name: "payload", Type: "string"},
	},
}

type EIP712Signer struct {
	domain EIP712Domain
}

func NewEIP712Signer(domain EIP712Domain) *EIP712Signer {
	return &EIP712Signer{domain: domain}
}

func (e *EIP712Signer) typedData(a *Action) apitypes.TypedData {
	value := a.Value
	if value == nil {
		value = new(big.Int)
	}
	return apitypes.TypedData{
		Types:       actionTypes,
		PrimaryType: "Action",
		Domain: apitypes.TypedDataDomain{
			Name:              e.domain.Name,
			Version:           e.domain.Version,
			ChainId:           (*math.HexOrDecimal256)(e.domain.ChainID),
			VerifyingContract: e.domain.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"kind":    a.Kind,
			"sender":  a.Sender.Hex(),
			"target":  a.Target.Hex(),
			"value":   value.String(),
			"nonce":   fmt.Sprintf("%d", a.Nonce),
			"payload": a.Payload,
		},
	}
}

// HashAction returns keccak256("\x19\x01" || domainSeparator || hashStruct(action)).
func (e *EIP712Signer) HashAction(a *Action) ([]byte, error) {
	td := e.typedData(a)
	domainSeparator, err := td.HashStruct("EIP712Domain", td.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}
	actionHash, err := td.HashStruct(td.PrimaryType, td.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash action: %w", err)
	}
	raw := append([]byte("\x19\x01"), domainSeparator...)
	raw = append(raw, actionHash...)
	return crypto.Keccak256(raw), nil
}

func (e *EIP712Signer) SignAction(s *Signer, a *Action) ([]byte, error) {
	hash, err := e.HashAction(a)
	if err != nil {
		return nil, err
	}
	return s.Sign(hash)
}

// RecoverActionSigner returns the address that signed a.
func (e *EIP712Signer) RecoverActionSigner(a *Action, signature []byte) (common.Address, error) {
	hash, err := e.HashAction(a)
	if err != nil {
		return common.Address{}, err
	}
	return RecoverAddress(hash, signature)
}

// ActionToJSON renders the typed data for eth_signTypedData_v4.
func (e *EIP712Signer) ActionToJSON(a *Action) (string, error) {
	out, err := json.MarshalIndent(e.typedData(a), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal typed data: %w", err)
	}
	return string(out), nil
}
