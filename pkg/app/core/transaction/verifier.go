package transaction

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperoptions/pkg/crypto"
)

// Verifier handles transaction signature verification
type Verifier struct {
	eip712Signer *crypto.EIP712Signer
}

// NewVerifier creates a new transaction verifier
func NewVerifier(domain crypto.EIP712Domain) *Verifier {
	return &Verifier{eip712Signer: crypto.NewEIP712Signer(domain)}
}

// Verify checks that the declared sender signed tx and returns it.
func (v *Verifier) Verify(tx *SignedTransaction) (common.Address, error) {
	action, err := tx.Action()
	if err != nil {
		return common.Address{}, err
	}
	sig, err := decodeSignature(tx.Signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid signature: %w", err)
	}
	signer, err := v.eip712Signer.RecoverActionSigner(action, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("signature verification failed: %w", err)
	}
	if signer != action.Sender {
		return common.Address{}, fmt.Errorf("signature by %s, sender is %s", signer.Hex(), action.Sender.Hex())
	}
	return signer, nil
}

// Sign fills in tx.Signature for s. The sender must be s's address.
func (v *Verifier) Sign(s *crypto.Signer, tx *SignedTransaction) error {
	if tx.SenderAddress() != s.Address() {
		return fmt.Errorf("sender %s does not match key %s", tx.Sender, s.Address().Hex())
	}
	action, err := tx.Action()
	if err != nil {
		return err
	}
	sig, err := v.eip712Signer.SignAction(s, action)
	if err != nil {
		return err
	}
	tx.Signature = "0x" + hex.EncodeToString(sig)
	return nil
}

// decodeSignature decodes hex-encoded signature (with or without 0x prefix)
func decodeSignature(sig string) ([]byte, error) {
	sig = strings.TrimPrefix(sig, "0x")

	sigBytes, err := hex.DecodeString(sig)
	if err != nil {
		return nil, fmt.Errorf("invalid hex signature: %w", err)
	}

	if len(sigBytes) != 65 {
		return nil, fmt.Errorf("signature must be 65 bytes, got %d", len(sigBytes))
	}

	return sigBytes, nil
}
