package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperoptions/pkg/app/core/amount"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/transaction"
	"github.com/uhyunpark/hyperoptions/pkg/crypto"
)

func main() {
	var (
		keyHex  = flag.String("key", os.Getenv("SIGNER_KEY"), "hex private key (default $SIGNER_KEY, random if empty)")
		typ     = flag.String("type", "", "transaction type, e.g. buy, sell, open_book, exercise")
		target  = flag.String("target", "", "market, option or token address")
		value   = flag.String("value", "0", "native value in base units (wei), decimal")
		nonce   = flag.Uint64("nonce", 0, "sender nonce")
		payload = flag.String("payload", "", `kind-specific JSON, e.g. {"book":"0x..","quantity":"10","price":"3"}`)
		chainID = flag.Int64("chain-id", crypto.DefaultDomain().ChainID.Int64(), "EIP-712 chain id")
		submit  = flag.String("submit", "", "node URL to POST the signed transaction to, e.g. http://localhost:8080")
	)
	flag.Parse()

	if *typ == "" || !common.IsHexAddress(*target) {
		fmt.Fprintln(os.Stderr, "usage: sign-tx -type TYPE -target ADDRESS [-payload JSON] [-value N] [-nonce N] [-submit URL]")
		os.Exit(2)
	}

	// Step 1: Load or generate key
	signer, err := loadSigner(*keyHex)
	if err != nil {
		fail("key", err)
	}
	fmt.Fprintf(os.Stderr, "Address: %s\n", signer.Address().Hex())

	// Step 2: Build transaction
	native, err := amount.FromDecimal(*value)
	if err != nil {
		fail("value", err)
	}
	var body any
	if *payload != "" {
		if !json.Valid([]byte(*payload)) {
			fail("payload", fmt.Errorf("not valid JSON"))
		}
		body = json.RawMessage(*payload)
	}
	tx, err := transaction.New(transaction.TxType(*typ), signer.Address(), common.HexToAddress(*target), native, *nonce, body)
	if err != nil {
		fail("build", err)
	}

	// Step 3: Sign with EIP-712
	domain := crypto.DefaultDomain()
	domain.ChainID = big.NewInt(*chainID)
	verifier := transaction.NewVerifier(domain)
	if err := verifier.Sign(signer, tx); err != nil {
		fail("sign", err)
	}
	if err := tx.Validate(); err != nil {
		fail("validate", err)
	}

	// Step 4: Verify round trip
	if _, err := verifier.Verify(tx); err != nil {
		fail("verify", err)
	}

	raw, err := tx.Serialize()
	if err != nil {
		fail("serialize", err)
	}
	fmt.Println(string(raw))

	if *submit == "" {
		return
	}

	// Step 5: Submit to the node
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(*submit+"/api/v1/tx", "application/json", bytes.NewReader(raw))
	if err != nil {
		fail("submit", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	fmt.Fprintf(os.Stderr, "%s %s\n", resp.Status, bytes.TrimSpace(out))
	if resp.StatusCode != http.StatusAccepted {
		os.Exit(1)
	}
}

func loadSigner(keyHex string) (*crypto.Signer, error) {
	if keyHex == "" {
		s, err := crypto.GenerateKey()
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(os.Stderr, "Private Key: %s (KEEP SECRET!)\n", s.PrivateKeyHex())
		return s, nil
	}
	return crypto.FromPrivateKeyHex(keyHex)
}

func fail(step string, err error) {
	fmt.Fprintf(os.Stderr, "Error (%s): %v\n", step, err)
	os.Exit(1)
}
