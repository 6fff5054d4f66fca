package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tegro/tegrodex/pkg/crypto"
)

// Demonstrates the off-chain signing flow: generate a key, build an order,
// sign it with EIP-712, verify, and print the JSON payload ready to POST to
// the settlement node. The digest computed here is byte-for-byte the order
// identifier the node's fill ledger keys on.
func main() {
	fmt.Println("Generating new keypair...")
	signer, err := crypto.GenerateKey()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Address: %s\n", signer.Address().Hex())
	fmt.Printf("Private Key: %s (KEEP SECRET!)\n\n", signer.PrivateKeyHex())

	salt, err := crypto.GenerateSalt()
	if err != nil {
		fmt.Printf("Error generating salt: %v\n", err)
		os.Exit(1)
	}

	order := &crypto.OrderEIP712{
		BaseToken:     common.HexToAddress("0x1111111111111111111111111111111111111111"),
		QuoteToken:    common.HexToAddress("0x2222222222222222222222222222222222222222"),
		Price:         big.NewInt(10000), // 1.0000 quote per base (quote decimals = 4)
		TotalQuantity: big.NewInt(200),   // 2.00 base (base decimals = 2)
		IsBuy:         true,
		Salt:          salt,
		Maker:         signer.Address(),
	}

	fmt.Println("Order Details:")
	fmt.Printf("  Base Token:  %s\n", order.BaseToken.Hex())
	fmt.Printf("  Quote Token: %s\n", order.QuoteToken.Hex())
	fmt.Printf("  Price: %s\n", order.Price.String())
	fmt.Printf("  Total Quantity: %s\n", order.TotalQuantity.String())
	fmt.Printf("  Side: buy=%v\n", order.IsBuy)
	fmt.Printf("  Salt: %s\n", order.Salt.String())
	fmt.Printf("  Maker: %s\n\n", order.Maker.Hex())

	eip712Signer := crypto.NewEIP712Signer(crypto.DefaultDomain())

	hash, err := eip712Signer.HashOrder(order)
	if err != nil {
		fmt.Printf("Error hashing: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Order ID: 0x%x\n", hash)

	signature, err := eip712Signer.SignOrder(signer, order)
	if err != nil {
		fmt.Printf("Error signing: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Signature: 0x%x\n\n", signature)

	fmt.Println("Verifying signature...")
	valid, err := eip712Signer.VerifyOrderSignature(order, signature)
	if err != nil || !valid {
		fmt.Println("✗ Signature INVALID")
		os.Exit(1)
	}
	fmt.Println("✓ Signature VALID")

	// Wallet payload for eth_signTypedData_v4 (what a frontend would sign)
	walletJSON, err := eip712Signer.OrderToJSON(order)
	if err != nil {
		fmt.Printf("Error building wallet payload: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("\nTyped data payload (eth_signTypedData_v4):")
	fmt.Println(walletJSON)

	// REST payload for the settlement node
	payload := map[string]interface{}{
		"baseToken":     order.BaseToken.Hex(),
		"quoteToken":    order.QuoteToken.Hex(),
		"price":         order.Price.String(),
		"totalQuantity": order.TotalQuantity.String(),
		"isBuy":         order.IsBuy,
		"salt":          order.Salt.String(),
		"maker":         order.Maker.Hex(),
	}
	payloadJSON, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		fmt.Printf("Error marshaling JSON: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nOrder payload for the node:")
	fmt.Println(string(payloadJSON))
	fmt.Println()
	fmt.Println("To compute the same identifier the ledger uses:")
	fmt.Println("  POST http://localhost:8080/api/v1/orders/hash")
	fmt.Println("  Content-Type: application/json")
	fmt.Println("  Body: <order payload above>")
}
