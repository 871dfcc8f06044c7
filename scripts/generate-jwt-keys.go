package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"strings"
)

// Generates the ES256 signing key the API uses for session tokens and
// document retrieval handles. Run once per environment; without JWT_SECRET
// the server refuses to start.
func main() {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "key generation failed: %v\n", err)
		os.Exit(1)
	}

	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "key encoding failed: %v\n", err)
		os.Exit(1)
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "EC PRIVATE KEY",
		Bytes: der,
	})

	if err := os.WriteFile("jwt-private-key.pem", keyPEM, 0600); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write jwt-private-key.pem: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Wrote jwt-private-key.pem (P-256, signs both session tokens and retrieval handles).")
	fmt.Println()
	fmt.Println("Either point the server at the file:")
	fmt.Println("  JWT_SECRET=$(cat jwt-private-key.pem)")
	fmt.Println()
	fmt.Println("or inline it in .env as a single line:")
	fmt.Printf("  JWT_SECRET=%s\n", strings.ReplaceAll(string(keyPEM), "\n", "\\n"))
}
