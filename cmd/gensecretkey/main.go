package main

import (
	"fmt"
	"log"

	"assistbackend/secrets"
)

func main() {
	log.Printf("🔑 Generating new secrets key...")

	key, err := secrets.GenerateKey()
	if err != nil {
		log.Fatalf("❌ Failed to generate secrets key: %v", err)
	}

	fmt.Printf("SECRETS_KEY=%s\n", key)
	log.Printf("✅ Successfully generated secrets key, store it as SECRETS_KEY")
}
