// generate-token issues a JWT for manual API testing.
package main

import (
	"flag"
	"fmt"
	"log"

	"tokenbridge/internal/config"
	"tokenbridge/internal/handlers"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	address := flag.String("address", "0x742d35Cc6634C0532925a3b0F26750C66d78EB66", "L1 address to issue the token for")
	flag.Parse()

	if err := config.LoadConfig(*configPath); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	token, err := handlers.GenerateJWTToken(*address)
	if err != nil {
		log.Fatalf("Failed to generate token: %v", err)
	}

	fmt.Println("============================================================")
	fmt.Println("JWT Token Generated for Testing")
	fmt.Println("============================================================")
	fmt.Println()
	fmt.Println("Token:")
	fmt.Println(token)
	fmt.Println()
	fmt.Printf("Address: %s\n", *address)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("  curl -H \"Authorization: Bearer %s\" ...\n", token)
}
