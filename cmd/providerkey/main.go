package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"faceswap/internal/infra"
	"faceswap/internal/infra/credentials"
)

var envKeys = map[string]string{
	credentials.ProviderGemini:   "GEMINI_API_KEY",
	credentials.ProviderQwen:     "QWEN_API_KEY",
	credentials.ProviderFaceSwap: "FACESWAP_API_KEY",
}

func main() {
	_ = godotenv.Load()

	var (
		keyFlag      string
		providerFlag string
		deleteFlag   bool
		listFlag     bool
	)
	flag.StringVar(&keyFlag, "key", "", "API key for the selected provider (falls back to the provider's environment variable)")
	flag.StringVar(&providerFlag, "provider", credentials.ProviderGemini, "Provider to configure (gemini, qwen or faceswap)")
	flag.BoolVar(&deleteFlag, "delete", false, "Remove the stored key instead of setting it")
	flag.BoolVar(&listFlag, "list", false, "List providers with a stored key")
	flag.Parse()

	provider := strings.TrimSpace(strings.ToLower(providerFlag))
	if _, ok := envKeys[provider]; !ok && !listFlag {
		fmt.Fprintf(os.Stderr, "unsupported provider %q\n", providerFlag)
		os.Exit(1)
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pool, err := infra.NewDBPool(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "providerkey").Str("provider", provider).Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))

	switch {
	case listFlag:
		entries, err := store.List(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to list keys: %v\n", err)
			os.Exit(1)
		}
		for _, e := range entries {
			fmt.Printf("%-10s updated %s\n", e.Provider, e.UpdatedAt.Format(time.RFC3339))
		}
	case deleteFlag:
		if err := store.Delete(ctx, provider); err != nil {
			fmt.Fprintf(os.Stderr, "failed to delete %s api key: %v\n", provider, err)
			os.Exit(1)
		}
		fmt.Printf("%s API key removed\n", strings.ToUpper(provider))
	default:
		key := strings.TrimSpace(keyFlag)
		if key == "" {
			key = strings.TrimSpace(os.Getenv(envKeys[provider]))
		}
		if key == "" {
			fmt.Fprintf(os.Stderr, "%s API key is required via -key or %s\n", strings.ToUpper(provider), envKeys[provider])
			os.Exit(1)
		}
		props := map[string]any{"storedAt": time.Now().UTC().Format(time.RFC3339)}
		if err := store.Set(ctx, provider, key, props); err != nil {
			fmt.Fprintf(os.Stderr, "failed to persist %s api key: %v\n", provider, err)
			os.Exit(1)
		}
		fmt.Printf("%s API key stored successfully\n", strings.ToUpper(provider))
	}
}
