// AngelaMos | 2026
// main.go

package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/bbigmic/dziennik-pracy/internal/auth"
)

// keygen writes the ES256 signing key pair used for access tokens and
// prints a fresh VAPID key pair for web push.
func main() {
	privatePath := flag.String("private", "keys/private.pem", "JWT private key output path")
	publicPath := flag.String("public", "keys/public.pem", "JWT public key output path")
	skipJWT := flag.Bool("vapid-only", false, "only generate VAPID keys")
	flag.Parse()

	if !*skipJWT {
		if err := os.MkdirAll(filepath.Dir(*privatePath), 0o700); err != nil {
			slog.Error("create key directory", "error", err)
			os.Exit(1)
		}
		if err := auth.WriteKeyPair(*privatePath, *publicPath); err != nil {
			slog.Error("generate JWT keys", "error", err)
			os.Exit(1)
		}
		fmt.Printf("JWT keys written to %s and %s\n", *privatePath, *publicPath)
	}

	vapidPrivate, vapidPublic, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		slog.Error("generate VAPID keys", "error", err)
		os.Exit(1)
	}

	fmt.Printf("VAPID_PUBLIC_KEY=%s\n", vapidPublic)
	fmt.Printf("VAPID_PRIVATE_KEY=%s\n", vapidPrivate)
}
