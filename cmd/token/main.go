// Command token issues an access token for a stored user, for operators and
// smoke tests against a running API.
//
//	token -user admin-1
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/example/ec-checkout/internal/auth"
	"github.com/example/ec-checkout/internal/config"
	"github.com/example/ec-checkout/internal/infrastructure/store"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	userID := flag.String("user", "", "id of the user the token speaks for")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to ACCESS_TOKEN_TTL)")
	flag.Parse()
	if *userID == "" {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()

	cfg, err := config.Load(os.LookupEnv)
	if err != nil {
		log.Fatalf("[Token] invalid configuration: %v", err)
	}
	if cfg.Auth.JWTSecret == "" {
		log.Fatal("[Token] JWT_SECRET is required")
	}
	lifetime := cfg.Auth.AccessTokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}

	db, err := store.ConnectPostgres(cfg.Database.URL)
	if err != nil {
		log.Fatalf("[Token] failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	jwtService := auth.NewJWTService(cfg.Auth.JWTSecret, lifetime, auth.WithIssuer(cfg.Auth.JWTIssuer))
	token, expiresAt, err := jwtService.IssueFor(ctx, store.NewPostgresStore(db, zap.NewNop()), *userID)
	if err != nil {
		log.Fatalf("[Token] %v", err)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Format(time.RFC3339))
}
