// Command token mints a dashboard access token signed with the API's JWT
// secret. Users and logins live outside this service; operators use this to
// hand out tokens.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/angelmondragon/schoolpay-backend/pkg/auth"
	"github.com/angelmondragon/schoolpay-backend/pkg/config"
	"github.com/angelmondragon/schoolpay-backend/pkg/env"
	"github.com/angelmondragon/schoolpay-backend/pkg/logger"
)

func main() {
	_ = godotenv.Load()
	logg := logger.New(logger.Options{
		ServiceName: "token",
		Level:       logger.ParseLevel(env.Get("SCHOOLPAY_LOG_LEVEL", "info")),
		WarnStack:   env.Bool("SCHOOLPAY_LOG_WARN_STACK", false),
		Output:      os.Stderr,
	})

	userID := flag.String("user", "", "user id placed in the token (required)")
	email := flag.String("email", "", "optional email claim")
	role := flag.String("role", "admin", "role claim")
	ttl := flag.Duration("ttl", 0, "token lifetime; defaults to SCHOOLPAY_JWT_EXPIRATION_MINUTES")
	flag.Parse()

	var cfg config.JWTConfig
	if err := envconfig.Process(config.EnvPrefix, &cfg); err != nil {
		logg.Error(context.Background(), "failed to load jwt config", err)
		os.Exit(1)
	}
	if *ttl > 0 {
		cfg.ExpirationMinutes = int(ttl.Round(time.Minute) / time.Minute)
	}

	token, err := auth.MintAccessToken(cfg, time.Now(), auth.AccessTokenPayload{
		UserID: *userID,
		Email:  *email,
		Role:   *role,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to mint token", err)
		os.Exit(1)
	}

	ctx := logg.WithFields(context.Background(), map[string]any{
		"user_id":    *userID,
		"role":       *role,
		"expires_in": cfg.Expiration().String(),
	})
	logg.Info(ctx, "token minted")
	fmt.Println(token)
}
