package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"launchpad/internal/application"
	"launchpad/internal/config"
	"launchpad/internal/domain/model"
	"launchpad/internal/infra/api"
	"launchpad/internal/infra/logging"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "developer mode")
	count := flag.Int("count", 5, "number of promo codes to issue (1-100)")
	prefix := flag.String("prefix", "LAUNCH", "promo code prefix")
	discount := flag.Float64("discount", 2.99, "discount amount")
	usageLimit := flag.Int("usage-limit", 10, "global usage limit per code; 0 means unlimited")
	validity := flag.Int("validity-days", 30, "days until expiry; 0 means never")
	admin := flag.String("admin", "seed-admin", "issuer id recorded on the codes and in the admin token")
	flag.Parse()

	// ---- Config ----
	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg.Database.ApplySchema = true
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	svc, err := application.Build(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("build services: %v", err)
	}
	defer svc.Close()

	var limit *int
	if *usageLimit > 0 {
		limit = usageLimit
	}
	codes, err := svc.Issue.Issue(ctx, model.IssueRequest{
		Count:          *count,
		Prefix:         *prefix,
		DiscountAmount: *discount,
		UsageLimit:     limit,
		ValidityDays:   *validity,
		CreatedBy:      *admin,
	})
	if err != nil {
		log.Fatalf("issue promo codes: %v", err)
	}
	for _, p := range codes {
		exp := "never"
		if p.ExpiresAt != nil {
			exp = p.ExpiresAt.Format(time.RFC3339)
		}
		fmt.Printf("seeded: %s (id=%s, discount=%.2f, expires=%s)\n", p.Code, p.ID, p.DiscountAmount, exp)
	}

	tok, err := api.NewAuthManager(cfg.HTTP.JWTSecret, cfg.HTTP.TokenTTL).Mint(*admin, model.RoleAdmin)
	if err != nil {
		log.Fatalf("mint admin token: %v", err)
	}
	fmt.Printf("admin token (valid %s):\n%s\n", cfg.HTTP.TokenTTL, tok)
}
