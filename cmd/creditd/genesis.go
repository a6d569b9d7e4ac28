package main

import (
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"creditguild/config"
	"creditguild/crypto"
	daemonconfig "creditguild/services/creditd/config"
)

var validateGenesisCmd = &cobra.Command{
	Use:   "validate-genesis <path>",
	Short: "Parse and validate a genesis TOML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		genesis, err := config.Load(args[0])
		if err != nil {
			return err
		}
		resolved, err := genesis.Resolve()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "genesis ok: credit=%s markets=%d roles=%d balances=%d\n",
			resolved.CreditDenom, len(resolved.Markets), len(resolved.Roles), len(resolved.Balances))
		return nil
	},
}

var (
	tokenAddress string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Sign a bearer token for an account using the configured secret",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := daemonconfig.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		token, err := signToken(cfg.Auth, tokenAddress, tokenTTL, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenAddress, "address", "", "bech32 account the token authenticates")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("address")
}

func signToken(auth daemonconfig.AuthConfig, address string, ttl time.Duration, now time.Time) (string, error) {
	if _, err := crypto.ParseAddress(address); err != nil {
		return "", fmt.Errorf("address: %w", err)
	}
	if ttl <= 0 {
		return "", fmt.Errorf("ttl must be positive")
	}
	claims := jwt.RegisteredClaims{
		Subject:   address,
		Issuer:    auth.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if auth.Audience != "" {
		claims.Audience = jwt.ClaimStrings{auth.Audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(auth.Secret()))
}
