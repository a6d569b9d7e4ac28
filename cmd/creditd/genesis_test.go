package main

import (
	"testing"
	"time"

	"creditguild/crypto"
	"creditguild/gateway/middleware"
	daemonconfig "creditguild/services/creditd/config"
)

func TestSignedTokenAuthenticates(t *testing.T) {
	auth := daemonconfig.AuthConfig{HMACSecret: "creditd-secret", Issuer: "creditd", Audience: "api"}
	account := [20]byte{0x42}
	token, err := signToken(auth, crypto.FormatAddress(account), time.Hour, time.Now())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	verifier, err := middleware.NewAuthenticator(middleware.AuthConfig{
		HMACSecret: auth.HMACSecret,
		Issuer:     auth.Issuer,
		Audience:   auth.Audience,
	}, nil)
	if err != nil {
		t.Fatalf("authenticator: %v", err)
	}
	got, err := verifier.Authenticate(token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got != account {
		t.Fatalf("unexpected subject %x", got)
	}
}

func TestSignTokenRejectsBadInput(t *testing.T) {
	auth := daemonconfig.AuthConfig{HMACSecret: "creditd-secret"}
	if _, err := signToken(auth, "nope", time.Hour, time.Now()); err == nil {
		t.Fatalf("expected address error")
	}
	if _, err := signToken(auth, crypto.FormatAddress([20]byte{1}), 0, time.Now()); err == nil {
		t.Fatalf("expected ttl error")
	}
}

func TestOpenStoreMemory(t *testing.T) {
	db, err := openStore(daemonconfig.StorageConfig{Backend: daemonconfig.BackendMemory})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	if err := db.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
}
