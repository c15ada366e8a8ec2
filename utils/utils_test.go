package utils

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/cppla/habitly/config"
)

func TestMain(m *testing.M) {
	// No Redis host: every store uses its in-memory fallback.
	config.Set(config.AppConfig{JWTSecret: "utils-test-secret", LogLevel: "silent"})
	os.Exit(m.Run())
}

func TestGenerateAndParseToken(t *testing.T) {
	token, err := GenerateToken(42, "alice", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := ParseToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != 42 || claims.Username != "alice" || claims.ID == "" {
		t.Fatalf("claims = %+v", claims)
	}

	other, err := GenerateToken(42, "alice", time.Hour)
	if err != nil {
		t.Fatalf("generate second: %v", err)
	}
	second, _ := ParseToken(other)
	if second.ID == claims.ID {
		t.Fatal("token ids are not unique")
	}
}

func TestParseTokenRejects(t *testing.T) {
	expired, err := GenerateToken(1, "bob", -time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	valid, err := GenerateToken(1, "bob", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	sig := valid[strings.LastIndex(valid, ".")+1:]
	tampered := valid[:len(valid)-len(sig)] + strings.Repeat("A", len(sig))
	tests := map[string]string{
		"expired":  expired,
		"garbage":  "not-a-jwt",
		"tampered": tampered,
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseToken(tok); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestRevokeTokenInMemory(t *testing.T) {
	ctx := context.Background()
	if IsTokenRevoked(ctx, "jti-1") {
		t.Fatal("fresh token reported revoked")
	}
	RevokeToken(ctx, "jti-1", time.Now().Add(time.Hour))
	if !IsTokenRevoked(ctx, "jti-1") {
		t.Fatal("revoked token accepted")
	}
	RevokeToken(ctx, "jti-2", time.Now().Add(-time.Second))
	if IsTokenRevoked(ctx, "jti-2") {
		t.Fatal("already expired token should not be stored")
	}
}

func TestOAuthStateSingleUse(t *testing.T) {
	ctx := context.Background()
	SaveState(ctx, "state-1", time.Minute)
	if !ConsumeState(ctx, "state-1") {
		t.Fatal("saved state rejected")
	}
	if ConsumeState(ctx, "state-1") {
		t.Fatal("state accepted twice")
	}
	if ConsumeState(ctx, "never-saved") || ConsumeState(ctx, "") {
		t.Fatal("unknown state accepted")
	}
}

func TestSanitize(t *testing.T) {
	if got := SanitizeText(`<b>Read</b> & <script>alert(1)</script>write`); got != "Read & write" {
		t.Fatalf("SanitizeText = %q", got)
	}
	got := Sanitize(`<p onclick="x()">hi <em>there</em></p><script>bad()</script>`)
	if strings.Contains(got, "onclick") || strings.Contains(got, "script") || !strings.Contains(got, "<em>there</em>") {
		t.Fatalf("Sanitize = %q", got)
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword(hash, "correct horse") || CheckPassword(hash, "wrong horse") {
		t.Fatal("password check mismatch")
	}
	if _, err := HashPassword(strings.Repeat("a", 73)); err != ErrPasswordTooLong {
		t.Fatalf("long password: got %v", err)
	}
}

func TestCacheWithoutRedisIsANoop(t *testing.T) {
	ctx := context.Background()
	CacheSetJSON(ctx, CacheKey("test", "k"), map[string]int{"a": 1}, time.Minute)
	var out map[string]int
	if CacheGetJSON(ctx, CacheKey("test", "k"), &out) {
		t.Fatal("cache hit without redis")
	}
	InvalidateByPrefix(ctx, CacheKey("test"))
	if got := CacheKey("leaderboard", "10"); got != "habitly:leaderboard:10" {
		t.Fatalf("CacheKey = %q", got)
	}
}
