package infra

import (
	"context"
	"errors"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestConstructorsRequireURL(t *testing.T) {
	ctx := context.Background()
	if _, err := NewPostgresPool(ctx, "", PostgresOptions{}); !errors.Is(err, ErrNoDatabaseURL) {
		t.Fatalf("expected ErrNoDatabaseURL, got %v", err)
	}
	if _, err := NewRedisClient(ctx, "", ""); !errors.Is(err, ErrNoRedisURL) {
		t.Fatalf("expected ErrNoRedisURL, got %v", err)
	}
	if _, err := NewPostgresPool(ctx, "://not a dsn", PostgresOptions{}); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestNewRedisClient(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	url := "redis://" + mr.Addr() + "/0"

	client, err := NewRedisClient(context.Background(), url, "")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()
	if err := client.Set(context.Background(), "k", "v", 0).Err(); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, _ := mr.Get("k"); got != "v" {
		t.Fatalf("expected v, got %q", got)
	}

	mr.Close()
	if _, err := NewRedisClient(context.Background(), url, ""); err == nil {
		t.Fatalf("expected unreachable error after shutdown")
	}
}
