package storage

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return mr, client
}

func TestRedisCache_BuildKey(t *testing.T) {
	mr, client := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	tests := []struct {
		name     string
		prefix   string
		key      string
		expected string
	}{
		{"with prefix", "petclinic", "queue-url:appointments", "petclinic:queue-url:appointments"},
		{"empty prefix", "", "queue-url:appointments", "queue-url:appointments"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := NewRedisCache(client, tt.prefix)
			if got := cache.buildKey(tt.key); got != tt.expected {
				t.Errorf("expected key '%s', got '%s'", tt.expected, got)
			}
		})
	}
}

func TestRedisCache_SetGet(t *testing.T) {
	mr, client := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	cache := NewRedisCache(client, "petclinic")
	ctx := context.Background()

	if err := cache.Set(ctx, "queue-url:appointments", "https://sqs.test/appointments", 60); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	val, err := cache.Get(ctx, "queue-url:appointments")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if val != "https://sqs.test/appointments" {
		t.Errorf("expected cached URL, got '%s'", val)
	}
}

func TestRedisCache_GetMissingKey(t *testing.T) {
	mr, client := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	cache := NewRedisCache(client, "petclinic")

	val, err := cache.Get(context.Background(), "queue-url:unknown")
	if err != nil {
		t.Fatalf("expected no error for missing key, got %v", err)
	}
	if val != "" {
		t.Errorf("expected empty value, got '%s'", val)
	}
}

func TestRedisCache_Delete(t *testing.T) {
	mr, client := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	cache := NewRedisCache(client, "petclinic")
	ctx := context.Background()

	if err := cache.Set(ctx, "queue-url:appointments", "https://sqs.test/appointments", 60); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := cache.Delete(ctx, "queue-url:appointments"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	val, err := cache.Get(ctx, "queue-url:appointments")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if val != "" {
		t.Errorf("expected empty value after delete, got '%s'", val)
	}
}
