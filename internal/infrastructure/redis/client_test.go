package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/nerrad567/gray-logic-compliance/internal/infrastructure/config"
)

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Connect(context.Background(), config.RedisConfig{
		Addr:      mr.Addr(),
		KeyPrefix: "test:attempts:",
	})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if client.KeyPrefix() != "test:attempts:" {
		t.Errorf("KeyPrefix() = %q", client.KeyPrefix())
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Connect(context.Background(), config.RedisConfig{Addr: addr})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestHealthCheck_Closed(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Connect(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestClose_Nil(t *testing.T) {
	var client *Client
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}
