package redis

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/yungbote/travelplanner-backend/internal/platform/logger"
)

func TestNewClientPings(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)

	rdb, err := NewClient(logger.NewNop(), Config{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer rdb.Close()
}

func TestNewClientFailsFast(t *testing.T) {
	t.Parallel()
	if _, err := NewClient(logger.NewNop(), Config{}); err == nil {
		t.Fatalf("empty address should fail")
	}
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	if _, err := NewClient(logger.NewNop(), Config{Addr: addr, DialTimeout: 200 * time.Millisecond}); err == nil {
		t.Fatalf("closed server should fail the ping")
	}
}
