package nrcs

import (
	"testing"
	"time"
)

func TestNewFTPClient_defaults(t *testing.T) {
	c := NewFTPClient("host:21", "user", "pass")

	if c.poolSize != 4 {
		t.Errorf("expected default pool size 4, got %d", c.poolSize)
	}
	if c.dialTimeout != 10*time.Second {
		t.Errorf("expected default dial timeout 10s, got %v", c.dialTimeout)
	}
	if cap(c.conns) != 4 {
		t.Errorf("expected connection pool capacity 4, got %d", cap(c.conns))
	}
}

func TestNewFTPClient_options(t *testing.T) {
	c := NewFTPClient("host:21", "user", "pass", WithPoolSize(8), WithDialTimeout(2*time.Second))

	if c.poolSize != 8 {
		t.Errorf("expected pool size 8, got %d", c.poolSize)
	}
	if c.dialTimeout != 2*time.Second {
		t.Errorf("expected dial timeout 2s, got %v", c.dialTimeout)
	}
}

func TestFTPClientOption_ignoresNonPositiveValues(t *testing.T) {
	c := NewFTPClient("host:21", "user", "pass", WithPoolSize(0), WithDialTimeout(-time.Second))

	if c.poolSize != 4 {
		t.Errorf("expected pool size to stay at default 4, got %d", c.poolSize)
	}
	if c.dialTimeout != 10*time.Second {
		t.Errorf("expected dial timeout to stay at default 10s, got %v", c.dialTimeout)
	}
}

func TestFTPClient_queueLengthStartsAtZero(t *testing.T) {
	c := NewFTPClient("host:21", "user", "pass")
	if n := c.QueueLength(); n != 0 {
		t.Errorf("expected zero in-flight requests on a fresh client, got %d", n)
	}
}
