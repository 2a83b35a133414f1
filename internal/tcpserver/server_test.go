package tcpserver

import (
	"fmt"
	"net"
	"testing"
	"time"
)

func TestNewServerDefaultLocalhostAddress(t *testing.T) {
	t.Parallel()

	s := NewServer("")
	if got := s.Addr(); got != "127.0.0.1:4040" {
		t.Fatalf("Addr() = %q, want %q", got, "127.0.0.1:4040")
	}
}

func TestNewServerUsesConfiguredAddressAndBuffers(t *testing.T) {
	t.Parallel()

	s := NewServer("0.0.0.0:5000", ServerConfig{
		LineChannelSize: 64,
		MaxLineSize:     2048,
	})

	if got := s.Addr(); got != "0.0.0.0:5000" {
		t.Fatalf("Addr() = %q, want %q", got, "0.0.0.0:5000")
	}
	if got := cap(s.lineChan); got != 64 {
		t.Fatalf("line channel cap = %d, want %d", got, 64)
	}
	if got := s.maxLineSize; got != 2048 {
		t.Fatalf("max line size = %d, want %d", got, 2048)
	}
}

func TestServerReceivesLines(t *testing.T) {
	s := NewServer("127.0.0.1:0")
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })

	conn, err := net.Dial("tcp", s.Addr())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	fmt.Fprintf(conn, "{\"a\":1}\n\n{\"b\":2}\n")
	conn.Close()

	var got []string
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case env := <-s.Lines():
			if env.Source != "tcp" {
				t.Errorf("Source = %q, want tcp", env.Source)
			}
			got = append(got, env.Line)
		case <-timeout:
			t.Fatalf("timed out, received %v", got)
		}
	}

	if got[0] != `{"a":1}` || got[1] != `{"b":2}` {
		t.Errorf("lines = %v (empty lines must be dropped)", got)
	}
}
