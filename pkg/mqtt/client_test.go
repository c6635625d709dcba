package mqtt

import (
	"context"
	"strings"
	"testing"
)

// TestNew tests creating a new MQTT client
func TestNew(t *testing.T) {
	config := Config{
		Enabled:     true,
		Broker:      "tcp://localhost:1883",
		TopicPrefix: "selcall/test",
		ClientID:    "test-client",
		QoS:         1,
	}

	c := New(config, nil)
	if c == nil {
		t.Fatal("Expected non-nil client")
	}
	if c.config.Broker != config.Broker {
		t.Errorf("Expected broker %s, got %s", config.Broker, c.config.Broker)
	}
}

// TestNew_GeneratesClientID tests the default client ID
func TestNew_GeneratesClientID(t *testing.T) {
	c := New(Config{Enabled: true, Broker: "tcp://localhost:1883"}, nil)
	if c.config.ClientID == "" {
		t.Fatal("Expected generated client ID")
	}
	if !strings.HasPrefix(c.config.ClientID, "selcall-") {
		t.Errorf("Expected selcall- prefix, got %q", c.config.ClientID)
	}
}

// TestClient_StartWhenDisabled tests starting the client when disabled
func TestClient_StartWhenDisabled(t *testing.T) {
	c := New(Config{Enabled: false}, nil)

	if err := c.Start(context.Background()); err != nil {
		t.Errorf("Expected no error when disabled, got %v", err)
	}
}

// TestClient_StopWithoutStart tests that Stop is safe without Start
func TestClient_StopWithoutStart(t *testing.T) {
	c := New(Config{Enabled: false}, nil)

	// Should not panic
	c.Stop()
}

// TestClient_PublishWhenDisabled tests that publishes are no-ops when disabled
func TestClient_PublishWhenDisabled(t *testing.T) {
	c := New(Config{Enabled: false}, nil)

	if err := c.PublishDecode(map[string]string{"code": "12345"}); err != nil {
		t.Errorf("Expected nil from disabled publish, got %v", err)
	}
}

// TestParseTxRequest tests transmit request payload parsing
func TestParseTxRequest(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		wantDest string
		wantProt string
		wantErr  bool
	}{
		{name: "bare code", payload: "12345", wantDest: "12345"},
		{name: "bare code with whitespace", payload: "  12345\n", wantDest: "12345"},
		{name: "json destination", payload: `{"destination": "54321"}`, wantDest: "54321"},
		{name: "json with protocol", payload: `{"destination": "54321", "protocol": "ZVEI-1"}`, wantDest: "54321", wantProt: "ZVEI-1"},
		{name: "empty payload", payload: "", wantErr: true},
		{name: "blank payload", payload: "   ", wantErr: true},
		{name: "broken json", payload: `{"destination": `, wantErr: true},
		{name: "json without destination", payload: `{"protocol": "ZVEI-1"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dest, prot, err := parseTxRequest([]byte(tt.payload))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.payload)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if dest != tt.wantDest {
				t.Errorf("destination = %q, want %q", dest, tt.wantDest)
			}
			if prot != tt.wantProt {
				t.Errorf("protocol = %q, want %q", prot, tt.wantProt)
			}
		})
	}
}

// TestClient_DispatchTx tests request dispatch to the transmit handler
func TestClient_DispatchTx(t *testing.T) {
	c := New(Config{Enabled: true, Broker: "tcp://localhost:1883", Protocol: "ZVEI-1"}, nil)

	var got []string
	c.OnTxRequest(func(destination string) error {
		got = append(got, destination)
		return nil
	})

	c.dispatchTx([]byte("12345"))
	c.dispatchTx([]byte(`{"destination": "54321", "protocol": "zvei-1"}`))

	// Mismatched protocol and garbage are dropped, not delivered
	c.dispatchTx([]byte(`{"destination": "11111", "protocol": "CCIR-1"}`))
	c.dispatchTx([]byte(`{"destination": `))
	c.dispatchTx([]byte(""))

	want := []string{"12345", "54321"}
	if len(got) != len(want) {
		t.Fatalf("handler saw %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("request %d = %q, want %q", i, got[i], want[i])
		}
	}
}

// TestClient_DispatchTxWithoutHandler tests that requests without a handler
// are dropped without panicking
func TestClient_DispatchTxWithoutHandler(t *testing.T) {
	c := New(Config{Enabled: true, Broker: "tcp://localhost:1883"}, nil)

	c.dispatchTx([]byte("12345"))
}

// TestClient_TopicFormatting tests topic prefix handling
func TestClient_TopicFormatting(t *testing.T) {
	tests := []struct {
		prefix string
		suffix string
		want   string
	}{
		{"selcall", "decode", "selcall/decode"},
		{"selcall/", "tx", "selcall/tx"},
		{"", "status", "status"},
		{"site/radio1", "gate", "site/radio1/gate"},
	}

	for _, tt := range tests {
		c := New(Config{TopicPrefix: tt.prefix}, nil)
		if got := c.topic(tt.suffix); got != tt.want {
			t.Errorf("topic(%q) with prefix %q = %q, want %q", tt.suffix, tt.prefix, got, tt.want)
		}
	}
}
