package panel

import (
	"encoding/json"
	"testing"
)

func TestParseNodeConfig_variants(t *testing.T) {
	cases := []struct {
		nodeType NodeType
		body     string
	}{
		{Trojan, `{"id":1,"server_port":443,"server_name":"t.example.com","network":"grpc","grpc_config":{"service_name":"trojan-grpc"}}`},
		{Shadowsocks, `{"id":2,"server_port":8388,"method":"aes-128-gcm"}`},
		{Hysteria, `{"id":3,"server_port":4443,"protocol":"udp","up_mbps":100,"down_mbps":500,"disable_udp":1}`},
		{Hysteria2, `{"id":4,"server_port":4444,"obfs":"salamander","ignore_cli_bandwidth":true}`},
		{VMess, `{"id":5,"server_port":10086,"tls":1,"network":"ws","websocket_config":{"path":"/ws","headers":{"Host":"v.example.com"}}}`},
		{AnyTLS, `{"id":6,"server_port":8443,"padding_rules":["stop=8"]}`},
		{Tuic, `{"id":7,"server_port":9443,"zero_rtt_handshake":1}`},
	}

	for _, tc := range cases {
		cfg, err := parseNodeConfig(tc.nodeType, []byte(tc.body))
		if err != nil {
			t.Errorf("%s: %v", tc.nodeType, err)
			continue
		}
		if cfg.Type != tc.nodeType {
			t.Errorf("%s: tagged as %s", tc.nodeType, cfg.Type)
		}
		if cfg.ID() == 0 {
			t.Errorf("%s: lost id", tc.nodeType)
		}
		if cfg.ServerPort() == 0 {
			t.Errorf("%s: lost server port", tc.nodeType)
		}
	}
}

func TestParseNodeConfig_intBooleans(t *testing.T) {
	cfg, err := parseNodeConfig(Tuic, []byte(`{"id":1,"server_port":9443,"zero_rtt_handshake":1}`))
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Tuic.ZeroRTTHandshake {
		t.Error("zero_rtt_handshake=1 must decode as true")
	}

	cfg, err = parseNodeConfig(Tuic, []byte(`{"id":1,"server_port":9443,"zero_rtt_handshake":false}`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Tuic.ZeroRTTHandshake {
		t.Error("zero_rtt_handshake=false must decode as false")
	}

	var b IntBool
	if err := json.Unmarshal([]byte(`"yes"`), &b); err == nil {
		t.Error("expected error for non-boolean value")
	}
}

func TestNodeConfig_accessorMismatch(t *testing.T) {
	cfg, err := parseNodeConfig(Trojan, []byte(`{"id":1,"server_port":443}`))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cfg.AsVMess(); err == nil {
		t.Error("AsVMess on a trojan config must fail")
	}
	if _, err := cfg.AsTrojan(); err != nil {
		t.Errorf("AsTrojan: %v", err)
	}
}

func TestDNSServer_stringOrObject(t *testing.T) {
	var cfg DNSConfig
	body := `{"servers":["8.8.8.8",{"address":"1.1.1.1","port":853,"domains":["example.com"]}]}`
	if err := json.Unmarshal([]byte(body), &cfg); err != nil {
		t.Fatal(err)
	}
	if len(cfg.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %d", len(cfg.Servers))
	}
	if cfg.Servers[0].Address != "8.8.8.8" || cfg.Servers[0].Port != 0 {
		t.Errorf("bare string server: %+v", cfg.Servers[0])
	}
	if cfg.Servers[1].Address != "1.1.1.1" || cfg.Servers[1].Port != 853 {
		t.Errorf("object server: %+v", cfg.Servers[1])
	}

	// Bare servers round-trip back to strings.
	out, err := json.Marshal(cfg.Servers[0])
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `"8.8.8.8"` {
		t.Errorf("bare server marshalled as %s", out)
	}
}

func TestParseRawConfig(t *testing.T) {
	body := []byte(`{"data":{"id":9,"server_port":443,"method":"chacha20-ietf-poly1305"},"message":"ok"}`)
	cfg, err := ParseRawConfig(Shadowsocks, body)
	if err != nil {
		t.Fatal(err)
	}
	ss, err := cfg.AsShadowsocks()
	if err != nil {
		t.Fatal(err)
	}
	if ss.Method != "chacha20-ietf-poly1305" {
		t.Errorf("unexpected method %q", ss.Method)
	}

	if _, err := ParseRawConfig(Shadowsocks, []byte(`not json`)); !IsParseError(err) {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestParseNodeType(t *testing.T) {
	for _, nt := range NodeTypes {
		got, err := ParseNodeType(string(nt))
		if err != nil || got != nt {
			t.Errorf("ParseNodeType(%q) = %v, %v", nt, got, err)
		}
	}
	if got, err := ParseNodeType("ss"); err != nil || got != Shadowsocks {
		t.Errorf("ss alias: %v, %v", got, err)
	}
	if _, err := ParseNodeType("wireguard"); err == nil {
		t.Error("expected error for unsupported protocol")
	}
}
