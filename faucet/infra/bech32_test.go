package infra

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"token-faucet/faucet/domain"
)

func TestBech32_EncodeDecodeRoundtrip(t *testing.T) {
	hash := bytes.Repeat([]byte{0xab, 0x01}, 10) // 20 bytes

	addr, err := EncodeAddress("int3", hash)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.HasPrefix(addr, "int31") {
		t.Fatalf("expected prefix int31, got %q", addr)
	}

	hrp, data, err := Bech32Decode(addr)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if hrp != "int3" {
		t.Fatalf("expected hrp int3, got %q", hrp)
	}
	raw, err := convertBits(data, 5, 8, false)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !bytes.Equal(raw, hash) {
		t.Fatalf("payload mismatch after roundtrip")
	}
}

func TestBech32_DecodeRejectsCorruption(t *testing.T) {
	addr, err := EncodeAddress("int3", bytes.Repeat([]byte{0x42}, 20))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	// troca um caractere do payload mantendo o charset válido
	i := len(addr) - 10
	replacement := byte('q')
	if addr[i] == 'q' {
		replacement = 'p'
	}
	corrupted := addr[:i] + string(replacement) + addr[i+1:]

	if _, _, err := Bech32Decode(corrupted); err == nil {
		t.Fatalf("expected checksum mismatch for corrupted address")
	}
}

func TestBech32_DecodeRejectsMixedCase(t *testing.T) {
	addr, _ := EncodeAddress("int3", bytes.Repeat([]byte{0x42}, 20))
	upper := strings.ToUpper(addr[:1]) + addr[1:]
	if _, _, err := Bech32Decode(upper); err == nil {
		t.Fatalf("expected mixed case to be rejected")
	}
}

func TestAddressValidator(t *testing.T) {
	validate := NewAddressValidator("int3")

	good, err := EncodeAddress("int3", bytes.Repeat([]byte{0x11}, 20))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := validate(good); err != nil {
		t.Fatalf("expected valid address, got %v", err)
	}

	cases := []struct {
		name string
		addr string
	}{
		{"wrong prefix", mustEncode(t, "cosmos", bytes.Repeat([]byte{0x11}, 20))},
		{"garbage", "not-an-address"},
		{"empty", ""},
		{"short payload", mustEncode(t, "int3", bytes.Repeat([]byte{0x11}, 10))},
	}
	for _, tc := range cases {
		if err := validate(tc.addr); !errors.Is(err, domain.ErrInvalidRecipient) {
			t.Fatalf("%s: expected ErrInvalidRecipient, got %v", tc.name, err)
		}
	}
}

func mustEncode(t *testing.T, hrp string, hash []byte) string {
	t.Helper()
	addr, err := EncodeAddress(hrp, hash)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return addr
}
