package infra

import (
	"fmt"
	"strings"

	"token-faucet/faucet/domain"
)

// Codec bech32 (BIP-173) para os endereços da chain: prefixo legível +
// separador "1" + payload em grupos de 5 bits + checksum de 6 caracteres.
// Implementado aqui porque é a única peça de codificação que o faucet
// precisa e o algoritmo do BIP-173 é fixo e pequeno.

const bech32Charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

var bech32Gen = [5]uint32{0x3b6a57b2, 0x26508e6d, 0x1ea119fa, 0x3d4233dd, 0x2a1462b3}

func bech32Polymod(values []byte) uint32 {
	chk := uint32(1)
	for _, v := range values {
		b := chk >> 25
		chk = (chk&0x1ffffff)<<5 ^ uint32(v)
		for i := 0; i < 5; i++ {
			if (b>>uint(i))&1 == 1 {
				chk ^= bech32Gen[i]
			}
		}
	}
	return chk
}

func bech32HrpExpand(hrp string) []byte {
	out := make([]byte, 0, len(hrp)*2+1)
	for i := 0; i < len(hrp); i++ {
		out = append(out, hrp[i]>>5)
	}
	out = append(out, 0)
	for i := 0; i < len(hrp); i++ {
		out = append(out, hrp[i]&31)
	}
	return out
}

func bech32CreateChecksum(hrp string, data []byte) []byte {
	values := append(bech32HrpExpand(hrp), data...)
	values = append(values, 0, 0, 0, 0, 0, 0)
	pm := bech32Polymod(values) ^ 1
	out := make([]byte, 6)
	for i := 0; i < 6; i++ {
		out[i] = byte((pm >> uint(5*(5-i))) & 31)
	}
	return out
}

// Bech32Encode monta hrp + "1" + data (grupos de 5 bits) + checksum.
func Bech32Encode(hrp string, data []byte) (string, error) {
	var sb strings.Builder
	sb.WriteString(hrp)
	sb.WriteByte('1')
	for _, v := range append(data, bech32CreateChecksum(hrp, data)...) {
		if v >= 32 {
			return "", fmt.Errorf("bech32: value %d out of range", v)
		}
		sb.WriteByte(bech32Charset[v])
	}
	return sb.String(), nil
}

// Bech32Decode valida o checksum e devolve (hrp, payload de 5 bits).
func Bech32Decode(addr string) (string, []byte, error) {
	if len(addr) < 8 || len(addr) > 90 {
		return "", nil, fmt.Errorf("bech32: invalid length %d", len(addr))
	}
	if strings.ToLower(addr) != addr {
		return "", nil, fmt.Errorf("bech32: mixed or upper case")
	}
	sep := strings.LastIndexByte(addr, '1')
	if sep < 1 || sep+7 > len(addr) {
		return "", nil, fmt.Errorf("bech32: missing separator")
	}
	hrp := addr[:sep]
	for i := 0; i < len(hrp); i++ {
		if hrp[i] < 33 || hrp[i] > 126 {
			return "", nil, fmt.Errorf("bech32: invalid hrp character")
		}
	}

	data := make([]byte, 0, len(addr)-sep-1)
	for i := sep + 1; i < len(addr); i++ {
		idx := strings.IndexByte(bech32Charset, addr[i])
		if idx < 0 {
			return "", nil, fmt.Errorf("bech32: invalid data character %q", addr[i])
		}
		data = append(data, byte(idx))
	}

	if bech32Polymod(append(bech32HrpExpand(hrp), data...)) != 1 {
		return "", nil, fmt.Errorf("bech32: checksum mismatch")
	}
	return hrp, data[:len(data)-6], nil
}

// convertBits reagrupa bits (8→5 na codificação, 5→8 na decodificação).
func convertBits(data []byte, fromBits, toBits uint, pad bool) ([]byte, error) {
	var acc uint32
	var bits uint
	maxv := uint32(1)<<toBits - 1
	out := make([]byte, 0, len(data)*int(fromBits)/int(toBits)+1)

	for _, v := range data {
		if uint(v)>>fromBits != 0 {
			return nil, fmt.Errorf("bech32: value %d exceeds %d bits", v, fromBits)
		}
		acc = acc<<fromBits | uint32(v)
		bits += fromBits
		for bits >= toBits {
			bits -= toBits
			out = append(out, byte(acc>>bits&maxv))
		}
	}
	if pad {
		if bits > 0 {
			out = append(out, byte(acc<<(toBits-bits)&maxv))
		}
	} else if bits >= fromBits || acc<<(toBits-bits)&maxv != 0 {
		return nil, fmt.Errorf("bech32: invalid padding")
	}
	return out, nil
}

// EncodeAddress codifica os 20 bytes do hash da chave pública como endereço.
func EncodeAddress(hrp string, hash []byte) (string, error) {
	data, err := convertBits(hash, 8, 5, true)
	if err != nil {
		return "", err
	}
	return Bech32Encode(hrp, data)
}

// NewAddressValidator devolve a validação sintática completa usada pelo
// dispatcher: prefixo configurado + checksum + payload de 20 bytes.
// Falhas sempre carregam ErrInvalidRecipient para o match estrutural.
func NewAddressValidator(hrp string) func(address string) error {
	return func(address string) error {
		gotHrp, data, err := Bech32Decode(address)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidRecipient, err)
		}
		if gotHrp != hrp {
			return fmt.Errorf("%w: prefix %q, want %q", domain.ErrInvalidRecipient, gotHrp, hrp)
		}
		raw, err := convertBits(data, 5, 8, false)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidRecipient, err)
		}
		if len(raw) != 20 {
			return fmt.Errorf("%w: payload of %d bytes", domain.ErrInvalidRecipient, len(raw))
		}
		return nil
	}
}
