package infra

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/ripemd160"
)

// Wallet é o colaborador de assinatura: deriva a conta custodial da frase
// secreta (BIP39 + BIP32 sobre secp256k1) e assina os bytes canônicos das
// transações. Implementa domain.Signer.
//
// A frase não é validada contra a wordlist BIP39 — ela vem do operador via
// configuração; frase errada só resulta em endereço sem fundos, detectado no
// primeiro dispatch.
type Wallet struct {
	priv    *secp256k1.PrivateKey
	pub     []byte
	address string
}

const hardenedOffset = uint32(0x80000000)

func NewWallet(mnemonic, hdPath, addressPrefix string) (*Wallet, error) {
	phrase := strings.Join(strings.Fields(mnemonic), " ")
	if phrase == "" {
		return nil, fmt.Errorf("empty mnemonic")
	}

	path, err := parseHDPath(hdPath)
	if err != nil {
		return nil, err
	}

	// BIP39: frase -> seed
	seed := pbkdf2.Key([]byte(phrase), []byte("mnemonic"), 2048, 64, sha512.New)

	// BIP32: master a partir do seed
	mac := hmac.New(sha512.New, []byte("Bitcoin seed"))
	mac.Write(seed)
	sum := mac.Sum(nil)
	key, chainCode := sum[:32], sum[32:]

	for _, index := range path {
		key, chainCode, err = deriveChild(key, chainCode, index)
		if err != nil {
			return nil, fmt.Errorf("deriving %s: %w", hdPath, err)
		}
	}

	var scalar secp256k1.ModNScalar
	if overflow := scalar.SetByteSlice(key); overflow || scalar.IsZero() {
		return nil, fmt.Errorf("derived key out of range")
	}
	priv := secp256k1.NewPrivateKey(&scalar)
	pub := priv.PubKey().SerializeCompressed()

	address, err := addressFromPubKey(addressPrefix, pub)
	if err != nil {
		return nil, err
	}

	return &Wallet{priv: priv, pub: pub, address: address}, nil
}

func (w *Wallet) Address() string { return w.address }

func (w *Wallet) PubKey() []byte {
	out := make([]byte, len(w.pub))
	copy(out, w.pub)
	return out
}

// Sign assina sha256(msg) e devolve a forma compacta r||s (64 bytes).
func (w *Wallet) Sign(msg []byte) ([]byte, error) {
	digest := sha256.Sum256(msg)
	sig := ecdsa.SignCompact(w.priv, digest[:], true)
	// SignCompact prefixa o byte de recovery; a chain espera só r||s
	return sig[1:], nil
}

// deriveChild aplica um passo CKDpriv do BIP32.
func deriveChild(key, chainCode []byte, index uint32) ([]byte, []byte, error) {
	data := make([]byte, 0, 37)
	if index >= hardenedOffset {
		data = append(data, 0x00)
		data = append(data, key...)
	} else {
		var parent secp256k1.ModNScalar
		if overflow := parent.SetByteSlice(key); overflow || parent.IsZero() {
			return nil, nil, fmt.Errorf("parent key out of range")
		}
		pk := secp256k1.NewPrivateKey(&parent)
		data = append(data, pk.PubKey().SerializeCompressed()...)
	}
	data = binary.BigEndian.AppendUint32(data, index)

	mac := hmac.New(sha512.New, chainCode)
	mac.Write(data)
	sum := mac.Sum(nil)

	var il, k secp256k1.ModNScalar
	if overflow := il.SetByteSlice(sum[:32]); overflow {
		return nil, nil, fmt.Errorf("tweak out of range")
	}
	if overflow := k.SetByteSlice(key); overflow {
		return nil, nil, fmt.Errorf("parent key out of range")
	}
	il.Add(&k)
	if il.IsZero() {
		return nil, nil, fmt.Errorf("derived zero key")
	}

	child := il.Bytes()
	return child[:], sum[32:], nil
}

// addressFromPubKey calcula bech32(prefix, ripemd160(sha256(pubkey))).
func addressFromPubKey(prefix string, compressed []byte) (string, error) {
	sha := sha256.Sum256(compressed)
	rip := ripemd160.New()
	rip.Write(sha[:])
	return EncodeAddress(prefix, rip.Sum(nil))
}

// parseHDPath aceita a forma "m/44'/118'/0'/0/0" ("h" também marca hardened).
func parseHDPath(path string) ([]uint32, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(path), "m")
	trimmed = strings.TrimPrefix(trimmed, "/")
	if trimmed == "" {
		return nil, fmt.Errorf("empty hd path %q", path)
	}

	parts := strings.Split(trimmed, "/")
	out := make([]uint32, 0, len(parts))
	for _, part := range parts {
		hardened := false
		if strings.HasSuffix(part, "'") || strings.HasSuffix(part, "h") {
			hardened = true
			part = part[:len(part)-1]
		}
		n, err := strconv.ParseUint(part, 10, 32)
		if err != nil || n >= uint64(hardenedOffset) {
			return nil, fmt.Errorf("invalid hd path component %q", part)
		}
		index := uint32(n)
		if hardened {
			index += hardenedOffset
		}
		out = append(out, index)
	}
	return out, nil
}
