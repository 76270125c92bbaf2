package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/xtea"
)

// Provider seals and opens one kind of container.
type Provider interface {
	// Mode returns the encryption mode the provider implements.
	Mode() Mode

	// Seal wraps plain into a complete container (header included).
	Seal(plain []byte) ([]byte, error)

	// Open unwraps a complete container and returns the plaintext.
	Open(container []byte) ([]byte, error)
}

// Engine keys shared by every Plasma client.
var (
	uruKey = Key{0x6c0a5452, 0x03827d0f, 0x3a170b92, 0x16db7fc2}
	eoaKey = []byte{
		0x6c, 0x0a, 0x54, 0x52, 0x03, 0x82, 0x7d, 0x0f,
		0x3a, 0x17, 0x0b, 0x92, 0x16, 0xdb, 0x7f, 0xc2,
	}
)

// NewProvider returns the provider for mode. Droid requires a non-nil key
// and returns ErrKeyRequired otherwise; the other modes ignore key.
func NewProvider(mode Mode, key *Key) (Provider, error) {
	switch mode {
	case None:
		return plainProvider{}, nil
	case XTEA:
		return newXTEAProvider(XTEA, uruKey)
	case Droid:
		if key == nil {
			return nil, ErrKeyRequired
		}
		return newXTEAProvider(Droid, *key)
	case AES:
		block, err := aes.NewCipher(eoaKey)
		if err != nil {
			return nil, err
		}
		return &blockProvider{mode: AES, block: block, chained: true}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedMode, int(mode))
	}
}

func newXTEAProvider(mode Mode, key Key) (Provider, error) {
	c, err := xtea.NewCipher(key.Bytes())
	if err != nil {
		return nil, err
	}
	return &blockProvider{mode: mode, block: littleEndianBlock{c}}, nil
}

// plainProvider passes payloads through unchanged.
type plainProvider struct{}

func (plainProvider) Mode() Mode { return None }

func (plainProvider) Seal(plain []byte) ([]byte, error) {
	out := make([]byte, len(plain))
	copy(out, plain)
	return out, nil
}

func (plainProvider) Open(container []byte) ([]byte, error) {
	return container, nil
}

// blockProvider implements the magic + length + padded ciphertext layout.
// XTEA containers encrypt every block independently; AES containers chain
// blocks CBC style from a zero IV.
type blockProvider struct {
	mode    Mode
	block   cipher.Block
	chained bool
}

func (p *blockProvider) Mode() Mode { return p.mode }

func (p *blockProvider) Seal(plain []byte) ([]byte, error) {
	bs := p.block.BlockSize()
	padded := (len(plain) + bs - 1) / bs * bs

	out := make([]byte, HeaderSize+padded)
	copy(out, Magic(p.mode))
	binary.LittleEndian.PutUint32(out[MagicSize:], uint32(len(plain)))
	body := out[HeaderSize:]
	copy(body, plain)

	if p.chained {
		iv := make([]byte, bs)
		cipher.NewCBCEncrypter(p.block, iv).CryptBlocks(body, body)
	} else {
		for off := 0; off < len(body); off += bs {
			p.block.Encrypt(body[off:off+bs], body[off:off+bs])
		}
	}
	return out, nil
}

func (p *blockProvider) Open(container []byte) ([]byte, error) {
	mode, ok := Probe(container)
	if !ok || mode != p.mode {
		return nil, fmt.Errorf("%w: missing %s magic", ErrCorruptContainer, p.mode)
	}
	if len(container) < HeaderSize {
		return nil, fmt.Errorf("%w: header truncated", ErrCorruptContainer)
	}

	size := int(binary.LittleEndian.Uint32(container[MagicSize:]))
	bs := p.block.BlockSize()
	body := container[HeaderSize:]
	if len(body)%bs != 0 {
		return nil, fmt.Errorf("%w: body of %d bytes is not a multiple of %d", ErrCorruptContainer, len(body), bs)
	}
	if size > len(body) {
		return nil, fmt.Errorf("%w: declared %d bytes, have %d", ErrCorruptContainer, size, len(body))
	}

	plain := make([]byte, len(body))
	if p.chained {
		iv := make([]byte, bs)
		cipher.NewCBCDecrypter(p.block, iv).CryptBlocks(plain, body)
	} else {
		for off := 0; off < len(body); off += bs {
			p.block.Decrypt(plain[off:off+bs], body[off:off+bs])
		}
	}
	return plain[:size], nil
}

// littleEndianBlock adapts a cipher that reads big endian 32-bit words
// (x/crypto/xtea) to Plasma's little endian word layout.
type littleEndianBlock struct {
	b cipher.Block
}

func (l littleEndianBlock) BlockSize() int { return l.b.BlockSize() }

func (l littleEndianBlock) Encrypt(dst, src []byte) {
	var tmp [8]byte
	swapWords(tmp[:], src[:8])
	l.b.Encrypt(tmp[:], tmp[:])
	swapWords(dst[:8], tmp[:])
}

func (l littleEndianBlock) Decrypt(dst, src []byte) {
	var tmp [8]byte
	swapWords(tmp[:], src[:8])
	l.b.Decrypt(tmp[:], tmp[:])
	swapWords(dst[:8], tmp[:])
}

// swapWords byte-swaps each 32-bit word of src into dst.
func swapWords(dst, src []byte) {
	for i := 0; i+4 <= len(src); i += 4 {
		binary.BigEndian.PutUint32(dst[i:], binary.LittleEndian.Uint32(src[i:]))
	}
}
