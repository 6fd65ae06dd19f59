// SPDX-License-Identifier: Apache-2.0

package krb5

import (
	"crypto/rand"
	"fmt"

	"github.com/jcmturner/gokrb5/v8/crypto"
	"github.com/jcmturner/gokrb5/v8/crypto/etype"
	"github.com/jcmturner/gokrb5/v8/iana/etypeID"
	"github.com/jcmturner/gokrb5/v8/types"
)

// keySSF returns the strength of a key type in bits, following the table in
// MIT Kerberos 1.16 (src/lib/crypto/krb/etypes.c).
func keySSF(keyType int32) uint {
	et, err := crypto.GetEtype(keyType)
	if err != nil {
		return 0
	}

	switch et.(type) {
	case crypto.Des3CbcSha1Kd:
		return 112
	case crypto.RC4HMAC:
		return 64
	}

	return uint(et.GetKeyByteSize()) * 8
}

// cipherLayout describes the bytes an enctype adds around a plaintext.
type cipherLayout struct {
	header  uint32
	padding uint32
	trailer uint32
}

func layoutOf(keyType int32) cipherLayout {
	et, err := crypto.GetEtype(keyType)
	if err != nil {
		return cipherLayout{}
	}

	block := uint32(et.GetCypherBlockBitLength() / 8)
	hmacLen := uint32(et.GetHMACBitLength() / 8)

	switch et.(type) {
	case crypto.Des3CbcSha1Kd:
		return cipherLayout{header: block, padding: block, trailer: hmacLen}
	case crypto.RC4HMAC:
		return cipherLayout{header: hmacLen + uint32(et.GetConfounderByteSize())}
	case crypto.Aes128CtsHmacSha96, crypto.Aes256CtsHmacSha96,
		crypto.Aes128CtsHmacSha256128, crypto.Aes256CtsHmacSha384192:
		return cipherLayout{header: block, trailer: hmacLen}
	}

	return cipherLayout{}
}

// encryptedLength ports krb5_c_encrypt_length from MIT Kerberos 1.16.
func encryptedLength(keyType int32, plainTextSize uint32) uint32 {
	l := layoutOf(keyType)

	var pad uint32
	if l.padding != 0 {
		if rem := (plainTextSize + l.header) % l.padding; rem != 0 {
			pad = l.padding - rem
		}
	}

	return l.header + plainTextSize + pad + l.trailer
}

// GenerateBaseKey returns a random key for the enctype.  The key length for
// aes256-cts-hmac-sha384-192 is special cased because gokrb5 reports the
// length of its derived integrity key instead.
func GenerateBaseKey(et etype.EType) (types.EncryptionKey, error) {
	k := types.EncryptionKey{
		KeyType: et.GetETypeID(),
	}

	kl := et.GetKeyByteSize()
	if et.GetETypeID() == etypeID.AES256_CTS_HMAC_SHA384_192 {
		kl = 32
	}

	b := make([]byte, kl)
	if _, err := rand.Read(b); err != nil {
		return k, err
	}
	k.KeyValue = b
	return k, nil
}

// EncTypeName returns the canonical name of a Kerberos encryption type,
// such as aes256-cts-hmac-sha1-96.
func EncTypeName(keyType int32) string {
	name := ""
	for n, id := range etypeID.ETypesByName {
		// aliases are shorter than the canonical names
		if id == keyType && len(n) > len(name) {
			name = n
		}
	}

	if name == "" {
		return fmt.Sprintf("enctype-%d", keyType)
	}
	return name
}
