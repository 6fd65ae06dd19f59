// SPDX-License-Identifier: Apache-2.0

package krb5

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/jcmturner/gokrb5/v8/iana"
	"github.com/jcmturner/gokrb5/v8/iana/msgtype"
	"github.com/jcmturner/gokrb5/v8/messages"
	"github.com/jcmturner/gokrb5/v8/test/testdata"
	"github.com/jcmturner/gokrb5/v8/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPRepUnmarshal(t *testing.T) {
	t.Parallel()

	b, err := hex.DecodeString(testdata.MarshaledKRB5ap_rep)
	require.NoError(t, err, "test vector read error")

	var a aPRep
	require.NoError(t, a.unmarshal(b))

	assert.Equal(t, iana.PVNO, a.PVNO, "PVNO not as expected")
	assert.Equal(t, msgtype.KRB_AP_REP, a.MsgType, "MsgType is not as expected")
	assert.Equal(t, testdata.TEST_ETYPE, a.EncPart.EType, "Ticket encPart etype not as expected")
	assert.Equal(t, iana.PVNO, a.EncPart.KVNO, "Ticket encPart KVNO not as expected")
	assert.Equal(t, []byte(testdata.TEST_CIPHERTEXT), a.EncPart.Cipher, "Ticket encPart cipher not as expected")
}

func TestAPRepUnmarshalKRBError(t *testing.T) {
	t.Parallel()

	ke := ktestMakeSampleError()
	b, err := ke.Marshal()
	require.NoError(t, err)

	var a aPRep
	err = a.unmarshal(b)
	require.Error(t, err)

	var got messages.KRBError
	if assert.ErrorAs(t, err, &got) {
		assert.Equal(t, int32(SampleError), got.ErrorCode)
	}
}

func TestEncAPRepPartUnmarshal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		vector     string
		withOption bool
	}{
		{"all fields", testdata.MarshaledKRB5ap_rep_enc_part, true},
		{"optionals NULL", testdata.MarshaledKRB5ap_rep_enc_partOptionalsNULL, false},
	}

	tt, _ := time.Parse(testdata.TEST_TIME_FORMAT, testdata.TEST_TIME)

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			b, err := hex.DecodeString(tc.vector)
			require.NoError(t, err)

			var a encAPRepPart
			require.NoError(t, a.unmarshal(b))

			assert.Equal(t, tt, a.CTime, "CTime not as expected")
			assert.Equal(t, SampleUsec, a.Cusec, "Client microseconds not as expected")
			if tc.withOption {
				assert.Equal(t, int32(1), a.Subkey.KeyType, "Subkey type not as expected")
				assert.Equal(t, []byte("12345678"), a.Subkey.KeyValue, "Subkey value not as expected")
				assert.Equal(t, int64(SampleSeqNumber), a.SequenceNumber, "Sequence number not as expected")
			}
		})
	}
}

func TestEncAPRepPartMarshal(t *testing.T) {
	t.Parallel()

	want, err := hex.DecodeString(testdata.MarshaledKRB5ap_rep_enc_part)
	require.NoError(t, err)

	encpart := ktestMakeSampleApRepEncPart()
	b, err := encpart.marshal()
	require.NoError(t, err)
	assert.Equal(t, want, b)

	want, err = hex.DecodeString(testdata.MarshaledKRB5ap_rep_enc_partOptionalsNULL)
	require.NoError(t, err)

	encpart.SequenceNumber = 0
	encpart.Subkey = types.EncryptionKey{}
	b, err = encpart.marshal()
	require.NoError(t, err)
	assert.Equal(t, want, b)
}

func TestAPRepMarshal(t *testing.T) {
	t.Parallel()

	want, err := hex.DecodeString(testdata.MarshaledKRB5ap_rep)
	require.NoError(t, err)

	aprep := ktestMakeSampleApRep()
	b, err := aprep.marshal()
	require.NoError(t, err)
	assert.Equal(t, want, b)
}

func TestAPRepEncryptDecrypt(t *testing.T) {
	t.Parallel()

	key := mkSampleAESKey()
	now := time.Now().UTC().Truncate(time.Second)

	aprep, err := newAPRep(ktestMakeSampleTicket(), key, encAPRepPart{
		CTime:          now,
		Cusec:          SampleUsec,
		SequenceNumber: 42,
	})
	require.NoError(t, err)

	b, err := aprep.marshal()
	require.NoError(t, err)

	var got aPRep
	require.NoError(t, got.unmarshal(b))

	part, err := got.decryptEncPart(key)
	require.NoError(t, err)
	assert.True(t, now.Equal(part.CTime))
	assert.Equal(t, SampleUsec, part.Cusec)
	assert.Equal(t, int64(42), part.SequenceNumber)

	other := mkSampleAESKey()
	other.KeyValue = append([]byte(nil), other.KeyValue...)
	other.KeyValue[0] ^= 0xff
	_, err = got.decryptEncPart(other)
	assert.Error(t, err)
}
