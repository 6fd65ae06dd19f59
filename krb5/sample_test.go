// SPDX-License-Identifier: Apache-2.0

package krb5

import (
	"encoding/binary"
	"time"

	"github.com/jcmturner/gokrb5/v8/iana/msgtype"
	"github.com/jcmturner/gokrb5/v8/messages"
	"github.com/jcmturner/gokrb5/v8/test/testdata"
	"github.com/jcmturner/gokrb5/v8/types"
)

// Sample data from MIT Kerberos v1.19.1, src/tests/asn.1/ktest.h
const (
	SampleUsec          = 123456
	SampleSeqNumber     = 17
	SampleFlags         = 0xFEDCBA98
	SampleError         = 0x3C
	SamplePrincipalName = "hftsai/extra@ATHENA.MIT.EDU"
	SampleData          = "krb5data"
)

func ktestMakeSampleApRepEncPart() encAPRepPart {
	tm, _ := time.Parse(testdata.TEST_TIME_FORMAT, testdata.TEST_TIME)
	return encAPRepPart{
		CTime:          tm,
		Cusec:          SampleUsec,
		Subkey:         ktestMakeSampleKeyblock(),
		SequenceNumber: SampleSeqNumber,
	}
}

func ktestMakeSampleKeyblock() types.EncryptionKey {
	return types.EncryptionKey{
		KeyType:  1,
		KeyValue: []byte("12345678"),
	}
}

func ktestMakeSampleEncData() types.EncryptedData {
	return types.EncryptedData{
		EType:  0,
		KVNO:   5,
		Cipher: []byte(testdata.TEST_CIPHERTEXT),
	}
}

func ktestMakeSampleTicket() messages.Ticket {
	pn, realm := types.ParseSPNString(SamplePrincipalName)
	return messages.Ticket{
		TktVNO:  5,
		Realm:   realm,
		SName:   pn,
		EncPart: ktestMakeSampleEncData(),
	}
}

func ktestMakeSampleApReq() messages.APReq {
	apreq := messages.APReq{
		PVNO:                   5,
		MsgType:                msgtype.KRB_AP_REQ,
		APOptions:              types.NewKrbFlags(),
		Ticket:                 ktestMakeSampleTicket(),
		EncryptedAuthenticator: ktestMakeSampleEncData(),
	}

	binary.BigEndian.PutUint32(apreq.APOptions.Bytes[0:], SampleFlags)
	return apreq
}

func ktestMakeSampleApRep() aPRep {
	return aPRep{
		PVNO:    5,
		MsgType: msgtype.KRB_AP_REP,
		EncPart: ktestMakeSampleEncData(),
	}
}

func ktestMakeSampleError() messages.KRBError {
	pn, realm := types.ParseSPNString(SamplePrincipalName)
	tm, _ := time.Parse(testdata.TEST_TIME_FORMAT, testdata.TEST_TIME)
	return messages.KRBError{
		PVNO:      5,
		MsgType:   msgtype.KRB_ERROR,
		CTime:     tm,
		Cusec:     SampleUsec,
		STime:     tm,
		Susec:     SampleUsec,
		ErrorCode: SampleError,
		CRealm:    realm,
		CName:     pn,
		Realm:     realm,
		SName:     pn,
		EText:     SampleData,
		EData:     []byte(SampleData),
	}
}
