// SPDX-License-Identifier: Apache-2.0

package kdctest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceTicket(t *testing.T) {
	realm := NewRealm("EXAMPLE.COM")
	require.NoError(t, realm.AddService("server", "host.example.com"))

	cl := realm.Client("alice")
	tkt, key, err := cl.ServiceTicket("server/host.example.com")
	require.NoError(t, err)

	assert.Equal(t, "EXAMPLE.COM", tkt.Realm)
	assert.Equal(t, []string{"server", "host.example.com"}, tkt.SName.NameString)
	assert.NotEmpty(t, key.KeyValue)
	assert.Equal(t, 1, cl.Issued)

	// the service key decrypts the ticket and reveals the session key
	kt, err := realm.ServiceKeytab("server", "host.example.com")
	require.NoError(t, err)
	require.NoError(t, tkt.DecryptEncPart(kt, &tkt.SName))
	assert.Equal(t, key.KeyValue, tkt.DecryptedEncPart.Key.KeyValue)
	assert.Equal(t, "alice", tkt.DecryptedEncPart.CName.PrincipalNameString())
}

func TestUnknownService(t *testing.T) {
	realm := NewRealm("EXAMPLE.COM")

	_, _, err := realm.Client("alice").ServiceTicket("server/nowhere")
	assert.ErrorIs(t, err, ErrUnknownService)

	_, err = realm.ServiceKeytab("server", "nowhere")
	assert.ErrorIs(t, err, ErrUnknownService)
}

func TestDuplicateService(t *testing.T) {
	realm := NewRealm("EXAMPLE.COM")
	require.NoError(t, realm.AddService("server", "a"))
	assert.Error(t, realm.AddService("server", "a"))
}
