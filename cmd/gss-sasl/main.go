// SPDX-License-Identifier: Apache-2.0

// Command gss-sasl runs SASL GSSAPI negotiations over TCP and checks the
// engine against an in-process Kerberos realm.
package main

import (
	"os"

	"github.com/golang-auth/go-gssapi-sasl/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Get().WithError(err).Debug("command failed")
		os.Exit(1)
	}
}
