// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	sasl "github.com/golang-auth/go-gssapi-sasl"
	"github.com/golang-auth/go-gssapi-sasl/krb5"
)

// report describes one negotiation.
type report struct {
	Scenario         string   `yaml:"scenario,omitempty"`
	QoP              sasl.QoP `yaml:"qop,omitempty"`
	BoundServerName  string   `yaml:"bound_server_name,omitempty"`
	AuthenticationID string   `yaml:"authentication_id,omitempty"`
	AuthorizationID  string   `yaml:"authorization_id,omitempty"`
	MaxBuffer        uint32   `yaml:"max_buffer"`
	RawSendSize      uint32   `yaml:"raw_send_size"`
	SSF              uint     `yaml:"ssf"`
	SessionKey       string   `yaml:"session_key,omitempty"`
	Result           string   `yaml:"result"`
}

func newReport(name string, p *sasl.NegotiatedProperties) report {
	r := report{Scenario: name, Result: "ok"}
	if p == nil {
		return r
	}

	r.QoP = p.QoP
	r.BoundServerName = p.BoundServerName
	r.AuthenticationID = p.AuthenticationID
	r.AuthorizationID = p.AuthorizationID
	r.MaxBuffer = p.MaxBuffer
	r.RawSendSize = p.RawSendSize
	r.SSF = p.SSF

	if p.SessionKey != nil {
		r.SessionKey = fmt.Sprintf("%s, %d bytes", krb5.EncTypeName(p.SessionKey.Type), len(p.SessionKey.Value))
	}

	return r
}

func writeReports(w io.Writer, format string, reports ...report) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(reports); err != nil {
			return err
		}
		return enc.Close()
	}

	for _, r := range reports {
		if r.Scenario != "" {
			fmt.Fprintf(w, "%s: %s\n", r.Scenario, r.Result)
		} else {
			fmt.Fprintf(w, "result: %s\n", r.Result)
		}
		if r.QoP == 0 {
			continue
		}
		fmt.Fprintf(w, "  qop:               %s\n", r.QoP)
		fmt.Fprintf(w, "  bound server name: %s\n", r.BoundServerName)
		if r.AuthenticationID != "" {
			fmt.Fprintf(w, "  authenticated as:  %s\n", r.AuthenticationID)
		}
		if r.AuthorizationID != "" {
			fmt.Fprintf(w, "  authorized as:     %s\n", r.AuthorizationID)
		}
		fmt.Fprintf(w, "  max buffer:        %d\n", r.MaxBuffer)
		fmt.Fprintf(w, "  raw send size:     %d\n", r.RawSendSize)
		fmt.Fprintf(w, "  ssf:               %d\n", r.SSF)
		if r.SessionKey != "" {
			fmt.Fprintf(w, "  session key:       %s\n", r.SessionKey)
		}
	}

	return nil
}
