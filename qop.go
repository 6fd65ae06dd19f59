// SPDX-License-Identifier: Apache-2.0

package sasl

import (
	"fmt"
	"strings"
)

// QoP is a SASL quality of protection.  The values are the security layer
// bits of RFC 4752 § 3.3.
type QoP uint8

const (
	QoPNone            QoP = 0x01 // auth: authentication only
	QoPIntegrity       QoP = 0x02 // auth-int: integrity protection
	QoPConfidentiality QoP = 0x04 // auth-conf: integrity and confidentiality
)

// priority lists the levels from most to least preferred.
var priority = [...]QoP{QoPConfidentiality, QoPIntegrity, QoPNone}

func (q QoP) String() string {
	switch q {
	case QoPNone:
		return "auth"
	case QoPIntegrity:
		return "auth-int"
	case QoPConfidentiality:
		return "auth-conf"
	}

	return fmt.Sprintf("QoP(0x%02x)", uint8(q))
}

// ParseQoP parses one of auth, auth-int or auth-conf.
func ParseQoP(s string) (QoP, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auth":
		return QoPNone, nil
	case "auth-int":
		return QoPIntegrity, nil
	case "auth-conf":
		return QoPConfidentiality, nil
	}

	return 0, fmt.Errorf("sasl: unknown quality of protection %q", s)
}

func (q QoP) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

func (q *QoP) UnmarshalText(b []byte) error {
	v, err := ParseQoP(string(b))
	if err != nil {
		return err
	}

	*q = v
	return nil
}

// QoPSet is an ordered list of protection levels, such as the levels an
// acceptor offers or an initiator is prepared to use.
type QoPSet []QoP

// ParseQoPSet parses a comma or space separated list of QoP names.
// Duplicates are dropped.
func ParseQoPSet(s string) (QoPSet, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) == 0 {
		return nil, fmt.Errorf("sasl: empty quality of protection list")
	}

	var set QoPSet
	for _, f := range fields {
		q, err := ParseQoP(f)
		if err != nil {
			return nil, err
		}
		if !set.Contains(q) {
			set = append(set, q)
		}
	}

	return set, nil
}

// QoPSetFromMask returns the levels set in a security layer bitmask, most
// preferred first.
func QoPSetFromMask(mask byte) QoPSet {
	var set QoPSet
	for _, q := range priority {
		if mask&byte(q) != 0 {
			set = append(set, q)
		}
	}

	return set
}

// Mask returns the security layer bitmask of the set.
func (s QoPSet) Mask() byte {
	var m byte
	for _, q := range s {
		m |= byte(q)
	}

	return m
}

func (s QoPSet) Contains(q QoP) bool {
	for _, v := range s {
		if v == q {
			return true
		}
	}

	return false
}

func (s QoPSet) String() string {
	names := make([]string, len(s))
	for i, q := range s {
		names[i] = q.String()
	}

	return strings.Join(names, ",")
}

// Select returns the most preferred level present in both sets, ranking
// auth-conf above auth-int above auth.  An empty intersection is a
// NegotiationFailure.
func Select(offered, accepted QoPSet) (QoP, error) {
	for _, q := range priority {
		if offered.Contains(q) && accepted.Contains(q) {
			return q, nil
		}
	}

	return 0, newError(KindNegotiation, "no common quality of protection between %q and %q", offered.String(), accepted.String())
}
