// SPDX-License-Identifier: Apache-2.0

package gssapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlagList(t *testing.T) {
	flags := ContextFlagConf | ContextFlagMutual | ContextFlagDeleg
	flaglist := FlagList(flags)

	assert.ElementsMatch(t, []ContextFlag{ContextFlagConf, ContextFlagMutual, ContextFlagDeleg}, flaglist)
}

func TestFlagName(t *testing.T) {
	assert.Equal(t, "Delegation", flagName(ContextFlagDeleg))
	assert.Equal(t, "Mutual authentication", flagName(ContextFlagMutual))
	assert.Equal(t, "Message replay detection", flagName(ContextFlagReplay))
	assert.Equal(t, "Out of sequence message detection", flagName(ContextFlagSequence))
	assert.Equal(t, "Confidentiality", flagName(ContextFlagConf))
	assert.Equal(t, "Integrity", flagName(ContextFlagInteg))
	assert.Equal(t, "Unknown", flagName(ContextFlag(0x8000)))
}

func TestFlagString(t *testing.T) {
	flags := ContextFlagConf | ContextFlagMutual | ContextFlagInteg
	str := flags.String()

	assert.Contains(t, str, "Integrity")
	assert.Contains(t, str, "Mutual")
	assert.Contains(t, str, "Confidentiality")
	assert.NotContains(t, str, "Sequence")
}
