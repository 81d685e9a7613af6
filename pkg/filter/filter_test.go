package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type idSet map[int64]bool

func (s idSet) Contains(id int64) bool { return s[id] }

func TestContainsCodeBlock(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"", false},
		{"plain prose", false},
		{"[% only open", false},
		{"only close %]", false},
		{"[% code %]", true},
		{"reversed %] then [%", true},
		{"split [% across\n\nparagraphs %] far apart", true},
		{"[%]", true}, // markers may overlap
		{"100% [sic]", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ContainsCodeBlock(tt.text), "text %q", tt.text)
	}
}

func TestClassify(t *testing.T) {
	system := idSet{5: true}

	tests := []struct {
		name      string
		id        int64
		idValid   bool
		text      string
		textValid bool
		set       Membership
		want      Reason
	}{
		{"missing id", 0, false, "hello", true, system, ReasonEmpty},
		{"missing text", 7, true, "", false, system, ReasonEmpty},
		{"empty text", 7, true, "", true, system, ReasonEmpty},
		{"empty beats system", 5, true, "", true, system, ReasonEmpty},
		{"system node", 5, true, "hello", true, system, ReasonSystem},
		{"system beats code", 5, true, "[% x %]", true, system, ReasonSystem},
		{"code block", 7, true, "[% x %]", true, system, ReasonCode},
		{"kept", 7, true, "world", true, system, ReasonKeep},
		{"nil set", 5, true, "hello", true, nil, ReasonKeep},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.id, tt.idValid, tt.text, tt.textValid, tt.set))
		})
	}
}

func TestReasonString(t *testing.T) {
	assert.Equal(t, "kept", ReasonKeep.String())
	assert.Equal(t, "empty", ReasonEmpty.String())
	assert.Equal(t, "system", ReasonSystem.String())
	assert.Equal(t, "code", ReasonCode.String())
	assert.Equal(t, "unknown", Reason(99).String())
}
