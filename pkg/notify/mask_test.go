package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskString(t *testing.T) {
	tests := []struct {
		mask Mask
		want string
	}{
		{0, "0"},
		{Create, "IN_CREATE"},
		{Create | IsDir, "IN_CREATE|IN_ISDIR"},
		{MovedFrom | IsDir, "IN_MOVED_FROM|IN_ISDIR"},
		{Ignored, "IN_IGNORED"},
		{Overflow, "IN_Q_OVERFLOW"},
		{Modify | 0x1000, "IN_MODIFY|0x1000"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.mask.String())
	}
}

func TestMaskHelpers(t *testing.T) {
	m := Create | IsDir

	assert.True(t, m.Has(Create))
	assert.True(t, m.Has(Create|IsDir))
	assert.False(t, m.Has(Create|Delete))
	assert.True(t, m.Intersects(Create|Delete))
	assert.False(t, m.Intersects(Delete|Modify))

	assert.Equal(t, []string{"IN_CREATE", "IN_ISDIR"}, m.Names())
	assert.Empty(t, Mask(0).Names())
	assert.Equal(t, []string{"IN_OPEN", "0x1000"}, (Open | 0x1000).Names())
}

func TestParseMask(t *testing.T) {
	tests := []struct {
		in   string
		want Mask
	}{
		{"create", Create},
		{"IN_DELETE", Delete},
		{"create,delete", Create | Delete},
		{"create|isdir", Create | IsDir},
		{"close", CloseWrite | CloseNowrite},
		{"move", MovedFrom | MovedTo},
		{"all", AllEvents},
		{"256", Create},
		{"0x200", Delete},
		{"256, delete", Create | Delete},
		{"q_overflow", Overflow},
		{"overflow", Overflow},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMask(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMaskErrors(t *testing.T) {
	for _, in := range []string{"", "bogus", "create,nope", " , "} {
		_, err := ParseMask(in)
		assert.ErrorIs(t, err, ErrUnknownCategory, "input %q", in)
	}
}

func TestAllEventsExcludesSpecialBits(t *testing.T) {
	assert.Equal(t, Mask(0xfff), AllEvents)
	assert.False(t, AllEvents.Intersects(Ignored|Unmount|Overflow|IsDir))
}
