package conversation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		imageURL string
		want     string
	}{
		{"short text", "Hi", "", "Hi"},
		{"long text is cut at 30", "Hello world, this is a long message", "", "Hello world, this is a long me..."},
		{"exactly 30 characters", strings.Repeat("a", 30), "", strings.Repeat("a", 30)},
		{"image only", "", "https://img.example/x.png", ImageTitle},
		{"whitespace text with image", "   ", "https://img.example/x.png", ImageTitle},
		{"text wins over image", "What is this?", "https://img.example/x.png", "What is this?"},
		{"nothing", "", "", DefaultTitle},
		{"surrounding whitespace", "  hello  ", "", "hello"},
		{"leading blanks count toward the cut", "   Hello world, this is a long message", "", "Hello world, this is a lon..."},
		{"multibyte characters", strings.Repeat("é", 31), "", strings.Repeat("é", 30) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveTitle(tt.text, tt.imageURL))
		})
	}
}

func TestNormalizeTitle(t *testing.T) {
	assert.Equal(t, "Trip plans", NormalizeTitle("  Trip plans \n"))
	assert.Equal(t, "", NormalizeTitle("   "))

	exact := strings.Repeat("x", MaxTitleLength)
	assert.Equal(t, exact, NormalizeTitle(exact))

	long := NormalizeTitle(strings.Repeat("x", MaxTitleLength+1))
	assert.Equal(t, strings.Repeat("x", 97)+"...", long)
	assert.Len(t, []rune(long), MaxTitleLength)
}
