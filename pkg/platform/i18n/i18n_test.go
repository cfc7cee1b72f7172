package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestParseTag(t *testing.T) {
	tests := []struct {
		input string
		want  language.Tag
		ok    bool
	}{
		{"ja", language.Japanese, true},
		{"ja-JP", language.Japanese, true},
		{"en-US", language.English, true},
		{"EN", language.English, true},
		{"", language.English, false},
		{"not a tag", language.English, false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseTag(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatchTags(t *testing.T) {
	tags, _, err := language.ParseAcceptLanguage("ja-JP,ja;q=0.9,en;q=0.8")
	assert.NoError(t, err)
	assert.Equal(t, language.Japanese, MatchTags(tags))

	assert.Equal(t, language.English, MatchTags(nil))
}

func TestSupportedTagsIsACopy(t *testing.T) {
	tags := SupportedTags()
	tags[0] = language.German
	assert.Equal(t, language.English, DefaultTag())
}
