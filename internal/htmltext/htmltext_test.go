package htmltext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"plain", "  Grade   A\n zone ", "Grade A zone"},
		{"tags", "<p>Annex <b>1</b> revision</p>", "Annex 1 revision"},
		{"entities", "Smoke &amp; airflow&nbsp;studies", "Smoke & airflow studies"},
		{"script", `<div>keep<script>var x = "<p>drop</p>";</script> this</div>`, "keep this"},
		{"style", "<style>.a{color:red}</style><span>visible</span>", "visible"},
		{"unclosed", "<p>broken <em>markup", "broken markup"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(tt.in))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "čš", Truncate("čšž", 2))
}
