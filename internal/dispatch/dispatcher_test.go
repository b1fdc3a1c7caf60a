package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	testCases := []struct {
		name      string
		body      string
		variables map[string]string
		expected  string
	}{
		{
			name:      "substitutes_variables",
			body:      "Hi {{customer_name}}, your cart of {{cart_total}} is waiting",
			variables: map[string]string{"customer_name": "Ada", "cart_total": "129.90"},
			expected:  "Hi Ada, your cart of 129.90 is waiting",
		},
		{
			name:      "unknown_placeholders_left_untouched",
			body:      "Use code {{code}} at checkout",
			variables: map[string]string{"customer_name": "Ada"},
			expected:  "Use code {{code}} at checkout",
		},
		{
			name:      "repeated_placeholder",
			body:      "{{name}} and {{name}}",
			variables: map[string]string{"name": "x"},
			expected:  "x and x",
		},
		{
			name:     "nil_variables",
			body:     "plain text",
			expected: "plain text",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Render(tc.body, tc.variables))
		})
	}
}
