package utils

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMSISDN(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"already normalized", "254712345678", "254712345678"},
		{"leading zero", "0712345678", "254712345678"},
		{"bare subscriber", "712345678", "254712345678"},
		{"safaricom 1xx prefix", "110123456", "254110123456"},
		{"plus country code", "+254712345678", "254712345678"},
		{"spaces and dashes", "0712 345-678", "254712345678"},
		{"unrecognized shape kept digits only", "12345", "12345"},
		{"empty", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeMSISDN(tc.input))
		})
	}
}

func TestGenerateCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		code, err := GenerateCode(4)
		require.NoError(t, err)
		assert.Len(t, code, 8)
		assert.Regexp(t, "^[0-9A-F]{8}$", code)
		assert.False(t, seen[code], "code %s repeated", code)
		seen[code] = true
	}
}

func TestCircuitBreakerPassesThroughResults(t *testing.T) {
	cb := NewCircuitBreaker("test")

	result, err := cb.Execute(context.Background(), func() (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)

	wantErr := errors.New("downstream broken")
	_, err = cb.Execute(context.Background(), func() (interface{}, error) {
		return nil, wantErr
	})
	assert.ErrorIs(t, err, wantErr)
}

func TestCircuitBreakerStaysClosedUnderLightFailure(t *testing.T) {
	cb := NewCircuitBreaker("test")

	// A handful of failures is well under the trip threshold.
	for i := 0; i < 10; i++ {
		cb.Execute(context.Background(), func() (interface{}, error) {
			return nil, errors.New("boom")
		})
	}

	_, err := cb.Execute(context.Background(), func() (interface{}, error) {
		return "recovered", nil
	})
	assert.NoError(t, err)
}
