package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRentValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "brazilian format with currency sign", raw: "R$ 4.500,00", want: "4500"},
		{name: "brazilian format without sign", raw: "1.234,56", want: "1234.56"},
		{name: "comma decimals only", raw: "980,50", want: "980.5"},
		{name: "plain decimal", raw: "4500.00", want: "4500"},
		{name: "integer", raw: "4500", want: "4500"},
		{name: "surrounding whitespace", raw: "  R$ 100,00  ", want: "100"},
		{name: "empty", raw: "", wantErr: true},
		{name: "only currency sign", raw: "R$", wantErr: true},
		{name: "garbage", raw: "abc", wantErr: true},
		{name: "negative", raw: "-10,00", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseRentValue(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}
