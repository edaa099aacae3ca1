package i18n

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAcceptLanguage(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", LocaleEnglish},
		{"pt-BR,pt;q=0.9,en;q=0.8", LocalePortuguese},
		{"en-US,en;q=0.9,pt;q=0.5", LocaleEnglish},
		{"de-DE", LocaleEnglish},
		{"fr, pt", LocalePortuguese},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAcceptLanguage(tt.header))
		})
	}
}

func TestLocalizer_Interpolation(t *testing.T) {
	params := map[string]string{"remaining": "10"}

	assert.Equal(t,
		"quantity to dispense exceeds remaining prescribed quantity of 10",
		T("errors.exceeds_prescribed_quantity", params))
	assert.Equal(t,
		"a quantidade a distribuir excede a quantidade restante na prescrição (10)",
		TWithLocale(LocalePortuguese, "errors.exceeds_prescribed_quantity", params))
}

func TestLocalizer_FallsBackToKey(t *testing.T) {
	assert.Equal(t, "errors.does_not_exist", T("errors.does_not_exist"))
}

func TestTFromContext(t *testing.T) {
	ctx := WithLocale(context.Background(), LocalePortuguese)
	assert.Equal(t, "prescrição", TFromContext(ctx, "resources.prescription"))
	assert.Equal(t, "prescription", TFromContext(context.Background(), "resources.prescription"))
}
