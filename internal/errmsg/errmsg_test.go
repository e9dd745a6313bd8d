package errmsg

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/andymarkow/cybexchange/internal/domain/loans"
	"github.com/andymarkow/cybexchange/internal/domain/rates"
	"github.com/andymarkow/cybexchange/internal/storage"
	"github.com/stretchr/testify/assert"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    int
		wantMessage string
	}{
		{
			name:        "not found behind call prefix",
			err:         fmt.Errorf("storage.GetLoan: %w", storage.ErrLoanNotFound),
			wantCode:    http.StatusNotFound,
			wantMessage: "loan not found",
		},
		{
			name:        "detail is kept",
			err:         fmt.Errorf("loans.Validate: %w", fmt.Errorf("%w: iban", loans.ErrFieldEmpty)),
			wantCode:    http.StatusBadRequest,
			wantMessage: "loan field is empty: iban",
		},
		{
			name:        "rate unavailable",
			err:         fmt.Errorf("rates.Convert: %w", fmt.Errorf("%w: %s", rates.ErrRateUnavailable, "KZ->EUR")),
			wantCode:    http.StatusUnprocessableEntity,
			wantMessage: "exchange rate unavailable: KZ->EUR",
		},
		{
			name:        "balance",
			err:         storage.ErrUserBalanceNotEnough,
			wantCode:    http.StatusPaymentRequired,
			wantMessage: storage.ErrUserBalanceNotEnough.Error(),
		},
		{
			name:        "unknown error is hidden",
			err:         fmt.Errorf("sql: %w", errors.New("connection reset")),
			wantCode:    http.StatusInternalServerError,
			wantMessage: "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromError(tt.err)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantMessage, got.Error())
		})
	}
}
