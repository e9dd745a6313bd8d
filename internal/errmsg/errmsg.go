package errmsg

import (
	"errors"
	"net/http"
	"strings"

	"github.com/andymarkow/cybexchange/internal/domain/kyc"
	"github.com/andymarkow/cybexchange/internal/domain/loans"
	"github.com/andymarkow/cybexchange/internal/domain/money"
	"github.com/andymarkow/cybexchange/internal/domain/rates"
	"github.com/andymarkow/cybexchange/internal/domain/settings"
	"github.com/andymarkow/cybexchange/internal/domain/transactions"
	"github.com/andymarkow/cybexchange/internal/domain/users"
	"github.com/andymarkow/cybexchange/internal/filestore"
	"github.com/andymarkow/cybexchange/internal/server/models"
	"github.com/andymarkow/cybexchange/internal/service"
	"github.com/andymarkow/cybexchange/internal/storage"
)

type HTTPError struct {
	Code    int
	Message error
}

func NewHTTPError(code int, message error) HTTPError {
	return HTTPError{Code: code, Message: message}
}

func (e *HTTPError) Error() string {
	return e.Message.Error()
}

var (
	ErrRequestPayloadEmpty = NewHTTPError(
		http.StatusBadRequest,
		errors.New("request payload is empty"),
	)

	ErrRequestPayloadInvalid = NewHTTPError(
		http.StatusBadRequest,
		errors.New("request payload is invalid"),
	)

	ErrRequestPayloadTooLarge = NewHTTPError(
		http.StatusRequestEntityTooLarge,
		errors.New("request payload is too large"),
	)
)

var (
	ErrUnauthorized = NewHTTPError(
		http.StatusUnauthorized,
		errors.New("unauthorized"),
	)

	ErrForbidden = NewHTTPError(
		http.StatusForbidden,
		errors.New("forbidden"),
	)

	ErrInternal = NewHTTPError(
		http.StatusInternalServerError,
		errors.New("internal server error"),
	)
)

// codes maps domain and storage sentinels to response status codes.
var codes = []struct {
	target error
	code   int
}{
	{users.ErrUserCredentialsInvalid, http.StatusUnauthorized},

	{storage.ErrUserNotFound, http.StatusNotFound},
	{storage.ErrKYCDocumentNotFound, http.StatusNotFound},
	{storage.ErrTransactionNotFound, http.StatusNotFound},
	{storage.ErrLoanNotFound, http.StatusNotFound},
	{storage.ErrCurrencyRateNotFound, http.StatusNotFound},
	{storage.ErrSettingNotFound, http.StatusNotFound},

	{storage.ErrUserAlreadyExists, http.StatusConflict},
	{transactions.ErrTransactionAlreadySettled, http.StatusConflict},
	{transactions.ErrTransactionNotSettleable, http.StatusConflict},
	{kyc.ErrDocumentAlreadyReviewed, http.StatusConflict},
	{kyc.ErrAlreadySubmitted, http.StatusConflict},
	{kyc.ErrAlreadyApproved, http.StatusConflict},
	{loans.ErrTransitionInvalid, http.StatusConflict},

	{storage.ErrUserBalanceNotEnough, http.StatusPaymentRequired},

	{rates.ErrRateUnavailable, http.StatusUnprocessableEntity},
	{kyc.ErrDocumentMissing, http.StatusUnprocessableEntity},
	{loans.ErrRequiredDocumentMissing, http.StatusUnprocessableEntity},

	{filestore.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
	{filestore.ErrFileEmpty, http.StatusBadRequest},
	{filestore.ErrFileTypeNotAllowed, http.StatusBadRequest},

	{users.ErrUserEmailInvalid, http.StatusBadRequest},
	{users.ErrUserPhoneInvalid, http.StatusBadRequest},
	{users.ErrUserPasswdTooShort, http.StatusBadRequest},
	{users.ErrUserFullNameEmpty, http.StatusBadRequest},
	{users.ErrUserBirthDateInvalid, http.StatusBadRequest},
	{users.ErrUserRoleInvalid, http.StatusBadRequest},
	{money.ErrCurrencyUnknown, http.StatusBadRequest},
	{money.ErrAmountNotPositive, http.StatusBadRequest},
	{money.ErrAmountInvalid, http.StatusBadRequest},
	{money.ErrAmountPrecision, http.StatusBadRequest},
	{rates.ErrRateNotPositive, http.StatusBadRequest},
	{rates.ErrRateSameCurrency, http.StatusBadRequest},
	{transactions.ErrTransactionStatusInvalid, http.StatusBadRequest},
	{transactions.ErrTransactionTypeInvalid, http.StatusBadRequest},
	{kyc.ErrDocumentTypeInvalid, http.StatusBadRequest},
	{kyc.ErrDecisionInvalid, http.StatusBadRequest},
	{loans.ErrPrincipalNotPositive, http.StatusBadRequest},
	{loans.ErrInterestRateNegative, http.StatusBadRequest},
	{loans.ErrTermInvalid, http.StatusBadRequest},
	{loans.ErrPaymentDayInvalid, http.StatusBadRequest},
	{loans.ErrSalaryNotPositive, http.StatusBadRequest},
	{loans.ErrFieldEmpty, http.StatusBadRequest},
	{loans.ErrStatusInvalid, http.StatusBadRequest},
	{settings.ErrSettingKeyUnknown, http.StatusBadRequest},
	{settings.ErrSettingValueInvalid, http.StatusBadRequest},
	{service.ErrRatesEmpty, http.StatusBadRequest},
	{models.ErrFieldRequired, http.StatusBadRequest},
	{models.ErrFieldInvalid, http.StatusBadRequest},
}

// FromError maps an error returned by the service layer to a response. Errors
// without a known sentinel become ErrInternal so that no internals leak.
func FromError(err error) HTTPError {
	for _, c := range codes {
		if errors.Is(err, c.target) {
			return NewHTTPError(c.code, detail(err, c.target))
		}
	}

	return ErrInternal
}

// detail strips call-site prefixes from err while keeping any detail appended to
// target, e.g. "loan field is empty: iban".
func detail(err, target error) error {
	for {
		next := errors.Unwrap(err)

		switch {
		case next == nil:
			return err
		case next == target: //nolint:errorlint
			if strings.HasPrefix(err.Error(), target.Error()) {
				return err
			}

			return target
		case !errors.Is(next, target):
			return target
		}

		err = next
	}
}
