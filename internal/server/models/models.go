package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/andymarkow/cybexchange/internal/domain/kyc"
	"github.com/andymarkow/cybexchange/internal/domain/loans"
	"github.com/andymarkow/cybexchange/internal/domain/money"
	"github.com/andymarkow/cybexchange/internal/domain/rates"
	"github.com/andymarkow/cybexchange/internal/domain/settings"
	"github.com/andymarkow/cybexchange/internal/domain/transactions"
	"github.com/andymarkow/cybexchange/internal/domain/users"
	"github.com/shopspring/decimal"
)

var (
	ErrFieldRequired = errors.New("field is required")
	ErrFieldInvalid  = errors.New("field is invalid")
)

func required(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s", ErrFieldRequired, name)
	}

	return nil
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}

	s := formatTime(*t)

	return &s
}

type RegisterRequest struct {
	FullName    string `json:"fullName"`
	DateOfBirth string `json:"dateOfBirth"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Password    string `json:"password"`
}

func (r RegisterRequest) Validate() error {
	return errors.Join(
		required("fullName", r.FullName),
		required("dateOfBirth", r.DateOfBirth),
		required("email", r.Email),
		required("phone", r.Phone),
		required("password", r.Password),
	)
}

func (r RegisterRequest) Registration() users.Registration {
	return users.Registration{
		Email:       r.Email,
		Phone:       r.Phone,
		Password:    r.Password,
		FullName:    r.FullName,
		DateOfBirth: r.DateOfBirth,
	}
}

type LoginRequest struct {
	EmailOrPhone string `json:"emailOrPhone"`
	Password     string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return errors.Join(
		required("emailOrPhone", r.EmailOrPhone),
		required("password", r.Password),
	)
}

type UserResponse struct {
	ID                 string `json:"id"`
	Email              string `json:"email"`
	Phone              string `json:"phone"`
	FullName           string `json:"fullName"`
	DateOfBirth        string `json:"dateOfBirth"`
	Role               string `json:"role"`
	VerificationStatus string `json:"verificationStatus"`
	Balance            string `json:"balance"`
	CreatedAt          string `json:"createdAt"`
}

func NewUserResponse(u *users.User) UserResponse {
	return UserResponse{
		ID:                 u.ID(),
		Email:              u.Email(),
		Phone:              u.Phone(),
		FullName:           u.FullName(),
		DateOfBirth:        u.DateOfBirth(),
		Role:               string(u.Role()),
		VerificationStatus: u.VerificationStatus().String(),
		Balance:            money.Format(u.Balance()),
		CreatedAt:          formatTime(u.CreatedAt()),
	}
}

// AmountRequest is the body of deposit and withdraw requests.
type AmountRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

func (r AmountRequest) Validate() (money.Currency, error) {
	currency, err := money.ParseCurrency(r.Currency)
	if err != nil {
		return "", err //nolint:wrapcheck
	}

	if err := money.ValidateAmount(r.Amount); err != nil {
		return "", err //nolint:wrapcheck
	}

	return currency, nil
}

type ExchangeRequest struct {
	Amount       decimal.Decimal `json:"amount"`
	FromCurrency string          `json:"fromCurrency"`
	ToCurrency   string          `json:"toCurrency"`
}

func (r ExchangeRequest) Validate() (rates.Pair, error) {
	from, err := money.ParseCurrency(r.FromCurrency)
	if err != nil {
		return rates.Pair{}, err //nolint:wrapcheck
	}

	to, err := money.ParseCurrency(r.ToCurrency)
	if err != nil {
		return rates.Pair{}, err //nolint:wrapcheck
	}

	pair, err := rates.NewPair(from, to)
	if err != nil {
		return rates.Pair{}, err //nolint:wrapcheck
	}

	if err := money.ValidateAmount(r.Amount); err != nil {
		return rates.Pair{}, err //nolint:wrapcheck
	}

	return pair, nil
}

type TransactionResponse struct {
	ID          string  `json:"id"`
	UserID      string  `json:"userId"`
	Type        string  `json:"type"`
	Amount      string  `json:"amount"`
	Currency    string  `json:"currency"`
	Description string  `json:"description"`
	Reference   string  `json:"reference,omitempty"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"createdAt"`
	SettledAt   *string `json:"settledAt,omitempty"`
}

func NewTransactionResponse(t *transactions.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:          t.ID(),
		UserID:      t.UserID(),
		Type:        string(t.Type()),
		Amount:      money.Format(t.Amount()),
		Currency:    t.Currency().String(),
		Description: t.Description(),
		Reference:   t.Reference(),
		Status:      t.Status().String(),
		CreatedAt:   formatTime(t.CreatedAt()),
		SettledAt:   formatTimePtr(t.SettledAt()),
	}
}

func NewTransactionsResponse(list []*transactions.Transaction) []TransactionResponse {
	resp := make([]TransactionResponse, 0, len(list))
	for _, t := range list {
		resp = append(resp, NewTransactionResponse(t))
	}

	return resp
}

type ExchangeResponse struct {
	Transaction     TransactionResponse `json:"transaction"`
	Rate            string              `json:"rate"`
	ConvertedAmount string              `json:"convertedAmount"`
	ToCurrency      string              `json:"toCurrency"`
}

func NewExchangeResponse(t *transactions.Transaction, conv rates.Conversion) ExchangeResponse {
	return ExchangeResponse{
		Transaction:     NewTransactionResponse(t),
		Rate:            conv.Rate.String(),
		ConvertedAmount: money.Format(conv.Converted),
		ToCurrency:      conv.Pair.To.String(),
	}
}

// SettlementResponse is returned when an admin settles a ledger entry.
type SettlementResponse struct {
	Transaction TransactionResponse `json:"transaction"`
	Balance     string              `json:"balance"`
}

// ReviewRequest is an admin decision on a document, entry or loan.
type ReviewRequest struct {
	Status          string `json:"status"`
	RejectionReason string `json:"rejectionReason"`
}

func (r ReviewRequest) Validate() error {
	return required("status", r.Status)
}

// VerificationStatus accepts only the two verdicts.
func (r ReviewRequest) VerificationStatus() (users.VerificationStatus, error) {
	switch st := users.VerificationStatus(r.Status); st {
	case users.StatusApproved, users.StatusRejected:
		return st, nil
	default:
		return "", fmt.Errorf("%w: status %q", ErrFieldInvalid, r.Status)
	}
}

type KYCDocumentResponse struct {
	ID              string  `json:"id"`
	UserID          string  `json:"userId"`
	DocumentType    string  `json:"documentType"`
	DocumentURL     string  `json:"documentUrl"`
	Status          string  `json:"status"`
	RejectionReason string  `json:"rejectionReason,omitempty"`
	ReviewedAt      *string `json:"reviewedAt,omitempty"`
	CreatedAt       string  `json:"createdAt"`
}

func NewKYCDocumentsResponse(docs []*kyc.Document) []KYCDocumentResponse {
	resp := make([]KYCDocumentResponse, 0, len(docs))

	for _, d := range docs {
		resp = append(resp, KYCDocumentResponse{
			ID:              d.ID(),
			UserID:          d.UserID(),
			DocumentType:    string(d.Type()),
			DocumentURL:     d.URL(),
			Status:          d.Status().String(),
			RejectionReason: d.RejectionReason(),
			ReviewedAt:      formatTimePtr(d.ReviewedAt()),
			CreatedAt:       formatTime(d.CreatedAt()),
		})
	}

	return resp
}

type KYCReviewResponse struct {
	Document           KYCDocumentResponse `json:"document"`
	VerificationStatus string              `json:"verificationStatus"`
}

// LoanForm carries the text fields of a multipart loan application.
type LoanForm struct {
	Amount                 string
	TermMonths             string
	PaymentDay             string
	MonthlySalary          string
	Workplace              string
	BankName               string
	IBAN                   string
	EmergencyContact1Name  string
	EmergencyContact1Phone string
	EmergencyContact2Name  string
	EmergencyContact2Phone string
}

// NewLoanForm reads the form using get, usually (*http.Request).FormValue.
func NewLoanForm(get func(key string) string) LoanForm {
	return LoanForm{
		Amount:                 get("amount"),
		TermMonths:             get("termMonths"),
		PaymentDay:             get("paymentDay"),
		MonthlySalary:          get("monthlySalary"),
		Workplace:              get("workplace"),
		BankName:               get("bankName"),
		IBAN:                   get("iban"),
		EmergencyContact1Name:  get("emergencyContact1Name"),
		EmergencyContact1Phone: get("emergencyContact1Phone"),
		EmergencyContact2Name:  get("emergencyContact2Name"),
		EmergencyContact2Phone: get("emergencyContact2Phone"),
	}
}

// Application parses the numeric fields. Presence of the text fields is checked by
// loans.Application.Validate.
func (f LoanForm) Application() (loans.Application, error) {
	amount, err := money.ParseAmount(f.Amount)
	if err != nil {
		return loans.Application{}, fmt.Errorf("amount: %w", err)
	}

	term, err := strconv.Atoi(strings.TrimSpace(f.TermMonths))
	if err != nil {
		return loans.Application{}, fmt.Errorf("%w: termMonths", ErrFieldInvalid)
	}

	day, err := strconv.Atoi(strings.TrimSpace(f.PaymentDay))
	if err != nil {
		return loans.Application{}, fmt.Errorf("%w: paymentDay", ErrFieldInvalid)
	}

	salary, err := money.ParseAmount(f.MonthlySalary)
	if err != nil {
		return loans.Application{}, fmt.Errorf("monthlySalary: %w", err)
	}

	return loans.Application{
		Amount:        amount,
		TermMonths:    term,
		PaymentDay:    day,
		MonthlySalary: salary,
		Workplace:     strings.TrimSpace(f.Workplace),
		BankName:      strings.TrimSpace(f.BankName),
		IBAN:          strings.TrimSpace(f.IBAN),
		EmergencyContacts: [2]loans.Contact{
			{Name: strings.TrimSpace(f.EmergencyContact1Name), Phone: strings.TrimSpace(f.EmergencyContact1Phone)},
			{Name: strings.TrimSpace(f.EmergencyContact2Name), Phone: strings.TrimSpace(f.EmergencyContact2Phone)},
		},
	}, nil
}

type ContactResponse struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type LoanDocumentsResponse struct {
	IDCard        string `json:"idCardUrl"`
	Selfie        string `json:"selfieUrl"`
	SalaryProof   string `json:"salaryProofUrl"`
	Justification string `json:"justificationUrl,omitempty"`
}

type LoanResponse struct {
	ID                string                `json:"id"`
	UserID            string                `json:"userId"`
	Amount            string                `json:"amount"`
	TermMonths        int                   `json:"termMonths"`
	InterestRate      string                `json:"interestRate"`
	MonthlyPayment    string                `json:"monthlyPayment"`
	TotalPayment      string                `json:"totalPayment"`
	PaymentDay        int                   `json:"paymentDay"`
	MonthlySalary     string                `json:"monthlySalary"`
	Workplace         string                `json:"workplace"`
	BankName          string                `json:"bankName"`
	IBAN              string                `json:"iban"`
	EmergencyContacts []ContactResponse     `json:"emergencyContacts"`
	Documents         LoanDocumentsResponse `json:"documents"`
	Status            string                `json:"status"`
	RejectionReason   string                `json:"rejectionReason,omitempty"`
	ApprovedAt        *string               `json:"approvedAt,omitempty"`
	CreatedAt         string                `json:"createdAt"`
}

func NewLoanResponse(l *loans.Loan) LoanResponse {
	app := l.Application()

	contacts := make([]ContactResponse, 0, len(app.EmergencyContacts))
	for _, c := range app.EmergencyContacts {
		contacts = append(contacts, ContactResponse{Name: c.Name, Phone: c.Phone})
	}

	return LoanResponse{
		ID:                l.ID(),
		UserID:            l.UserID(),
		Amount:            money.Format(l.Amount()),
		TermMonths:        app.TermMonths,
		InterestRate:      l.InterestRate().String(),
		MonthlyPayment:    money.Format(l.MonthlyPayment()),
		TotalPayment:      money.Format(l.TotalPayment()),
		PaymentDay:        app.PaymentDay,
		MonthlySalary:     money.Format(app.MonthlySalary),
		Workplace:         app.Workplace,
		BankName:          app.BankName,
		IBAN:              app.IBAN,
		EmergencyContacts: contacts,
		Documents: LoanDocumentsResponse{
			IDCard:        app.Documents.IDCardURL,
			Selfie:        app.Documents.SelfieURL,
			SalaryProof:   app.Documents.SalaryProofURL,
			Justification: app.Documents.JustificationURL,
		},
		Status:          string(l.Status()),
		RejectionReason: l.RejectionReason(),
		ApprovedAt:      formatTimePtr(l.ApprovedAt()),
		CreatedAt:       formatTime(l.CreatedAt()),
	}
}

func NewLoansResponse(list []*loans.Loan) []LoanResponse {
	resp := make([]LoanResponse, 0, len(list))
	for _, l := range list {
		resp = append(resp, NewLoanResponse(l))
	}

	return resp
}

type LoanSimulationRequest struct {
	Amount       decimal.Decimal  `json:"amount"`
	TermMonths   int              `json:"termMonths"`
	InterestRate *decimal.Decimal `json:"interestRate,omitempty"`
}

type LoanSimulationResponse struct {
	Amount         string `json:"amount"`
	TermMonths     int    `json:"termMonths"`
	InterestRate   string `json:"interestRate"`
	MonthlyPayment string `json:"monthlyPayment"`
	TotalPayment   string `json:"totalPayment"`
	TotalInterest  string `json:"totalInterest"`
}

func NewLoanSimulationResponse(req LoanSimulationRequest, rate decimal.Decimal, q loans.Quote) LoanSimulationResponse {
	return LoanSimulationResponse{
		Amount:         money.Format(req.Amount),
		TermMonths:     req.TermMonths,
		InterestRate:   rate.String(),
		MonthlyPayment: money.Format(q.MonthlyPayment),
		TotalPayment:   money.Format(q.TotalPayment),
		TotalInterest:  money.Format(q.TotalInterest),
	}
}

type CurrencyRateRequest struct {
	FromCurrency string          `json:"fromCurrency"`
	ToCurrency   string          `json:"toCurrency"`
	Rate         decimal.Decimal `json:"rate"`
}

type UpdateCurrencyRatesRequest struct {
	Rates []CurrencyRateRequest `json:"rates"`
}

// CurrencyRates validates every entry and builds the domain rates.
func (r UpdateCurrencyRatesRequest) CurrencyRates(now time.Time) ([]*rates.CurrencyRate, error) {
	if len(r.Rates) == 0 {
		return nil, fmt.Errorf("%w: rates", ErrFieldRequired)
	}

	list := make([]*rates.CurrencyRate, 0, len(r.Rates))

	for i, item := range r.Rates {
		from, err := money.ParseCurrency(item.FromCurrency)
		if err != nil {
			return nil, fmt.Errorf("rates[%d]: %w", i, err)
		}

		to, err := money.ParseCurrency(item.ToCurrency)
		if err != nil {
			return nil, fmt.Errorf("rates[%d]: %w", i, err)
		}

		pair, err := rates.NewPair(from, to)
		if err != nil {
			return nil, fmt.Errorf("rates[%d]: %w", i, err)
		}

		rate, err := rates.NewCurrencyRate(pair, item.Rate, now)
		if err != nil {
			return nil, fmt.Errorf("rates[%d]: %w", i, err)
		}

		list = append(list, rate)
	}

	return list, nil
}

type CurrencyRateResponse struct {
	FromCurrency string `json:"fromCurrency"`
	ToCurrency   string `json:"toCurrency"`
	Rate         string `json:"rate"`
	UpdatedAt    string `json:"updatedAt"`
}

func NewCurrencyRatesResponse(list []*rates.CurrencyRate) []CurrencyRateResponse {
	resp := make([]CurrencyRateResponse, 0, len(list))

	for _, r := range list {
		resp = append(resp, CurrencyRateResponse{
			FromCurrency: r.From().String(),
			ToCurrency:   r.To().String(),
			Rate:         r.Rate().StringFixed(rates.RateScale),
			UpdatedAt:    formatTime(r.UpdatedAt()),
		})
	}

	return resp
}

type UpdateSettingRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (r UpdateSettingRequest) Validate() error {
	return errors.Join(
		required("key", r.Key),
		required("value", r.Value),
	)
}

type SettingResponse struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	UpdatedAt string `json:"updatedAt"`
}

func NewSettingsResponse(list []*settings.Setting) []SettingResponse {
	resp := make([]SettingResponse, 0, len(list))

	for _, s := range list {
		resp = append(resp, SettingResponse{
			Key:       string(s.Key),
			Value:     s.Value,
			UpdatedAt: formatTime(s.UpdatedAt),
		})
	}

	return resp
}
