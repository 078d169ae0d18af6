package fixtures

import (
	"github.com/nimasrn/payment-gateway/internal/model"
	"github.com/shopspring/decimal"
)

const (
	MainOperating = "ACC001"
	Payroll       = "ACC002"
	Marketing     = "ACC003"
	OfficeSupply  = "SUP001"
	TechSolutions = "SUP002"
)

func NewCreatePaymentRequest(debtor, creditor, amount string) model.CreatePaymentRequest {
	return model.CreatePaymentRequest{
		DebtorID:   debtor,
		CreditorID: creditor,
		Amount:     decimal.RequireFromString(amount),
	}
}

func PaymentRequestScenarioA() model.CreatePaymentRequest {
	req := NewCreatePaymentRequest(MainOperating, OfficeSupply, "1500.50")
	desc := "Office supplies invoice"
	req.Description = &desc
	return req
}

func PaymentRequestSameAccount() model.CreatePaymentRequest {
	return NewCreatePaymentRequest(MainOperating, MainOperating, "100")
}

func PaymentRequestOverdraft() model.CreatePaymentRequest {
	return NewCreatePaymentRequest(Marketing, OfficeSupply, "500.00")
}

var (
	ValidAmounts = []string{
		"0.01",
		"1",
		"1500.50",
		"999999.99",
		"1000000",
	}

	InvalidAmounts = []string{
		"0",
		"-1",
		"-0.01",
		"0.001",
		"1000000.01",
	}

	InvalidAccountIDs = []string{
		"",
		"ACC-001",
		"acc 001",
		"ACC001ACC001ACC001ACC001ACC001ACC001ACC001ACC001ACC001",
	}
)
