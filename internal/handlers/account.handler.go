package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/payment-gateway/internal/model"
	xhttp "github.com/nimasrn/payment-gateway/pkg/http"
)

type AccountService interface {
	ListAccounts(ctx context.Context, accountType *model.AccountType) ([]*model.Account, error)
}

type AccountHandler struct {
	svc AccountService
}

func RegisterAccountRoutes(e *router.Group, h *AccountHandler) {
	e.GET("/accounts", h.ListAccounts)
}

func NewAccountHandler(svc AccountService) *AccountHandler {
	return &AccountHandler{svc: svc}
}

type accountResponse struct {
	ID       string            `json:"account_id"`
	Name     string            `json:"account_name"`
	Type     model.AccountType `json:"account_type"`
	Balance  Amount            `json:"balance"`
	Currency string            `json:"currency"`
}

func (h *AccountHandler) ListAccounts(ctx *xhttp.RequestCtx) {
	var accountType *model.AccountType
	if v := query(ctx, "type"); v != "" {
		t := model.AccountType(v)
		accountType = &t
	}

	accounts, err := h.svc.ListAccounts(ctx, accountType)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}

	resp := make([]accountResponse, len(accounts))
	for i, a := range accounts {
		resp[i] = accountResponse{
			ID:       a.ID,
			Name:     a.Name,
			Type:     a.Type,
			Balance:  Amount(a.Balance),
			Currency: a.Currency,
		}
	}
	writeJSON(ctx, xhttp.StatusOK, "", resp)
}
