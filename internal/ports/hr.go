package ports

import (
	"net/http"
	"strconv"

	"github.com/Amund211/paydesk/internal/domain"
	"github.com/Amund211/paydesk/internal/hrapi"
)

func MakeListAssetsHandler(clients ClientSource) http.HandlerFunc {
	return makeClientHandler(clients, http.StatusOK, func(r *http.Request, client *hrapi.Client) ([]domain.Asset, error) {
		query := hrapi.AssetQuery{Search: r.URL.Query().Get("search")}
		if page, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && page > 0 {
			query.Page = page
		}
		return client.ListAssets(r.Context(), query, refreshOptions(r)...)
	})
}

func MakeCreateAssetHandler(clients ClientSource) http.HandlerFunc {
	return makeClientHandler(clients, http.StatusCreated, func(r *http.Request, client *hrapi.Client) (domain.Asset, error) {
		asset, err := decodeBody[domain.Asset](r)
		if err != nil {
			return domain.Asset{}, err
		}
		return client.CreateAsset(r.Context(), asset)
	})
}

func MakeUpdateAssetHandler(clients ClientSource) http.HandlerFunc {
	return makeClientHandler(clients, http.StatusOK, func(r *http.Request, client *hrapi.Client) (domain.Asset, error) {
		asset, err := decodeBody[domain.Asset](r)
		if err != nil {
			return domain.Asset{}, err
		}
		return client.UpdateAsset(r.Context(), r.PathValue("id"), asset)
	})
}

func MakeDeleteAssetHandler(clients ClientSource) http.HandlerFunc {
	return makeClientHandler(clients, http.StatusOK, func(r *http.Request, client *hrapi.Client) (map[string]string, error) {
		id := r.PathValue("id")
		if err := client.DeleteAsset(r.Context(), id); err != nil {
			return nil, err
		}
		return map[string]string{"id": id}, nil
	})
}

func MakeGetBankDetailsHandler(clients ClientSource) http.HandlerFunc {
	return makeClientHandler(clients, http.StatusOK, func(r *http.Request, client *hrapi.Client) (domain.BankDetails, error) {
		return client.GetBankDetails(r.Context(), r.PathValue("employeeId"), refreshOptions(r)...)
	})
}

func MakeUpdateBankDetailsHandler(clients ClientSource) http.HandlerFunc {
	return makeClientHandler(clients, http.StatusOK, func(r *http.Request, client *hrapi.Client) (domain.BankDetails, error) {
		details, err := decodeBody[domain.BankDetails](r)
		if err != nil {
			return domain.BankDetails{}, err
		}
		return client.UpdateBankDetails(r.Context(), r.PathValue("employeeId"), details)
	})
}

func MakeListAdvancesHandler(clients ClientSource) http.HandlerFunc {
	return makeClientHandler(clients, http.StatusOK, func(r *http.Request, client *hrapi.Client) ([]domain.Advance, error) {
		return client.ListAdvances(r.Context(), r.URL.Query().Get("employee_id"), refreshOptions(r)...)
	})
}

func MakeCreateAdvanceHandler(clients ClientSource) http.HandlerFunc {
	return makeClientHandler(clients, http.StatusCreated, func(r *http.Request, client *hrapi.Client) (domain.Advance, error) {
		advance, err := decodeBody[domain.Advance](r)
		if err != nil {
			return domain.Advance{}, err
		}
		return client.CreateAdvance(r.Context(), advance)
	})
}

func MakeListEmployeesHandler(clients ClientSource) http.HandlerFunc {
	return makeClientHandler(clients, http.StatusOK, func(r *http.Request, client *hrapi.Client) ([]domain.Employee, error) {
		return client.ListEmployees(r.Context(), r.URL.Query().Get("search"), refreshOptions(r)...)
	})
}

func MakeGetPayrollSettingsHandler(clients ClientSource) http.HandlerFunc {
	return makeClientHandler(clients, http.StatusOK, func(r *http.Request, client *hrapi.Client) (domain.PayrollSettings, error) {
		return client.GetPayrollSettings(r.Context(), refreshOptions(r)...)
	})
}

func MakeUpdatePayrollSettingsHandler(clients ClientSource) http.HandlerFunc {
	return makeClientHandler(clients, http.StatusOK, func(r *http.Request, client *hrapi.Client) (domain.PayrollSettings, error) {
		settings, err := decodeBody[domain.PayrollSettings](r)
		if err != nil {
			return domain.PayrollSettings{}, err
		}
		return client.UpdatePayrollSettings(r.Context(), settings)
	})
}

func MakeListTaxRulesHandler(clients ClientSource) http.HandlerFunc {
	return makeClientHandler(clients, http.StatusOK, func(r *http.Request, client *hrapi.Client) ([]domain.TaxRule, error) {
		return client.ListTaxRules(r.Context(), refreshOptions(r)...)
	})
}
