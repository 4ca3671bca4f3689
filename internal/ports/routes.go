package ports

import (
	"net/http"

	"github.com/Amund211/paydesk/internal/app"
	"github.com/Amund211/paydesk/internal/hrapi"
)

type API struct {
	Clients        ClientSource
	Cache          hrapi.CacheClearer
	Sessions       SessionEnder
	PreviewPayroll app.PreviewPayroll
	GetPayslip     app.GetPayslip
}

// Register adds every API route to mux, each wrapped in middleware
func (api API) Register(mux *http.ServeMux, middleware Middleware, allowedOrigins *DomainSuffixes) {
	handle := func(pattern string, handler http.HandlerFunc) {
		mux.HandleFunc(pattern, middleware(handler))
	}

	handle("GET /v1/assets", MakeListAssetsHandler(api.Clients))
	handle("POST /v1/assets", MakeCreateAssetHandler(api.Clients))
	handle("PUT /v1/assets/{id}", MakeUpdateAssetHandler(api.Clients))
	handle("DELETE /v1/assets/{id}", MakeDeleteAssetHandler(api.Clients))

	handle("GET /v1/employees", MakeListEmployeesHandler(api.Clients))
	handle("GET /v1/employees/{employeeId}/bank-details", MakeGetBankDetailsHandler(api.Clients))
	handle("PUT /v1/employees/{employeeId}/bank-details", MakeUpdateBankDetailsHandler(api.Clients))

	handle("GET /v1/advances", MakeListAdvancesHandler(api.Clients))
	handle("POST /v1/advances", MakeCreateAdvanceHandler(api.Clients))

	handle("GET /v1/payroll-settings", MakeGetPayrollSettingsHandler(api.Clients))
	handle("PUT /v1/payroll-settings", MakeUpdatePayrollSettingsHandler(api.Clients))
	handle("GET /v1/tax-rules", MakeListTaxRulesHandler(api.Clients))

	handle("GET /v1/payroll/{month}/preview", MakePreviewPayrollHandler(api.Clients, api.PreviewPayroll))
	handle("POST /v1/payroll/{month}/run", MakeRunPayrollHandler(api.Clients))
	handle("POST /v1/payslips/generate", MakeGeneratePayslipsHandler(api.Clients))
	handle("GET /v1/payslips/{employeeId}/{month}", MakeGetPayslipHandler(api.Clients, api.GetPayslip))

	handle("POST /v1/cache/clear", MakeClearCacheHandler(api.Cache))
	handle("DELETE /v1/session", MakeEndSessionHandler(api.Sessions))

	mux.HandleFunc("OPTIONS /v1/", BuildCORSHandler(allowedOrigins))
}
