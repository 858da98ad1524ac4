package web

import (
	"net/http"

	"gymdesk/internal/application/orchestrators"
)

// handleRunRenewals runs the renewal sweep on demand.
// POST /admin/renewals/run?as_of=2024-03-31 (defaults to today)
func handleRunRenewals(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseDate("as_of", r.URL.Query().Get("as_of"))
	if err != nil {
		badRequest(w, err)
		return
	}
	report, err := orchestrators.ExecuteRenewalSweep(r.Context(), orchestrators.RenewalSweepInput{AsOf: asOf}, billingDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
