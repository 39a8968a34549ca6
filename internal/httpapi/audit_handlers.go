package httpapi

import (
	"net/http"

	"tasktrail.org/internal/audit"
)

// handleListAuditLogs returns the newest records from every organization
// the caller can reach. Scoping happens here, not client-side: the org
// filter is derived from the authenticated identity.
func (a *API) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	identity, ok := callerIdentity(w, r)
	if !ok {
		return
	}

	orgIDs, err := a.eval.AccessibleOrgIDs(r.Context(), identity)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	records, err := a.auditLog.Query(r.Context(), orgIDs)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if records == nil {
		records = []*audit.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"audit_logs": records})
}
