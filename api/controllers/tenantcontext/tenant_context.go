package tenantcontext

import (
	"net/http"
	"strings"

	pkgerrors "github.com/fitcheckhq/fitcheck-backend/pkg/errors"
)

const tenantIDHeader = "X-Tenant-Id"

// ResolveTenantID extracts the tenant identity the platform proxy attaches
// to each request. The header wins; the query parameter exists for dashboard
// loaders that cannot set headers.
func ResolveTenantID(r *http.Request) (string, error) {
	if id := strings.TrimSpace(r.Header.Get(tenantIDHeader)); id != "" {
		return id, nil
	}
	if id := strings.TrimSpace(r.URL.Query().Get("tenant")); id != "" {
		return id, nil
	}
	return "", pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
}
