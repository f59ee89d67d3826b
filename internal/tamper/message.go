package tamper

import (
	"fmt"
	"strings"
)

// buildMessage renders the alert email subject and plain-text body.
func buildMessage(alert *Alert, appURL string) (subject, body string) {
	subject = fmt.Sprintf("CRITICAL: ledger tampering detected for loan %s", alert.SubjectID)

	var b strings.Builder
	b.WriteString("Unauthorized modification detected in the loan audit ledger.\n\n")
	fmt.Fprintf(&b, "Loan ID:             %s\n", alert.SubjectID)
	if alert.TenantID != nil {
		fmt.Fprintf(&b, "Tenant ID:           %s\n", *alert.TenantID)
	}
	fmt.Fprintf(&b, "Detected at:         %s\n", alert.DetectedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Detected by:         %s\n", alert.DetectedBy)
	fmt.Fprintf(&b, "Total entries:       %d\n", alert.TotalEntries)
	fmt.Fprintf(&b, "Compromised entries: %d %v\n", len(alert.InvalidEntries), alert.InvalidEntries)

	b.WriteString("\nEvidence:\n")
	for _, e := range alert.Errors {
		fmt.Fprintf(&b, "  - %s\n", e)
	}

	b.WriteString("\nRecommended actions: lock the affected loan for review, audit database access, and report to the compliance team. Historical entries are never repaired in place; corrections must be appended as new events.\n")

	if appURL != "" {
		fmt.Fprintf(&b, "\nView the chain: %s/ledger?loanId=%s\n", appURL, alert.SubjectID)
	}

	b.WriteString("\nThis is an automated security notification. Do not reply.\n")
	return subject, b.String()
}
