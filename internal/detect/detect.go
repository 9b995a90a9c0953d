// Package detect classifies inbound conversation text into alert types
// for the notification dispatcher.
package detect

import (
	"regexp"
	"strings"
)

// Alert type vocabulary. Matches the agent_alerts table enum.
const (
	AlertMissingTracking      = "missing_tracking"
	AlertUnhappyCustomer      = "unhappy_customer"
	AlertBulkInquiry          = "bulk_inquiry"
	AlertBulkInquiryWithEmail = "bulk_inquiry_with_email"
	AlertQualityIssue         = "quality_issue"
	AlertDesignFile           = "design_file"
)

func ValidAlertType(t string) bool {
	switch t {
	case AlertMissingTracking, AlertUnhappyCustomer, AlertBulkInquiry,
		AlertBulkInquiryWithEmail, AlertQualityIssue, AlertDesignFile:
		return true
	}
	return false
}

var (
	trackingPattern = regexp.MustCompile(`(?i)\b(where.{0,20}(order|package|wrap)|tracking (number|info|link)|hasn't (arrived|shipped)|not (arrived|shipped|received))\b`)
	unhappyPattern  = regexp.MustCompile(`(?i)\b(refund|chargeback|unacceptable|terrible|worst|disappointed|never again|cancel (my|the) order|complain)\b`)
	bulkPattern     = regexp.MustCompile(`(?i)\b(fleet|bulk|wholesale|(\d{2,})\s*(vehicles|vans|trucks|cars|units))\b`)
	qualityPattern  = regexp.MustCompile(`(?i)\b(peeling|bubbl(e|ing|es)|wrinkl(e|ing|es)|misprint|wrong colou?r|faded|scratch(ed|es)?|defect)\b`)
	designPattern   = regexp.MustCompile(`(?i)\b(design file|vector|\.ai\b|\.eps\b|\.svg\b|artwork attached|print.?ready)\b`)
	emailPattern    = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
)

// Classify returns the alert type for a piece of inbound text, or ""
// when nothing anomalous is found. Quality issues outrank unhappiness
// because a quality complaint is almost always both.
func Classify(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}
	switch {
	case qualityPattern.MatchString(trimmed):
		return AlertQualityIssue
	case trackingPattern.MatchString(trimmed):
		return AlertMissingTracking
	case unhappyPattern.MatchString(trimmed):
		return AlertUnhappyCustomer
	case bulkPattern.MatchString(trimmed):
		if emailPattern.MatchString(trimmed) {
			return AlertBulkInquiryWithEmail
		}
		return AlertBulkInquiry
	case designPattern.MatchString(trimmed):
		return AlertDesignFile
	}
	return ""
}

// ExtractEmail returns the first email address in the text, if any.
func ExtractEmail(text string) (string, bool) {
	match := emailPattern.FindString(text)
	return match, match != ""
}
