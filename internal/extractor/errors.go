package extractor

import (
	"errors"
	"fmt"
	"strings"
)

// Typed extraction failures. Each maps to a distinct user-facing message.
var (
	// ErrDriver covers browser session creation or crash failures.
	ErrDriver = errors.New("browser driver failure")
	// ErrElementNotFound means both input locator strategies were exhausted.
	ErrElementNotFound = errors.New("input element not found")
	// ErrSubmit means neither the Enter keypress nor the submit control worked.
	ErrSubmit = errors.New("search submit failed")
	// ErrParse means the expected text anchors were missing from the page.
	ErrParse = errors.New("tracking fields not found on page")
	// ErrNoInterception means the backend data endpoint never appeared in
	// captured network events within the polling window.
	ErrNoInterception = errors.New("no backend response intercepted")
)

// FaultKind classifies a non-JSON contract response body.
type FaultKind string

const (
	FaultSecurityCheck FaultKind = "security_check"
	FaultNotFound      FaultKind = "not_found"
	FaultServer        FaultKind = "server_error"
	FaultUnclassified  FaultKind = "unclassified"
)

// ContractFault carries a classified raw body from the contract endpoint.
type ContractFault struct {
	Kind FaultKind
	Raw  string
}

// Error implements error.
func (f *ContractFault) Error() string {
	return fmt.Sprintf("contract endpoint fault (%s)", f.Kind)
}

// ClassifyRawBody maps a non-JSON response body onto a fault kind using the
// substring heuristics the source site is known to emit.
func ClassifyRawBody(raw string) *ContractFault {
	lower := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(lower, "security check failed"):
		return &ContractFault{Kind: FaultSecurityCheck, Raw: raw}
	case strings.Contains(lower, "не найден") || strings.Contains(lower, "not found"):
		return &ContractFault{Kind: FaultNotFound, Raw: raw}
	case strings.Contains(lower, "ошибка") || strings.Contains(lower, "error"):
		return &ContractFault{Kind: FaultServer, Raw: raw}
	default:
		return &ContractFault{Kind: FaultUnclassified, Raw: raw}
	}
}
