package registry

import (
	"strings"

	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/actions"
)

// NetworkUnknown marks providers whose network capability is not declared by
// the action source. The field is kept explicitly unresolved rather than
// guessed from action names.
const NetworkUnknown = "unknown"

// SearchableAction is the registry-owned, index-ready view of one action.
type SearchableAction struct {
	ActionID       string
	ProviderID     string
	ProviderName   string
	Name           string
	Description    string
	Schema         *actions.Schema
	Parameters     []actions.ParameterDescriptor
	RequiresWallet bool
	Invoke         actions.HandlerFunc
}

// ProviderMetadata groups the actions sharing one inferred provider prefix.
type ProviderMetadata struct {
	ProviderID  string
	Name        string
	Description string
	Network     string
	Actions     []*SearchableAction
}

// walletKeywords drive the requires-wallet heuristic: an action whose
// lowercased name or description contains any of these is assumed to need a
// connected wallet.
var walletKeywords = []string{
	"transfer", "send", "swap", "trade", "stake", "unstake", "withdraw",
	"deposit", "approve", "mint", "burn", "transaction", "sign", "balance",
}

func inferRequiresWallet(name, description string) bool {
	haystack := strings.ToLower(name) + " " + strings.ToLower(description)
	for _, kw := range walletKeywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}
