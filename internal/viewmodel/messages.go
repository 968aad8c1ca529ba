package viewmodel

import "coinstock/backend/internal/result"

// FriendlyMessage maps known failure codes to text an operator can act on.
// Unknown codes keep the store message verbatim.
func FriendlyMessage(code string, message string) string {
	switch code {
	case result.CodeNotReady, "42883", "42P01":
		return "Purchases are not available yet because the stock procedure is not installed. Ask an administrator to run the migrations."
	case result.CodeConflict, "23505":
		return "A platform with this name and account type already exists."
	case result.CodeNotFound, "P0002":
		return "This platform no longer exists. Refresh the list and try again."
	case "23514":
		return "The change would break a stock rule. Inventory and prices cannot be negative."
	}
	if message == "" {
		return "Something went wrong. Please try again."
	}
	return message
}
