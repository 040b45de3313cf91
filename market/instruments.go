package market

// IsCommonStock reports whether a stock id looks like a listed common
// share: four numeric digits, not the 00xx range used by ETFs.
// Warrants and structured products carry longer codes and are
// excluded.
func IsCommonStock(stockID string) bool {
	if len(stockID) != 4 {
		return false
	}
	for _, r := range stockID {
		if r < '0' || r > '9' {
			return false
		}
	}
	return stockID[0] != '0' || stockID[1] != '0'
}

// FilterCommonStocks keeps only common-share ids, preserving order.
func FilterCommonStocks(stockIDs []string) []string {
	out := make([]string, 0, len(stockIDs))
	for _, id := range stockIDs {
		if IsCommonStock(id) {
			out = append(out, id)
		}
	}
	return out
}
