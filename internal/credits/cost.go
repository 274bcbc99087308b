package credits

// Cost model constants.
const (
	// MiB is the size unit OCR cost is computed over.
	MiB = 1024 * 1024

	// MinOCRCost is the floor for processing any document, however small.
	MinOCRCost = 2

	// ItemsPerCredit is how many generated items one credit buys.
	ItemsPerCredit = 10
)

// OCRCost returns the credit cost of processing a file of the given size:
// one credit per MiB rounded up, never less than MinOCRCost.
func OCRCost(sizeBytes int64) int64 {
	if sizeBytes <= 0 {
		return MinOCRCost
	}

	cost := (sizeBytes + MiB - 1) / MiB
	if cost < MinOCRCost {
		return MinOCRCost
	}
	return cost
}

// GenerationCost returns the credit cost of itemCount generated items, one
// credit per ItemsPerCredit rounded up. Zero items cost nothing.
func GenerationCost(itemCount int) int64 {
	if itemCount <= 0 {
		return 0
	}
	return int64((itemCount + ItemsPerCredit - 1) / ItemsPerCredit)
}
