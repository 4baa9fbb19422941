package errors

// Codes are seven digits, AABBCCC: service, category, sequence.
const (
	// ServiceCommon holds errors shared by every service.
	ServiceCommon = 0
	// ServiceLegalRAG holds the legal retrieval engine's errors.
	ServiceLegalRAG = 21
)

// Categories group codes by cause.
const (
	CategoryRequest  = 1
	CategoryResource = 4
	CategoryInternal = 7
	CategoryCache    = 9
	CategoryNetwork  = 10
	CategoryTimeout  = 11
)

// MakeCode composes a code from its parts.
func MakeCode(service, category, sequence int) int {
	return service*100000 + category*1000 + sequence
}
