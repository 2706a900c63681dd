package extract

// StructuredRecognizer handles whole tool-output files whose structure
// carries more than line regexes can see. Sniff must be cheap and
// side-effect-free; Parse returns an ordinary FactSet that merges through
// the same rules as everything else. Rows that have no canonical leaf ride
// in Extra and survive into the audit record via the unknown-key rule.
type StructuredRecognizer interface {
	Name() string
	Sniff(path, text string) bool
	Parse(path, text string) FactSet
}

var structuredRecognizers = []StructuredRecognizer{
	nmapRecognizer{},
	httpxRecognizer{},
	nucleiRecognizer{},
}

// StructuredRecognizers returns the structured recognizer set in
// evaluation order. Callers must not mutate it.
func StructuredRecognizers() []StructuredRecognizer {
	return structuredRecognizers
}
