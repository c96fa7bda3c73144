package types

// Step is a single assembly instruction. Steps are immutable, supplied by
// configuration as an ordered sequence and advanced monotonically by index.
type Step struct {
	ID          int    `yaml:"id" json:"id"`
	Instruction string `yaml:"instruction" json:"instruction"`
	Expected    string `yaml:"expected" json:"expected"`
}
