package prompts

// Input is a superset of all fields any prompt might need.
// Missing fields render empty strings (templates use missingkey=zero).
type Input struct {
	// Product
	ProductName        string
	ProductDescription string
	Category           string

	// Target
	TargetAge       string
	TargetGender    string
	TargetInterests string
	IncomeLevel     string

	// Strategy / copy
	StrategyName        string
	StrategyCoreMessage string
	CopyTone            string
	CopyText            string
	Hashtags            string

	// Image
	ImagePrompt   string
	CustomRequest string

	// RAG context, preformatted
	References string

	// Simulation
	PersonaCount int
	PersonasJSON string
}
