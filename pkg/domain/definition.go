package domain

// VariableDef declares a configuration variable.
type VariableDef struct {
	Key         string
	Kind        Kind
	Base        Domain
	Description string
	// Default is applied when the variable's stage is entered, if it is legal at that time.
	Default Value
	// Help maps option values to a short explanation shown next to them.
	Help map[Value]string
}

// StageDef declares one wizard stage.
type StageDef struct {
	Title       string
	Description string
	Vars        []string
	// AutoSelect assigns variables left with exactly one legal value when the stage is entered.
	AutoSelect bool
}
