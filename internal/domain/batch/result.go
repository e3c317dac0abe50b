package batch

// Outcome is the processing result of a single ingested song.
type Outcome string

// Ingest outcome values.
const (
	OutcomeInserted        Outcome = "inserted"
	OutcomeSkippedExisting Outcome = "skipped_existing"
	OutcomeSkippedInvalid  Outcome = "skipped_invalid"
	OutcomeFailed          Outcome = "failed"
)

// Result is the outcome of processing one item in a batch.
type Result struct {
	id      string
	outcome Outcome
	err     error
}

// NewResult creates a batch result for a finished item.
func NewResult(id string, outcome Outcome) Result { return Result{id: id, outcome: outcome} }

// NewError creates a failed batch result.
func NewError(id string, err error) Result { return Result{id: id, outcome: OutcomeFailed, err: err} }

// ID returns the song identifier, empty when the descriptor had none.
func (r Result) ID() string { return r.id }

// Outcome returns the processing outcome.
func (r Result) Outcome() Outcome { return r.outcome }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }

// Summary aggregates outcomes of a batch.
type Summary struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
	Invalid  int `json:"invalid"`
	Failed   int `json:"failed"`
}

// Summarize counts results by outcome.
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		s.Add(r.outcome)
	}
	return s
}

// Add counts one outcome.
func (s *Summary) Add(o Outcome) {
	switch o {
	case OutcomeInserted:
		s.Inserted++
	case OutcomeSkippedExisting:
		s.Skipped++
	case OutcomeSkippedInvalid:
		s.Invalid++
	default:
		s.Failed++
	}
}

// Merge adds another summary into s.
func (s *Summary) Merge(o Summary) {
	s.Inserted += o.Inserted
	s.Skipped += o.Skipped
	s.Invalid += o.Invalid
	s.Failed += o.Failed
}

// Total returns the number of processed items.
func (s Summary) Total() int { return s.Inserted + s.Skipped + s.Invalid + s.Failed }
