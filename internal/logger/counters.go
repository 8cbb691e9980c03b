package logger

import "sync/atomic"

// Counters are incremented regardless of log sampling
var (
	TotalErrors    atomic.Int64
	TotalWarnings  atomic.Int64
	Total5xxErrors atomic.Int64
	Total4xxErrors atomic.Int64
	Total400Errors atomic.Int64
	Total404Errors atomic.Int64

	TotalEvaluations      atomic.Int64
	TotalNoMatches        atomic.Int64
	TotalEvaluationErrors atomic.Int64
	TotalTableRejections  atomic.Int64
)

// Stats is a point-in-time copy of the counters
type Stats struct {
	Errors           int64 `json:"errors"`
	Warnings         int64 `json:"warnings"`
	HTTP5xx          int64 `json:"http5xx"`
	HTTP4xx          int64 `json:"http4xx"`
	HTTP400          int64 `json:"http400"`
	HTTP404          int64 `json:"http404"`
	Evaluations      int64 `json:"evaluations"`
	NoMatches        int64 `json:"noMatches"`
	EvaluationErrors int64 `json:"evaluationErrors"`
	TableRejections  int64 `json:"tableRejections"`
}

// Snapshot reads all counters
func Snapshot() Stats {
	return Stats{
		Errors:           TotalErrors.Load(),
		Warnings:         TotalWarnings.Load(),
		HTTP5xx:          Total5xxErrors.Load(),
		HTTP4xx:          Total4xxErrors.Load(),
		HTTP400:          Total400Errors.Load(),
		HTTP404:          Total404Errors.Load(),
		Evaluations:      TotalEvaluations.Load(),
		NoMatches:        TotalNoMatches.Load(),
		EvaluationErrors: TotalEvaluationErrors.Load(),
		TableRejections:  TotalTableRejections.Load(),
	}
}

// ErrorHttp5xx counts a 5xx response
func ErrorHttp5xx() {
	Total5xxErrors.Add(1)
	TotalErrors.Add(1)
}

// WarnHttp4xx counts a 4xx response
func WarnHttp4xx(status int) {
	Total4xxErrors.Add(1)
	TotalWarnings.Add(1)

	switch status {
	case 400:
		Total400Errors.Add(1)
	case 404:
		Total404Errors.Add(1)
	}
}

// RecordEvaluation counts one table evaluation by outcome
func RecordEvaluation(matched bool, err error) {
	TotalEvaluations.Add(1)
	switch {
	case err != nil:
		TotalEvaluationErrors.Add(1)
	case !matched:
		TotalNoMatches.Add(1)
	}
}

// RecordTableRejection counts a table that failed to parse or validate
func RecordTableRejection() {
	TotalTableRejections.Add(1)
}
