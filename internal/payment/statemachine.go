package payment

import "portal/internal/provider"

// transitions holds every legal forward edge of the payment lifecycle.
// Gateways can report a terminal outcome for a transaction that never
// surfaced an intermediate state, so initiated/pending/processing each
// admit the terminal outcomes directly.
var transitions = map[Status][]Status{
	StatusInitiated:  {StatusPending, StatusProcessing, StatusSuccess, StatusFailed, StatusCancelled},
	StatusPending:    {StatusProcessing, StatusSuccess, StatusFailed, StatusCancelled},
	StatusProcessing: {StatusSuccess, StatusFailed, StatusCancelled},
	StatusSuccess:    {StatusDisputed, StatusRefunded},
	StatusDisputed:   {StatusSuccess, StatusRefunded},
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func IsTerminal(s Status) bool {
	switch s {
	case StatusFailed, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

func statusFromProvider(s provider.Status) Status {
	switch s {
	case provider.StatusSuccess:
		return StatusSuccess
	case provider.StatusFailed:
		return StatusFailed
	case provider.StatusCancelled:
		return StatusCancelled
	case provider.StatusProcessing:
		return StatusProcessing
	default:
		return StatusPending
	}
}
