package metrics

import "time"

// DeploymentResult records the outcome of a deployment attempt. result is
// "success" or the failure kind.
func DeploymentResult(network, result string) {
	if !enabled {
		return
	}
	deploymentsTotal.WithLabelValues(network, result).Inc()
}

// DeployDuration records how long a deployment took end to end.
func DeployDuration(network string, d time.Duration) {
	if !enabled {
		return
	}
	deployDuration.WithLabelValues(network).Observe(d.Seconds())
}

// ConfirmationWait records how long the receipt took to appear.
func ConfirmationWait(network string, d time.Duration) {
	if !enabled {
		return
	}
	confirmationWait.WithLabelValues(network).Observe(d.Seconds())
}

// JournalError records a failed attempt journal write.
func JournalError(op string) {
	if !enabled {
		return
	}
	journalErrorsTotal.WithLabelValues(op).Inc()
}
