package upstream

import "testing"

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		status int
		want   Outcome
	}{
		{200, OutcomeOK},
		{429, OutcomeRateLimited},
		{401, OutcomeAuthFailed},
		{403, OutcomeClientError},
		{404, OutcomeClientError},
		{500, OutcomeServerError},
		{503, OutcomeServerError},
	}

	for _, tc := range cases {
		if got := classifyStatus(tc.status); got != tc.want {
			t.Fatalf("classifyStatus(%d) = %s, want %s", tc.status, got, tc.want)
		}
	}
}

func TestOutcome_IsRetryable(t *testing.T) {
	retryable := []Outcome{OutcomeRateLimited, OutcomeServerError}
	notRetryable := []Outcome{OutcomeOK, OutcomeAuthFailed, OutcomeClientError, OutcomeEnvelopeError}

	for _, o := range retryable {
		if !o.isRetryable() {
			t.Fatalf("expected %s to be retryable", o)
		}
	}
	for _, o := range notRetryable {
		if o.isRetryable() {
			t.Fatalf("expected %s to not be retryable", o)
		}
	}
}
