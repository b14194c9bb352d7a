package upstream

import "encoding/json"

// Envelope is the provider's wire shape for every endpoint: the request
// echo, any errors, the results count, pagination, and the response
// payload carrying the data (§4.3).
type Envelope struct {
	Get        string          `json:"get"`
	Parameters json.RawMessage `json:"parameters"`
	Errors     json.RawMessage `json:"errors"`
	Results    json.RawMessage `json:"results"`
	Paging     *Paging         `json:"paging"`
	Response   json.RawMessage `json:"response"`
}

type Paging struct {
	CurrentPage int  `json:"current_page"`
	NextPage    *int `json:"next_page"`
}

// HasRateLimitError reports whether the envelope's errors object carries a
// rateLimit entry, which is treated identically to an HTTP 429 for quota
// accounting (§4.2, §4.3).
func (e Envelope) HasRateLimitError() bool {
	if len(e.Errors) == 0 {
		return false
	}
	var parsed struct {
		RateLimit json.RawMessage `json:"rateLimit"`
	}
	if err := json.Unmarshal(e.Errors, &parsed); err != nil {
		return false
	}
	return len(parsed.RateLimit) > 0
}

// HasErrors reports whether the envelope carries any errors object at all,
// rate-limit or otherwise.
func (e Envelope) HasErrors() bool {
	if len(e.Errors) == 0 {
		return false
	}
	trimmed := string(e.Errors)
	return trimmed != "null" && trimmed != "{}" && trimmed != "[]"
}
