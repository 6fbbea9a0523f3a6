package tradingview

// Indicator is one script in a seller's catalog as reported by the host.
type Indicator struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ScriptID string `json:"scriptId,omitempty"`
}

// ProbeResult records one catalog discovery attempt for diagnostics.
type ProbeResult struct {
	Endpoint string `json:"endpoint"`
	Status   int    `json:"status"`
	Outcome  string `json:"outcome"`
	Count    int    `json:"count"`
}
