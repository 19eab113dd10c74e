package driver

import (
	"encoding/json"
	"fmt"

	"polyty/internal/diag"
	"polyty/internal/observ"
	"polyty/internal/source"
)

type timingPayload struct {
	Kind    string               `json:"kind"`
	Path    string               `json:"path,omitempty"`
	TotalMS float64              `json:"total_ms"`
	Phases  []observ.PhaseReport `json:"phases"`
}

// appendTimingDiagnostic records the phase report as an info diagnostic
// whose note carries the JSON payload.
func appendTimingDiagnostic(bag *diag.Bag, payload timingPayload) {
	if bag == nil {
		return
	}
	if payload.Kind == "" {
		payload.Kind = "pipeline"
	}
	msg := fmt.Sprintf("timings (%s): total %.2f ms", payload.Kind, payload.TotalMS)
	if payload.Path != "" {
		msg = fmt.Sprintf("%s, %s", msg, payload.Path)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	// при переполнении bag тайминги просто теряются
	bag.Add(diag.New(diag.SevInfo, diag.ObsTimings, source.NoSpan, msg).WithNote(source.NoSpan, string(data)))
}
