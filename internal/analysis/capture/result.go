package capture

import (
	"path/filepath"

	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
)

// NetworkResult converts an offline summary into the network result shape.
// Without payload inspection no security score is given and the risk level
// stays unknown.
func (s Summary) NetworkResult(path string) assessment.NetworkResult {
	res := assessment.NetworkResult{
		AnalysisType: "pcap",
		Target:       assessment.Text(filepath.Base(path)),
		Summary: assessment.TrafficSummary{
			TotalPackets: assessment.Number(s.Packets),
			TotalBytes:   assessment.Number(s.Bytes),
			Duration:     assessment.Number(s.Duration.Seconds()),
			Protocols:    map[string]assessment.Number{s.LinkName: assessment.Number(s.Packets)},
		},
		Recommendations: assessment.TextList{
			"Offline summary only: rerun against the analysis backend for protocol and threat detection.",
		},
	}
	if s.Truncated {
		res.Threats = append(res.Threats, assessment.NetworkThreat{
			Type:        "Truncated capture",
			Severity:    assessment.SeverityLow,
			Description: "The capture ends with a partial record; the capture may have been interrupted.",
		})
	}
	if s.SnapLen > 0 && s.SnapLen < 96 {
		res.Recommendations = append(res.Recommendations, "Capture with a larger snap length so payloads can be inspected.")
	}
	res.Normalize()
	return res
}
