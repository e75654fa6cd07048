package tomtom

import (
	"context"
	"fmt"
	"math"
	"net/url"

	"github.com/trafficeta/trafficeta/internal/provider/resilience"
	"github.com/trafficeta/trafficeta/internal/traffic"
)

// API response types (from TomTom Traffic API v4).

type flowResponse struct {
	FlowSegmentData struct {
		Segments []flowSegment `json:"flowSegmentData"`
	} `json:"flowSegmentData"`
}

type flowSegment struct {
	FRC           string  `json:"frc"`
	CurrentSpeed  float64 `json:"currentSpeed"`
	FreeFlowSpeed float64 `json:"freeFlowSpeed"`
	JamFactor     float64 `json:"jamFactor"`  // percent
	Confidence    float64 `json:"confidence"` // percent
}

type incidentResponse struct {
	TM struct {
		POI []poi `json:"poi"`
	} `json:"tm"`
}

type poi struct {
	ID string `json:"id"`
	IC int    `json:"ic"`
	TY int    `json:"ty"`
	D  string `json:"d"`
	P  struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	} `json:"p"`
	R string `json:"r"`
}

func (p *Provider) fetchFlows(ctx context.Context, box traffic.Box) ([]traffic.Flow, error) {
	endpoint := fmt.Sprintf("%s/flowSegmentData/relative/%s/json", p.baseURL, apiVersion)
	query := url.Values{
		"key":   {p.apiKey},
		"unit":  {"KMPH"},
		"style": {"s3"},
		"bbox":  {box.String()},
		"zoom":  {"10"},
	}

	var resp flowResponse
	if err := resilience.GetJSON(ctx, p.httpClient, endpoint, query, &resp); err != nil {
		return nil, fmt.Errorf("fetching flow segments: %w", err)
	}

	now := p.cache.Now()
	flows := make([]traffic.Flow, 0, len(resp.FlowSegmentData.Segments))
	for _, s := range resp.FlowSegmentData.Segments {
		id := s.FRC
		if id == "" {
			id = "unknown"
		}
		flows = append(flows, traffic.Flow{
			SegmentID:        id,
			SpeedKmh:         s.CurrentSpeed,
			FreeFlowSpeedKmh: s.FreeFlowSpeed,
			JamFactor:        percent(s.JamFactor),
			Confidence:       percent(s.Confidence),
			Timestamp:        now,
		})
	}
	return flows, nil
}

func (p *Provider) fetchIncidents(ctx context.Context, box traffic.Box) ([]traffic.Incident, error) {
	endpoint := fmt.Sprintf("%s/incidentDetails/%s/json", p.baseURL, apiVersion)
	query := url.Values{
		"key":      {p.apiKey},
		"bbox":     {box.String()},
		"language": {"en-US"},
		"style":    {"s3"},
	}

	var resp incidentResponse
	if err := resilience.GetJSON(ctx, p.httpClient, endpoint, query, &resp); err != nil {
		return nil, fmt.Errorf("fetching incidents: %w", err)
	}

	now := p.cache.Now()
	incidents := make([]traffic.Incident, 0, len(resp.TM.POI))
	for _, item := range resp.TM.POI {
		incidents = append(incidents, traffic.Incident{
			ID:           orDefault(item.ID, "unknown"),
			Type:         incidentType(item.IC),
			Severity:     severity(item.TY),
			Description:  orDefault(item.D, "Unknown incident"),
			Location:     traffic.Coordinate{Lat: item.P.Y, Lon: item.P.X},
			AffectedRoad: orDefault(item.R, "Unknown road"),
			StartTime:    now,
			Confidence:   incidentConfidence,
		})
	}
	return incidents, nil
}

// incidentType maps a TomTom incident category code. Codes without a
// counterpart in traffic.IncidentType (disabled vehicle, mass transit, road
// hazard, planned event, ...) map to unknown.
func incidentType(ic int) traffic.IncidentType {
	switch ic {
	case 1:
		return traffic.IncidentAccident
	case 2:
		return traffic.IncidentCongestion
	case 9:
		return traffic.IncidentConstruction
	case 11:
		return traffic.IncidentWeather
	default:
		return traffic.IncidentUnknown
	}
}

func severity(ty int) traffic.Severity {
	switch ty {
	case 2:
		return traffic.SeverityMedium
	case 3, 4:
		return traffic.SeverityHigh
	default:
		return traffic.SeverityLow
	}
}

func percent(v float64) float64 {
	return math.Max(0, math.Min(1, v/100))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
