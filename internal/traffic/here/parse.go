package here

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/trafficeta/trafficeta/internal/provider/resilience"
	"github.com/trafficeta/trafficeta/internal/traffic"
)

// API response types (from HERE Traffic API 6.2, JSON output).

type flowResponse struct {
	RWS []struct {
		RW []roadway `json:"RW"`
	} `json:"RWS"`
}

type roadway struct {
	LI  string `json:"LI"`
	DE  string `json:"DE"`
	FIS []struct {
		FI []flowItem `json:"FI"`
	} `json:"FIS"`
}

type flowItem struct {
	TMC struct {
		PC int    `json:"PC"`
		DE string `json:"DE"`
	} `json:"TMC"`
	CF currentFlows `json:"CF"`
}

// currentFlow is one CF record. JF is HERE's 0..10 jam factor; CN is a 0..1
// confidence.
type currentFlow struct {
	SP float64 `json:"SP"`
	SU float64 `json:"SU"`
	FF float64 `json:"FF"`
	JF float64 `json:"JF"`
	CN float64 `json:"CN"`
}

// currentFlows accepts CF as either an array or a single object.
type currentFlows []currentFlow

func (c *currentFlows) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var one currentFlow
		if err := json.Unmarshal(b, &one); err != nil {
			return err
		}
		*c = currentFlows{one}
		return nil
	}
	var many []currentFlow
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*c = many
	return nil
}

type incidentResponse struct {
	TrafficItems struct {
		Items []trafficItem `json:"TRAFFICITEM"`
	} `json:"TRAFFICITEMS"`
}

type trafficItem struct {
	ID          flexText `json:"TRAFFICITEMID"`
	TypeDesc    flexText `json:"TRAFFICITEMTYPEDESC"`
	Criticality struct {
		Description flexText `json:"DESCRIPTION"`
	} `json:"CRITICALITY"`
	Description flexText `json:"TRAFFICITEMDESCRIPTION"`
	GeoLoc      geoLoc   `json:"GEOLOC"`
	Location    struct {
		Description flexText `json:"DESCRIPTION"`
		GeoLoc      geoLoc   `json:"GEOLOC"`
	} `json:"LOCATION"`
}

type geoLoc struct {
	Origin struct {
		Latitude  float64 `json:"LATITUDE"`
		Longitude float64 `json:"LONGITUDE"`
	} `json:"ORIGIN"`
}

// flexText decodes a JSON string, number, or an array of {"value"|"content"}
// objects into plain text.
type flexText string

func (t *flexText) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = flexText(s)
	case '[':
		var parts []struct {
			Value   string `json:"value"`
			Content string `json:"content"`
		}
		if err := json.Unmarshal(b, &parts); err != nil {
			return err
		}
		for _, p := range parts {
			if v := firstNonEmpty(p.Value, p.Content); v != "" {
				*t = flexText(v)
				break
			}
		}
	default:
		// Numbers become their text; other shapes are ignored.
		var n json.Number
		if err := json.Unmarshal(b, &n); err == nil {
			*t = flexText(n.String())
		}
	}
	return nil
}

func (p *Provider) fetchFlows(ctx context.Context, box traffic.Box) ([]traffic.Flow, error) {
	query := url.Values{
		"apiKey":             {p.apiKey},
		"bbox":               {box.String()},
		"responseattributes": {"sh,fc"},
		"unit":               {"km"},
	}

	var resp flowResponse
	if err := resilience.GetJSON(ctx, p.httpClient, p.baseURL+"/flow.json", query, &resp); err != nil {
		return nil, fmt.Errorf("fetching flow: %w", err)
	}

	now := p.cache.Now()
	var flows []traffic.Flow
	for _, rws := range resp.RWS {
		for _, rw := range rws.RW {
			for _, fis := range rw.FIS {
				for _, fi := range fis.FI {
					for _, cf := range fi.CF {
						jam := math.Max(0, math.Min(1, cf.JF/10))
						speed := cf.SP
						if speed <= 0 {
							speed = cf.SU
						}
						free := cf.FF
						if free <= 0 {
							free = speed * (1 + jam)
						}
						confidence := cf.CN
						if confidence <= 0 || confidence > 1 {
							confidence = defaultConfidence
						}
						flows = append(flows, traffic.Flow{
							SegmentID:        firstNonEmpty(fi.TMC.DE, rw.LI, rw.DE, "unknown"),
							SpeedKmh:         speed,
							FreeFlowSpeedKmh: free,
							JamFactor:        jam,
							Confidence:       confidence,
							Timestamp:        now,
						})
					}
				}
			}
		}
	}
	return flows, nil
}

func (p *Provider) fetchIncidents(ctx context.Context, box traffic.Box) ([]traffic.Incident, error) {
	query := url.Values{
		"apiKey":             {p.apiKey},
		"bbox":               {box.String()},
		"responseattributes": {"sh,fc"},
		"unit":               {"km"},
	}

	var resp incidentResponse
	if err := resilience.GetJSON(ctx, p.httpClient, p.baseURL+"/incidents.json", query, &resp); err != nil {
		return nil, fmt.Errorf("fetching incidents: %w", err)
	}

	now := p.cache.Now()
	incidents := make([]traffic.Incident, 0, len(resp.TrafficItems.Items))
	for _, item := range resp.TrafficItems.Items {
		origin := item.Location.GeoLoc.Origin
		if origin.Latitude == 0 && origin.Longitude == 0 {
			origin = item.GeoLoc.Origin
		}
		incidents = append(incidents, traffic.Incident{
			ID:           firstNonEmpty(string(item.ID), "unknown"),
			Type:         incidentType(string(item.TypeDesc)),
			Severity:     severity(string(item.Criticality.Description)),
			Description:  firstNonEmpty(string(item.Description), "Unknown incident"),
			Location:     traffic.Coordinate{Lat: origin.Latitude, Lon: origin.Longitude},
			AffectedRoad: firstNonEmpty(string(item.Location.Description), "Unknown road"),
			StartTime:    now,
			Confidence:   defaultConfidence,
		})
	}
	return incidents, nil
}

func incidentType(desc string) traffic.IncidentType {
	d := strings.ToLower(desc)
	switch {
	case strings.Contains(d, "accident"):
		return traffic.IncidentAccident
	case strings.Contains(d, "construction"):
		return traffic.IncidentConstruction
	case strings.Contains(d, "closure"):
		return traffic.IncidentClosure
	case strings.Contains(d, "weather"):
		return traffic.IncidentWeather
	case strings.Contains(d, "congestion"):
		return traffic.IncidentCongestion
	default:
		return traffic.IncidentUnknown
	}
}

func severity(desc string) traffic.Severity {
	d := strings.ToLower(desc)
	switch {
	case strings.Contains(d, "critical"), strings.Contains(d, "high"):
		return traffic.SeverityHigh
	case strings.Contains(d, "medium"):
		return traffic.SeverityMedium
	default:
		return traffic.SeverityLow
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
