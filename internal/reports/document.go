package reports

import (
	"encoding/json"
	"fmt"
	"html/template"
	"time"

	"fungiwatch/internal/logger"
	"fungiwatch/internal/models"
)

// buildHeatmapSnippet renders a Leaflet heatmap of observation coordinates.
// Leaflet expects points as [latitude, longitude, intensity].
func (g *Generator) buildHeatmapSnippet(records []models.Observation) string {
	var points [][]float64
	var sumLat, sumLon float64
	for _, rec := range records {
		lon, lat, ok := rec.Coordinates()
		if !ok {
			continue
		}
		points = append(points, []float64{lat, lon, 1})
		sumLat += lat
		sumLon += lon
	}
	if len(points) == 0 {
		return "<p>No mapped observations</p>"
	}

	centerLat := sumLat / float64(len(points))
	centerLon := sumLon / float64(len(points))

	pointsJSON, err := json.Marshal(points)
	if err != nil {
		g.log.Warn("Heatmap unavailable", logger.Fields{"error": err.Error()})
		return "<p>Observation map unavailable</p>"
	}

	return fmt.Sprintf(`
    <link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
    <script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
    <script src="https://unpkg.com/leaflet.heat@0.2.0/dist/leaflet-heat.js"></script>
    <div id="observation-map" style="width:100%%;height:480px;"></div>
    <script>(function(){
        var map = L.map('observation-map').setView([%.4f, %.4f], 7);
        L.tileLayer('https://tile.openstreetmap.org/{z}/{x}/{y}.png', {
            maxZoom: 18,
            attribution: '&copy; OpenStreetMap contributors'
        }).addTo(map);
        L.heatLayer(%s, {radius: 18, blur: 12}).addTo(map);
    })();</script>`, centerLat, centerLon, string(pointsJSON))
}

// buildDocument wraps the report body in a complete HTML document with
// inline styles.
func (g *Generator) buildDocument(title, body string, now time.Time) string {
	generatedAt := now.UTC().Format("2006-01-02 15:04:05 UTC")

	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Species Observation Report - %s</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            line-height: 1.6;
            color: #333;
            max-width: 1200px;
            margin: 0 auto;
            padding: 20px;
            background-color: #f8f9fa;
        }
        .header {
            background: linear-gradient(135deg, #2e7d32 0%%, #66bb6a 100%%);
            color: white;
            padding: 30px;
            border-radius: 10px;
            margin-bottom: 30px;
            text-align: center;
        }
        .header h1 {
            margin: 0;
            font-size: 2.2em;
        }
        .header .timestamp {
            opacity: 0.9;
            margin-top: 10px;
        }
        .summary-cards {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(220px, 1fr));
            gap: 20px;
            margin-bottom: 30px;
        }
        .card {
            background: white;
            padding: 20px;
            border-radius: 8px;
            box-shadow: 0 2px 10px rgba(0,0,0,0.1);
            border-left: 4px solid #2e7d32;
        }
        .card h3 {
            margin-top: 0;
            color: #2e7d32;
        }
        .card-current {
            border-left-color: #ef6c00;
        }
        .card-current h3 {
            color: #ef6c00;
        }
        .metric {
            font-size: 1.5em;
            font-weight: bold;
            color: #333;
        }
        .content {
            background: white;
            padding: 30px;
            border-radius: 8px;
            box-shadow: 0 2px 10px rgba(0,0,0,0.1);
            margin-bottom: 30px;
        }
        h1, h2, h3 { color: #333; }
        h2 { border-bottom: 2px solid #2e7d32; padding-bottom: 5px; }
        table { border-collapse: collapse; width: 100%%; margin: 20px 0; }
        th, td { border: 1px solid #ddd; padding: 10px; text-align: left; }
        th { background-color: #f8f9fa; font-weight: bold; }
        .total-row td { font-weight: bold; background-color: #f1f8e9; }
        .footer {
            text-align: center;
            color: #666;
            font-size: 0.9em;
            margin-top: 30px;
        }
    </style>
</head>
<body>
    <div class="header">
        <h1>%s</h1>
        <div class="timestamp">Generated: %s</div>
    </div>
    %s
    <div class="footer">
        <p>Species observation report | Data source: iNaturalist</p>
    </div>
</body>
</html>`,
		template.HTMLEscapeString(title),
		template.HTMLEscapeString(title),
		generatedAt,
		body,
	)
}
