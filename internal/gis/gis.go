// Package gis queries county ArcGIS REST services for authoritative
// zoning districts and parcel records. GIS data supplements scraped
// code text: district lists from the county are structured ground
// truth the code pages only describe in prose.
package gis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// County describes one county's GIS endpoints and the jurisdictions it
// covers. ZoningService is empty for counties that publish parcels only.
type County struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	State         string   `json:"state"`
	ParcelService string   `json:"parcel_service"`
	ZoningService string   `json:"zoning_service,omitempty"`
	Jurisdictions []string `json:"jurisdictions"`
}

// defaultCounties covers the Cincinnati metro area.
var defaultCounties = []County{
	{
		ID:            "hamilton-oh",
		Name:          "Hamilton County",
		State:         "OH",
		ParcelService: "https://cagisonline.hamilton-co.org/arcgis/rest/services/Auditor/Parcel/MapServer/0",
		ZoningService: "https://cagisonline.hamilton-co.org/arcgis/rest/services/Planning/Zoning/MapServer/0",
		Jurisdictions: []string{
			"cincinnati-oh", "norwood-oh", "blue-ash-oh", "sharonville-oh",
			"montgomery-oh", "madeira-oh", "reading-oh", "deer-park-oh",
		},
	},
	{
		ID:            "warren-oh",
		Name:          "Warren County",
		State:         "OH",
		ParcelService: "https://gis.co.warren.oh.us/arcgis/rest/services/Auditor/Parcels/MapServer/0",
		ZoningService: "https://gis.co.warren.oh.us/arcgis/rest/services/Planning/Zoning/MapServer/0",
		Jurisdictions: []string{"mason-oh", "lebanon-oh", "loveland-oh"},
	},
	{
		ID:            "butler-oh",
		Name:          "Butler County",
		State:         "OH",
		ParcelService: "https://gis.bcohio.us/arcgis/rest/services/Auditor/Parcels/MapServer/0",
		ZoningService: "https://gis.bcohio.us/arcgis/rest/services/Planning/Zoning/MapServer/0",
		Jurisdictions: []string{"hamilton-oh", "fairfield-oh", "middletown-oh"},
	},
	{
		ID:            "clermont-oh",
		Name:          "Clermont County",
		State:         "OH",
		ParcelService: "https://gis.clermontauditor.org/arcgis/rest/services/Parcels/MapServer/0",
		Jurisdictions: []string{"milford-oh"},
	},
	{
		ID:            "kenton-ky",
		Name:          "Kenton County",
		State:         "KY",
		ParcelService: "https://kygeonet.ky.gov/arcgis/rest/services/Parcels/MapServer/0",
		ZoningService: "https://maps.linkgis.org/server/rest/services/Covington_Character_Districts/MapServer/3",
		Jurisdictions: []string{"covington-ky", "erlanger-ky", "fort-mitchell-ky", "independence-ky"},
	},
	{
		ID:            "boone-ky",
		Name:          "Boone County",
		State:         "KY",
		ParcelService: "https://kygeonet.ky.gov/arcgis/rest/services/Parcels/MapServer/0",
		Jurisdictions: []string{"florence-ky", "burlington-ky", "union-ky"},
	},
	{
		ID:            "campbell-ky",
		Name:          "Campbell County",
		State:         "KY",
		ParcelService: "https://kygeonet.ky.gov/arcgis/rest/services/Parcels/MapServer/0",
		Jurisdictions: []string{"newport-ky", "fort-thomas-ky", "cold-spring-ky"},
	},
}

// Attributes is one feature's attribute map as returned by ArcGIS.
type Attributes map[string]any

// DistrictsResult carries a county's distinct zoning districts. A
// missing service or failed query is reported in Error, not raised.
type DistrictsResult struct {
	CountyID   string       `json:"county_id"`
	CountyName string       `json:"county_name"`
	Districts  []Attributes `json:"districts"`
	Error      string       `json:"error,omitempty"`
}

// Client queries ArcGIS REST endpoints.
type Client struct {
	httpClient *http.Client
	counties   []County
	logger     *zap.Logger
}

// New builds a GIS client over the default county registry.
func New(logger *zap.Logger) *Client {
	return NewWithCounties(defaultCounties, logger)
}

// NewWithCounties builds a GIS client over an explicit registry.
func NewWithCounties(counties []County, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		counties:   counties,
		logger:     logger.Named("gis"),
	}
}

// CountyForJurisdiction finds the county covering a jurisdiction.
func (c *Client) CountyForJurisdiction(jurisdictionID string) (County, bool) {
	for _, county := range c.counties {
		for _, j := range county.Jurisdictions {
			if j == jurisdictionID {
				return county, true
			}
		}
	}
	return County{}, false
}

// Counties returns the full registry.
func (c *Client) Counties() []County {
	out := make([]County, len(c.counties))
	copy(out, c.counties)
	return out
}

type arcgisResponse struct {
	Features []struct {
		Attributes Attributes `json:"attributes"`
	} `json:"features"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) query(ctx context.Context, serviceURL string, params url.Values) ([]Attributes, error) {
	params.Set("f", "json")
	if params.Get("outFields") == "" {
		params.Set("outFields", "*")
	}
	if params.Get("returnGeometry") == "" {
		params.Set("returnGeometry", "false")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serviceURL+"/query?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build arcgis request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arcgis query: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read arcgis response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arcgis query returned status %d", resp.StatusCode)
	}

	var parsed arcgisResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode arcgis response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("arcgis error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}

	attrs := make([]Attributes, 0, len(parsed.Features))
	for _, f := range parsed.Features {
		attrs = append(attrs, f.Attributes)
	}
	return attrs, nil
}

// ZoningDistricts returns the distinct zoning districts published by a
// county's zoning service.
func (c *Client) ZoningDistricts(ctx context.Context, countyID string) DistrictsResult {
	var county County
	found := false
	for _, cc := range c.counties {
		if cc.ID == countyID {
			county, found = cc, true
			break
		}
	}
	if !found {
		return DistrictsResult{CountyID: countyID, CountyName: "Unknown", Error: "county not found"}
	}
	if county.ZoningService == "" {
		return DistrictsResult{CountyID: countyID, CountyName: county.Name, Error: "no zoning service available"}
	}

	params := url.Values{}
	params.Set("where", "1=1")
	params.Set("returnDistinctValues", "true")
	params.Set("outFields", "ZONING,ZONE_DESC,ZONE_TYPE")
	districts, err := c.query(ctx, county.ZoningService, params)
	if err != nil {
		c.logger.Warn("zoning district query failed",
			zap.String("county", countyID),
			zap.Error(err),
		)
		return DistrictsResult{CountyID: countyID, CountyName: county.Name, Error: err.Error()}
	}
	return DistrictsResult{CountyID: countyID, CountyName: county.Name, Districts: districts}
}

// ZoningDistrictsForJurisdiction resolves the jurisdiction's county and
// queries its zoning service.
func (c *Client) ZoningDistrictsForJurisdiction(ctx context.Context, jurisdictionID string) DistrictsResult {
	county, ok := c.CountyForJurisdiction(jurisdictionID)
	if !ok {
		return DistrictsResult{CountyName: "Unknown", Error: "no county mapping for jurisdiction"}
	}
	return c.ZoningDistricts(ctx, county.ID)
}

// ParcelByAddress finds the first parcel matching an address fragment.
func (c *Client) ParcelByAddress(ctx context.Context, countyID, address string) (Attributes, error) {
	county, err := c.countyByID(countyID)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("where", fmt.Sprintf("UPPER(SITEADDR) LIKE UPPER('%%%s%%')", escapeSQL(address)))
	attrs, err := c.query(ctx, county.ParcelService, params)
	if err != nil {
		return nil, err
	}
	if len(attrs) == 0 {
		return nil, nil
	}
	return attrs[0], nil
}

// ParcelByID finds a parcel by its county parcel identifier. Counties
// disagree on the column name, so both common spellings are matched.
func (c *Client) ParcelByID(ctx context.Context, countyID, parcelID string) (Attributes, error) {
	county, err := c.countyByID(countyID)
	if err != nil {
		return nil, err
	}

	id := escapeSQL(parcelID)
	params := url.Values{}
	params.Set("where", fmt.Sprintf("PARCELID = '%s' OR PARID = '%s'", id, id))
	attrs, err := c.query(ctx, county.ParcelService, params)
	if err != nil {
		return nil, err
	}
	if len(attrs) == 0 {
		return nil, nil
	}
	return attrs[0], nil
}

// JurisdictionParcels samples parcels inside a jurisdiction, matching
// on the city name embedded in the jurisdiction ID.
func (c *Client) JurisdictionParcels(ctx context.Context, jurisdictionID string, limit int) ([]Attributes, error) {
	county, ok := c.CountyForJurisdiction(jurisdictionID)
	if !ok {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}

	city, _, _ := strings.Cut(jurisdictionID, "-")
	params := url.Values{}
	params.Set("where", fmt.Sprintf("UPPER(CITY) LIKE UPPER('%%%s%%')", escapeSQL(city)))
	params.Set("resultRecordCount", fmt.Sprintf("%d", limit))
	return c.query(ctx, county.ParcelService, params)
}

// ZoningAtPoint returns the zoning attributes intersecting a WGS84
// coordinate.
func (c *Client) ZoningAtPoint(ctx context.Context, countyID string, lat, lon float64) (Attributes, error) {
	county, err := c.countyByID(countyID)
	if err != nil {
		return nil, err
	}
	if county.ZoningService == "" {
		return nil, nil
	}

	geometry, err := json.Marshal(map[string]any{
		"x":                lon,
		"y":                lat,
		"spatialReference": map[string]int{"wkid": 4326},
	})
	if err != nil {
		return nil, fmt.Errorf("encode point geometry: %w", err)
	}

	params := url.Values{}
	params.Set("geometry", string(geometry))
	params.Set("geometryType", "esriGeometryPoint")
	params.Set("spatialRel", "esriSpatialRelIntersects")
	params.Set("inSR", "4326")
	attrs, err := c.query(ctx, county.ZoningService, params)
	if err != nil {
		return nil, err
	}
	if len(attrs) == 0 {
		return nil, nil
	}
	return attrs[0], nil
}

// SearchParcelsByOwner matches parcels on a partial owner name.
func (c *Client) SearchParcelsByOwner(ctx context.Context, countyID, owner string, limit int) ([]Attributes, error) {
	county, err := c.countyByID(countyID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	params := url.Values{}
	params.Set("where", fmt.Sprintf("UPPER(OWNER) LIKE UPPER('%%%s%%')", escapeSQL(owner)))
	params.Set("resultRecordCount", fmt.Sprintf("%d", limit))
	return c.query(ctx, county.ParcelService, params)
}

func (c *Client) countyByID(countyID string) (County, error) {
	for _, county := range c.counties {
		if county.ID == countyID {
			return county, nil
		}
	}
	return County{}, fmt.Errorf("unknown county %q", countyID)
}

func escapeSQL(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
