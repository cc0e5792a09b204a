package gis

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testCounties(serviceURL string) []County {
	return []County{
		{
			ID:            "hamilton-oh",
			Name:          "Hamilton County",
			State:         "OH",
			ParcelService: serviceURL + "/parcels",
			ZoningService: serviceURL + "/zoning",
			Jurisdictions: []string{"cincinnati-oh", "norwood-oh"},
		},
		{
			ID:            "boone-ky",
			Name:          "Boone County",
			State:         "KY",
			ParcelService: serviceURL + "/parcels",
			Jurisdictions: []string{"florence-ky"},
		},
	}
}

func TestCountyForJurisdiction(t *testing.T) {
	t.Parallel()

	c := NewWithCounties(testCounties("http://gis.test"), zap.NewNop())

	county, ok := c.CountyForJurisdiction("norwood-oh")
	require.True(t, ok)
	assert.Equal(t, "hamilton-oh", county.ID)

	_, ok = c.CountyForJurisdiction("nowhere-ks")
	assert.False(t, ok)
}

func TestZoningDistricts(t *testing.T) {
	t.Parallel()

	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(`{"features":[
			{"attributes":{"ZONING":"R-1","ZONE_DESC":"Single Family","ZONE_TYPE":"residential"}},
			{"attributes":{"ZONING":"B-2","ZONE_DESC":"General Business","ZONE_TYPE":"commercial"}}
		]}`))
	}))
	defer srv.Close()

	c := NewWithCounties(testCounties(srv.URL), zap.NewNop())
	got := c.ZoningDistricts(context.Background(), "hamilton-oh")

	require.Empty(t, got.Error)
	assert.Equal(t, "Hamilton County", got.CountyName)
	require.Len(t, got.Districts, 2)
	assert.Equal(t, "R-1", got.Districts[0]["ZONING"])

	assert.Equal(t, "json", gotQuery.Get("f"))
	assert.Equal(t, "1=1", gotQuery.Get("where"))
	assert.Equal(t, "true", gotQuery.Get("returnDistinctValues"))
	assert.Equal(t, "ZONING,ZONE_DESC,ZONE_TYPE", gotQuery.Get("outFields"))
}

func TestZoningDistrictsNoService(t *testing.T) {
	t.Parallel()

	c := NewWithCounties(testCounties("http://gis.test"), zap.NewNop())
	got := c.ZoningDistricts(context.Background(), "boone-ky")
	assert.Empty(t, got.Districts)
	assert.Equal(t, "no zoning service available", got.Error)
}

func TestZoningDistrictsUnknownCounty(t *testing.T) {
	t.Parallel()

	c := NewWithCounties(testCounties("http://gis.test"), zap.NewNop())
	got := c.ZoningDistricts(context.Background(), "nowhere-ks")
	assert.Equal(t, "county not found", got.Error)
	assert.Equal(t, "Unknown", got.CountyName)
}

func TestZoningDistrictsServiceError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"Invalid query"}}`))
	}))
	defer srv.Close()

	c := NewWithCounties(testCounties(srv.URL), zap.NewNop())
	got := c.ZoningDistricts(context.Background(), "hamilton-oh")
	assert.Empty(t, got.Districts)
	assert.Contains(t, got.Error, "Invalid query")
}

func TestParcelByAddressEscapesQuotes(t *testing.T) {
	t.Parallel()

	var gotWhere string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotWhere = r.URL.Query().Get("where")
		_, _ = w.Write([]byte(`{"features":[{"attributes":{"PARCELID":"123","SITEADDR":"100 O'BRIEN ST"}}]}`))
	}))
	defer srv.Close()

	c := NewWithCounties(testCounties(srv.URL), zap.NewNop())
	parcel, err := c.ParcelByAddress(context.Background(), "hamilton-oh", "100 O'Brien St")
	require.NoError(t, err)
	require.NotNil(t, parcel)
	assert.Equal(t, "123", parcel["PARCELID"])
	assert.Contains(t, gotWhere, "O''Brien")
}

func TestParcelByAddressNoMatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"features":[]}`))
	}))
	defer srv.Close()

	c := NewWithCounties(testCounties(srv.URL), zap.NewNop())
	parcel, err := c.ParcelByAddress(context.Background(), "hamilton-oh", "1 Nowhere Ln")
	require.NoError(t, err)
	assert.Nil(t, parcel)
}

func TestZoningAtPointSendsGeometry(t *testing.T) {
	t.Parallel()

	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(`{"features":[{"attributes":{"ZONING":"R-1"}}]}`))
	}))
	defer srv.Close()

	c := NewWithCounties(testCounties(srv.URL), zap.NewNop())
	attrs, err := c.ZoningAtPoint(context.Background(), "hamilton-oh", 39.10, -84.51)
	require.NoError(t, err)
	require.NotNil(t, attrs)
	assert.Equal(t, "R-1", attrs["ZONING"])

	assert.Equal(t, "esriGeometryPoint", gotQuery.Get("geometryType"))
	assert.Equal(t, "esriSpatialRelIntersects", gotQuery.Get("spatialRel"))
	assert.Contains(t, gotQuery.Get("geometry"), "4326")
}

func TestJurisdictionParcelsUsesCityName(t *testing.T) {
	t.Parallel()

	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(`{"features":[{"attributes":{"CITY":"NORWOOD"}}]}`))
	}))
	defer srv.Close()

	c := NewWithCounties(testCounties(srv.URL), zap.NewNop())
	parcels, err := c.JurisdictionParcels(context.Background(), "norwood-oh", 10)
	require.NoError(t, err)
	require.Len(t, parcels, 1)
	assert.Contains(t, gotQuery.Get("where"), "norwood")
	assert.Equal(t, "10", gotQuery.Get("resultRecordCount"))
}

func TestJurisdictionParcelsUnknownJurisdiction(t *testing.T) {
	t.Parallel()

	c := NewWithCounties(testCounties("http://gis.test"), zap.NewNop())
	parcels, err := c.JurisdictionParcels(context.Background(), "nowhere-ks", 10)
	require.NoError(t, err)
	assert.Empty(t, parcels)
}
