package routing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-polyline"

	"supmap-navigation/internal/navigation"
)

func testRequest() navigation.RouteRequest {
	return navigation.RouteRequest{
		Origin:      &navigation.Point{Lat: 48.85, Lon: 2.35},
		Destination: &navigation.Point{Lat: 48.86, Lon: 2.37},
		Waypoints:   []navigation.Point{{Lat: 48.855, Lon: 2.36}},
	}
}

func fixtureResponse() DirectionsResponse {
	first := []navigation.Point{{Lat: 48.85, Lon: 2.35}, {Lat: 48.855, Lon: 2.35}}
	second := []navigation.Point{{Lat: 48.855, Lon: 2.35}, {Lat: 48.855, Lon: 2.36}}
	third := []navigation.Point{{Lat: 48.855, Lon: 2.36}, {Lat: 48.86, Lon: 2.37}}
	arrive := []navigation.Point{{Lat: 48.86, Lon: 2.37}, {Lat: 48.86, Lon: 2.37}}

	return DirectionsResponse{
		Code: "Ok",
		Routes: []DirectionRoute{
			{
				Geometry: encodePolyline([]navigation.Point{{Lat: 48.85, Lon: 2.35}, {Lat: 48.855, Lon: 2.35}, {Lat: 48.855, Lon: 2.36}, {Lat: 48.86, Lon: 2.37}}),
				Distance: 2150.4,
				Duration: 310.2,
				Legs: []Leg{
					{Steps: []Step{
						{Distance: 556, Duration: 80, Name: "Rue de Rivoli", Geometry: encodePolyline(first),
							Maneuver: Maneuver{Type: "depart", Instruction: "Head north on Rue de Rivoli"}},
						{Distance: 731, Duration: 100, Name: "Boulevard de Sébastopol", Geometry: encodePolyline(second),
							Maneuver: Maneuver{Type: "turn", Modifier: "right", Instruction: "Turn right onto Boulevard de Sébastopol"}},
					}},
					{Steps: []Step{
						{Distance: 863.4, Duration: 130.2, Geometry: encodePolyline(third),
							Maneuver: Maneuver{Type: "continue", Instruction: "Continue"}},
						{Geometry: encodePolyline(arrive),
							Maneuver: Maneuver{Type: "arrive", Instruction: "You have arrived at your destination"}},
					}},
				},
			},
			{Geometry: encodePolyline(first), Distance: 9999},
		},
	}
}

func TestClient_Directions(t *testing.T) {
	var gotPath, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(fixtureResponse())
	}))
	defer server.Close()

	client := NewClient(server.URL+"/route/v1/", ClientOptions{AccessToken: "secret"})
	route, err := client.Directions(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, "/route/v1/driving/2.35,48.85;2.36,48.855;2.37,48.86", gotPath)
	assert.Contains(t, gotQuery, "steps=true")
	assert.Contains(t, gotQuery, "overview=full")
	assert.Contains(t, gotQuery, "geometries=polyline")
	assert.Contains(t, gotQuery, "access_token=secret")

	assert.Equal(t, 2150.4, route.Distance)
	assert.Equal(t, 310.2, route.Duration)
	require.Len(t, route.Geometry, 4)
	assert.InDelta(t, 48.855, route.Geometry[1].Lat, 1e-5)

	require.Len(t, route.Steps, 4, "steps of every leg, in order")
	assert.Equal(t, "Head north on Rue de Rivoli", route.Steps[0].Instruction)
	assert.Equal(t, "Rue de Rivoli", route.Steps[0].Name)
	assert.Equal(t, "turn", route.Steps[1].Maneuver)
	assert.Equal(t, "Continue", route.Steps[2].Instruction)
	assert.Empty(t, route.Steps[2].Name)
	assert.Equal(t, "arrive", route.Steps[3].Maneuver)

	for i := 0; i < len(route.Steps)-1; i++ {
		end, ok := route.Steps[i].ManeuverPoint()
		require.True(t, ok)
		assert.Equal(t, route.Steps[i+1].Geometry[0], end, "step %d ends where the next one starts", i)
	}
}

func TestClient_Directions_UsesProfile(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(fixtureResponse())
	}))
	defer server.Close()

	req := testRequest()
	req.Profile = navigation.ProfileCycling
	_, err := NewClient(server.URL).Directions(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "/cycling/2.35,48.85;2.36,48.855;2.37,48.86", gotPath)
}

func TestClient_Directions_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "no routes", status: http.StatusOK, body: `{"code":"Ok","routes":[]}`},
		{name: "error code", status: http.StatusOK, body: `{"code":"NoRoute","message":"Impossible route","routes":[]}`},
		{name: "bad status", status: http.StatusBadRequest, body: `{"code":"InvalidInput"}`},
		{name: "server error", status: http.StatusInternalServerError, body: `oops`},
		{name: "garbage", status: http.StatusOK, body: `{"routes": [`},
		{name: "bad polyline", status: http.StatusOK, body: `{"code":"Ok","routes":[{"geometry":"\u007f\u007f","legs":[]}]}`},
		{name: "no steps", status: http.StatusOK, body: `{"code":"Ok","routes":[{"geometry":"","legs":[]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			route, err := NewClient(server.URL).Directions(context.Background(), testRequest())
			assert.ErrorIs(t, err, ErrUpstreamRoute)
			assert.NotErrorIs(t, err, ErrNetwork)
			assert.Nil(t, route)
		})
	}
}

func TestClient_Directions_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient(url).Directions(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestClient_Directions_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient(server.URL).Directions(ctx, testRequest())
	assert.ErrorIs(t, err, context.Canceled)
}

func encodePolyline(points []navigation.Point) string {
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Lat, p.Lon}
	}
	return string(polyline.EncodeCoords(coords))
}
