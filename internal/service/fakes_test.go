package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kjstillabower/pincode-weather-service/internal/models"
)

type fakeCache struct {
	data   map[string][]byte
	ttls   map[string]time.Duration
	gets   int
	sets   int
	getErr error
	setErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *fakeCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.gets++
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.sets++
	if c.setErr != nil {
		return c.setErr
	}
	c.data[key] = value
	c.ttls[key] = ttl
	return nil
}

type fakeLocationStore struct {
	byCode map[string]models.Location
	finds  int
	saves  int
	err    error
}

func newFakeLocationStore() *fakeLocationStore {
	return &fakeLocationStore{byCode: map[string]models.Location{}}
}

func (s *fakeLocationStore) FindLocationByPostalCode(ctx context.Context, code string) (models.Location, bool, error) {
	s.finds++
	if s.err != nil {
		return models.Location{}, false, s.err
	}
	loc, ok := s.byCode[code]
	return loc, ok, nil
}

func (s *fakeLocationStore) SaveLocation(ctx context.Context, loc models.Location) (models.Location, error) {
	s.saves++
	if s.err != nil {
		return models.Location{}, s.err
	}
	s.byCode[loc.PostalCode] = loc
	return loc, nil
}

type fakeWeatherStore struct {
	rows  map[string]models.WeatherObservation
	finds int
	saves int
	err   error
}

func newFakeWeatherStore() *fakeWeatherStore {
	return &fakeWeatherStore{rows: map[string]models.WeatherObservation{}}
}

func weatherRowKey(lat, lon float64, d time.Time) string {
	return fmt.Sprintf("%v|%v|%s", lat, lon, d.Format(models.DateLayout))
}

func (s *fakeWeatherStore) FindWeather(ctx context.Context, lat, lon float64, date time.Time) (models.WeatherObservation, bool, error) {
	s.finds++
	if s.err != nil {
		return models.WeatherObservation{}, false, s.err
	}
	obs, ok := s.rows[weatherRowKey(lat, lon, date)]
	return obs, ok, nil
}

func (s *fakeWeatherStore) SaveWeatherObservation(ctx context.Context, obs models.WeatherObservation) (models.WeatherObservation, error) {
	s.saves++
	if s.err != nil {
		return models.WeatherObservation{}, s.err
	}
	s.rows[weatherRowKey(obs.Latitude, obs.Longitude, obs.Date)] = obs
	return obs, nil
}

type fakeGeocoder struct {
	loc   models.Location
	err   error
	calls int
}

func (g *fakeGeocoder) LookupPostalCode(ctx context.Context, code string) (models.Location, error) {
	g.calls++
	if g.err != nil {
		return models.Location{}, g.err
	}
	loc := g.loc
	loc.PostalCode = code
	return loc, nil
}

type fakeWeatherAPI struct {
	currentBody     []byte
	currentErr      error
	historicalBody  []byte
	historicalErr   error
	currentCalls    int
	historicalCalls int
	lastDate        time.Time
}

func (a *fakeWeatherAPI) FetchCurrent(ctx context.Context, lat, lon float64) ([]byte, error) {
	a.currentCalls++
	return a.currentBody, a.currentErr
}

func (a *fakeWeatherAPI) FetchHistorical(ctx context.Context, lat, lon float64, date time.Time) ([]byte, error) {
	a.historicalCalls++
	a.lastDate = date
	return a.historicalBody, a.historicalErr
}

// hourlyJSON builds a 24-sample hourly section for date. Sample i has temperature 20+i/2,
// humidity 40+i and wind speed 3+i.
func hourlyJSON(date string) string {
	var times, temps, hums, winds []string
	for i := 0; i < 24; i++ {
		times = append(times, fmt.Sprintf("%q", fmt.Sprintf("%sT%02d:00", date, i)))
		temps = append(temps, fmt.Sprintf("%g", 20+float64(i)/2))
		hums = append(hums, fmt.Sprintf("%d", 40+i))
		winds = append(winds, fmt.Sprintf("%g", 3+float64(i)))
	}
	return fmt.Sprintf(`{"time":[%s],"temperature_2m":[%s],"relative_humidity_2m":[%s],"wind_speed_10m":[%s]}`,
		strings.Join(times, ","), strings.Join(temps, ","), strings.Join(hums, ","), strings.Join(winds, ","))
}

func historicalPayload(date string) []byte {
	return []byte(`{"latitude":28.625,"longitude":77.25,"hourly":` + hourlyJSON(date) + `}`)
}

func livePayload(date string) []byte {
	return []byte(`{"current":{"time":"` + date + `T11:00","temperature_2m":31.4,"wind_speed_10m":9.7},"hourly":` + hourlyJSON(date) + `}`)
}
