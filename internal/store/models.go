package store

import (
	"time"

	"github.com/kjstillabower/pincode-weather-service/internal/models"
)

// LocationRecord is the persisted form of a geocoded postal code.
type LocationRecord struct {
	ID         uint    `gorm:"primaryKey"`
	PostalCode string  `gorm:"size:32;uniqueIndex;not null"`
	Latitude   float64 `gorm:"not null"`
	Longitude  float64 `gorm:"not null"`
	Name       string  `gorm:"size:255"`
	Country    string  `gorm:"size:8"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (LocationRecord) TableName() string { return "locations" }

func (r LocationRecord) toModel() models.Location {
	return models.Location{
		PostalCode:  r.PostalCode,
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
		DisplayName: r.Name,
		Country:     r.Country,
	}
}

func locationRecord(l models.Location) LocationRecord {
	return LocationRecord{
		PostalCode: l.PostalCode,
		Latitude:   l.Latitude,
		Longitude:  l.Longitude,
		Name:       l.DisplayName,
		Country:    l.Country,
	}
}

// WeatherRecord is a historical observation, unique per (latitude, longitude, date).
// Date is stored as YYYY-MM-DD so equality behaves the same on every driver.
type WeatherRecord struct {
	ID          uint    `gorm:"primaryKey"`
	Latitude    float64 `gorm:"not null;uniqueIndex:idx_weather_natural_key,priority:1"`
	Longitude   float64 `gorm:"not null;uniqueIndex:idx_weather_natural_key,priority:2"`
	Date        string  `gorm:"size:10;not null;uniqueIndex:idx_weather_natural_key,priority:3"`
	Temperature float64
	Humidity    int
	WindSpeed   float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (WeatherRecord) TableName() string { return "weather_observations" }

func (r WeatherRecord) toModel() (models.WeatherObservation, error) {
	d, err := time.ParseInLocation(models.DateLayout, r.Date, time.UTC)
	if err != nil {
		return models.WeatherObservation{}, err
	}
	return models.WeatherObservation{
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
		Date:        d,
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		WindSpeed:   r.WindSpeed,
	}, nil
}

func weatherRecord(o models.WeatherObservation) WeatherRecord {
	return WeatherRecord{
		Latitude:    o.Latitude,
		Longitude:   o.Longitude,
		Date:        models.DateOf(o.Date).Format(models.DateLayout),
		Temperature: o.Temperature,
		Humidity:    o.Humidity,
		WindSpeed:   o.WindSpeed,
	}
}
