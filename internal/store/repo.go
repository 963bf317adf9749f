package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kjstillabower/pincode-weather-service/internal/models"
	"github.com/kjstillabower/pincode-weather-service/internal/observability"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// LocationStore persists geocoded locations keyed by postal code.
type LocationStore interface {
	FindLocationByPostalCode(ctx context.Context, postalCode string) (models.Location, bool, error)
	SaveLocation(ctx context.Context, loc models.Location) (models.Location, error)
}

// WeatherStore persists historical observations keyed by (latitude, longitude, date).
type WeatherStore interface {
	FindWeather(ctx context.Context, lat, lon float64, date time.Time) (models.WeatherObservation, bool, error)
	SaveWeatherObservation(ctx context.Context, obs models.WeatherObservation) (models.WeatherObservation, error)
}

// Repo implements LocationStore and WeatherStore over GORM.
type Repo struct {
	db *gorm.DB
}

// Open connects to driver ("sqlite" or "postgres") using dsn.
func Open(driver, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
	switch driver {
	case DriverPostgres:
		return gorm.Open(postgres.Open(dsn), cfg)
	case DriverSQLite:
		return gorm.Open(sqlite.Open(dsn), cfg)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}
}

// New migrates the schema and returns a Repo.
func New(db *gorm.DB) (*Repo, error) {
	if err := db.AutoMigrate(&LocationRecord{}, &WeatherRecord{}); err != nil {
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return &Repo{db: db}, nil
}

// FindLocationByPostalCode returns the stored location for postalCode, if any.
func (r *Repo) FindLocationByPostalCode(ctx context.Context, postalCode string) (models.Location, bool, error) {
	var rec LocationRecord
	err := r.db.WithContext(ctx).Where("postal_code = ?", postalCode).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		observability.RecordStoreOperation("find_location", nil)
		return models.Location{}, false, nil
	}
	observability.RecordStoreOperation("find_location", err)
	if err != nil {
		return models.Location{}, false, fmt.Errorf("find location %s: %w", postalCode, err)
	}
	return rec.toModel(), true, nil
}

// SaveLocation inserts loc, or overwrites the row already holding its postal code.
func (r *Repo) SaveLocation(ctx context.Context, loc models.Location) (models.Location, error) {
	rec := locationRecord(loc)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "postal_code"}},
		DoUpdates: clause.AssignmentColumns([]string{"latitude", "longitude", "name", "country", "updated_at"}),
	}).Create(&rec).Error
	observability.RecordStoreOperation("save_location", err)
	if err != nil {
		return models.Location{}, fmt.Errorf("save location %s: %w", loc.PostalCode, err)
	}
	return rec.toModel(), nil
}

// FindWeather returns the observation stored under the natural key, if any.
func (r *Repo) FindWeather(ctx context.Context, lat, lon float64, date time.Time) (models.WeatherObservation, bool, error) {
	day := models.DateOf(date).Format(models.DateLayout)
	var rec WeatherRecord
	err := r.db.WithContext(ctx).
		Where("latitude = ? AND longitude = ? AND date = ?", lat, lon, day).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		observability.RecordStoreOperation("find_weather", nil)
		return models.WeatherObservation{}, false, nil
	}
	observability.RecordStoreOperation("find_weather", err)
	if err != nil {
		return models.WeatherObservation{}, false, fmt.Errorf("find weather %v,%v %s: %w", lat, lon, day, err)
	}
	obs, err := rec.toModel()
	if err != nil {
		return models.WeatherObservation{}, false, fmt.Errorf("stored weather %v,%v has bad date %q: %w", lat, lon, rec.Date, err)
	}
	return obs, true, nil
}

// SaveWeatherObservation upserts obs on its natural key, so saving the same day twice leaves
// a single row.
func (r *Repo) SaveWeatherObservation(ctx context.Context, obs models.WeatherObservation) (models.WeatherObservation, error) {
	rec := weatherRecord(obs)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "latitude"}, {Name: "longitude"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"temperature", "humidity", "wind_speed", "updated_at"}),
	}).Create(&rec).Error
	observability.RecordStoreOperation("save_weather", err)
	if err != nil {
		return models.WeatherObservation{}, fmt.Errorf("save weather %v,%v %s: %w", obs.Latitude, obs.Longitude, rec.Date, err)
	}
	return rec.toModel()
}

// Ping checks database reachability. Used for health checks.
func (r *Repo) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying connection pool.
func (r *Repo) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
