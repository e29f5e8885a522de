package geo

import (
	"context"
	"net"

	"bookstore/internal/domain/model"

	"github.com/oschwald/geoip2-golang"
)

// GeoLite2/GeoIP2 CityデータベースでIPから位置を引く
type Locator struct {
	db *geoip2.Reader
}

func Open(path string) (*Locator, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &Locator{db: db}, nil
}

func (l *Locator) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// 引けなかった（不正なIP、プライベートIP、DB未設定）ときはfalse
func (l *Locator) LookupCity(ctx context.Context, ip string) (model.Location, bool) {
	if l == nil || l.db == nil {
		return model.Location{}, false
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return model.Location{}, false
	}

	rec, err := l.db.City(parsed)
	if err != nil {
		return model.Location{}, false
	}
	if rec.Location.Latitude == 0 && rec.Location.Longitude == 0 {
		return model.Location{}, false
	}

	return model.Location{
		City:      rec.City.Names["en"],
		Country:   rec.Country.IsoCode,
		Latitude:  rec.Location.Latitude,
		Longitude: rec.Location.Longitude,
	}, true
}
