package initializers

import (
	"github.com/Kariqs/galio-api/models"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type seedArea struct {
	name string
	fee  int64
}

type seedCounty struct {
	name  string
	code  string
	days  int
	areas []seedArea
}

var kenyanLocations = []seedCounty{
	{name: "Nairobi", code: "NRB", days: 1, areas: []seedArea{
		{"Westlands", 150}, {"CBD", 150}, {"Karen", 200}, {"Langata", 180}, {"Kileleshwa", 150},
		{"Kilimani", 150}, {"Parklands", 150}, {"Eastleigh", 150}, {"Kasarani", 200}, {"Ruaraka", 200},
	}},
	{name: "Mombasa", code: "MSA", days: 2, areas: []seedArea{
		{"Shanzu", 250}, {"Utange", 200}, {"Majaoni", 180}, {"Bamburi", 220},
		{"Nyali", 200}, {"CBD", 150}, {"Likoni", 250}, {"Changamwe", 200},
	}},
	{name: "Kisumu", code: "KSM", days: 3, areas: []seedArea{
		{"CBD", 300}, {"Milimani", 350}, {"Mamboleo", 350}, {"Kondele", 300},
	}},
	{name: "Nakuru", code: "NKR", days: 2, areas: []seedArea{
		{"CBD", 250}, {"Milimani", 280}, {"Bahati", 300}, {"Lanet", 320},
	}},
	{name: "Eldoret", code: "EDT", days: 3, areas: []seedArea{
		{"CBD", 350}, {"Pioneer", 380}, {"Langas", 400},
	}},
}

// SeedLocations inserts the default counties and delivery areas. Existing rows are
// left untouched, so it is safe to run on every start.
func SeedLocations(db *gorm.DB) error {
	created := 0
	err := db.Transaction(func(tx *gorm.DB) error {
		for _, c := range kenyanLocations {
			county := models.County{Name: c.name}
			res := tx.Where(models.County{Name: c.name}).
				Attrs(models.County{Code: c.code, IsActive: true}).
				FirstOrCreate(&county)
			if res.Error != nil {
				return res.Error
			}

			for _, a := range c.areas {
				area := models.DeliveryArea{}
				res := tx.Where(models.DeliveryArea{Name: a.name, CountyID: county.ID}).
					Attrs(models.DeliveryArea{
						ShippingFee:  decimal.NewFromInt(a.fee),
						DeliveryDays: c.days,
						IsActive:     true,
					}).
					FirstOrCreate(&area)
				if res.Error != nil {
					return res.Error
				}
				created += int(res.RowsAffected)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().Int("areas_created", created).Msg("kenyan locations seeded")
	return nil
}
