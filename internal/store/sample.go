package store

import (
	"time"

	"github.com/sakif/craftmarket/internal/backend"
	"github.com/sakif/craftmarket/internal/model"
)

var sampleEpoch = time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)

// SampleListings is the fixed dataset shown when the backend cannot be
// reached. It returns a fresh slice on every call.
func SampleListings() []model.Listing {
	mk := func(master, name string, number int, title string, w, h, l, kg, qty, price int, addr, desc string, age time.Duration) model.Listing {
		created := sampleEpoch.Add(-age)
		return model.Listing{
			ID:          model.FormatListingID(master, number),
			Title:       title,
			MasterID:    master,
			MasterName:  name,
			Number:      number,
			Width:       w,
			Height:      h,
			Length:      l,
			Weight:      kg,
			Quantity:    qty,
			Price:       price,
			Address:     addr,
			Description: desc,
			ImageURL:    backend.DefaultListingImage,
			CreatedAt:   created,
			UpdatedAt:   created,
		}
	}
	return []model.Listing{
		mk("ivanov", "Ivan Ivanov", 1, "Handmade oak table", 120, 75, 80, 35, 1, 45000, "Moscow, Tverskaya 12", "Solid oak, oil finish.", 72*time.Hour),
		mk("petrova", "Anna Petrova", 1, "Ceramic vase", 15, 30, 15, 2, 4, 3500, "Saint Petersburg, Nevsky 40", "Glazed stoneware, hand thrown.", 48*time.Hour),
		mk("petrova", "Anna Petrova", 2, "Set of clay mugs", 10, 12, 10, 1, 6, 1800, "Saint Petersburg, Nevsky 40", "Six mugs, dishwasher safe.", 24*time.Hour),
		mk("sidorov", "Pavel Sidorov", 1, "Knitted wool scarf", 30, 1, 180, 1, 10, 2500, "Kazan, Baumana 5", "Merino wool.", 96*time.Hour),
		mk("sidorov", "Pavel Sidorov", 2, "Leather wallet", 11, 2, 9, 1, 3, 4200, "Kazan, Baumana 5", "Vegetable tanned leather, hand stitched.", 12*time.Hour),
	}
}
