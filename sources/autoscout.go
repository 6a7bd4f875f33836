package sources

import (
	"bytes"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"carscout/models"
)

// AutoscoutParser extracts listings from an AutoScout24 results page.
type AutoscoutParser struct{}

func (p *AutoscoutParser) Parse(markup []byte, criteria models.SearchCriteria) ([]models.RawListing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("autoscout: parse markup: %w", err)
	}

	var listings []models.RawListing
	doc.Find("article[data-guid]").Each(func(_ int, sel *goquery.Selection) {
		id, _ := sel.Attr("data-guid")
		if id == "" {
			return
		}

		listing := models.RawListing{
			ExternalID: id,
			Title:      cleanText(sel.Find("h2").First().Text()),
			Price:      parseEuro(sel.Find("[data-testid='regular-price']").First().Text()),
		}

		if href, ok := sel.Find("a").First().Attr("href"); ok {
			listing.URL = absoluteURL("https://www.autoscout24.nl", href)
		}
		if img, ok := sel.Find("img").First().Attr("src"); ok {
			listing.ImageURL = img
		}

		sel.Find("[data-testid='VehicleDetails'] span, ul.vehicle-details span").Each(func(_ int, attr *goquery.Selection) {
			classifyAttribute(attr.Text(), &listing.Fuel, &listing.Gearbox, &listing.Year, &listing.Mileage)
		})

		listing.City = cleanText(sel.Find("[data-testid='sellerinfo-address'], span.seller-address").First().Text())
		listing.Snippet = cleanText(sel.Find("[data-testid='subtitle']").First().Text())

		if !withinCeiling(listing.Price, criteria) {
			return
		}
		listings = append(listings, listing)
	})

	return listings, nil
}
