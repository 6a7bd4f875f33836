package sources

import (
	"bytes"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"carscout/models"
)

// BovagParser extracts listings from a viaBOVAG results page.
type BovagParser struct{}

func (p *BovagParser) Parse(markup []byte, criteria models.SearchCriteria) ([]models.RawListing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("bovag: parse markup: %w", err)
	}

	var listings []models.RawListing
	doc.Find("article.vehicle-card, div[data-vehicle-id]").Each(func(_ int, sel *goquery.Selection) {
		id, _ := sel.Attr("data-vehicle-id")
		href, _ := sel.Find("a").First().Attr("href")
		if id == "" {
			id = externalIDFromTrailingDigits(href)
		}
		if id == "" {
			return
		}

		listing := models.RawListing{
			ExternalID: id,
			Title:      cleanText(sel.Find("h2, h3").First().Text()),
			Price:      parseEuro(sel.Find("span.vehicle-card__price, span.price").First().Text()),
			URL:        absoluteURL("https://www.viabovag.nl", href),
		}

		sel.Find("ul.vehicle-card__specs li, dd").Each(func(_ int, attr *goquery.Selection) {
			classifyAttribute(attr.Text(), &listing.Fuel, &listing.Gearbox, &listing.Year, &listing.Mileage)
		})

		listing.City = cleanText(sel.Find("span.vehicle-card__dealer-location, span.dealer").First().Text())
		if img, ok := sel.Find("img").First().Attr("src"); ok {
			listing.ImageURL = img
		}

		if !withinCeiling(listing.Price, criteria) {
			return
		}
		listings = append(listings, listing)
	})

	return listings, nil
}
