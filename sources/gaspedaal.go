package sources

import (
	"bytes"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"carscout/models"
)

// GaspedaalParser extracts listings from a Gaspedaal results page.
// Gaspedaal is itself an aggregator; its cards link out to the originating
// dealer site, so URLs here may point off-domain.
type GaspedaalParser struct{}

func (p *GaspedaalParser) Parse(markup []byte, criteria models.SearchCriteria) ([]models.RawListing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("gaspedaal: parse markup: %w", err)
	}

	var listings []models.RawListing
	doc.Find("div.occasion, li.results-list-item").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Find("a").First().Attr("href")
		id, _ := sel.Attr("data-id")
		if id == "" {
			id = externalIDFromTrailingDigits(href)
		}
		if id == "" {
			return
		}

		listing := models.RawListing{
			ExternalID: id,
			Title:      cleanText(sel.Find("h2, h3, span.title").First().Text()),
			Price:      parseEuro(sel.Find("span.price, div.price").First().Text()),
			URL:        absoluteURL("https://www.gaspedaal.nl", href),
		}

		sel.Find("span.spec, ul.specs li, td").Each(func(_ int, attr *goquery.Selection) {
			classifyAttribute(attr.Text(), &listing.Fuel, &listing.Gearbox, &listing.Year, &listing.Mileage)
		})

		listing.City = cleanText(sel.Find("span.location").First().Text())

		if !withinCeiling(listing.Price, criteria) {
			return
		}
		listings = append(listings, listing)
	})

	return listings, nil
}
