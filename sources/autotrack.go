package sources

import (
	"bytes"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"carscout/models"
)

// AutotrackParser extracts listings from an AutoTrack results page. The
// listing grid is JS-rendered, so this parser only ever sees markup from the
// render or browser strategies.
type AutotrackParser struct{}

func (p *AutotrackParser) Parse(markup []byte, criteria models.SearchCriteria) ([]models.RawListing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("autotrack: parse markup: %w", err)
	}

	var listings []models.RawListing
	doc.Find("div[data-testid='result-card'], article.occasion-card").Each(func(_ int, sel *goquery.Selection) {
		id, _ := sel.Attr("data-occasion-id")
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
			Price:      parseEuro(sel.Find("[data-testid='price'], span.price").First().Text()),
			URL:        absoluteURL("https://www.autotrack.nl", href),
		}

		sel.Find("[data-testid='specs'] li, ul.specs li").Each(func(_ int, attr *goquery.Selection) {
			classifyAttribute(attr.Text(), &listing.Fuel, &listing.Gearbox, &listing.Year, &listing.Mileage)
		})

		listing.City = cleanText(sel.Find("[data-testid='dealer-location'], span.dealer-location").First().Text())
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

func externalIDFromTrailingDigits(href string) string {
	if href == "" {
		return ""
	}
	m := digitsRegex.FindAllString(href, -1)
	if len(m) == 0 {
		return ""
	}
	return m[len(m)-1]
}
